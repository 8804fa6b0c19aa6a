package rerank

import "time"

// Config configures the reranker selected at startup.
type Config struct {
	// Enabled toggles second-pass reranking for the retrieval pipeline.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Provider: cohere | jina | local
	Provider string `yaml:"provider" json:"provider"`

	APIKey  string        `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	BaseURL string        `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Model   string        `yaml:"model,omitempty" json:"model,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// ScoreThreshold is calibrated per deployed backend; score scales are
	// not portable across providers.
	ScoreThreshold float64 `yaml:"score_threshold" json:"score_threshold"`

	// RateLimitRPS throttles remote provider calls. 0 disables throttling.
	RateLimitRPS float64 `yaml:"rate_limit_rps,omitempty" json:"rate_limit_rps,omitempty"`

	// MaxDocTokens caps per-document token count before remote scoring.
	// 0 disables truncation.
	MaxDocTokens int `yaml:"max_doc_tokens,omitempty" json:"max_doc_tokens,omitempty"`
}

// DefaultConfig returns the default reranker config.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		Provider:       "local",
		Timeout:        30 * time.Second,
		ScoreThreshold: 0.1,
		MaxDocTokens:   512,
	}
}
