package embedding

import (
	"context"
	"fmt"
	"time"
)

// Provider 定义统一的嵌入提供者接口。
type Provider interface {
	// Embed 为给定输入生成嵌入，返回值与输入一一对应。
	Embed(ctx context.Context, texts []string) ([][]float64, error)

	// EmbedQuery 嵌入单个查询字符串。
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// Name 返回提供者名称。
	Name() string

	// Dimensions 返回输出向量维度。
	Dimensions() int
}

// Config configures the embedding provider selected at startup.
type Config struct {
	// Provider: openai | local
	Provider string `yaml:"provider" json:"provider"`

	APIKey     string        `yaml:"api_key" json:"api_key"`
	BaseURL    string        `yaml:"base_url" json:"base_url"`
	Model      string        `yaml:"model,omitempty" json:"model,omitempty"`
	Dimensions int           `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// DefaultConfig returns the default embedding config.
func DefaultConfig() Config {
	return Config{
		Provider:   "local",
		BaseURL:    "https://api.openai.com",
		Model:      "text-embedding-3-small",
		Dimensions: 256,
		Timeout:    30 * time.Second,
	}
}

// NewProviderFromConfig 根据配置解析一次具体实现。
// 提供者在启动时选定，热路径内不再做字符串分发。
func NewProviderFromConfig(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "local", "":
		return NewLocalProvider(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
}
