package semcache

import (
	"fmt"
	"time"
)

// Tier 标识缓存层。两层键空间互相隔离。
type Tier string

const (
	// TierResponse 缓存生成的回答
	TierResponse Tier = "response"

	// TierContext 缓存检索到的文档集。阈值比 response 层更严格：
	// 提供略有偏差的文档集有暴露错误范围内容的风险，而略有偏差的
	// 回答措辞风险低得多。
	TierContext Tier = "context"
)

// Valid reports whether the tier is one of the known tiers.
func (t Tier) Valid() bool {
	return t == TierResponse || t == TierContext
}

// TierConfig 单层缓存配置。
type TierConfig struct {
	Enabled             bool          `yaml:"enabled" json:"enabled"`
	TTL                 time.Duration `yaml:"ttl" json:"ttl"`
	MaxEntries          int           `yaml:"max_entries" json:"max_entries"`
	SimilarityThreshold float64       `yaml:"similarity_threshold" json:"similarity_threshold"`
	Encrypt             bool          `yaml:"encrypt" json:"encrypt"`
}

// Config 两层缓存的完整配置。
type Config struct {
	// Backend: memory | redis
	Backend string `yaml:"backend" json:"backend"`

	// EncryptionKey 用于派生 variation 载荷的加密密钥，
	// 仅在某层 Encrypt=true 时需要。
	EncryptionKey string `yaml:"encryption_key,omitempty" json:"encryption_key,omitempty"`

	Response TierConfig `yaml:"response" json:"response"`
	Context  TierConfig `yaml:"context" json:"context"`
}

// DefaultConfig 返回默认缓存配置。
func DefaultConfig() Config {
	return Config{
		Backend: "memory",
		Response: TierConfig{
			Enabled:             true,
			TTL:                 1 * time.Hour,
			MaxEntries:          3,
			SimilarityThreshold: 0.90,
		},
		Context: TierConfig{
			Enabled:             true,
			TTL:                 30 * time.Minute,
			MaxEntries:          5,
			SimilarityThreshold: 0.95,
		},
	}
}

// TierConfig returns the config for the given tier.
func (c Config) TierConfig(tier Tier) TierConfig {
	if tier == TierResponse {
		return c.Response
	}
	return c.Context
}

// Validate 检查配置一致性。
func (c Config) Validate() error {
	if c.Backend != "memory" && c.Backend != "redis" && c.Backend != "" {
		return fmt.Errorf("unknown cache backend: %q", c.Backend)
	}
	for _, tier := range []Tier{TierResponse, TierContext} {
		tc := c.TierConfig(tier)
		if !tc.Enabled {
			continue
		}
		if tc.MaxEntries <= 0 {
			return fmt.Errorf("%s tier: max_entries must be positive", tier)
		}
		if tc.TTL <= 0 {
			return fmt.Errorf("%s tier: ttl must be positive", tier)
		}
		if tc.SimilarityThreshold <= 0 || tc.SimilarityThreshold > 1 {
			return fmt.Errorf("%s tier: similarity_threshold must be in (0, 1]", tier)
		}
		if tc.Encrypt && c.EncryptionKey == "" {
			return fmt.Errorf("%s tier: encrypt enabled without encryption_key", tier)
		}
	}
	return nil
}
