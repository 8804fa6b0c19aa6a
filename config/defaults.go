// =============================================================================
// 📦 RAG Fortress 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/nurudeen19/rag-fortress/embedding"
	"github.com/nurudeen19/rag-fortress/rerank"
	"github.com/nurudeen19/rag-fortress/semcache"
	"github.com/nurudeen19/rag-fortress/vectorstore"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:      DefaultServerConfig(),
		Log:         DefaultLogConfig(),
		Redis:       DefaultRedisConfig(),
		Embedding:   embedding.DefaultConfig(),
		VectorStore: DefaultVectorStoreConfig(),
		Reranker:    rerank.DefaultConfig(),
		Retrieval:   DefaultRetrievalConfig(),
		Cache:       semcache.DefaultConfig(),
		Auth:        DefaultAuthConfig(),
		Telemetry:   DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultVectorStoreConfig 返回默认向量存储配置
func DefaultVectorStoreConfig() VectorStoreConfig {
	return VectorStoreConfig{
		Backend: "memory",
		Qdrant:  vectorstore.DefaultQdrantConfig(),
	}
}

// DefaultRetrievalConfig 返回默认检索管线配置
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:           5,
		MaxK:           20,
		ScoreThreshold: 0.5,
		SweepInterval:  5 * time.Minute,
	}
}

// DefaultAuthConfig 返回默认认证配置。默认关闭，此时安全描述符
// 取自请求体（仅适用于可信内网部署）。
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Enabled: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "rag-fortress",
		SampleRate:   1.0,
	}
}
