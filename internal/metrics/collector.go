// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 检索指标
	queriesTotal        *prometheus.CounterVec
	queryDuration       *prometheus.HistogramVec
	documentsReturned   prometheus.Histogram
	vectorSearchSeconds prometheus.Histogram

	// 缓存指标
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	cacheDenials *prometheus.CounterVec
	enrichments  *prometheus.CounterVec

	// 重排指标
	rerankDuration    prometheus.Histogram
	rerankerFallbacks prometheus.Counter

	logger *zap.Logger
}

// NewCollector 创建指标收集器。reg 为 nil 时注册到默认 Registry。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 检索指标
	c.queriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of retrieval queries",
		},
		[]string{"outcome", "cached"}, // outcome: success, low_quality, insufficient_clearance, backend_unavailable, invalid_request
	)

	c.queryDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end retrieval query duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"cached"},
	)

	c.documentsReturned = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "documents_returned",
			Help:      "Number of documents returned per successful query",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	c.vectorSearchSeconds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vector_search_duration_seconds",
			Help:      "Vector store search duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// 缓存指标
	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of semantic cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of semantic cache misses",
		},
		[]string{"cache_type"},
	)

	c.cacheDenials = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_denials_total",
			Help:      "Total number of cache hits denied by clearance validation",
		},
		[]string{"cache_type", "scope"}, // scope: departmental, organizational
	)

	c.enrichments = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_enrichments_total",
			Help:      "Total number of background cluster enrichment attempts",
		},
		[]string{"status"}, // status: ok, skipped, failed
	)

	// 重排指标
	c.rerankDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rerank_duration_seconds",
			Help:      "Reranker scoring duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	c.rerankerFallbacks = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reranker_fallbacks_total",
			Help:      "Total number of queries degraded to similarity-only scoring",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🔍 检索指标记录
// =============================================================================

// RecordQuery 记录一次检索查询
func (c *Collector) RecordQuery(outcome string, cached bool, duration time.Duration, documents int) {
	cachedLabel := boolLabel(cached)
	c.queriesTotal.WithLabelValues(outcome, cachedLabel).Inc()
	c.queryDuration.WithLabelValues(cachedLabel).Observe(duration.Seconds())
	if outcome == "success" {
		c.documentsReturned.Observe(float64(documents))
	}
}

// RecordVectorSearch 记录向量搜索耗时
func (c *Collector) RecordVectorSearch(duration time.Duration) {
	c.vectorSearchSeconds.Observe(duration.Seconds())
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordCacheDenial 记录被权限校验拒绝的缓存命中
func (c *Collector) RecordCacheDenial(cacheType, scope string) {
	c.cacheDenials.WithLabelValues(cacheType, scope).Inc()
}

// RecordEnrichment 记录后台 enrich 尝试
func (c *Collector) RecordEnrichment(status string) {
	c.enrichments.WithLabelValues(status).Inc()
}

// =============================================================================
// 🎚️ 重排指标记录
// =============================================================================

// RecordRerank 记录重排耗时
func (c *Collector) RecordRerank(duration time.Duration) {
	c.rerankDuration.Observe(duration.Seconds())
}

// RecordRerankerFallback 记录一次降级为相似度打分
func (c *Collector) RecordRerankerFallback() {
	c.rerankerFallbacks.Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
