package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestCollector() *Collector {
	// 每个测试用独立 registry，避免重复注册冲突
	return NewCollector("test", prometheus.NewRegistry(), zap.NewNop())
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := newTestCollector()

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.queriesTotal)
	assert.NotNil(t, collector.cacheHits)
	assert.NotNil(t, collector.cacheDenials)
	assert.NotNil(t, collector.rerankerFallbacks)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := newTestCollector()

	collector.RecordHTTPRequest("POST", "/query", 200, 100*time.Millisecond)

	count := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, count, 0)

	collector.RecordHTTPRequest("POST", "/query", 200, 50*time.Millisecond)

	newCount := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.GreaterOrEqual(t, newCount, count)
}

func TestCollector_RecordQuery(t *testing.T) {
	collector := newTestCollector()

	collector.RecordQuery("success", false, 200*time.Millisecond, 3)
	collector.RecordQuery("low_quality", false, 100*time.Millisecond, 0)
	collector.RecordQuery("success", true, 2*time.Millisecond, 5)

	count := testutil.CollectAndCount(collector.queriesTotal)
	assert.Greater(t, count, 0)

	docsCount := testutil.CollectAndCount(collector.documentsReturned)
	assert.Greater(t, docsCount, 0)
}

func TestCollector_RecordCacheOperation(t *testing.T) {
	collector := newTestCollector()

	collector.RecordCacheHit("context")
	collector.RecordCacheMiss("context")
	collector.RecordCacheDenial("response", "organizational")
	collector.RecordEnrichment("ok")

	assert.Greater(t, testutil.CollectAndCount(collector.cacheHits), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.cacheMisses), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.cacheDenials), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.enrichments), 0)
}

func TestCollector_RecordRerank(t *testing.T) {
	collector := newTestCollector()

	collector.RecordRerank(300 * time.Millisecond)
	collector.RecordRerankerFallback()

	assert.Greater(t, testutil.CollectAndCount(collector.rerankDuration), 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.rerankerFallbacks))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := newTestCollector()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			collector.RecordHTTPRequest("POST", "/query", 200, 100*time.Millisecond)
			collector.RecordQuery("success", false, 150*time.Millisecond, 2)
			collector.RecordCacheHit("response")
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Greater(t, testutil.CollectAndCount(collector.httpRequestsTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.queriesTotal), 0)
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.cacheHits.WithLabelValues("response")))
}
