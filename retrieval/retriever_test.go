package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nurudeen19/rag-fortress/embedding"
	"github.com/nurudeen19/rag-fortress/rerank"
	"github.com/nurudeen19/rag-fortress/semcache"
	"github.com/nurudeen19/rag-fortress/types"
	"github.com/nurudeen19/rag-fortress/vectorstore"
)

// scriptedStore 返回预置候选，用于精确控制分数分布。
type scriptedStore struct {
	results []vectorstore.SearchResult
	err     error
	calls   int
}

func (s *scriptedStore) Search(_ context.Context, _ []float64, k int, _ vectorstore.SecurityFilter) ([]vectorstore.SearchResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) > k {
		return s.results[:k], nil
	}
	return s.results, nil
}

func (s *scriptedStore) AddDocuments(context.Context, []vectorstore.Document) error { return nil }
func (s *scriptedStore) Count(context.Context) (int, error)                         { return len(s.results), nil }

func candidatesWithScores(scores ...float64) []vectorstore.SearchResult {
	out := make([]vectorstore.SearchResult, len(scores))
	for i, score := range scores {
		out[i] = vectorstore.SearchResult{
			Document: vectorstore.Document{
				ID:      fmt.Sprintf("doc-%d", i),
				Content: fmt.Sprintf("content %d", i),
				Metadata: types.DocumentMetadata{
					SecurityLevel: 1,
				},
			},
			Score: score,
		}
	}
	return out
}

type testEnv struct {
	retriever  *Retriever
	store      *scriptedStore
	cacheStore *semcache.MemoryStore
}

func newTestEnv(t *testing.T, results []vectorstore.SearchResult, mutate func(*Options)) *testEnv {
	t.Helper()

	opts := DefaultOptions()
	opts.TopK = 3
	opts.MaxK = 10
	opts.ScoreThreshold = 0.5
	if mutate != nil {
		mutate(&opts)
	}

	embedder := embedding.NewLocalProvider(32)
	cacheStore := semcache.NewMemoryStore(zap.NewNop())
	engine := semcache.NewEngine(semcache.DefaultConfig(), cacheStore, embedder, zap.NewNop())
	store := &scriptedStore{results: results}

	r := NewRetriever(opts, embedder, store, nil, engine, nil, zap.NewNop())
	return &testEnv{retriever: r, store: store, cacheStore: cacheStore}
}

func orgCtx(level int) types.SecurityContext {
	return types.SecurityContext{OrgClearanceLevel: level}
}

func TestQueryTopKAboveThreshold(t *testing.T) {
	env := newTestEnv(t, candidatesWithScores(0.9, 0.8, 0.7, 0.6, 0.4, 0.3, 0.3, 0.2, 0.1, 0.05), nil)

	result, err := env.retriever.Query(context.Background(), "vacation policy", orgCtx(1))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.Cached)
	require.Equal(t, 3, result.Count)
	assert.InDelta(t, 0.9, result.Documents[0].Score, 1e-9)
	assert.InDelta(t, 0.8, result.Documents[1].Score, 1e-9)
	assert.InDelta(t, 0.7, result.Documents[2].Score, 1e-9)
}

// 只有一个候选过阈值时，绝不用低于阈值的邻居凑满 TopK
func TestQuerySingleQualifyingCandidate(t *testing.T) {
	env := newTestEnv(t, candidatesWithScores(0.9, 0.3, 0.3, 0.2, 0.1), nil)

	result, err := env.retriever.Query(context.Background(), "vacation policy", orgCtx(1))
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.Equal(t, 1, result.Count)
	assert.InDelta(t, 0.9, result.Documents[0].Score, 1e-9)
}

func TestQueryAllBelowThreshold(t *testing.T) {
	env := newTestEnv(t, candidatesWithScores(0.4, 0.3, 0.3, 0.2, 0.2, 0.1, 0.1, 0.05, 0.05, 0.01), nil)

	result, err := env.retriever.Query(context.Background(), "vacation policy", orgCtx(1))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, types.ErrLowQualityResults, result.ErrorCode)
	assert.Equal(t, 0, result.Count)

	// “没有好答案”不写缓存
	clusters, listErr := env.cacheStore.ListClusters(context.Background(), semcache.TierContext)
	require.NoError(t, listErr)
	assert.Empty(t, clusters)
}

func TestQueryBackendFault(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.store.err = errors.New("connection refused")

	result, err := env.retriever.Query(context.Background(), "vacation policy", orgCtx(1))
	require.Error(t, err)

	assert.Equal(t, types.ErrRetrievalBackendUnavailable, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, types.ErrRetrievalBackendUnavailable, result.ErrorCode)
}

func TestQueryInvalidRequest(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	_, err := env.retriever.Query(context.Background(), "", orgCtx(1))
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))

	_, err = env.retriever.Query(context.Background(), "q", types.SecurityContext{OrgClearanceLevel: -1})
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

// 同一查询第二次从上下文缓存返回，且排序与首次一致
func TestQueryCachedOnSecondCall(t *testing.T) {
	env := newTestEnv(t, candidatesWithScores(0.9, 0.8, 0.7, 0.2), nil)
	ctx := context.Background()
	sc := orgCtx(1)

	first, err := env.retriever.Query(ctx, "what is the vacation policy", sc)
	require.NoError(t, err)
	require.True(t, first.Success)
	assert.False(t, first.Cached)

	second, err := env.retriever.Query(ctx, "what is the vacation policy", sc)
	require.NoError(t, err)
	require.True(t, second.Success)
	assert.True(t, second.Cached)

	require.Equal(t, first.Count, second.Count)
	for i := range first.Documents {
		assert.Equal(t, first.Documents[i].ID, second.Documents[i].ID)
	}

	env.retriever.WaitForEnrichment()
}

// 缓存命中且簇未满时，后台 enrich 会追加一条 variation
func TestQueryHitBelowCapacityEnriches(t *testing.T) {
	env := newTestEnv(t, candidatesWithScores(0.9, 0.8), nil)
	ctx := context.Background()
	sc := orgCtx(1)

	_, err := env.retriever.Query(ctx, "vacation policy", sc)
	require.NoError(t, err)
	env.retriever.WaitForEnrichment()

	clusters, err := env.cacheStore.ListClusters(ctx, semcache.TierContext)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Variations, 1)

	result, err := env.retriever.Query(ctx, "vacation policy", sc)
	require.NoError(t, err)
	assert.True(t, result.Cached)
	env.retriever.WaitForEnrichment()

	clusters, err = env.cacheStore.ListClusters(ctx, semcache.TierContext)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Variations, 2, "below-capacity hit must enrich the cluster")

	assert.Equal(t, 2, env.store.calls, "one live retrieval plus one background enrichment")
}

// 权限不足的拒绝与低质量未命中在外部形状上不可区分
func TestQueryClearanceDenialShape(t *testing.T) {
	env := newTestEnv(t, []vectorstore.SearchResult{
		{
			Document: vectorstore.Document{
				ID:      "classified-1",
				Content: "restricted content",
				Metadata: types.DocumentMetadata{
					SecurityLevel: 3,
				},
			},
			Score: 0.9,
		},
	}, nil)
	ctx := context.Background()

	// 级别 3 的请求者创建缓存簇
	seeded, err := env.retriever.Query(ctx, "classified topic", orgCtx(3))
	require.NoError(t, err)
	require.True(t, seeded.Success)
	env.retriever.WaitForEnrichment()

	// 级别 1 的请求者被拒绝，且不触发实时检索
	callsBefore := env.store.calls
	denied, err := env.retriever.Query(ctx, "classified topic", orgCtx(1))
	require.NoError(t, err)

	assert.False(t, denied.Success)
	assert.Equal(t, types.ErrInsufficientClearance, denied.ErrorCode)
	assert.Equal(t, 0, denied.Count)
	assert.Empty(t, denied.Documents, "no document content may be disclosed")
	assert.Equal(t, callsBefore, env.store.calls)

	// 外部可观测形状与低质量结果一致
	lowQuality := types.NewLowQualityResult()
	assert.Equal(t, lowQuality.Success, denied.Success)
	assert.Equal(t, lowQuality.Count, denied.Count)
	assert.Equal(t, lowQuality.Message, denied.Message)
}

// 部门隔离：clearance 不变，只有同部门请求者能命中缓存
func TestQueryDepartmentIsolation(t *testing.T) {
	env := newTestEnv(t, []vectorstore.SearchResult{
		{
			Document: vectorstore.Document{
				ID:      "dept-doc",
				Content: "engineering runbook",
				Metadata: types.DocumentMetadata{
					SecurityLevel:    2,
					IsDepartmentOnly: true,
					DepartmentID:     "7",
				},
			},
			Score: 0.9,
		},
	}, nil)
	ctx := context.Background()

	dept7 := types.SecurityContext{OrgClearanceLevel: 1, DepartmentID: "7", DepartmentClearanceLevel: 2}
	dept8 := types.SecurityContext{OrgClearanceLevel: 1, DepartmentID: "8", DepartmentClearanceLevel: 2}

	seeded, err := env.retriever.Query(ctx, "deployment runbook", dept7)
	require.NoError(t, err)
	require.True(t, seeded.Success)
	env.retriever.WaitForEnrichment()

	hit, err := env.retriever.Query(ctx, "deployment runbook", dept7)
	require.NoError(t, err)
	assert.True(t, hit.Cached)
	env.retriever.WaitForEnrichment()

	denied, err := env.retriever.Query(ctx, "deployment runbook", dept8)
	require.NoError(t, err)
	assert.False(t, denied.Success)
	assert.Equal(t, types.ErrInsufficientClearance, denied.ErrorCode)
}

// 重排开启但初始化失败：降级为相似度打分，查询不失败
func TestQueryRerankerDegradation(t *testing.T) {
	opts := DefaultOptions()
	opts.TopK = 3
	opts.MaxK = 10
	opts.ScoreThreshold = 0.5
	opts.RerankEnabled = true

	embedder := embedding.NewLocalProvider(32)
	engine := semcache.NewEngine(semcache.DefaultConfig(), semcache.NewMemoryStore(zap.NewNop()), embedder, zap.NewNop())
	store := &scriptedStore{results: candidatesWithScores(0.9, 0.8, 0.7, 0.2)}

	factory := rerank.NewFactory(rerank.Config{Provider: "bogus"}, zap.NewNop())
	r := NewRetriever(opts, embedder, store, factory, engine, nil, zap.NewNop())

	result, err := r.Query(context.Background(), "vacation policy", orgCtx(1))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Count)
}

// 实时搜索与缓存匹配共用同一嵌入空间：这是缓存键保持一致的前提
func TestSharedEmbeddingSpace(t *testing.T) {
	embedder := embedding.NewLocalProvider(64)
	memStore := vectorstore.NewInMemoryStore(zap.NewNop())
	ctx := context.Background()

	docs := []vectorstore.Document{
		{ID: "a", Content: "annual leave and vacation days", Metadata: types.DocumentMetadata{SecurityLevel: 1}},
		{ID: "b", Content: "database migration troubleshooting", Metadata: types.DocumentMetadata{SecurityLevel: 1}},
	}
	for i := range docs {
		emb, err := embedder.EmbedQuery(ctx, docs[i].Content)
		require.NoError(t, err)
		docs[i].Embedding = emb
	}
	require.NoError(t, memStore.AddDocuments(ctx, docs))

	opts := DefaultOptions()
	opts.ScoreThreshold = -1.0 // 哈希嵌入的绝对相似度很低，本测试只关心一致性
	engine := semcache.NewEngine(semcache.DefaultConfig(), semcache.NewMemoryStore(zap.NewNop()), embedder, zap.NewNop())
	r := NewRetriever(opts, embedder, memStore, nil, engine, nil, zap.NewNop())

	sc := orgCtx(1)
	first, err := r.Query(ctx, "vacation days", sc)
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := r.Query(ctx, "vacation days", sc)
	require.NoError(t, err)
	assert.True(t, second.Cached, "identical query must hit the cache built in the same embedding space")
	r.WaitForEnrichment()
}

func TestResponseTierRoundTrip(t *testing.T) {
	env := newTestEnv(t, candidatesWithScores(0.9), nil)
	ctx := context.Background()
	sc := orgCtx(2)

	docs := []types.RetrievedDocument{
		{ID: "a", Content: "doc", Metadata: types.DocumentMetadata{SecurityLevel: 2}, Score: 0.9},
	}

	_, ok, err := env.retriever.CachedResponse(ctx, "vacation policy", sc)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, env.retriever.StoreResponse(ctx, "vacation policy", "You get 30 days.", sc, docs))

	got, ok, err := env.retriever.CachedResponse(ctx, "vacation policy", sc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "You get 30 days.", got)

	// 级别不足的请求者拿到显式拒绝
	_, ok, err = env.retriever.CachedResponse(ctx, "vacation policy", orgCtx(1))
	assert.False(t, ok)
	assert.Equal(t, types.ErrInsufficientClearance, types.GetErrorCode(err))
}
