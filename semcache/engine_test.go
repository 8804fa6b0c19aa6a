package semcache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nurudeen19/rag-fortress/types"
)

// stubEmbedder 按查询文本返回固定向量，未登记的文本落到正交向量，
// 保证测试中的相似度完全可控。
type stubEmbedder struct {
	vectors map[string][]float64
	dims    int
	err     error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = s.vector(t)
	}
	return out, nil
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vector(text), nil
}

func (s *stubEmbedder) vector(text string) []float64 {
	if v, ok := s.vectors[text]; ok {
		return v
	}
	v := make([]float64, s.dims)
	v[len(text)%s.dims] = 1.0
	return v
}

func (s *stubEmbedder) Name() string    { return "stub" }
func (s *stubEmbedder) Dimensions() int { return s.dims }

func newTestEngine(t *testing.T, vectors map[string][]float64) (*Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(zap.NewNop())
	emb := &stubEmbedder{vectors: vectors, dims: 4}
	eng := NewEngine(DefaultConfig(), store, emb, zap.NewNop())
	return eng, store
}

func orgCtx(level int) types.SecurityContext {
	return types.SecurityContext{OrgClearanceLevel: level}
}

func TestEngineSetThenGet(t *testing.T) {
	t.Parallel()

	vectors := map[string][]float64{
		"what is the vacation policy": {1, 0, 0, 0},
		"tell me the vacation policy": {0.99, 0.14, 0, 0},
		"how do I configure the VPN":  {0, 1, 0, 0},
	}
	eng, _ := newTestEngine(t, vectors)
	ctx := context.Background()
	sc := orgCtx(2)

	err := eng.Set(ctx, TierResponse, "what is the vacation policy", []byte("30 days"), SetMetadata{
		SecurityContext: sc,
		Requirement:     SecurityRequirement{MinOrgLevel: 2},
	})
	require.NoError(t, err)

	// 同义转述命中同一簇
	hit, err := eng.Get(ctx, TierResponse, "tell me the vacation policy", sc)
	require.NoError(t, err)
	assert.Equal(t, []byte("30 days"), hit.Payload)
	assert.GreaterOrEqual(t, hit.Similarity, 0.90)
	assert.False(t, hit.AtCapacity)

	// 语义无关的查询未命中
	_, err = eng.Get(ctx, TierResponse, "how do I configure the VPN", sc)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestEngineClearanceDenial(t *testing.T) {
	t.Parallel()

	vectors := map[string][]float64{"q": {1, 0, 0, 0}}
	eng, _ := newTestEngine(t, vectors)
	ctx := context.Background()

	// 级别 3 的请求者创建了簇
	err := eng.Set(ctx, TierResponse, "q", []byte("classified"), SetMetadata{
		SecurityContext: orgCtx(3),
		Requirement:     SecurityRequirement{MinOrgLevel: 3},
	})
	require.NoError(t, err)

	// 级别 1 的请求者得到显式拒绝，而不是普通未命中
	_, err = eng.Get(ctx, TierResponse, "q", orgCtx(1))
	require.Error(t, err)
	assert.Equal(t, types.ErrInsufficientClearance, types.GetErrorCode(err))

	var terr *types.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, types.DenialScopeOrganizational, terr.Scope)
}

func TestEngineSufficientButDifferentScopeMisses(t *testing.T) {
	t.Parallel()

	vectors := map[string][]float64{"q": {1, 0, 0, 0}}
	eng, _ := newTestEngine(t, vectors)
	ctx := context.Background()

	err := eng.Set(ctx, TierResponse, "q", []byte("answer"), SetMetadata{
		SecurityContext: orgCtx(2),
		Requirement:     SecurityRequirement{MinOrgLevel: 2},
	})
	require.NoError(t, err)

	// 级别 5 高于簇要求，但作用域不精确匹配：
	// 走实时检索能拿到更完整的结果集，因此是普通未命中而非命中
	_, err = eng.Get(ctx, TierResponse, "q", orgCtx(5))
	assert.ErrorIs(t, err, ErrMiss)
}

func TestEngineDepartmentIsolation(t *testing.T) {
	t.Parallel()

	vectors := map[string][]float64{"dept question": {1, 0, 0, 0}}
	eng, _ := newTestEngine(t, vectors)
	ctx := context.Background()

	engCtx := types.SecurityContext{OrgClearanceLevel: 1, DepartmentID: "eng", DepartmentClearanceLevel: 2}
	hrCtx := types.SecurityContext{OrgClearanceLevel: 1, DepartmentID: "hr", DepartmentClearanceLevel: 2}

	err := eng.Set(ctx, TierResponse, "dept question", []byte("eng only"), SetMetadata{
		SecurityContext: engCtx,
		Requirement:     SecurityRequirement{MinOrgLevel: 2, IsDepartmental: true, DepartmentIDs: []string{"eng"}},
	})
	require.NoError(t, err)

	hit, err := eng.Get(ctx, TierResponse, "dept question", engCtx)
	require.NoError(t, err)
	assert.Equal(t, []byte("eng only"), hit.Payload)

	_, err = eng.Get(ctx, TierResponse, "dept question", hrCtx)
	require.Error(t, err)
	assert.Equal(t, types.ErrInsufficientClearance, types.GetErrorCode(err))
	var terr *types.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, types.DenialScopeDepartmental, terr.Scope)
}

func TestEngineAppendAndCap(t *testing.T) {
	t.Parallel()

	vectors := map[string][]float64{"q": {1, 0, 0, 0}}
	eng, store := newTestEngine(t, vectors)
	ctx := context.Background()
	sc := orgCtx(1)
	meta := SetMetadata{SecurityContext: sc, Requirement: SecurityRequirement{MinOrgLevel: 1}}

	// context 层容量为 5：第 6 次写入静默丢弃
	for i := 0; i < 6; i++ {
		err := eng.Set(ctx, TierContext, "q", []byte(fmt.Sprintf("docs-%d", i)), meta)
		require.NoError(t, err)
	}

	clusters, err := store.ListClusters(ctx, TierContext)
	require.NoError(t, err)
	require.Len(t, clusters, 1, "all writes must land in one cluster")
	assert.Len(t, clusters[0].Variations, 5)
	assert.Equal(t, StateSaturated, clusters[0].State(time.Now()))

	hit, err := eng.Get(ctx, TierContext, "q", sc)
	require.NoError(t, err)
	assert.True(t, hit.AtCapacity)
}

func TestEngineTierIsolation(t *testing.T) {
	t.Parallel()

	vectors := map[string][]float64{"q": {1, 0, 0, 0}}
	eng, _ := newTestEngine(t, vectors)
	ctx := context.Background()
	sc := orgCtx(1)

	err := eng.Set(ctx, TierResponse, "q", []byte("answer"), SetMetadata{
		SecurityContext: sc,
		Requirement:     SecurityRequirement{MinOrgLevel: 1},
	})
	require.NoError(t, err)

	// response 层的写入对 context 层不可见
	_, err = eng.Get(ctx, TierContext, "q", sc)
	assert.ErrorIs(t, err, ErrMiss)

	// 清空 context 层不影响 response 层
	require.NoError(t, eng.Clear(ctx, TierContext))
	hit, err := eng.Get(ctx, TierResponse, "q", sc)
	require.NoError(t, err)
	assert.Equal(t, []byte("answer"), hit.Payload)
}

func TestEngineExpiredClusterEvictedOnAccess(t *testing.T) {
	t.Parallel()

	vectors := map[string][]float64{"q": {1, 0, 0, 0}}
	eng, store := newTestEngine(t, vectors)
	ctx := context.Background()
	sc := orgCtx(1)

	err := eng.Set(ctx, TierResponse, "q", []byte("stale"), SetMetadata{
		SecurityContext: sc,
		Requirement:     SecurityRequirement{MinOrgLevel: 1},
	})
	require.NoError(t, err)

	// 将时钟拨过 TTL（response 层默认 1h）
	eng.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = eng.Get(ctx, TierResponse, "q", sc)
	assert.ErrorIs(t, err, ErrMiss)

	clusters, err := store.ListClusters(ctx, TierResponse)
	require.NoError(t, err)
	assert.Empty(t, clusters, "expired cluster must be evicted lazily")
}

func TestEngineDisabledTier(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Context.Enabled = false
	store := NewMemoryStore(zap.NewNop())
	eng := NewEngine(cfg, store, &stubEmbedder{dims: 4}, zap.NewNop())
	ctx := context.Background()

	_, err := eng.Get(ctx, TierContext, "q", orgCtx(1))
	assert.ErrorIs(t, err, ErrTierDisabled)

	// 禁用层的写入静默丢弃
	require.NoError(t, eng.Set(ctx, TierContext, "q", []byte("x"), SetMetadata{SecurityContext: orgCtx(1)}))
	clusters, err := store.ListClusters(ctx, TierContext)
	require.NoError(t, err)
	assert.Empty(t, clusters)
}

func TestEngineEmbeddingFailure(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(zap.NewNop())
	emb := &stubEmbedder{dims: 4, err: errors.New("model offline")}
	eng := NewEngine(DefaultConfig(), store, emb, zap.NewNop())

	_, err := eng.Get(context.Background(), TierResponse, "q", orgCtx(1))
	assert.Equal(t, types.ErrEmbeddingFailed, types.GetErrorCode(err))
}

func TestEngineVariationRotation(t *testing.T) {
	t.Parallel()

	vectors := map[string][]float64{"q": {1, 0, 0, 0}}
	eng, _ := newTestEngine(t, vectors)
	ctx := context.Background()
	sc := orgCtx(1)
	meta := SetMetadata{SecurityContext: sc, Requirement: SecurityRequirement{MinOrgLevel: 1}}

	require.NoError(t, eng.Set(ctx, TierResponse, "q", []byte("a"), meta))
	require.NoError(t, eng.Set(ctx, TierResponse, "q", []byte("b"), meta))
	require.NoError(t, eng.Set(ctx, TierResponse, "q", []byte("c"), meta))

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		hit, err := eng.Get(ctx, TierResponse, "q", sc)
		require.NoError(t, err)
		seen[string(hit.Payload)] = true
	}
	assert.Len(t, seen, 3, "all variations should be served over enough draws")
}

func TestSweeperEvictsExpired(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	fresh := NewCluster(TierResponse, []float64{1}, "org:1", SecurityRequirement{}, Variation{Payload: []byte("a")}, 3, time.Hour)
	stale := NewCluster(TierContext, []float64{1}, "org:1", SecurityRequirement{}, Variation{Payload: []byte("b")}, 3, time.Minute)
	require.NoError(t, store.PutCluster(ctx, fresh))
	require.NoError(t, store.PutCluster(ctx, stale))

	sw := NewSweeper(store, time.Minute, zap.NewNop())
	sw.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	require.NoError(t, sw.SweepOnce(ctx))

	respClusters, err := store.ListClusters(ctx, TierResponse)
	require.NoError(t, err)
	assert.Len(t, respClusters, 1, "fresh cluster survives the sweep")

	ctxClusters, err := store.ListClusters(ctx, TierContext)
	require.NoError(t, err)
	assert.Empty(t, ctxClusters)
}
