package semcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisStore(t *testing.T, cfg Config) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, cfg, zap.NewNop())
	require.NoError(t, err)
	return store, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t, DefaultConfig())
	ctx := context.Background()

	c := NewCluster(TierResponse, []float64{0.1, 0.9}, "org:2",
		SecurityRequirement{MinOrgLevel: 2},
		Variation{Payload: []byte("answer")}, 3, time.Hour)
	require.NoError(t, store.PutCluster(ctx, c))

	clusters, err := store.ListClusters(ctx, TierResponse)
	require.NoError(t, err)
	require.Len(t, clusters, 1)

	got := clusters[0]
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, c.Centroid, got.Centroid)
	assert.Equal(t, "org:2", got.Scope)
	assert.Equal(t, []byte("answer"), got.Variations[0].Payload)
}

func TestRedisStoreTierIsolation(t *testing.T) {
	store, _ := newRedisStore(t, DefaultConfig())
	ctx := context.Background()

	resp := NewCluster(TierResponse, []float64{1}, "org:1", SecurityRequirement{}, Variation{Payload: []byte("r")}, 3, time.Hour)
	cctx := NewCluster(TierContext, []float64{1}, "org:1", SecurityRequirement{}, Variation{Payload: []byte("c")}, 5, time.Hour)
	require.NoError(t, store.PutCluster(ctx, resp))
	require.NoError(t, store.PutCluster(ctx, cctx))

	respList, err := store.ListClusters(ctx, TierResponse)
	require.NoError(t, err)
	require.Len(t, respList, 1)
	assert.Equal(t, resp.ID, respList[0].ID)

	require.NoError(t, store.Clear(ctx, TierResponse))

	respList, err = store.ListClusters(ctx, TierResponse)
	require.NoError(t, err)
	assert.Empty(t, respList)

	ctxList, err := store.ListClusters(ctx, TierContext)
	require.NoError(t, err)
	assert.Len(t, ctxList, 1, "clearing one tier must not touch the other")
}

func TestRedisStoreAppendKeepsTTL(t *testing.T) {
	store, mr := newRedisStore(t, DefaultConfig())
	ctx := context.Background()

	c := NewCluster(TierContext, []float64{1}, "org:1",
		SecurityRequirement{MinOrgLevel: 1},
		Variation{Payload: []byte("v1")}, 5, time.Hour)
	require.NoError(t, store.PutCluster(ctx, c))

	mr.FastForward(30 * time.Minute)

	err := store.AppendVariation(ctx, TierContext, c.ID, Variation{Payload: []byte("v2")}, SecurityRequirement{MinOrgLevel: 2})
	require.NoError(t, err)

	// 追加不重置 TTL：从创建起 1h 后键消失
	mr.FastForward(31 * time.Minute)

	clusters, err := store.ListClusters(ctx, TierContext)
	require.NoError(t, err)
	assert.Empty(t, clusters, "ttl must run from creation, not from the last append")
}

func TestRedisStoreAppendCapAndTightening(t *testing.T) {
	store, _ := newRedisStore(t, DefaultConfig())
	ctx := context.Background()

	c := NewCluster(TierResponse, []float64{1}, "org:1",
		SecurityRequirement{MinOrgLevel: 1},
		Variation{Payload: []byte("v1")}, 2, time.Hour)
	require.NoError(t, store.PutCluster(ctx, c))

	require.NoError(t, store.AppendVariation(ctx, TierResponse, c.ID, Variation{Payload: []byte("v2")}, SecurityRequirement{MinOrgLevel: 3}))
	// 已满：第三次追加静默丢弃
	require.NoError(t, store.AppendVariation(ctx, TierResponse, c.ID, Variation{Payload: []byte("v3")}, SecurityRequirement{MinOrgLevel: 9}))

	clusters, err := store.ListClusters(ctx, TierResponse)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Variations, 2)
	assert.Equal(t, 3, clusters[0].Requirement.MinOrgLevel)
}

func TestRedisStoreAppendMissingCluster(t *testing.T) {
	store, _ := newRedisStore(t, DefaultConfig())

	err := store.AppendVariation(context.Background(), TierResponse, "no-such-id", Variation{Payload: []byte("x")}, SecurityRequirement{})
	assert.ErrorIs(t, err, ErrClusterNotFound)
}

func TestRedisStoreEncryption(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EncryptionKey = "test-secret"
	cfg.Response.Encrypt = true
	store, mr := newRedisStore(t, cfg)
	ctx := context.Background()

	payload := []byte("sensitive generated answer")
	c := NewCluster(TierResponse, []float64{1}, "org:3",
		SecurityRequirement{MinOrgLevel: 3},
		Variation{Payload: payload}, 3, time.Hour)
	require.NoError(t, store.PutCluster(ctx, c))

	// 落盘记录不含明文
	raw, err := mr.Get(clusterKey(TierResponse, c.ID))
	require.NoError(t, err)
	assert.NotContains(t, raw, string(payload))

	// 读回是透明解密的
	clusters, err := store.ListClusters(ctx, TierResponse)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, payload, clusters[0].Variations[0].Payload)

	// context 层未启用加密：按原样存取
	c2 := NewCluster(TierContext, []float64{1}, "org:3",
		SecurityRequirement{MinOrgLevel: 3},
		Variation{Payload: []byte("plain docs")}, 5, time.Hour)
	require.NoError(t, store.PutCluster(ctx, c2))

	ctxClusters, err := store.ListClusters(ctx, TierContext)
	require.NoError(t, err)
	require.Len(t, ctxClusters, 1)
	assert.Equal(t, []byte("plain docs"), ctxClusters[0].Variations[0].Payload)
}

func TestNewRedisStoreRequiresKeyWhenEncrypting(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := DefaultConfig()
	cfg.Context.Encrypt = true

	_, err := NewRedisStore(client, cfg, zap.NewNop())
	assert.Error(t, err)
}

var _ Store = (*RedisStore)(nil)
var _ Store = (*MemoryStore)(nil)
