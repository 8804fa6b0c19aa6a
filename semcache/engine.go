package semcache

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nurudeen19/rag-fortress/embedding"
	"github.com/nurudeen19/rag-fortress/types"
)

// ErrMiss 普通未命中：没有阈值内的邻近簇，或作用域不精确匹配。
var ErrMiss = errors.New("semantic cache miss")

// ErrTierDisabled 该层在配置中被禁用。
var ErrTierDisabled = errors.New("cache tier disabled")

// Hit 一次命中的结果。
type Hit struct {
	ClusterID  string
	Payload    []byte
	Similarity float64

	// AtCapacity 为 false 时调用方可以在响应后做尽力而为的 enrich
	AtCapacity bool
}

// Engine 语义缓存引擎。一个 Engine 同时管理两层；层由每次调用显式
// 指定，层间键空间由 Store 保证隔离。
//
// Engine 是显式构造、注入传递的句柄，不提供进程级单例。
type Engine struct {
	cfgMu    sync.RWMutex
	cfg      Config
	store    Store
	embedder embedding.Provider
	logger   *zap.Logger
	now      func() time.Time // 可注入，便于测试过期
}

// NewEngine 创建语义缓存引擎。
// embedder 必须与实时检索使用同一实例：两侧共享同一嵌入空间是
// 缓存键与实时检索结果保持一致的前提。
func NewEngine(cfg Config, store Store, embedder embedding.Provider, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		logger:   logger.With(zap.String("component", "semcache")),
		now:      time.Now,
	}
}

// tierConfig 返回该层配置的当前快照。
func (e *Engine) tierConfig(tier Tier) TierConfig {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg.TierConfig(tier)
}

// UpdateTierConfig 热更新两层的开关、TTL、容量与相似度阈值。
// Backend 与 EncryptionKey 不可热更，保持构造时的值。
func (e *Engine) UpdateTierConfig(response, contextTier TierConfig) {
	e.cfgMu.Lock()
	e.cfg.Response = response
	e.cfg.Context = contextTier
	e.cfgMu.Unlock()
}

// Get 查找某层中与查询语义邻近的簇。
//
// 返回值：
//   - (*Hit, nil)                 命中且作用域精确匹配
//   - (nil, ErrMiss)              无邻近簇，或邻近簇作用域不匹配但
//     请求者级别足够（回落实时检索）
//   - (nil, *types.Error)         邻近簇存在但请求者级别不足，
//     错误码 INSUFFICIENT_CLEARANCE，Scope 标记部门级/组织级
//   - (nil, ErrTierDisabled)      该层被禁用
func (e *Engine) Get(ctx context.Context, tier Tier, query string, sc types.SecurityContext) (*Hit, error) {
	tc := e.tierConfig(tier)
	if !tc.Enabled {
		return nil, ErrTierDisabled
	}

	queryEmbedding, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingFailed, "failed to embed cache query").WithCause(err)
	}

	best, similarity, err := e.nearestCluster(ctx, tier, queryEmbedding, tc.SimilarityThreshold)
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, ErrMiss
	}

	// 安全校验：级别不足 → 显式拒绝；级别足够但作用域不精确 → 普通未命中
	if scope := best.Requirement.DeniedScope(sc); scope != types.DenialScopeNone {
		e.logger.Info("cache hit denied by clearance",
			zap.String("tier", string(tier)),
			zap.String("cluster_id", best.ID),
			zap.String("denial_scope", string(scope)))
		return nil, types.NewError(types.ErrInsufficientClearance, "requester scope does not match cached scope").
			WithScope(scope)
	}
	if best.Scope != sc.CacheKeyComponent() {
		return nil, ErrMiss
	}

	// 均匀随机选择一条 variation，避免回答单调
	v := best.Variations[rand.IntN(len(best.Variations))]

	e.logger.Debug("semantic cache hit",
		zap.String("tier", string(tier)),
		zap.String("cluster_id", best.ID),
		zap.Float64("similarity", similarity),
		zap.Bool("at_capacity", best.AtCapacity()))

	return &Hit{
		ClusterID:  best.ID,
		Payload:    v.Payload,
		Similarity: similarity,
		AtCapacity: best.AtCapacity(),
	}, nil
}

// SetMetadata 写入时的安全元数据。
type SetMetadata struct {
	SecurityContext  types.SecurityContext
	Requirement      SecurityRequirement
	MaxSecurityLevel int
}

// Set 写入某层：无匹配簇则创建，有匹配且未满则追加并收紧要求，
// 已满则 no-op。匹配要求邻近阈值内且作用域精确一致。
func (e *Engine) Set(ctx context.Context, tier Tier, query string, payload []byte, meta SetMetadata) error {
	tc := e.tierConfig(tier)
	if !tc.Enabled {
		return nil
	}

	queryEmbedding, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return types.NewError(types.ErrEmbeddingFailed, "failed to embed cache query").WithCause(err)
	}

	scope := meta.SecurityContext.CacheKeyComponent()
	v := Variation{
		Payload:          payload,
		MaxSecurityLevel: meta.MaxSecurityLevel,
		CreatedAt:        e.now(),
	}

	best, _, err := e.nearestScopedCluster(ctx, tier, queryEmbedding, tc.SimilarityThreshold, scope)
	if err != nil {
		return err
	}

	if best == nil {
		c := NewCluster(tier, queryEmbedding, scope, meta.Requirement, v, tc.MaxEntries, tc.TTL)
		if err := e.store.PutCluster(ctx, c); err != nil {
			return err
		}
		e.logger.Debug("cache cluster created",
			zap.String("tier", string(tier)),
			zap.String("cluster_id", c.ID))
		return nil
	}

	if best.AtCapacity() {
		return nil
	}

	err = e.store.AppendVariation(ctx, tier, best.ID, v, meta.Requirement)
	if errors.Is(err, ErrClusterNotFound) {
		// 簇在匹配与追加之间被过期清理；按新建处理
		c := NewCluster(tier, queryEmbedding, scope, meta.Requirement, v, tc.MaxEntries, tc.TTL)
		return e.store.PutCluster(ctx, c)
	}
	return err
}

// Clear 清空某层。
func (e *Engine) Clear(ctx context.Context, tier Tier) error {
	return e.store.Clear(ctx, tier)
}

// TierEnabled reports whether the tier is active in config.
func (e *Engine) TierEnabled(tier Tier) bool {
	return e.tierConfig(tier).Enabled
}

// nearestCluster 返回阈值内最邻近的未过期簇；过期簇被惰性删除。
func (e *Engine) nearestCluster(ctx context.Context, tier Tier, queryEmbedding []float64, threshold float64) (*Cluster, float64, error) {
	return e.nearest(ctx, tier, queryEmbedding, threshold, "")
}

// nearestScopedCluster 同 nearestCluster，但只考虑指定作用域的簇。
func (e *Engine) nearestScopedCluster(ctx context.Context, tier Tier, queryEmbedding []float64, threshold float64, scope string) (*Cluster, float64, error) {
	return e.nearest(ctx, tier, queryEmbedding, threshold, scope)
}

func (e *Engine) nearest(ctx context.Context, tier Tier, queryEmbedding []float64, threshold float64, scope string) (*Cluster, float64, error) {
	clusters, err := e.store.ListClusters(ctx, tier)
	if err != nil {
		return nil, 0, types.NewError(types.ErrCacheUnavailable, "cache store unavailable").
			WithCause(err).WithRetryable(true)
	}

	now := e.now()
	var best *Cluster
	bestScore := math.Inf(-1)

	for _, c := range clusters {
		if c.Expired(now) {
			// 惰性清理：过期簇对命中不可见
			if delErr := e.store.DeleteCluster(ctx, tier, c.ID); delErr != nil {
				e.logger.Warn("failed to evict expired cluster",
					zap.String("cluster_id", c.ID), zap.Error(delErr))
			}
			continue
		}
		if scope != "" && c.Scope != scope {
			continue
		}

		score := cosine(queryEmbedding, c.Centroid)
		if score >= threshold && score > bestScore {
			best = c
			bestScore = score
		}
	}

	if best == nil {
		return nil, 0, nil
	}
	return best, bestScore, nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
