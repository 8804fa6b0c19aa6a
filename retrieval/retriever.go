package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nurudeen19/rag-fortress/embedding"
	"github.com/nurudeen19/rag-fortress/internal/metrics"
	"github.com/nurudeen19/rag-fortress/internal/pool"
	"github.com/nurudeen19/rag-fortress/rerank"
	"github.com/nurudeen19/rag-fortress/semcache"
	"github.com/nurudeen19/rag-fortress/types"
	"github.com/nurudeen19/rag-fortress/vectorstore"
)

// Options 检索管线参数。
type Options struct {
	// TopK 最终返回的文档数
	TopK int
	// MaxK 进入打分阶段的候选池大小
	MaxK int
	// ScoreThreshold 相似度路径的质量闸门
	ScoreThreshold float64

	// RerankEnabled 开启二次重排打分
	RerankEnabled bool
	// RerankScoreThreshold 重排路径的质量闸门（按后端校准，见 rerank.Config）
	RerankScoreThreshold float64

	// EnrichTimeout 后台 enrich 的独立超时
	EnrichTimeout time.Duration
}

// DefaultOptions returns the default pipeline options.
func DefaultOptions() Options {
	return Options{
		TopK:                 5,
		MaxK:                 20,
		ScoreThreshold:       0.5,
		RerankScoreThreshold: 0.1,
		EnrichTimeout:        15 * time.Second,
	}
}

// Retriever 编排一次自适应检索查询。
// 依赖全部显式注入；cache 与 collector 允许为 nil（分别表示
// 不启用语义缓存、不采集指标）。
type Retriever struct {
	optsMu   sync.RWMutex
	opts     Options
	embedder embedding.Provider
	store    vectorstore.Client
	reranker *rerank.Factory
	cache    *semcache.Engine
	metrics  *metrics.Collector
	logger   *zap.Logger

	// 对同一 (作用域, 查询) 的并发 enrich 去重
	enrichGroup singleflight.Group
	enrichWG    sync.WaitGroup
	// enrich 在有界工作池中执行，饱和时直接放弃（enrich 是尽力而为的）
	enrichPool *pool.GoroutinePool
}

// NewRetriever 创建检索编排器。
func NewRetriever(opts Options, embedder embedding.Provider, store vectorstore.Client, reranker *rerank.Factory, cache *semcache.Engine, collector *metrics.Collector, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		opts:     opts,
		embedder: embedder,
		store:    store,
		reranker: reranker,
		cache:    cache,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "retriever")),
		enrichPool: pool.NewGoroutinePool(pool.GoroutinePoolConfig{
			MaxWorkers:  4,
			QueueSize:   64,
			IdleTimeout: time.Minute,
		}),
	}
}

// options 返回当前管线参数快照。
func (r *Retriever) options() Options {
	r.optsMu.RLock()
	defer r.optsMu.RUnlock()
	return r.opts
}

// UpdateOptions 原子替换管线参数（配置热重载时调用）。
// 进行中的查询继续使用旧快照。
func (r *Retriever) UpdateOptions(opts Options) {
	r.optsMu.Lock()
	r.opts = opts
	r.optsMu.Unlock()
}

// Query 执行一次自适应检索。
//
// 单次查询内步骤严格有序：预处理 → 上下文缓存查找 → 候选搜索 →
// 打分 → 阈值过滤 → 缓存写入。缓存命中但簇未满时先返回，随后做
// 一次不阻塞响应的后台 enrich。
//
// 权限不足与低质量两种失败以 (result, nil) 返回且载荷形状一致；
// 只有非法请求与后端故障通过 error 返回。
func (r *Retriever) Query(ctx context.Context, text string, sc types.SecurityContext) (*types.RetrievalResult, error) {
	start := time.Now()

	if text == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "query text must not be empty")
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	normalized := Normalize(text)

	if result := r.lookupContextCache(ctx, normalized, sc); result != nil {
		r.recordQuery(result, start)
		return result, nil
	}

	result, err := r.retrieveAndCache(ctx, normalized, sc)
	if result != nil {
		r.recordQuery(result, start)
	}
	return result, err
}

// lookupContextCache 查上下文缓存层。返回 nil 表示未命中（或缓存
// 不可用），应继续实时检索。
func (r *Retriever) lookupContextCache(ctx context.Context, normalized string, sc types.SecurityContext) *types.RetrievalResult {
	if r.cache == nil || !r.cache.TierEnabled(semcache.TierContext) {
		return nil
	}

	hit, err := r.cache.Get(ctx, semcache.TierContext, normalized, sc)
	switch {
	case err == nil:
		docs, decodeErr := decodeDocuments(hit.Payload)
		if decodeErr != nil {
			r.logger.Warn("undecodable cached context, falling through to live retrieval",
				zap.String("cluster_id", hit.ClusterID), zap.Error(decodeErr))
			return nil
		}
		if r.metrics != nil {
			r.metrics.RecordCacheHit(string(semcache.TierContext))
		}
		if !hit.AtCapacity {
			r.enrichAsync(ctx, normalized, sc)
		}
		return types.NewSuccessResult(docs, true)

	case types.GetErrorCode(err) == types.ErrInsufficientClearance:
		if r.metrics != nil {
			var terr *types.Error
			scope := ""
			if errors.As(err, &terr) {
				scope = string(terr.Scope)
			}
			r.metrics.RecordCacheDenial(string(semcache.TierContext), scope)
		}
		return types.NewClearanceDeniedResult()

	case errors.Is(err, semcache.ErrMiss), errors.Is(err, semcache.ErrTierDisabled):
		if r.metrics != nil {
			r.metrics.RecordCacheMiss(string(semcache.TierContext))
		}
		return nil

	default:
		// 缓存故障不阻断查询
		r.logger.Warn("context cache lookup failed, proceeding to live retrieval", zap.Error(err))
		return nil
	}
}

// retrieveAndCache 执行实时检索并在成功时写入上下文缓存。
func (r *Retriever) retrieveAndCache(ctx context.Context, normalized string, sc types.SecurityContext) (*types.RetrievalResult, error) {
	opts := r.options()

	queryEmbedding, err := r.embedder.EmbedQuery(ctx, normalized)
	if err != nil {
		return types.NewBackendUnavailableResult(),
			types.NewError(types.ErrEmbeddingFailed, "failed to embed query").WithCause(err)
	}

	searchStart := time.Now()
	candidates, err := r.store.Search(ctx, queryEmbedding, opts.MaxK, vectorstore.FilterFromContext(sc))
	if r.metrics != nil {
		r.metrics.RecordVectorSearch(time.Since(searchStart))
	}
	if err != nil {
		// 没有备用数据源：向量库故障对请求是致命的
		return types.NewBackendUnavailableResult(),
			types.NewError(types.ErrRetrievalBackendUnavailable, "vector store unreachable").
				WithCause(err).WithRetryable(true)
	}

	if len(candidates) == 0 {
		return types.NewLowQualityResult(), nil
	}

	docs, threshold := r.score(ctx, normalized, candidates)

	// 阈值过滤 + 降序 + top-K。低于阈值的邻居永远不会被用来凑数。
	kept := docs[:0]
	for _, d := range docs {
		if d.Score >= threshold {
			kept = append(kept, d)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if len(kept) > opts.TopK {
		kept = kept[:opts.TopK]
	}

	if len(kept) == 0 {
		// “没有好答案”不写缓存：文档集会随时间变化，
		// 陈旧的否定会错误压制未来的好答案
		return types.NewLowQualityResult(), nil
	}

	result := types.NewSuccessResult(kept, false)
	r.writeContextCache(ctx, normalized, sc, kept)
	return result, nil
}

// score 给候选打分。重排开启且可用时用重排分数与重排阈值，
// 任何重排故障都降级为相似度打分，绝不让整个查询失败。
func (r *Retriever) score(ctx context.Context, query string, candidates []vectorstore.SearchResult) ([]types.RetrievedDocument, float64) {
	opts := r.options()

	similarity := func() ([]types.RetrievedDocument, float64) {
		docs := make([]types.RetrievedDocument, len(candidates))
		for i, c := range candidates {
			docs[i] = types.RetrievedDocument{
				ID:       c.Document.ID,
				Content:  c.Document.Content,
				Metadata: c.Document.Metadata,
				Score:    c.Score,
			}
		}
		return docs, opts.ScoreThreshold
	}

	if !opts.RerankEnabled || r.reranker == nil {
		return similarity()
	}

	provider, err := r.reranker.Provider()
	if err != nil {
		r.fallback("reranker unavailable", err)
		return similarity()
	}

	scoped := candidates
	if limit := provider.MaxDocuments(); limit > 0 && len(scoped) > limit {
		scoped = scoped[:limit]
	}
	texts := make([]string, len(scoped))
	for i, c := range scoped {
		texts[i] = c.Document.Content
	}

	rerankStart := time.Now()
	results, err := provider.Rerank(ctx, query, texts)
	if err != nil {
		r.fallback("rerank call failed", err)
		return similarity()
	}
	if r.metrics != nil {
		r.metrics.RecordRerank(time.Since(rerankStart))
	}

	docs := make([]types.RetrievedDocument, 0, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(scoped) {
			r.fallback("rerank returned out-of-range index", nil)
			return similarity()
		}
		c := scoped[res.Index]
		docs = append(docs, types.RetrievedDocument{
			ID:       c.Document.ID,
			Content:  c.Document.Content,
			Metadata: c.Document.Metadata,
			Score:    res.Score,
		})
	}
	return docs, opts.RerankScoreThreshold
}

func (r *Retriever) fallback(msg string, err error) {
	r.logger.Warn("degrading to similarity-only scoring: "+msg, zap.Error(err))
	if r.metrics != nil {
		r.metrics.RecordRerankerFallback()
	}
}

// writeContextCache 将成功结果写入上下文缓存层；写失败只记日志。
func (r *Retriever) writeContextCache(ctx context.Context, normalized string, sc types.SecurityContext, docs []types.RetrievedDocument) {
	if r.cache == nil || !r.cache.TierEnabled(semcache.TierContext) {
		return
	}

	payload, err := encodeDocuments(docs)
	if err != nil {
		r.logger.Warn("failed to encode documents for cache", zap.Error(err))
		return
	}

	req := semcache.RequirementFromDocuments(docs)
	meta := semcache.SetMetadata{
		SecurityContext:  sc,
		Requirement:      req,
		MaxSecurityLevel: req.MinOrgLevel,
	}
	if err := r.cache.Set(ctx, semcache.TierContext, normalized, payload, meta); err != nil {
		r.logger.Warn("context cache write failed", zap.Error(err))
	}
}

// enrichAsync 在响应返回后对未满簇做一次尽力而为的 enrich。
// 同一 (作用域, 查询) 的并发 enrich 合并为一次；enrich 的失败
// 永远不影响已返回的结果。
func (r *Retriever) enrichAsync(parent context.Context, normalized string, sc types.SecurityContext) {
	key := sc.CacheKeyComponent() + "|" + normalized

	r.enrichWG.Add(1)
	submitErr := r.enrichPool.Submit(context.WithoutCancel(parent), func(taskCtx context.Context) error {
		defer r.enrichWG.Done()

		_, err, shared := r.enrichGroup.Do(key, func() (any, error) {
			ctx, cancel := context.WithTimeout(taskCtx, r.options().EnrichTimeout)
			defer cancel()

			result, err := r.retrieveAndCache(ctx, normalized, sc)
			if err != nil {
				return nil, err
			}
			if !result.Success {
				return nil, nil
			}
			return result, nil
		})

		switch {
		case shared:
			if r.metrics != nil {
				r.metrics.RecordEnrichment("skipped")
			}
		case err != nil:
			r.logger.Debug("cluster enrichment failed", zap.Error(err))
			if r.metrics != nil {
				r.metrics.RecordEnrichment("failed")
			}
		default:
			if r.metrics != nil {
				r.metrics.RecordEnrichment("ok")
			}
		}
		return nil
	})
	if submitErr != nil {
		r.enrichWG.Done()
		if r.metrics != nil {
			r.metrics.RecordEnrichment("skipped")
		}
	}
}

// =============================================================================
// Response-tier accessors
// =============================================================================

// CachedResponse 查响应缓存层。命中返回 (response, true, nil)；
// 未命中返回 (_, false, nil)；权限不足返回 types.Error。
func (r *Retriever) CachedResponse(ctx context.Context, text string, sc types.SecurityContext) (string, bool, error) {
	if r.cache == nil || !r.cache.TierEnabled(semcache.TierResponse) {
		return "", false, nil
	}

	normalized := Normalize(text)
	hit, err := r.cache.Get(ctx, semcache.TierResponse, normalized, sc)
	switch {
	case err == nil:
		if r.metrics != nil {
			r.metrics.RecordCacheHit(string(semcache.TierResponse))
		}
		return string(hit.Payload), true, nil
	case types.GetErrorCode(err) == types.ErrInsufficientClearance:
		if r.metrics != nil {
			var terr *types.Error
			scope := ""
			if errors.As(err, &terr) {
				scope = string(terr.Scope)
			}
			r.metrics.RecordCacheDenial(string(semcache.TierResponse), scope)
		}
		return "", false, err
	case errors.Is(err, semcache.ErrMiss), errors.Is(err, semcache.ErrTierDisabled):
		if r.metrics != nil {
			r.metrics.RecordCacheMiss(string(semcache.TierResponse))
		}
		return "", false, nil
	default:
		r.logger.Warn("response cache lookup failed", zap.Error(err))
		return "", false, nil
	}
}

// StoreResponse 将外部 LLM 生成的回答写入响应缓存层。簇的作用域键
// 取请求者上下文，安全要求从回答所依据的文档集推导。
func (r *Retriever) StoreResponse(ctx context.Context, text, response string, sc types.SecurityContext, docs []types.RetrievedDocument) error {
	if r.cache == nil || !r.cache.TierEnabled(semcache.TierResponse) {
		return nil
	}

	req := semcache.RequirementFromDocuments(docs)
	meta := semcache.SetMetadata{
		SecurityContext:  sc,
		Requirement:      req,
		MaxSecurityLevel: req.MinOrgLevel,
	}
	return r.cache.Set(ctx, semcache.TierResponse, Normalize(text), []byte(response), meta)
}

// WaitForEnrichment 阻塞到所有在途后台 enrich 结束。用于优雅关闭。
func (r *Retriever) WaitForEnrichment() {
	r.enrichWG.Wait()
}

// Close 等待在途 enrich 并关闭后台工作池。关闭后的 Retriever
// 仍可服务查询，只是不再发起新的 enrich。
func (r *Retriever) Close() {
	r.enrichWG.Wait()
	r.enrichPool.Close()
}

// recordQuery 记录查询级指标
func (r *Retriever) recordQuery(result *types.RetrievalResult, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordQuery(outcomeLabel(result), result.Cached, time.Since(start), result.Count)
}

func outcomeLabel(result *types.RetrievalResult) string {
	if result.Success {
		return "success"
	}
	switch result.ErrorCode {
	case types.ErrLowQualityResults:
		return "low_quality"
	case types.ErrInsufficientClearance:
		return "insufficient_clearance"
	case types.ErrRetrievalBackendUnavailable:
		return "backend_unavailable"
	default:
		return "error"
	}
}

// =============================================================================
// Cache payload codec
// =============================================================================

func encodeDocuments(docs []types.RetrievedDocument) ([]byte, error) {
	return json.Marshal(docs)
}

func decodeDocuments(payload []byte) ([]types.RetrievedDocument, error) {
	var docs []types.RetrievedDocument
	if err := json.Unmarshal(payload, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
