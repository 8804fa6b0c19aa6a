package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/nurudeen19/rag-fortress/api"
	"github.com/nurudeen19/rag-fortress/semcache"
	"github.com/nurudeen19/rag-fortress/types"
)

// =============================================================================
// 🗑️ 缓存管理 Handler
// =============================================================================

// CacheHandler 缓存管理处理器
type CacheHandler struct {
	engine *semcache.Engine
	logger *zap.Logger
}

// NewCacheHandler 创建缓存管理处理器
func NewCacheHandler(engine *semcache.Engine, logger *zap.Logger) *CacheHandler {
	return &CacheHandler{
		engine: engine,
		logger: logger.With(zap.String("component", "cache_handler")),
	}
}

// HandleClear 处理 POST /api/v1/cache/clear。
func (h *CacheHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	if h.engine == nil {
		WriteErrorMessage(w, r, types.ErrCacheUnavailable, "semantic cache is not enabled", h.logger)
		return
	}

	var req api.CacheClearRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	var tiers []semcache.Tier
	switch req.Tier {
	case "response":
		tiers = []semcache.Tier{semcache.TierResponse}
	case "context":
		tiers = []semcache.Tier{semcache.TierContext}
	case "all", "":
		tiers = []semcache.Tier{semcache.TierResponse, semcache.TierContext}
	default:
		WriteErrorMessage(w, r, types.ErrInvalidRequest, "tier must be one of: response, context, all", h.logger)
		return
	}

	cleared := make([]string, 0, len(tiers))
	for _, tier := range tiers {
		if err := h.engine.Clear(r.Context(), tier); err != nil {
			h.logger.Error("cache clear failed", zap.String("tier", string(tier)), zap.Error(err))
			WriteErrorMessage(w, r, types.ErrCacheUnavailable, "failed to clear cache tier "+string(tier), h.logger)
			return
		}
		cleared = append(cleared, string(tier))
	}

	h.logger.Info("cache cleared", zap.Strings("tiers", cleared))
	WriteSuccess(w, r, api.CacheClearResult{Cleared: cleared})
}
