package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/nurudeen19/rag-fortress/api"
	"github.com/nurudeen19/rag-fortress/retrieval"
	"github.com/nurudeen19/rag-fortress/types"
)

// =============================================================================
// 🔍 检索 Handler
// =============================================================================

// QueryHandler 检索与响应缓存处理器
type QueryHandler struct {
	retriever *retrieval.Retriever
	logger    *zap.Logger
}

// NewQueryHandler 创建检索处理器
func NewQueryHandler(retriever *retrieval.Retriever, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		retriever: retriever,
		logger:    logger.With(zap.String("component", "query_handler")),
	}
}

// HandleQuery 处理 POST /api/v1/query。
//
// 权限不足与低质量结果以 200 返回同一载荷形状；只有非法请求与
// 后端故障映射为 4xx/5xx。
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.QueryRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	sc, err := securityFromRequest(r, req.Security)
	if err != nil {
		var terr *types.Error
		if errors.As(err, &terr) {
			WriteError(w, r, terr, h.logger)
			return
		}
		WriteErrorMessage(w, r, types.ErrInvalidRequest, err.Error(), h.logger)
		return
	}

	result, err := h.retriever.Query(r.Context(), req.Query, sc)
	if err != nil {
		var terr *types.Error
		if errors.As(err, &terr) {
			WriteError(w, r, terr, h.logger)
			return
		}
		WriteErrorMessage(w, r, types.ErrInternalError, "query failed", h.logger)
		return
	}

	WriteSuccess(w, r, result)
}

// HandleResponseLookup 处理 POST /api/v1/responses/lookup。
// 未命中与权限拦截对调用方不可区分，均返回 Found=false。
func (h *QueryHandler) HandleResponseLookup(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.ResponseLookupRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Query == "" {
		WriteErrorMessage(w, r, types.ErrInvalidRequest, "query must not be empty", h.logger)
		return
	}

	sc, err := securityFromRequest(r, req.Security)
	if err != nil {
		WriteErrorMessage(w, r, types.ErrInvalidRequest, "security context is required", h.logger)
		return
	}

	response, found, err := h.retriever.CachedResponse(r.Context(), req.Query, sc)
	if err != nil {
		// 权限拦截与未命中同形，其余错误已在下层降级吞掉
		if types.GetErrorCode(err) != types.ErrInsufficientClearance {
			h.logger.Warn("response lookup failed", zap.Error(err))
		}
		WriteSuccess(w, r, api.ResponseLookupResult{Found: false})
		return
	}

	WriteSuccess(w, r, api.ResponseLookupResult{Found: found, Response: response})
}

// HandleStoreResponse 处理 POST /api/v1/responses。
func (h *QueryHandler) HandleStoreResponse(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.StoreResponseRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Query == "" || req.Response == "" {
		WriteErrorMessage(w, r, types.ErrInvalidRequest, "query and response must not be empty", h.logger)
		return
	}

	sc, err := securityFromRequest(r, req.Security)
	if err != nil {
		WriteErrorMessage(w, r, types.ErrInvalidRequest, "security context is required", h.logger)
		return
	}
	if err := sc.Validate(); err != nil {
		var terr *types.Error
		if errors.As(err, &terr) {
			WriteError(w, r, terr, h.logger)
			return
		}
		WriteErrorMessage(w, r, types.ErrInvalidRequest, err.Error(), h.logger)
		return
	}

	if err := h.retriever.StoreResponse(r.Context(), req.Query, req.Response, sc, req.Documents); err != nil {
		h.logger.Warn("response store failed", zap.Error(err))
		WriteErrorMessage(w, r, types.ErrCacheUnavailable, "failed to store response", h.logger)
		return
	}

	WriteSuccess(w, r, map[string]bool{"stored": true})
}
