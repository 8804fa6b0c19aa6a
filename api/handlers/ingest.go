package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/nurudeen19/rag-fortress/api"
	"github.com/nurudeen19/rag-fortress/embedding"
	"github.com/nurudeen19/rag-fortress/types"
	"github.com/nurudeen19/rag-fortress/vectorstore"
)

// =============================================================================
// 📥 文档入库 Handler
// =============================================================================

// IngestHandler 文档入库处理器。嵌入与检索共用同一提供者实例，
// 保证索引向量与查询向量处于同一嵌入空间。
type IngestHandler struct {
	embedder embedding.Provider
	store    vectorstore.Client
	logger   *zap.Logger
}

// NewIngestHandler 创建入库处理器
func NewIngestHandler(embedder embedding.Provider, store vectorstore.Client, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{
		embedder: embedder,
		store:    store,
		logger:   logger.With(zap.String("component", "ingest_handler")),
	}
}

// HandleIngest 处理 POST /api/v1/documents。
func (h *IngestHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.IngestRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if len(req.Documents) == 0 {
		WriteErrorMessage(w, r, types.ErrInvalidRequest, "documents must not be empty", h.logger)
		return
	}

	texts := make([]string, 0, len(req.Documents))
	for _, d := range req.Documents {
		if d.ID == "" || d.Content == "" {
			WriteErrorMessage(w, r, types.ErrInvalidRequest, "every document needs an id and content", h.logger)
			return
		}
		texts = append(texts, d.Content)
	}

	vectors, err := h.embedder.Embed(r.Context(), texts)
	if err != nil {
		WriteError(w, r,
			types.NewError(types.ErrEmbeddingFailed, "failed to embed documents").WithCause(err),
			h.logger)
		return
	}

	docs := make([]vectorstore.Document, 0, len(req.Documents))
	for i, d := range req.Documents {
		docs = append(docs, vectorstore.Document{
			ID:        d.ID,
			Content:   d.Content,
			Metadata:  d.Metadata,
			Embedding: vectors[i],
		})
	}

	if err := h.store.AddDocuments(r.Context(), docs); err != nil {
		WriteError(w, r,
			types.NewError(types.ErrRetrievalBackendUnavailable, "failed to store documents").
				WithCause(err).WithRetryable(true),
			h.logger)
		return
	}

	h.logger.Info("documents ingested", zap.Int("count", len(docs)))
	WriteSuccess(w, r, api.IngestResult{Ingested: len(docs)})
}
