package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nurudeen19/rag-fortress/internal/pool"
	"github.com/nurudeen19/rag-fortress/internal/tlsutil"
	"github.com/nurudeen19/rag-fortress/types"
)

// QdrantConfig configures the Qdrant-backed Client.
//
// Notes:
//   - Qdrant point IDs are UUIDs; a stable UUID is derived from Document.ID.
//   - Security metadata is stored as flat payload fields so that the
//     SecurityFilter can be pushed down as a Qdrant payload filter.
type QdrantConfig struct {
	Host       string        `yaml:"host" json:"host"`
	Port       int           `yaml:"port" json:"port"`
	BaseURL    string        `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKey     string        `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Collection string        `yaml:"collection" json:"collection"`
	Timeout    time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// DefaultQdrantConfig returns default Qdrant config.
func DefaultQdrantConfig() QdrantConfig {
	return QdrantConfig{
		Host:       "localhost",
		Port:       6333,
		Collection: "documents",
		Timeout:    30 * time.Second,
	}
}

// QdrantStore implements Client using Qdrant's REST API.
type QdrantStore struct {
	cfg     QdrantConfig
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewQdrantStore creates a Qdrant-backed vector store client.
func NewQdrantStore(cfg QdrantConfig, logger *zap.Logger) *QdrantStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6333
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	}

	return &QdrantStore{
		cfg:     cfg,
		baseURL: baseURL,
		client:  tlsutil.SecureHTTPClient(cfg.Timeout),
		logger:  logger.With(zap.String("component", "qdrant_store")),
	}
}

var qdrantNamespace = uuid.MustParse("7c9e2f1a-8b3d-4a5c-9e6f-1d2a3b4c5d6e")

func qdrantPointID(docID string) string {
	// Stable UUID derived from document ID (supports any string input).
	return uuid.NewSHA1(qdrantNamespace, []byte(docID)).String()
}

func (s *QdrantStore) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(s.cfg.APIKey) != "" {
		// Qdrant convention.
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

func (s *QdrantStore) doJSON(ctx context.Context, method, path string, in any, out any) error {
	endpoint := s.baseURL + path

	var body io.Reader
	if in != nil {
		buf := pool.ByteBufferPool.Get()
		defer pool.ByteBufferPool.Put(buf)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	s.applyHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant request failed: method=%s path=%s status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// AddDocuments 添加文档。
func (s *QdrantStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if strings.TrimSpace(s.cfg.Collection) == "" {
		return fmt.Errorf("qdrant collection is required")
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float64      `json:"vector"`
		Payload map[string]any `json:"payload,omitempty"`
	}

	points := make([]point, 0, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document[%d] has empty id", i)
		}
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document[%d] has no embedding", i)
		}
		points = append(points, point{
			ID:     qdrantPointID(doc.ID),
			Vector: doc.Embedding,
			Payload: map[string]any{
				"doc_id":             doc.ID,
				"content":            doc.Content,
				"security_level":     doc.Metadata.SecurityLevel,
				"is_department_only": doc.Metadata.IsDepartmentOnly,
				"department_id":      doc.Metadata.DepartmentID,
				"source":             doc.Metadata.Source,
			},
		})
	}

	req := struct {
		Points []point `json:"points"`
	}{Points: points}

	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(s.cfg.Collection))
	if err := s.doJSON(ctx, http.MethodPut, path, req, nil); err != nil {
		return err
	}

	s.logger.Debug("qdrant upsert completed", zap.Int("count", len(docs)))
	return nil
}

// buildQdrantFilter 将 SecurityFilter 下推为 Qdrant payload filter：
// should 分支一：非部门文档且 security_level <= 组织级别；
// should 分支二（仅请求者有部门时）：同部门的部门文档且
// security_level <= 部门级别。
func buildQdrantFilter(filter SecurityFilter) map[string]any {
	orgClause := map[string]any{
		"must": []map[string]any{
			{"key": "is_department_only", "match": map[string]any{"value": false}},
			{"key": "security_level", "range": map[string]any{"lte": filter.OrgClearanceLevel}},
		},
	}

	should := []map[string]any{orgClause}
	if filter.DepartmentID != "" {
		should = append(should, map[string]any{
			"must": []map[string]any{
				{"key": "is_department_only", "match": map[string]any{"value": true}},
				{"key": "department_id", "match": map[string]any{"value": filter.DepartmentID}},
				{"key": "security_level", "range": map[string]any{"lte": filter.DepartmentClearanceLevel}},
			},
		})
	}

	return map[string]any{"should": should}
}

// Search 搜索相似文档。
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float64, k int, filter SecurityFilter) ([]SearchResult, error) {
	if strings.TrimSpace(s.cfg.Collection) == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	if k <= 0 {
		return []SearchResult{}, nil
	}
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("query embedding is required")
	}

	req := map[string]any{
		"vector":       queryEmbedding,
		"limit":        k,
		"with_payload": true,
		"with_vector":  false,
		"filter":       buildQdrantFilter(filter),
	}

	type qdrantResult struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	}
	var resp struct {
		Result []qdrantResult `json:"result"`
	}

	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(s.cfg.Collection))
	if err := s.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, SearchResult{
			Document: documentFromPayload(r.Payload),
			Score:    r.Score,
		})
	}
	return results, nil
}

func documentFromPayload(payload map[string]any) Document {
	doc := Document{}
	if v, ok := payload["doc_id"].(string); ok {
		doc.ID = v
	}
	if v, ok := payload["content"].(string); ok {
		doc.Content = v
	}
	meta := types.DocumentMetadata{}
	if v, ok := payload["security_level"].(float64); ok {
		meta.SecurityLevel = int(v)
	}
	if v, ok := payload["is_department_only"].(bool); ok {
		meta.IsDepartmentOnly = v
	}
	if v, ok := payload["department_id"].(string); ok {
		meta.DepartmentID = v
	}
	if v, ok := payload["source"].(string); ok {
		meta.Source = v
	}
	doc.Metadata = meta
	return doc
}

// Count 返回文档数量。
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}

	path := fmt.Sprintf("/collections/%s/points/count", url.PathEscape(s.cfg.Collection))
	if err := s.doJSON(ctx, http.MethodPost, path, map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// ClearAll 清空集合中的所有点。
func (s *QdrantStore) ClearAll(ctx context.Context) error {
	req := map[string]any{
		"filter": map[string]any{},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", url.PathEscape(s.cfg.Collection))
	return s.doJSON(ctx, http.MethodPost, path, req, nil)
}
