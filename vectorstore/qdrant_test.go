package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nurudeen19/rag-fortress/types"
)

func newTestQdrant(t *testing.T, handler http.HandlerFunc) *QdrantStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewQdrantStore(QdrantConfig{
		BaseURL:    srv.URL,
		Collection: "docs",
		APIKey:     "test-key",
	}, zap.NewNop())
}

func TestQdrantStore_Search_FilterPushdown(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	store := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/docs/points/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{
					"id":    "p1",
					"score": 0.92,
					"payload": map[string]any{
						"doc_id":             "d1",
						"content":            "vacation policy",
						"security_level":     2,
						"is_department_only": false,
						"source":             "hr/policies.md",
					},
				},
			},
		})
	})

	filter := SecurityFilter{OrgClearanceLevel: 2, DepartmentID: "7", DepartmentClearanceLevel: 3}
	results, err := store.Search(context.Background(), []float64{0.1, 0.2}, 5, filter)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "d1", results[0].Document.ID)
	assert.Equal(t, "vacation policy", results[0].Document.Content)
	assert.Equal(t, 2, results[0].Document.Metadata.SecurityLevel)
	assert.Equal(t, "hr/policies.md", results[0].Document.Metadata.Source)
	assert.InDelta(t, 0.92, results[0].Score, 1e-9)

	// 过滤条件必须下推：org 分支 + 部门分支
	qf, ok := captured["filter"].(map[string]any)
	require.True(t, ok)
	should, ok := qf["should"].([]any)
	require.True(t, ok)
	assert.Len(t, should, 2)
}

func TestQdrantStore_Search_NoDepartmentBranch(t *testing.T) {
	t.Parallel()

	f := buildQdrantFilter(SecurityFilter{OrgClearanceLevel: 1})
	should := f["should"].([]map[string]any)
	assert.Len(t, should, 1)
}

func TestQdrantStore_Search_BackendError(t *testing.T) {
	t.Parallel()

	store := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	})

	_, err := store.Search(context.Background(), []float64{0.1}, 5, SecurityFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=503")
}

func TestQdrantStore_AddDocuments(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	store := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/docs/points", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"status":"ok"}`))
	})

	docs := []Document{
		{ID: "d1", Content: "hello", Embedding: []float64{1, 0},
			Metadata: types.DocumentMetadata{SecurityLevel: 1, IsDepartmentOnly: true, DepartmentID: "7"}},
	}
	require.NoError(t, store.AddDocuments(context.Background(), docs))

	points := captured["points"].([]any)
	require.Len(t, points, 1)
	payload := points[0].(map[string]any)["payload"].(map[string]any)
	assert.Equal(t, "d1", payload["doc_id"])
	assert.Equal(t, float64(1), payload["security_level"])
	assert.Equal(t, true, payload["is_department_only"])
	assert.Equal(t, "7", payload["department_id"])
}

func TestQdrantStore_AddDocuments_Validation(t *testing.T) {
	t.Parallel()

	store := NewQdrantStore(QdrantConfig{Collection: "docs"}, zap.NewNop())

	err := store.AddDocuments(context.Background(), []Document{{Content: "no id", Embedding: []float64{1}}})
	assert.Error(t, err)

	err = store.AddDocuments(context.Background(), []Document{{ID: "x", Content: "no embedding"}})
	assert.Error(t, err)
}

func TestQdrantPointID_Stable(t *testing.T) {
	t.Parallel()
	assert.Equal(t, qdrantPointID("doc-1"), qdrantPointID("doc-1"))
	assert.NotEqual(t, qdrantPointID("doc-1"), qdrantPointID("doc-2"))
}
