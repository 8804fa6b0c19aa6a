package vectorstore

import (
	"context"

	"github.com/nurudeen19/rag-fortress/types"
)

// Document 存入向量库的文档。
type Document struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	Metadata  types.DocumentMetadata `json:"metadata"`
	Embedding []float64              `json:"embedding,omitempty"`
}

// SearchResult 向量搜索结果。
type SearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// SecurityFilter 检索前置安全过滤条件，由 SecurityContext 推导。
// 过滤发生在候选进入打分阶段之前：被过滤掉的文档对请求者在任何
// 情况下都不可见。
type SecurityFilter struct {
	OrgClearanceLevel        int    `json:"org_clearance_level"`
	DepartmentID             string `json:"department_id,omitempty"`
	DepartmentClearanceLevel int    `json:"department_clearance_level,omitempty"`
}

// FilterFromContext derives the search pre-filter from a security context.
func FilterFromContext(sc types.SecurityContext) SecurityFilter {
	return SecurityFilter{
		OrgClearanceLevel:        sc.OrgClearanceLevel,
		DepartmentID:             sc.DepartmentID,
		DepartmentClearanceLevel: sc.DepartmentClearanceLevel,
	}
}

// Matches reports whether a document passes the filter.
func (f SecurityFilter) Matches(meta types.DocumentMetadata) bool {
	if meta.IsDepartmentOnly {
		if f.DepartmentID == "" || f.DepartmentID != meta.DepartmentID {
			return false
		}
		return f.DepartmentClearanceLevel >= meta.SecurityLevel
	}
	return f.OrgClearanceLevel >= meta.SecurityLevel
}

// Client 向量数据库客户端接口。
type Client interface {
	// Search 返回与查询向量最相似的 k 个文档，安全过滤在后端完成。
	Search(ctx context.Context, queryEmbedding []float64, k int, filter SecurityFilter) ([]SearchResult, error)

	// AddDocuments 添加文档
	AddDocuments(ctx context.Context, docs []Document) error

	// Count 返回文档数量
	Count(ctx context.Context) (int, error)
}

// Clearable is an optional interface for Client implementations that support
// clearing all stored data. Use type assertion to check support:
//
//	if c, ok := store.(Clearable); ok { c.ClearAll(ctx) }
type Clearable interface {
	ClearAll(ctx context.Context) error
}
