package rerank

import "context"

// Result 单条重排结果。
type Result struct {
	Index int     `json:"index"` // Original index in input
	Score float64 `json:"score"` // Provider-dependent scale
}

// Provider 定义统一的重排提供者接口。
type Provider interface {
	// Rerank 根据与查询的关联性为文档打分，返回值与输入一一对应
	// （未排序，Index 指向输入下标）。
	Rerank(ctx context.Context, query string, documents []string) ([]Result, error)

	// Name 返回提供者名称。
	Name() string

	// MaxDocuments 返回所支持的最大文档数量。
	MaxDocuments() int
}
