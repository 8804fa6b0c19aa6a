package api

import (
	"github.com/nurudeen19/rag-fortress/types"
)

// =============================================================================
// 📦 请求/响应契约
// =============================================================================

// QueryRequest 检索请求。
// Security 仅在认证关闭时生效；认证开启后安全描述符一律取自
// token 声明，请求体中的值被忽略。
type QueryRequest struct {
	Query    string                 `json:"query"`
	Security *types.SecurityContext `json:"security,omitempty"`
}

// ResponseLookupRequest 响应缓存查询请求。
type ResponseLookupRequest struct {
	Query    string                 `json:"query"`
	Security *types.SecurityContext `json:"security,omitempty"`
}

// ResponseLookupResult 响应缓存查询结果。
// 未命中与权限拦截返回同一形状（Found=false），调用方无法区分。
type ResponseLookupResult struct {
	Found    bool   `json:"found"`
	Response string `json:"response,omitempty"`
}

// StoreResponseRequest 将编排层生成的回答写入响应缓存。
// Documents 是回答所依据的文档集，用于推导缓存簇的安全要求。
type StoreResponseRequest struct {
	Query     string                    `json:"query"`
	Response  string                    `json:"response"`
	Documents []types.RetrievedDocument `json:"documents,omitempty"`
	Security  *types.SecurityContext    `json:"security,omitempty"`
}

// IngestRequest 文档入库请求。
type IngestRequest struct {
	Documents []IngestDocument `json:"documents"`
}

// IngestDocument 单个待入库文档。嵌入由服务端计算。
type IngestDocument struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata types.DocumentMetadata `json:"metadata"`
}

// IngestResult 入库结果。
type IngestResult struct {
	Ingested int `json:"ingested"`
}

// CacheClearRequest 缓存清空请求。Tier 取 "response"、"context"
// 或 "all"。
type CacheClearRequest struct {
	Tier string `json:"tier"`
}

// CacheClearResult 缓存清空结果。
type CacheClearResult struct {
	Cleared []string `json:"cleared"`
}
