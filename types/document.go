package types

// DocumentMetadata 文档的安全与来源元数据。
type DocumentMetadata struct {
	// 文档要求的安全级别
	SecurityLevel int `json:"security_level"`

	// 是否仅限部门内可见
	IsDepartmentOnly bool `json:"is_department_only"`

	// 部门 ID（仅 IsDepartmentOnly 时有意义）
	DepartmentID string `json:"department_id,omitempty"`

	// 来源标识（文件名、知识库 ID 等）
	Source string `json:"source,omitempty"`
}

// RetrievedDocument 检索返回的单个文档。
type RetrievedDocument struct {
	ID       string           `json:"id,omitempty"`
	Content  string           `json:"content"`
	Metadata DocumentMetadata `json:"metadata"`

	// 相关性分数：重排开启时为 reranker 分数，否则为向量相似度
	Score float64 `json:"score"`
}

// Accessible reports whether the requester may see this document at all.
// Department-only documents require membership in the same department and
// sufficient department clearance; everything else is gated by the
// organizational level alone.
func (d RetrievedDocument) Accessible(sc SecurityContext) bool {
	if d.Metadata.IsDepartmentOnly {
		if !sc.Departmental() || sc.DepartmentID != d.Metadata.DepartmentID {
			return false
		}
		return sc.DepartmentClearanceLevel >= d.Metadata.SecurityLevel
	}
	return sc.OrgClearanceLevel >= d.Metadata.SecurityLevel
}

// RetrievalResult 检索操作的统一结果载体。
//
// 失败结果（权限不足与低质量）在外部可观测形状上保持一致：
// Success=false、Count=0、Documents 为空、Message 为通用提示，
// 避免通过响应结构泄露受限内容的存在性。
type RetrievalResult struct {
	Success          bool                `json:"success"`
	Documents        []RetrievedDocument `json:"documents,omitempty"`
	Count            int                 `json:"count"`
	MaxSecurityLevel int                 `json:"max_security_level,omitempty"`
	ErrorCode        ErrorCode           `json:"error_code,omitempty"`
	Message          string              `json:"message,omitempty"`
	Cached           bool                `json:"cached"`
}

// genericNoResultMessage is shared by every failed result so that a denial
// and a genuine "nothing relevant" are indistinguishable to the caller.
const genericNoResultMessage = "No relevant results were found for your query."

// NewSuccessResult builds a successful retrieval result and computes the
// aggregate max security level across the returned set.
func NewSuccessResult(docs []RetrievedDocument, cached bool) *RetrievalResult {
	maxLevel := 0
	for _, d := range docs {
		if d.Metadata.SecurityLevel > maxLevel {
			maxLevel = d.Metadata.SecurityLevel
		}
	}
	return &RetrievalResult{
		Success:          true,
		Documents:        docs,
		Count:            len(docs),
		MaxSecurityLevel: maxLevel,
		Cached:           cached,
	}
}

// NewLowQualityResult 构造“无高质量候选”结果。
func NewLowQualityResult() *RetrievalResult {
	return &RetrievalResult{
		Success:   false,
		Count:     0,
		ErrorCode: ErrLowQualityResults,
		Message:   genericNoResultMessage,
	}
}

// NewClearanceDeniedResult 构造“权限不足”结果。
// 载荷形状与 NewLowQualityResult 完全一致，仅内部错误码不同。
func NewClearanceDeniedResult() *RetrievalResult {
	return &RetrievalResult{
		Success:   false,
		Count:     0,
		ErrorCode: ErrInsufficientClearance,
		Message:   genericNoResultMessage,
	}
}

// NewBackendUnavailableResult 构造“检索后端不可用”结果。
func NewBackendUnavailableResult() *RetrievalResult {
	return &RetrievalResult{
		Success:   false,
		Count:     0,
		ErrorCode: ErrRetrievalBackendUnavailable,
		Message:   "The retrieval service is temporarily unavailable. Please try again later.",
	}
}
