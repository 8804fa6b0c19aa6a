package types

import "fmt"

// SecurityContext 请求者的规范安全描述符。
// 每次查询不可变，同时用于向量检索前置过滤与缓存作用域校验。
type SecurityContext struct {
	// 组织级安全级别（序数，越大权限越高）
	OrgClearanceLevel int `json:"org_clearance_level"`

	// 部门 ID，空串表示未设置部门范围
	DepartmentID string `json:"department_id,omitempty"`

	// 部门级安全级别，仅在 DepartmentID 非空时有意义
	DepartmentClearanceLevel int `json:"department_clearance_level,omitempty"`
}

// Departmental reports whether the context carries a department scope.
func (sc SecurityContext) Departmental() bool {
	return sc.DepartmentID != ""
}

// CacheScopeEqual 实现缓存作用域的精确匹配规则：
// 设置了部门时要求 (组织级别, 部门 ID, 部门级别) 三元组完全一致，
// 未设置部门时仅要求组织级别一致。
//
// 该规则刻意比“级别 >= 要求”更严格：只有与创建缓存时完全相同的
// 请求者画像才能命中，保证缓存结果集与实时查询结果集严格一致。
func (sc SecurityContext) CacheScopeEqual(other SecurityContext) bool {
	if sc.Departmental() != other.Departmental() {
		return false
	}
	if sc.Departmental() {
		return sc.OrgClearanceLevel == other.OrgClearanceLevel &&
			sc.DepartmentID == other.DepartmentID &&
			sc.DepartmentClearanceLevel == other.DepartmentClearanceLevel
	}
	return sc.OrgClearanceLevel == other.OrgClearanceLevel
}

// CacheKeyComponent returns the canonical string form of the scope used in
// cache key derivation. Two contexts produce the same component iff they are
// CacheScopeEqual.
func (sc SecurityContext) CacheKeyComponent() string {
	if sc.Departmental() {
		return fmt.Sprintf("org:%d|dept:%s:%d",
			sc.OrgClearanceLevel, sc.DepartmentID, sc.DepartmentClearanceLevel)
	}
	return fmt.Sprintf("org:%d", sc.OrgClearanceLevel)
}

// Validate 检查描述符自身的一致性。
func (sc SecurityContext) Validate() error {
	if sc.OrgClearanceLevel < 0 {
		return NewError(ErrInvalidRequest, "org clearance level must be non-negative")
	}
	if !sc.Departmental() && sc.DepartmentClearanceLevel != 0 {
		return NewError(ErrInvalidRequest, "department clearance set without department id")
	}
	if sc.Departmental() && sc.DepartmentClearanceLevel < 0 {
		return NewError(ErrInvalidRequest, "department clearance level must be non-negative")
	}
	return nil
}
