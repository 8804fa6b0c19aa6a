package semcache

import (
	"slices"

	"github.com/nurudeen19/rag-fortress/types"
)

// SecurityRequirement 簇的安全要求。
// 始终至少与曾合并进该簇的最严格条目一样严格；合并只收紧、从不放松。
type SecurityRequirement struct {
	// 相关作用域内要求的最低级别：部门簇按部门级别校验，
	// 组织簇按组织级别校验。
	MinOrgLevel int `json:"min_org_level"`

	// 是否为部门范围簇
	IsDepartmental bool `json:"is_departmental"`

	// 允许读取的部门 ID 集合（仅 IsDepartmental 时有意义）
	DepartmentIDs []string `json:"department_ids,omitempty"`
}

// RequirementFromDocuments derives the requirement implied by a result set:
// the max security level across the set, plus departmental scoping if any
// document is department-only.
func RequirementFromDocuments(docs []types.RetrievedDocument) SecurityRequirement {
	req := SecurityRequirement{}
	for _, d := range docs {
		if d.Metadata.SecurityLevel > req.MinOrgLevel {
			req.MinOrgLevel = d.Metadata.SecurityLevel
		}
		if d.Metadata.IsDepartmentOnly {
			req.IsDepartmental = true
			if d.Metadata.DepartmentID != "" && !slices.Contains(req.DepartmentIDs, d.Metadata.DepartmentID) {
				req.DepartmentIDs = append(req.DepartmentIDs, d.Metadata.DepartmentID)
			}
		}
	}
	return req
}

// Merge 返回两条要求中更严格的合并结果。级别取较大者，部门标记做
// 或运算；两侧都是部门要求时部门集合取交集（更小的允许集合 = 更严
// 格），只有一侧是部门要求时取该侧的集合。
func (r SecurityRequirement) Merge(other SecurityRequirement) SecurityRequirement {
	merged := SecurityRequirement{
		MinOrgLevel:    r.MinOrgLevel,
		IsDepartmental: r.IsDepartmental || other.IsDepartmental,
	}
	if other.MinOrgLevel > merged.MinOrgLevel {
		merged.MinOrgLevel = other.MinOrgLevel
	}

	switch {
	case r.IsDepartmental && other.IsDepartmental:
		for _, id := range r.DepartmentIDs {
			if slices.Contains(other.DepartmentIDs, id) {
				merged.DepartmentIDs = append(merged.DepartmentIDs, id)
			}
		}
	case r.IsDepartmental:
		merged.DepartmentIDs = slices.Clone(r.DepartmentIDs)
	case other.IsDepartmental:
		merged.DepartmentIDs = slices.Clone(other.DepartmentIDs)
	}
	return merged
}

// DeniedScope 判定请求者对该要求的有效级别是否不足。
// 返回 DenialScopeNone 表示级别足够（但不代表作用域精确匹配，
// 精确匹配由簇的 Scope 字段单独判定）。
func (r SecurityRequirement) DeniedScope(sc types.SecurityContext) types.DenialScope {
	if r.IsDepartmental {
		if !sc.Departmental() || !slices.Contains(r.DepartmentIDs, sc.DepartmentID) {
			return types.DenialScopeDepartmental
		}
		if sc.DepartmentClearanceLevel < r.MinOrgLevel {
			return types.DenialScopeDepartmental
		}
		return types.DenialScopeNone
	}
	if sc.OrgClearanceLevel < r.MinOrgLevel {
		return types.DenialScopeOrganizational
	}
	return types.DenialScopeNone
}
