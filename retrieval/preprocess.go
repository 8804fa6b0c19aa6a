package retrieval

import "strings"

// stopWords 预处理阶段剔除的高频虚词。只收录对语义检索几乎无信息量
// 的英文虚词；名单必须保持稳定，否则缓存键会与历史簇失配。
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"of": {}, "to": {}, "in": {}, "on": {}, "at": {}, "by": {},
	"for": {}, "with": {}, "about": {},
	"and": {}, "or": {},
	"do": {}, "does": {}, "did": {},
	"what": {}, "which": {}, "who": {}, "how": {},
	"can": {}, "could": {}, "would": {}, "should": {},
	"i": {}, "me": {}, "my": {}, "we": {}, "our": {}, "you": {}, "your": {},
	"it": {}, "its": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"please": {}, "tell": {},
}

// Normalize 对查询文本做确定性预处理：小写、空白折叠、剔除虚词。
//
// 同一变换必须同时作用于实时搜索与缓存匹配所用的嵌入输入，
// 否则缓存键会与实时搜索结果静默失配。全部虚词被剔除时返回
// 原文的小写折叠形式，避免产生空查询。
func Normalize(text string) string {
	fields := strings.Fields(strings.ToLower(text))

	folded := make([]string, 0, len(fields))
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]")
		if f == "" {
			continue
		}
		folded = append(folded, f)
		if _, skip := stopWords[f]; skip {
			continue
		}
		kept = append(kept, f)
	}

	if len(kept) == 0 {
		return strings.Join(folded, " ")
	}
	return strings.Join(kept, " ")
}
