// Package retrieval 实现自适应检索管线的编排层。
//
// 单次查询按固定顺序执行：预处理 → 上下文缓存查找 → 候选搜索
// （带安全前置过滤）→ 重排或相似度打分 → 阈值过滤 → 缓存写入。
// 缓存命中但簇未满时，会在响应返回后做一次尽力而为的后台 enrich，
// enrich 失败不影响已返回的结果。
//
// 失败语义：向量库故障对请求是致命的（没有备用数据源）；重排故障
// 被就地吸收并降级为相似度打分，不会让整个查询失败。
package retrieval
