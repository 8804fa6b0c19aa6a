/*
Package vectorstore 提供带安全前置过滤的最近邻检索客户端。

# 概述

Client 接口对上层屏蔽具体后端（内存 / Qdrant）。每次搜索都携带一个
由 SecurityContext 推导的 SecurityFilter，在候选进入打分阶段之前就
排除请求者在任何情况下都无权访问的文档。

# 安全过滤规则

  - 普通文档：组织级别 >= 文档安全级别
  - 部门文档：请求者属于同一部门，且部门级别 >= 文档安全级别

# 实现

  - InMemoryStore — 余弦相似度 + RWMutex，用于测试和小规模应用
  - QdrantStore   — Qdrant REST API，过滤条件下推到 payload filter
*/
package vectorstore
