/*
Package types 提供 RAG Fortress 检索核心的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 retrieval、semcache、
vectorstore、rerank 等上层模块提供统一的类型契约。

# 核心类型

  - SecurityContext   — 请求者的安全描述符（组织级别 + 可选部门范围），
    同时用于向量检索前置过滤与缓存作用域校验
  - RetrievedDocument — 检索返回的文档（内容、安全元数据、相关性分数）
  - RetrievalResult   — 检索操作的统一结果载体
  - Error / ErrorCode — 结构化错误体系，区分可恢复与致命错误

# 安全作用域匹配

缓存作用域采用精确匹配（CacheScopeEqual）而非“权限足够即可”：
只有与创建缓存时完全相同的请求者画像才能命中，保证缓存结果集与
实时查询结果集严格一致。
*/
package types
