// Copyright (c) RAG Fortress Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 RAG Fortress HTTP API 的请求处理器实现。

# 概述

handlers 包实现了检索服务所有 HTTP 端点的请求处理逻辑，
包括安全感知检索、响应缓存读写、文档入库、缓存管理与健康检查，
以及统一的响应/错误处理。所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - QueryHandler     — 检索处理器（/api/v1/query、/api/v1/responses）
  - IngestHandler    — 文档入库处理器（/api/v1/documents）
  - CacheHandler     — 缓存管理处理器（/api/v1/cache/clear）
  - HealthHandler    — 服务健康检查（/health, /healthz, /ready）
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo        — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码
  - HealthCheck      — 可插拔健康检查接口（Redis、向量库等）

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 安全描述符解析：认证开启时取 token 声明，关闭时回退请求体
  - 可扩展健康检查：RegisterCheck 注册自定义 HealthCheck 实现
*/
package handlers
