// 版权所有 2025 RAG Fortress Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的全链路指标采集能力，覆盖
HTTP、检索、缓存与重排四大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
的 With(Registerer) 注册机制，支持注入独立 Registry 便于测试。
所有指标按 namespace 隔离，支持多维度 label 分组，便于 Grafana
等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram 等
    Prometheus 指标，按业务域分组管理。

# 主要能力

  - HTTP 指标：请求总数、请求耗时，按 method/path/status 分组，
    状态码归类为 2xx/3xx/4xx/5xx。
  - 检索指标：查询总数与端到端耗时（按 outcome/cached 分组）、
    成功查询的返回文档数、向量搜索耗时。
  - 缓存指标：命中/未命中/权限拒绝计数（按 cache_type 分组）、
    后台 enrich 尝试计数。
  - 重排指标：重排耗时、降级为相似度打分的次数。
*/
package metrics
