/*
Package rerank 提供统一的文档重排序接入层，支持多服务商适配。

# 概述

本包屏蔽不同重排序后端在接口协议与评分语义上的差异，对上层业务
暴露一致的 Provider 接口。提供者在启动时由配置选定一次，查询热路
径内不再做字符串分发；底层模型或客户端通过 Factory 懒加载，进程
内只构造一次（初始化成本远高于单次调用成本）。

重要：各服务商的分数刻度互不可比（余弦距离、模型 logit、云 API
私有刻度），阈值必须按部署后端校准，作为配置项而非常量。

# 实现

  - CohereProvider — Cohere Rerank v2 API
  - JinaProvider   — Jina AI Reranker API
  - LocalProvider  — 进程内词面重合打分，CPU 密集且非线程安全，
    内部以互斥锁串行化推理
*/
package rerank
