// 版权所有 2025 RAG Fortress Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的连接管理能力，支持连接池、健康检查与
统计信息采集，为语义缓存存储层提供底层连接。

# 概述

本包封装 go-redis 客户端的连接生命周期：初始化时验证连通性，
后台定时健康检查，关闭时安全释放连接池。语义缓存的 Redis 存储层
通过 Client 方法获取共享客户端，键空间管理由存储层自行负责。

# 核心类型

  - Manager：连接管理器，持有 Redis 客户端与连接池配置，
    提供 Client/Ping/Close 生命周期方法。
  - Config：连接配置，包含地址、密码、连接池大小与
    健康检查间隔等参数。
  - PoolStats：连接池统计信息，包含命中、超时与空闲连接数。

# 主要能力

  - 连接池管理：通过 PoolSize 与 MinIdleConns 控制连接复用。
  - 健康检查：后台定时 Ping 检测，异常时通过 zap 日志告警。
  - 优雅关闭：Close 方法安全释放底层 Redis 连接并停止健康检查。
*/
package cache
