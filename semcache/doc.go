/*
Package semcache 实现带安全校验的两层语义缓存引擎。

# 概述

同一套聚类/存储机制实例化两次：response 层缓存生成的回答，
context 层缓存检索到的文档集。两层拥有各自独立的阈值、TTL 与容量，
且键空间彼此隔离 —— 即使嵌入完全相同，context 查询也永远不会命中
response 簇。

# 簇（Cluster）

簇以查询嵌入质心为键，内部保存若干可互换的 variation。状态机：

	CREATED（单 variation）→ GROWING（未满，可追加）
	→ SATURATED（已满，只读）→ EXPIRED（TTL 过期，终态）

过期簇对命中不可见并被惰性删除；后续匹配查询会创建全新的簇，
而不是复活旧簇。variation 列表只追加、到容量封顶，并发写入不会
破坏已有条目。

# 安全校验

每个簇携带一条 security_requirement，只会随合并收紧、从不放松。
命中校验采用精确作用域匹配：与创建缓存时完全相同的请求者画像才
可读取；权限不足返回显式拒绝信号（标记部门级或组织级），权限充
足但画像不同视为普通未命中，回落到实时检索。
*/
package semcache
