/*
Package embedding 提供统一的文本嵌入提供者接口与实现。

实时检索与语义缓存匹配必须共享同一个嵌入空间：Retriever 与
SemanticCacheEngine 注入的是同一个 Provider 实例，任何一侧单独
替换嵌入模型都会使缓存键与实时检索结果静默失配。

内置实现：

  - OpenAIProvider — OpenAI 兼容 /v1/embeddings HTTP 接入
  - LocalProvider  — 确定性特征哈希嵌入，用于测试与离线环境
*/
package embedding
