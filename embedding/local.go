package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// LocalProvider 确定性特征哈希嵌入。
//
// 将文本按空白切分为 token，逐 token 哈希到固定维度的桶中并做 L2
// 归一化。相同文本永远映射到相同向量，因此实时检索与缓存匹配天然
// 共享同一嵌入空间。语义质量有限，仅用于测试与离线开发。
type LocalProvider struct {
	dimensions int
}

// NewLocalProvider creates a deterministic hash-based embedding provider.
func NewLocalProvider(dimensions int) *LocalProvider {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &LocalProvider{dimensions: dimensions}
}

func (p *LocalProvider) Name() string    { return "local-embedding" }
func (p *LocalProvider) Dimensions() int { return p.dimensions }

// Embed 为给定输入生成嵌入。
func (p *LocalProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make([][]float64, len(texts))
	for i, text := range texts {
		result[i] = p.embedOne(text)
	}
	return result, nil
}

// EmbedQuery 嵌入单个查询字符串。
func (p *LocalProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	embs, err := p.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return embs[0], nil
}

func (p *LocalProvider) embedOne(text string) []float64 {
	vec := make([]float64, p.dimensions)

	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()

		bucket := int(sum % uint64(p.dimensions))
		// 符号位取自哈希的高位，减少桶冲突带来的系统性偏置
		sign := 1.0
		if sum>>63 == 1 {
			sign = -1.0
		}
		vec[bucket] += sign
	}

	// L2 归一化，使余弦相似度退化为点积
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
