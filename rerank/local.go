package rerank

import (
	"context"
	"math"
	"strings"
	"sync"
)

// LocalProvider 进程内交叉打分器。
//
// 用查询与文档的加权词面重合近似交叉编码器：对查询中的每个 token
// 统计其在文档中的出现，按文档长度做对数折减。推理为 CPU 密集的
// 阻塞计算且不保证内部线程安全，所有调用通过互斥锁串行化 —— 这
// 也是进程内只保留单个长生命周期实例的原因。
type LocalProvider struct {
	mu sync.Mutex
}

// NewLocalProvider creates the in-process reranker.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (p *LocalProvider) Name() string      { return "local-rerank" }
func (p *LocalProvider) MaxDocuments() int { return 256 }

// Rerank 为文档逐一打分，分数范围 [0, 1]。
func (p *LocalProvider) Rerank(ctx context.Context, query string, documents []string) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	queryTokens := tokenize(query)
	results := make([]Result, len(documents))
	for i, doc := range documents {
		results[i] = Result{Index: i, Score: overlapScore(queryTokens, tokenize(doc))}
	}
	return results, nil
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// overlapScore 计算查询 token 在文档中的覆盖率，长文档做对数折减。
func overlapScore(queryTokens, docTokens []string) float64 {
	if len(queryTokens) == 0 || len(docTokens) == 0 {
		return 0.0
	}

	docSet := make(map[string]int, len(docTokens))
	for _, tok := range docTokens {
		docSet[tok]++
	}

	var matched float64
	for _, tok := range queryTokens {
		if docSet[tok] > 0 {
			matched++
		}
	}

	coverage := matched / float64(len(queryTokens))
	lengthPenalty := 1.0 / (1.0 + math.Log1p(float64(len(docTokens))/100.0))
	return coverage * lengthPenalty
}
