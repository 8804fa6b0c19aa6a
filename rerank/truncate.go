package rerank

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Truncator 在远程打分前将文档截断到 token 预算内，
// 避免长文档触发服务商的输入上限或按量计费失控。
type Truncator struct {
	enc       *tiktoken.Tiktoken
	maxTokens int
}

// NewTruncator creates a token-budget truncator. maxTokens <= 0 disables
// truncation (Truncate returns inputs unchanged).
func NewTruncator(maxTokens int) (*Truncator, error) {
	if maxTokens <= 0 {
		return &Truncator{maxTokens: 0}, nil
	}

	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	return &Truncator{enc: enc, maxTokens: maxTokens}, nil
}

// Truncate caps each document at the configured token budget.
func (t *Truncator) Truncate(documents []string) []string {
	if t.maxTokens <= 0 || t.enc == nil {
		return documents
	}

	out := make([]string, len(documents))
	for i, doc := range documents {
		tokens := t.enc.Encode(doc, nil, nil)
		if len(tokens) <= t.maxTokens {
			out[i] = doc
			continue
		}
		out[i] = t.enc.Decode(tokens[:t.maxTokens])
	}
	return out
}
