package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Vacation POLICY", "vacation policy"},
		{"strips stop words", "what is the vacation policy", "vacation policy"},
		{"collapses whitespace", "  vacation \t policy \n", "vacation policy"},
		{"strips punctuation", "What is the vacation policy?", "vacation policy"},
		{"keeps content words", "reset vpn password remotely", "reset vpn password remotely"},
		{"all stop words fall back to folded text", "What is it?", "what is it"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

// 预处理必须是确定且幂等的：同一变换同时作用于实时搜索与缓存匹配
func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"What is the company vacation policy?",
		"how do I reset my VPN password",
		"quarterly  revenue   figures",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once))
	}
}
