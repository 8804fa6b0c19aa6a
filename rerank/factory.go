package rerank

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Factory 按配置解析重排提供者，并做受保护的懒加载：
// 底层模型或客户端进程内只构造一次，并发首调用者阻塞在同一次
// 初始化上；初始化失败的结果在进程内粘滞。
type Factory struct {
	cfg    Config
	logger *zap.Logger

	once     sync.Once
	provider Provider
	err      error
}

// NewFactory creates a reranker factory. No provider is constructed until
// the first Provider() call.
func NewFactory(cfg Config, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "rerank_factory")),
	}
}

// Provider 返回进程内唯一的提供者实例，首次调用时构造。
func (f *Factory) Provider() (Provider, error) {
	f.once.Do(func() {
		f.provider, f.err = f.build()
		if f.err != nil {
			f.logger.Error("reranker initialization failed", zap.Error(f.err))
			return
		}
		f.logger.Info("reranker initialized",
			zap.String("provider", f.provider.Name()))
	})
	return f.provider, f.err
}

func (f *Factory) build() (Provider, error) {
	var p Provider
	switch f.cfg.Provider {
	case "cohere":
		p = NewCohereProvider(f.cfg)
	case "jina":
		p = NewJinaProvider(f.cfg)
	case "local", "":
		p = NewLocalProvider()
	default:
		return nil, fmt.Errorf("unknown reranker provider: %q", f.cfg.Provider)
	}

	// 远程提供者：token 截断 + 限流
	if f.cfg.Provider == "cohere" || f.cfg.Provider == "jina" {
		truncator, err := NewTruncator(f.cfg.MaxDocTokens)
		if err != nil {
			return nil, err
		}
		p = &remoteGuard{
			inner:     p,
			truncator: truncator,
			limiter:   newLimiter(f.cfg.RateLimitRPS),
		}
	}

	return p, nil
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// remoteGuard 包装远程提供者：调用前截断文档并等待限流配额。
type remoteGuard struct {
	inner     Provider
	truncator *Truncator
	limiter   *rate.Limiter
}

func (g *remoteGuard) Name() string      { return g.inner.Name() }
func (g *remoteGuard) MaxDocuments() int { return g.inner.MaxDocuments() }

func (g *remoteGuard) Rerank(ctx context.Context, query string, documents []string) ([]Result, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	return g.inner.Rerank(ctx, query, g.truncator.Truncate(documents))
}
