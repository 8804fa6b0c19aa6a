package semcache

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sweeper 周期性扫描两层并删除过期簇。
// 惰性删除只覆盖被访问到的簇；Sweeper 兜底清理冷簇，
// 避免内存后端无限增长（Redis 后端由键 TTL 自行回收）。
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper 创建 Sweeper。interval <= 0 时取默认 5 分钟。
func NewSweeper(store Store, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger.With(zap.String("component", "semcache.sweeper")),
		now:      time.Now,
	}
}

// Start 启动后台清扫循环。重复调用是 no-op。
func (s *Sweeper) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.SweepOnce(ctx); err != nil {
					s.logger.Warn("sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop 停止清扫循环并等待退出。
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
}

// SweepOnce 对两层各做一次过期清理。
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, tier := range []Tier{TierResponse, TierContext} {
		g.Go(func() error {
			return s.sweepTier(ctx, tier)
		})
	}
	return g.Wait()
}

func (s *Sweeper) sweepTier(ctx context.Context, tier Tier) error {
	clusters, err := s.store.ListClusters(ctx, tier)
	if err != nil {
		return err
	}
	now := s.now()
	evicted := 0
	for _, c := range clusters {
		if !c.Expired(now) {
			continue
		}
		if err := s.store.DeleteCluster(ctx, tier, c.ID); err != nil {
			s.logger.Warn("failed to evict cluster",
				zap.String("tier", string(tier)),
				zap.String("cluster_id", c.ID),
				zap.Error(err))
			continue
		}
		evicted++
	}
	if evicted > 0 {
		s.logger.Debug("sweep evicted expired clusters",
			zap.String("tier", string(tier)),
			zap.Int("evicted", evicted))
	}
	return nil
}
