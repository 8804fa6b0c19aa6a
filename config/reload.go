// 配置热重载。
//
// 监听配置文件变更并重新加载；只有标记为热可重载的字段会在运行中
// 生效（日志级别、检索阈值、缓存层开关与阈值），其余字段需要重启。
package config

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ReloadFunc 在配置成功重载后被调用，old 与 next 均为完整快照。
type ReloadFunc func(old, next *Config)

// Reloader 组合文件监听与加载器，维护当前配置快照。
type Reloader struct {
	mu      sync.RWMutex
	current *Config

	loader    *Loader
	watcher   *FileWatcher
	callbacks []ReloadFunc
	logger    *zap.Logger
}

// NewReloader 创建热重载器。initial 是启动时已加载的配置。
func NewReloader(initial *Config, loader *Loader, watcher *FileWatcher, logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reloader{
		current: initial,
		loader:  loader,
		watcher: watcher,
		logger:  logger.With(zap.String("component", "config_reloader")),
	}
	watcher.OnChange(func(event FileEvent) {
		if event.Op == FileOpRemove {
			r.logger.Warn("config file removed, keeping current config")
			return
		}
		r.reload()
	})
	return r
}

// Current 返回当前配置快照。
func (r *Reloader) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// OnReload registers a callback invoked after each successful reload.
func (r *Reloader) OnReload(fn ReloadFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, fn)
}

// Start 启动底层文件监听。
func (r *Reloader) Start(ctx context.Context) error {
	return r.watcher.Start(ctx)
}

// Stop 停止底层文件监听。
func (r *Reloader) Stop() error {
	return r.watcher.Stop()
}

func (r *Reloader) reload() {
	next, err := r.loader.Load()
	if err != nil {
		// 坏配置不生效，继续用上一份
		r.logger.Error("config reload failed, keeping current config", zap.Error(err))
		return
	}

	r.mu.Lock()
	old := r.current
	r.current = next
	callbacks := make([]ReloadFunc, len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.mu.Unlock()

	r.logger.Info("config reloaded",
		zap.String("log_level", next.Log.Level),
		zap.Float64("score_threshold", next.Retrieval.ScoreThreshold),
		zap.Bool("response_cache", next.Cache.Response.Enabled),
		zap.Bool("context_cache", next.Cache.Context.Enabled))

	for _, cb := range callbacks {
		cb(old, next)
	}
}
