// =============================================================================
// 🖥️ RAG Fortress 服务器装配
// =============================================================================
// 组装检索管线的全部组件并管理其生命周期：
// 嵌入提供者 → 向量存储 → 重排工厂 → 语义缓存 → 检索编排器 →
// HTTP 路由与中间件 → 双端口（API + Metrics）→ 优雅关闭
// =============================================================================

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nurudeen19/rag-fortress/api/handlers"
	"github.com/nurudeen19/rag-fortress/config"
	"github.com/nurudeen19/rag-fortress/embedding"
	"github.com/nurudeen19/rag-fortress/internal/cache"
	"github.com/nurudeen19/rag-fortress/internal/metrics"
	"github.com/nurudeen19/rag-fortress/internal/server"
	"github.com/nurudeen19/rag-fortress/internal/telemetry"
	"github.com/nurudeen19/rag-fortress/rerank"
	"github.com/nurudeen19/rag-fortress/retrieval"
	"github.com/nurudeen19/rag-fortress/semcache"
	"github.com/nurudeen19/rag-fortress/vectorstore"
)

// Server 聚合服务的所有运行时组件。
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	logLevel   zap.AtomicLevel

	collector     *metrics.Collector
	otelProviders *telemetry.Providers

	cacheManager *cache.Manager
	engine       *semcache.Engine
	sweeper      *semcache.Sweeper
	sweepCancel  context.CancelFunc
	retriever    *retrieval.Retriever

	reloader *config.Reloader

	httpManager    *server.Manager
	metricsManager *server.Manager

	rateLimiterCancel context.CancelFunc
}

// NewServer 创建服务器。configPath 非空时启用配置热重载。
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, logLevel zap.AtomicLevel, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:           cfg,
		configPath:    configPath,
		logger:        logger,
		logLevel:      logLevel,
		otelProviders: otelProviders,
	}
}

// Start 装配并启动所有组件。任一组件初始化失败都会中止启动。
func (s *Server) Start() error {
	cfg := s.cfg

	// 指标收集器（注册到默认 Registry，由 /metrics 暴露）
	s.collector = metrics.NewCollector("fortress", nil, s.logger)

	// 嵌入提供者：检索与缓存必须共享同一实例
	embedder, err := embedding.NewProviderFromConfig(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}

	// 向量存储
	var store vectorstore.Client
	switch cfg.VectorStore.Backend {
	case "qdrant":
		store = vectorstore.NewQdrantStore(cfg.VectorStore.Qdrant, s.logger)
	default:
		store = vectorstore.NewInMemoryStore(s.logger)
	}

	// 重排工厂（按配置懒加载具体后端）
	reranker := rerank.NewFactory(cfg.Reranker, s.logger)

	// 语义缓存存储
	var cacheStore semcache.Store
	if cfg.Cache.Backend == "redis" {
		s.cacheManager, err = cache.NewManager(cache.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		cacheStore, err = semcache.NewRedisStore(s.cacheManager.Client(), cfg.Cache, s.logger)
		if err != nil {
			return fmt.Errorf("failed to create redis cache store: %w", err)
		}
	} else {
		cacheStore = semcache.NewMemoryStore(s.logger)
	}

	s.engine = semcache.NewEngine(cfg.Cache, cacheStore, embedder, s.logger)

	// 周期清扫过期簇
	if cfg.Retrieval.SweepInterval > 0 {
		s.sweeper = semcache.NewSweeper(cacheStore, cfg.Retrieval.SweepInterval, s.logger)
		var sweepCtx context.Context
		sweepCtx, s.sweepCancel = context.WithCancel(context.Background())
		s.sweeper.Start(sweepCtx)
	}

	// 检索编排器
	s.retriever = retrieval.NewRetriever(
		s.retrievalOptions(cfg),
		embedder, store, reranker, s.engine, s.collector, s.logger,
	)

	// HTTP 路由 + 中间件
	handler := s.buildHandler(embedder, store)

	s.httpManager = server.NewManager(handler, server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     60 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, s.logger.With(zap.String("server", "api")))
	if err := s.httpManager.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	s.logger.Info("API server listening", zap.String("addr", s.httpManager.Addr()))

	// Metrics 服务（独立端口，不经过业务中间件）
	if cfg.Server.MetricsPort > 0 {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		s.metricsManager = server.NewManager(metricsMux, server.Config{
			Addr:            fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		}, s.logger.With(zap.String("server", "metrics")))
		if err := s.metricsManager.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		s.logger.Info("metrics server listening", zap.String("addr", s.metricsManager.Addr()))
	}

	// 配置热重载
	if s.configPath != "" {
		if err := s.startReloader(); err != nil {
			// 热重载失败不阻止服务运行
			s.logger.Warn("config hot reload disabled", zap.Error(err))
		}
	}

	return nil
}

// retrievalOptions 从配置构建管线参数。
func (s *Server) retrievalOptions(cfg *config.Config) retrieval.Options {
	opts := retrieval.DefaultOptions()
	opts.TopK = cfg.Retrieval.TopK
	opts.MaxK = cfg.Retrieval.MaxK
	opts.ScoreThreshold = cfg.Retrieval.ScoreThreshold
	opts.RerankEnabled = cfg.Reranker.Enabled
	opts.RerankScoreThreshold = cfg.Reranker.ScoreThreshold
	return opts
}

// buildHandler 注册路由并套上中间件链。
func (s *Server) buildHandler(embedder embedding.Provider, store vectorstore.Client) http.Handler {
	cfg := s.cfg

	queryHandler := handlers.NewQueryHandler(s.retriever, s.logger)
	ingestHandler := handlers.NewIngestHandler(embedder, store, s.logger)
	cacheHandler := handlers.NewCacheHandler(s.engine, s.logger)

	healthHandler := handlers.NewHealthHandler(s.logger)
	healthHandler.RegisterCheck(handlers.NewPingHealthCheck("vector_store", func(ctx context.Context) error {
		_, err := store.Count(ctx)
		return err
	}))
	if s.cacheManager != nil {
		healthHandler.RegisterCheck(handlers.NewPingHealthCheck("redis", s.cacheManager.Ping))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/query", queryHandler.HandleQuery)
	mux.HandleFunc("/api/v1/responses", queryHandler.HandleStoreResponse)
	mux.HandleFunc("/api/v1/responses/lookup", queryHandler.HandleResponseLookup)
	mux.HandleFunc("/api/v1/documents", ingestHandler.HandleIngest)
	mux.HandleFunc("/api/v1/cache/clear", cacheHandler.HandleClear)
	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", healthHandler.HandleReady)
	mux.HandleFunc("/readyz", healthHandler.HandleReady)
	mux.HandleFunc("/version", healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// 中间件链，外层先执行
	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
	}
	if s.otelProviders != nil {
		middlewares = append(middlewares, OTelTracing())
	}
	middlewares = append(middlewares,
		MetricsMiddleware(s.collector),
		RequestLogger(s.logger),
		CORS(cfg.Server.CORSAllowedOrigins),
	)
	if cfg.Server.RateLimitRPS > 0 {
		var rlCtx context.Context
		rlCtx, s.rateLimiterCancel = context.WithCancel(context.Background())
		middlewares = append(middlewares,
			RateLimiter(rlCtx, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, s.logger))
	}
	if cfg.Auth.Enabled {
		// 健康检查与版本端点免认证
		skipPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version"}
		middlewares = append(middlewares, JWTAuth(cfg.Auth, skipPaths, s.logger))
	}

	return Chain(mux, middlewares...)
}

// startReloader 启动配置文件监听，将可热更字段推送到运行中的组件。
func (s *Server) startReloader() error {
	watcher, err := config.NewFileWatcher(s.configPath)
	if err != nil {
		return err
	}

	loader := config.NewLoader().WithConfigPath(s.configPath)
	s.reloader = config.NewReloader(s.cfg, loader, watcher, s.logger)

	s.reloader.OnReload(func(old, next *config.Config) {
		if old.Log.Level != next.Log.Level {
			s.logLevel.SetLevel(parseLogLevel(next.Log.Level))
			s.logger.Info("log level updated", zap.String("level", next.Log.Level))
		}
		s.retriever.UpdateOptions(s.retrievalOptions(next))
		s.engine.UpdateTierConfig(next.Cache.Response, next.Cache.Context)
	})

	if err := s.reloader.Start(context.Background()); err != nil {
		return err
	}
	s.logger.Info("config hot reload enabled", zap.String("path", s.configPath))
	return nil
}

// WaitForShutdown 阻塞直到收到 SIGINT/SIGTERM，然后执行优雅关闭。
func (s *Server) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	s.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	s.Shutdown()
}

// Shutdown 按依赖逆序关闭组件：
// 停止接收新请求 → 等待 enrich 收尾 → 关闭缓存连接 → 刷新遥测。
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.reloader != nil {
		if err := s.reloader.Stop(); err != nil {
			s.logger.Warn("failed to stop config reloader", zap.Error(err))
		}
	}
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Warn("API server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Warn("metrics server shutdown error", zap.Error(err))
		}
	}

	if s.sweepCancel != nil {
		s.sweepCancel()
	}
	if s.sweeper != nil {
		s.sweeper.Stop()
	}

	// 等待后台 enrich 全部完成，避免丢写
	if s.retriever != nil {
		s.retriever.Close()
	}

	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Warn("failed to close redis connection", zap.Error(err))
		}
	}

	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(context.Background()); err != nil {
			s.logger.Warn("telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("all components stopped")
}
