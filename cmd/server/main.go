package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailsearch/backend/internal/cache"
	"mailsearch/backend/internal/config"
	"mailsearch/backend/internal/health"
	"mailsearch/backend/internal/logger"
	"mailsearch/backend/internal/migration"
	"mailsearch/backend/internal/monitoring"
	"mailsearch/backend/internal/service"
	"mailsearch/backend/internal/smtp"
	"mailsearch/backend/internal/storage"
	"mailsearch/backend/internal/storage/hybrid"
	"mailsearch/backend/internal/storage/memory"
	"mailsearch/backend/internal/storage/postgres"
	"mailsearch/backend/internal/storage/redis"
	httptransport "mailsearch/backend/internal/transport/http"
)

// localUserCacheSize 未启用 Redis 时本地用户缓存的容量
const localUserCacheSize = 10000

// main 启动同时包含 HTTP API 与 SMTP 的综合服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
		MaxSizeMB:   100,
		MaxBackups:  3,
		MaxAgeDays:  28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting mailsearch server",
		zap.String("env", cfg.Env),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化监控系统
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)

	// 初始化存储层
	store, checker, cleanup, err := initializeStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer cleanup()

	// 初始化服务层
	scope := service.NewScopeResolver(store, cfg.Search.MailboxInclusionThreshold, log, metrics)
	userService := service.NewUserService(store)
	messageService := service.NewMessageService(store, log, metrics)
	searchService := service.NewSearchService(store, scope, log, metrics)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		UserService:    userService,
		MessageService: messageService,
		SearchService:  searchService,
		Health:         checker,
		Metrics:        metrics,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 创建 SMTP 服务器
	limiter := smtp.NewConnectionLimiter(cfg.SMTP.MaxConnections, cfg.SMTP.ConnectionRate)
	smtpBackend := smtp.NewBackend(store, messageService, limiter, cfg.SMTP.MaxMessageBytes, log)
	smtpServer := gosmtp.NewServer(smtpBackend)
	smtpServer.Addr = cfg.SMTP.BindAddr
	smtpServer.Domain = cfg.SMTP.Domain
	smtpServer.ReadTimeout = 10 * time.Second
	smtpServer.WriteTimeout = 10 * time.Second
	smtpServer.MaxMessageBytes = cfg.SMTP.MaxMessageBytes
	smtpServer.MaxRecipients = 50

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// SMTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting SMTP server",
			zap.String("address", cfg.SMTP.BindAddr),
			zap.String("domain", cfg.SMTP.Domain),
		)
		if err := smtpServer.ListenAndServe(); err != nil && !errors.Is(err, gosmtp.ErrServerClosed) {
			log.Error("SMTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 搜索字段迁移 goroutine，失败不影响服务运行
	group.Go(func() error {
		runner := migration.NewRunner(store, migration.Config{
			Enabled:           cfg.Migration.Enabled,
			BatchSize:         cfg.Migration.BatchSize,
			Workers:           cfg.Migration.Workers,
			ProgressThreshold: cfg.Migration.ProgressThreshold,
			ProgressEvery:     cfg.Migration.ProgressEvery,
		}, log.Named("migration"), metrics)

		if _, err := runner.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("search index migration failed", zap.Error(err))
		}
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// 关闭 HTTP 服务器
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		// 关闭 SMTP 服务器
		if err := smtpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("SMTP server shutdown warning", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeStorage 根据配置初始化存储层与健康检查
//
// 未配置数据库时使用内存存储；数据库存储外总是包装用户缓存，配置了 Redis 时使用 Redis，否则使用进程内缓存。
//
// 返回值:
//   - storage.Store: 存储实现
//   - *health.HealthChecker: 已注册全部依赖的健康检查器
//   - func(): 释放连接的清理函数
//   - error: 错误信息
func initializeStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, *health.HealthChecker, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		store := memory.NewStore()
		log.Info("using memory storage (development mode)")
		return store, health.NewHealthChecker(store, log), cleanup, nil
	}

	pgStore, err := postgres.NewStore(cfg.Database)
	if err != nil {
		return nil, nil, cleanup, fmt.Errorf("failed to initialize database: %w", err)
	}
	closers = append(closers, func() { _ = pgStore.Close() })

	pool, err := postgres.New(ctx, cfg.Database, log)
	if err != nil {
		cleanup()
		return nil, nil, func() {}, err
	}
	closers = append(closers, pool.Close)
	log.Info("using database storage", zap.String("type", cfg.Database.Type))

	var store storage.Store = pgStore
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient, err = redis.New(ctx, cfg.Redis, log)
		if err != nil {
			cleanup()
			return nil, nil, func() {}, fmt.Errorf("failed to initialize redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		store = hybrid.NewStore(pgStore, redis.NewCache(redisClient, cfg.Redis.UserTTL), log)
		log.Info("redis user cache enabled", zap.String("address", cfg.Redis.Address), zap.Duration("ttl", cfg.Redis.UserTTL))
	} else {
		localCache := cache.NewUserCache(localUserCacheSize, cfg.Redis.UserTTL)
		go localCache.Run(ctx, time.Minute)

		store = hybrid.NewStore(pgStore, localCache, log)
		log.Info("local user cache enabled", zap.Int("max_size", localUserCacheSize), zap.Duration("ttl", cfg.Redis.UserTTL))
	}

	checker := health.NewHealthChecker(store, log)
	checker.AddDependency("postgres", pool)
	if redisClient != nil {
		checker.AddDependency("redis", redisClient)
	}

	return store, checker, cleanup, nil
}
