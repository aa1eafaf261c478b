package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fieldreport/backend/internal/config"
	"fieldreport/backend/internal/domain"
	"fieldreport/backend/internal/health"
	"fieldreport/backend/internal/logger"
	"fieldreport/backend/internal/monitoring"
	"fieldreport/backend/internal/service"
	"fieldreport/backend/internal/storage"
	"fieldreport/backend/internal/storage/filesystem"
	"fieldreport/backend/internal/storage/memory"
	sqlstore "fieldreport/backend/internal/storage/sql"
	httptransport "fieldreport/backend/internal/transport/http"
)

// main 启动问题跟踪 HTTP 服务。
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
		LogFile:     "",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting fieldreport server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化记录存储层
	var store storage.Store

	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		// 使用内存存储（开发环境）
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}

	// 初始化文件存储，附件持久化是核心能力，失败直接退出
	fsStore, err := filesystem.NewStore(cfg.Storage.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize file storage: %v", err))
	}
	log.Info("file storage initialized", zap.String("path", cfg.Storage.Path))

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	// 初始化健康检查
	healthChecker := health.NewHealthChecker(store, fsStore, log)

	// 初始化服务层
	issueService := service.NewIssueService(store, fsStore, log)
	issueService.SetMetrics(metrics)
	searchService := service.NewSearchService(store)
	exportService := service.NewExportService(store, fsStore, log)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:        cfg,
		IssueService:  issueService,
		SearchService: searchService,
		ExportService: exportService,
		Metrics:       metrics,
		Logger:        log,
	})

	// 健康检查处理器（用于 Kubernetes 等）
	router.GET("/health/live", gin.WrapH(healthChecker.Handler()))
	router.GET("/health/ready", gin.WrapH(healthChecker.Handler()))

	// Prometheus 指标端点
	router.GET("/metrics", gin.WrapH(metrics.HTTPHandler()))

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理孤儿附件 goroutine
	if cfg.Cleanup.Interval > 0 {
		group.Go(func() error {
			ticker := time.NewTicker(cfg.Cleanup.Interval)
			defer ticker.Stop()

			log.Info("starting orphan attachment cleanup task",
				zap.Duration("interval", cfg.Cleanup.Interval),
				zap.Duration("grace", cfg.Cleanup.Grace),
			)

			for {
				select {
				case <-groupCtx.Done():
					log.Info("cleanup task stopped")
					return nil
				case <-ticker.C:
					count, err := sweepOrphans(store, fsStore, cfg.Cleanup.Grace)
					if err != nil {
						log.Error("failed to sweep orphan attachments", zap.Error(err))
						continue
					}
					if count > 0 {
						metrics.RecordAttachmentsCleaned(count)
						log.Info("orphan attachments cleaned up", zap.Int("count", count))
					}
				}
			}
		})
	}

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		if err := store.Close(); err != nil {
			log.Warn("record store close warning", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// sweepOrphans 删除不再被任何记录引用且超过宽限期的附件文件。
//
// 引用集合来自记录存储的全量扫描，包含问题附件与解决方案附件。
func sweepOrphans(store storage.Store, fsStore *filesystem.Store, grace time.Duration) (int, error) {
	issues, err := store.SearchIssues(domain.IssueSearchCriteria{})
	if err != nil {
		return 0, fmt.Errorf("failed to list issues for sweep: %w", err)
	}

	referenced := make(map[string]struct{})
	for i := range issues {
		for _, att := range issues[i].Files {
			referenced[att.StoredName] = struct{}{}
		}
		if issues[i].Solution != nil {
			for _, att := range issues[i].Solution.Files {
				referenced[att.StoredName] = struct{}{}
			}
		}
	}

	return fsStore.Sweep(grace, func(storedName string) bool {
		_, ok := referenced[storedName]
		return ok
	})
}
