package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/fsm-visit-api/api/swagger"
	"github.com/noah-isme/fsm-visit-api/internal/handler"
	internalmiddleware "github.com/noah-isme/fsm-visit-api/internal/middleware"
	"github.com/noah-isme/fsm-visit-api/internal/repository"
	"github.com/noah-isme/fsm-visit-api/internal/service"
	"github.com/noah-isme/fsm-visit-api/pkg/cache"
	"github.com/noah-isme/fsm-visit-api/pkg/config"
	"github.com/noah-isme/fsm-visit-api/pkg/database"
	"github.com/noah-isme/fsm-visit-api/pkg/jobs"
	"github.com/noah-isme/fsm-visit-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/fsm-visit-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/fsm-visit-api/pkg/middleware/requestid"
	"github.com/noah-isme/fsm-visit-api/pkg/storage"
)

// @title FSM Visit API
// @version 0.1.0
// @description Visit scheduling and allocation engine for fire-safety maintenance contracts
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Grid projections fall back to the database when the cache is down.
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	visitRepo := repository.NewVisitRepository(db)
	contractRepo := repository.NewContractRepository(db)
	branchRepo := repository.NewBranchRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	coverageSvc := service.NewCoverageService(contractRepo, logr)
	gridSvc := service.NewGridService(visitRepo, branchRepo, cacheRepo, coverageSvc, metricsSvc, logr, service.GridConfig{
		CacheTTL:         cfg.Grid.CacheTTL,
		DefaultWeekStart: cfg.Planner.PreferredWeekStart,
	})
	visitSvc := service.NewVisitService(visitRepo, coverageSvc, gridSvc, nil, logr)
	plannerSvc := service.NewPlannerService(coverageSvc, visitRepo, branchRepo, gridSvc, db, metricsSvc, nil, logr, service.PlannerConfig{
		BatchSize:            cfg.Planner.BatchSize,
		BatchDelay:           cfg.Planner.BatchDelay,
		RescheduleWindowDays: cfg.Planner.RescheduleWindowDays,
	})
	planboardSvc := service.NewPlanboardService(visitRepo, coverageSvc, gridSvc, db, nil, logr, service.PlanboardConfig{
		MaxVisitsPerDay:    cfg.Planner.MaxVisitsPerDay,
		PreferredWeekStart: cfg.Planner.PreferredWeekStart,
	})

	exportHandler := handler.NewExportHandler(nil)
	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exporter := service.NewExportService(gridSvc, branchRepo, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr, nil, nil)
		jobRepo := repository.NewExportJobRepository(db)
		worker := service.NewExportWorker(jobRepo, exporter, cfg.Exports.WorkerRetries, logr)
		exportQueue = jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportQueue.Start(ctx)

		jobSvc := service.NewExportJobService(jobRepo, exportQueue, exporter, logr, service.ExportJobConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
			MaxRetries:      cfg.Exports.WorkerRetries,
		})
		jobSvc.RecoverPendingJobs(ctx)
		jobSvc.StartCleanup(ctx)
		exportHandler = handler.NewExportHandler(jobSvc)
	}

	visitHandler := handler.NewVisitHandler(visitSvc)
	gridHandler := handler.NewGridHandler(gridSvc)
	plannerHandler := handler.NewPlannerHandler(plannerSvc)
	planboardHandler := handler.NewPlanboardHandler(planboardSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/visits", visitHandler.List)
		api.POST("/visits", visitHandler.Create)
		api.GET("/visits/:id", visitHandler.Get)
		api.PATCH("/visits/:id", visitHandler.Update)
		api.DELETE("/visits/:id", visitHandler.Delete)
		api.POST("/visits/:id/complete", visitHandler.Complete)
		api.POST("/visits/:id/cancel", visitHandler.Cancel)
		api.POST("/visits/:id/reschedule", visitHandler.Reschedule)
		api.GET("/branches/:id/visits", visitHandler.ByBranch)

		api.GET("/grid/annual", gridHandler.AnnualMatrix)
		api.GET("/grid/compliance", gridHandler.Compliance)

		api.POST("/planner/plan", plannerHandler.Plan)

		api.POST("/planboard/toggle", planboardHandler.ToggleCell)
		api.POST("/planboard/visits/:id/move", planboardHandler.MoveVisit)
		api.POST("/planboard/plan-week", planboardHandler.PlanWeek)
		api.POST("/planboard/bulk-delete", planboardHandler.BulkDelete)

		api.POST("/exports", exportHandler.Create)
		api.GET("/exports/jobs/:id", exportHandler.Status)
		api.GET("/exports/download/:token", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("forced shutdown", "error", err)
	}
	if exportQueue != nil {
		exportQueue.Stop()
	}
}
