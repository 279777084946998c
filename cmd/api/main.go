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

	_ "github.com/noah-isme/drivehub-api/api/swagger"
	"github.com/noah-isme/drivehub-api/internal/handler"
	"github.com/noah-isme/drivehub-api/internal/middleware"
	"github.com/noah-isme/drivehub-api/internal/repository"
	"github.com/noah-isme/drivehub-api/internal/service"
	"github.com/noah-isme/drivehub-api/pkg/cache"
	"github.com/noah-isme/drivehub-api/pkg/config"
	"github.com/noah-isme/drivehub-api/pkg/database"
	"github.com/noah-isme/drivehub-api/pkg/jobs"
	"github.com/noah-isme/drivehub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/drivehub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/drivehub-api/pkg/middleware/requestid"
	"github.com/noah-isme/drivehub-api/pkg/storage"
)

// @title DriveHub API
// @version 1.0.0
// @description Multi-tenant file storage and sharing backend
// @BasePath /api/v1
// @schemes http https

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	blobs, err := storage.NewS3(ctx, cfg.Storage)
	if err != nil {
		logr.Sugar().Fatalw("failed to init blob storage", "error", err)
	}

	// Repositories.
	folderRepo := repository.NewFolderRepository(db)
	fileRepo := repository.NewFileRepository(db)
	shareRepo := repository.NewShareRepository(db)
	collabRepo := repository.NewCollaboratorRepository(db)
	trashRepo := repository.NewTrashRepository(db, shareRepo, collabRepo)
	statsRepo := repository.NewStatsRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(cfg.JWT, logr)
	accessSvc := service.NewAccessService(folderRepo, fileRepo, collabRepo, userRepo, nil, logr)
	statsSvc := service.NewStatsService(statsRepo, cacheRepo, service.StatsServiceConfig{
		CacheTTL:          cfg.Stats.CacheTTL,
		ReconcileInterval: cfg.Stats.ReconcileInterval,
	}, metricsSvc, logr)
	folderSvc := service.NewFolderService(folderRepo, fileRepo, accessSvc, nil, logr)
	fileSvc := service.NewFileService(fileRepo, accessSvc, blobs, statsSvc, service.FileServiceConfig{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
	}, nil, logr)
	shareSvc := service.NewShareService(shareRepo, folderRepo, fileRepo, accessSvc, blobs, statsSvc, service.ShareServiceConfig{
		DefaultTTL:    cfg.Shares.DefaultTTL,
		BcryptCost:    cfg.Shares.BcryptCost,
		PublicBaseURL: cfg.Shares.PublicBaseURL,
	}, nil, logr)
	trashSvc := service.NewTrashService(trashRepo, folderRepo, accessSvc, blobs, statsSvc, logr)

	// Background recompute queue and periodic reconciler.
	statsQueue := jobs.NewQueue("stats-recompute", statsSvc.HandleRecomputeJob, jobs.QueueConfig{
		Workers:    cfg.Stats.WorkerConcurrency,
		MaxRetries: cfg.Stats.WorkerRetries,
		Logger:     logr,
	})
	statsSvc.AttachQueue(statsQueue)
	statsQueue.Start(ctx)
	defer statsQueue.Stop()
	statsSvc.StartReconciler(ctx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "reason": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:          authSvc,
		Folders:       handler.NewFolderHandler(folderSvc, trashSvc),
		Files:         handler.NewFileHandler(fileSvc, trashSvc, metricsSvc),
		Shares:        handler.NewShareHandler(shareSvc),
		PublicShares:  handler.NewPublicShareHandler(shareSvc, metricsSvc),
		Trash:         handler.NewTrashHandler(trashSvc, metricsSvc),
		Collaborators: handler.NewCollaboratorHandler(accessSvc),
		Dashboard:     handler.NewDashboardHandler(statsSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
