package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/tomengsanchez/asset-manager-api/api/swagger"
	"github.com/tomengsanchez/asset-manager-api/internal/handler"
	"github.com/tomengsanchez/asset-manager-api/internal/middleware"
	"github.com/tomengsanchez/asset-manager-api/internal/models"
	"github.com/tomengsanchez/asset-manager-api/internal/repository"
	"github.com/tomengsanchez/asset-manager-api/internal/service"
	"github.com/tomengsanchez/asset-manager-api/internal/validation"
	"github.com/tomengsanchez/asset-manager-api/pkg/cache"
	"github.com/tomengsanchez/asset-manager-api/pkg/config"
	"github.com/tomengsanchez/asset-manager-api/pkg/database"
	"github.com/tomengsanchez/asset-manager-api/pkg/export"
	"github.com/tomengsanchez/asset-manager-api/pkg/logger"
	corsmiddleware "github.com/tomengsanchez/asset-manager-api/pkg/middleware/cors"
	reqidmiddleware "github.com/tomengsanchez/asset-manager-api/pkg/middleware/requestid"
	"github.com/tomengsanchez/asset-manager-api/pkg/storage"
)

// @title Asset Manager API
// @version 1.0.0
// @description Equipment asset and repair-request tracking service
// @BasePath /api/v1
// @schemes http

// assetLookup adapts the record repository for reference validation.
type assetLookup struct {
	records *repository.RecordRepository
}

func (a assetLookup) AssetExists(ctx context.Context, id int64) (bool, error) {
	return a.records.ExistsByKind(ctx, id, models.KindAsset)
}

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	attachmentStorage, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init attachment storage", "error", err)
	}
	exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}

	// Repositories.
	recordRepo := repository.NewRecordRepository(db)
	termRepo := repository.NewTermRepository(db)
	userRepo := repository.NewUserRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	changes := service.NewChangeLog(userRepo, termRepo)
	formValidator := validation.New(assetLookup{records: recordRepo}, termRepo)

	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "asset-manager-api",
	})
	userService := service.NewUserService(userRepo, nil, logr)
	assetService := service.NewAssetService(
		recordRepo, userRepo, termRepo, historyRepo, attachmentRepo,
		cacheRepo, attachmentStorage, formValidator, changes,
		cfg.Validation.ErrorTTL, logr,
	)
	repairService := service.NewRepairService(
		recordRepo, userRepo, termRepo, historyRepo,
		cacheRepo, formValidator, changes,
		cfg.Validation.ErrorTTL, logr,
	)
	termService := service.NewTermService(termRepo, logr)
	noteService := service.NewNoteService(noteRepo, recordRepo, attachmentRepo, attachmentStorage, logr)
	dashboardService := service.NewDashboardService(dashboardRepo, userRepo, cacheRepo, cfg.Dashboard.CacheTTL, logr)
	metricsService := service.NewMetricsService()

	attachmentSigner := storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL)
	attachmentService := service.NewAttachmentService(attachmentRepo, attachmentStorage, attachmentSigner, cfg.APIPrefix, logr)

	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportService := service.NewExportService(
		exportJobRepo, assetService, repairService, exportStorage, exportSigner,
		export.NewCSVExporter(), export.NewLandscapePDFExporter(), export.NewXLSXExporter(),
		service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
			Workers:   cfg.Exports.WorkerConcurrency,
			Retries:   cfg.Exports.WorkerRetries,
		},
		logr,
	)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	exportService.Start(workerCtx)
	defer exportService.Stop()

	go func() {
		ticker := time.NewTicker(cfg.Exports.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if removed, err := exportService.Cleanup(); err != nil {
					logr.Sugar().Warnw("export cleanup failed", "error", err)
				} else if len(removed) > 0 {
					logr.Sugar().Infow("export cleanup", "removed", len(removed))
				}
			}
		}
	}()

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	assetHandler := handler.NewAssetHandler(assetService)
	repairHandler := handler.NewRepairHandler(repairService)
	termHandler := handler.NewTermHandler(termService)
	noteHandler := handler.NewNoteHandler(noteService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	attachmentHandler := handler.NewAttachmentHandler(attachmentService)
	exportHandler := handler.NewExportHandler(exportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	// Downloads authenticate through the signed token itself.
	api.GET("/exports/download/:token", exportHandler.Download)
	api.GET("/attachments/download/:token", attachmentHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/change-password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	writers := middleware.RequireRoles(models.RoleAdmin, models.RoleManager)
	repairWriters := middleware.RequireRoles(models.RoleAdmin, models.RoleManager, models.RoleTechnician)
	admins := middleware.RequireRoles(models.RoleAdmin)

	assets := authed.Group("/assets")
	{
		assets.GET("", assetHandler.List)
		assets.GET("/:id", assetHandler.Get)
		assets.GET("/:id/history", assetHandler.History)
		assets.GET("/:id/validation-errors", assetHandler.ValidationErrors)
		assets.POST("", writers, assetHandler.Create)
		assets.PUT("/:id", writers, assetHandler.Update)
		assets.DELETE("/:id", admins, middleware.Audit(userRepo, "DELETE", "asset"), assetHandler.Delete)
		assets.POST("/:id/image", writers, assetHandler.UploadImage)
		assets.DELETE("/:id/image", writers, assetHandler.RemoveImage)
	}

	repairs := authed.Group("/repairs")
	{
		repairs.GET("", repairHandler.List)
		repairs.GET("/:id", repairHandler.Get)
		repairs.GET("/:id/history", repairHandler.History)
		repairs.GET("/:id/validation-errors", repairHandler.ValidationErrors)
		repairs.POST("", repairWriters, repairHandler.Create)
		repairs.PUT("/:id", repairWriters, repairHandler.Update)
		repairs.DELETE("/:id", admins, middleware.Audit(userRepo, "DELETE", "repair_request"), repairHandler.Delete)
	}

	records := authed.Group("/records")
	{
		records.GET("/:id/notes", noteHandler.List)
		records.POST("/:id/notes", repairWriters, noteHandler.Create)
	}

	authed.GET("/attachments/:id/url", attachmentHandler.SignedURL)

	authed.GET("/taxonomies/:taxonomy/terms", termHandler.List)
	authed.POST("/taxonomies/:taxonomy/terms", writers, termHandler.Create)
	authed.GET("/terms/:id", termHandler.Get)
	authed.PUT("/terms/:id", writers, termHandler.Update)
	authed.DELETE("/terms/:id", admins, termHandler.Delete)

	users := authed.Group("/users", admins)
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", middleware.Audit(userRepo, "CREATE", "user"), userHandler.Create)
		users.PUT("/:id", middleware.Audit(userRepo, "UPDATE", "user"), userHandler.Update)
		users.DELETE("/:id", middleware.Audit(userRepo, "DEACTIVATE", "user"), userHandler.Deactivate)
		users.POST("/:id/reset-password", middleware.Audit(userRepo, "RESET_PASSWORD", "user"), userHandler.ResetPassword)
	}

	exports := authed.Group("/exports")
	{
		exports.POST("", exportHandler.Enqueue)
		exports.GET("", exportHandler.List)
		exports.GET("/:id", exportHandler.Status)
	}

	dashboard := authed.Group("/dashboard")
	{
		dashboard.GET("/summary", dashboardHandler.Summary)
		dashboard.GET("/brands", dashboardHandler.Brands)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
