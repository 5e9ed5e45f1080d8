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
	"go.uber.org/zap"

	_ "github.com/noah-isme/teacher-eval-api/api/swagger"
	"github.com/noah-isme/teacher-eval-api/internal/handler"
	internalmiddleware "github.com/noah-isme/teacher-eval-api/internal/middleware"
	"github.com/noah-isme/teacher-eval-api/internal/models"
	"github.com/noah-isme/teacher-eval-api/internal/repository"
	"github.com/noah-isme/teacher-eval-api/internal/service"
	"github.com/noah-isme/teacher-eval-api/pkg/cache"
	"github.com/noah-isme/teacher-eval-api/pkg/config"
	"github.com/noah-isme/teacher-eval-api/pkg/database"
	"github.com/noah-isme/teacher-eval-api/pkg/jobs"
	"github.com/noah-isme/teacher-eval-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/teacher-eval-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/teacher-eval-api/pkg/middleware/requestid"
	"github.com/noah-isme/teacher-eval-api/pkg/storage"
)

// @title Teacher Evaluation API
// @version 1.0.0
// @description Classroom observation rubric, teacher roster, evaluation documents and spreadsheet exports.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
		cfg.Dashboard.CacheEnabled = false
	}

	evidenceStore, err := storage.NewLocalStorage(cfg.Evidence.StorageDir)
	if err != nil {
		logr.Fatal("failed to init evidence storage", zap.Error(err))
	}
	templateStore, err := storage.NewLocalStorage(cfg.Templates.Dir)
	if err != nil {
		logr.Fatal("failed to init template storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Evidence.SignedURLSecret, cfg.Evidence.SignedURLTTL)

	cleanupQueue := jobs.NewQueue("evidence-cleanup", jobs.QueueConfig{
		Workers:    cfg.Cleanup.Workers,
		MaxRetries: cfg.Cleanup.Retries,
		Logger:     logr,
	})

	teacherRepo := repository.NewTeacherRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	userRepo := repository.NewUserRepository(db)

	metricsSvc := service.NewMetricsService()
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, "teacher-eval", logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)

	validate := service.NewValidator()
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Teachers:    teacherRepo,
		Evaluations: evaluationRepo,
		Cache:       cacheSvc,
		Logger:      logr,
		Config:      service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})
	teacherSvc := service.NewTeacherService(teacherRepo, dashboardSvc, validate, logr)
	evaluationSvc := service.NewEvaluationService(service.EvaluationServiceParams{
		Repo:      evaluationRepo,
		Teachers:  teacherRepo,
		Blobs:     evidenceStore,
		Cleanup:   cleanupQueue,
		Signer:    signer,
		Stats:     dashboardSvc,
		Metrics:   metricsSvc,
		Validator: validate,
		Logger:    logr,
		Config: service.EvidenceConfig{
			MaxFileSizeBytes: cfg.Evidence.MaxFileSizeBytes,
			MaxWidth:         cfg.Evidence.MaxWidth,
			MaxHeight:        cfg.Evidence.MaxHeight,
			DownloadPath:     cfg.APIPrefix + "/evidence/download",
		},
	})
	cleanupQueue.Handle(service.EvidenceCleanupJob, evaluationSvc.HandleEvidenceCleanup)
	cleanupQueue.Start(ctx)
	defer cleanupQueue.Stop()

	documentSvc := service.NewDocumentService(service.DocumentServiceParams{
		Templates: templateStore,
		Institution: service.Institution{
			Name:     cfg.Institution.Name,
			Address:  cfg.Institution.Address,
			Location: cfg.Institution.Location(),
		},
		Metrics: metricsSvc,
		Logger:  logr,
	})
	spreadsheetSvc := service.NewSpreadsheetService(nil, nil, nil, metricsSvc, logr)
	exportSvc := service.NewExportService(service.ExportServiceParams{
		Teachers:     teacherRepo,
		Evaluations:  evaluationRepo,
		Documents:    documentSvc,
		Spreadsheets: spreadsheetSvc,
		Logger:       logr,
	})
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "teacher-eval-api",
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc, evaluationSvc, exportSvc)
	evaluationHandler := handler.NewEvaluationHandler(evaluationSvc, exportSvc, 4*cfg.Evidence.MaxFileSizeBytes)
	exportHandler := handler.NewExportHandler(exportSvc)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/evidence/download", evaluationHandler.DownloadEvidence)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))
	secured.Use(internalmiddleware.WithResponseMeta())
	staff := internalmiddleware.RBAC(models.RoleAdmin, models.RoleEvaluator)
	adminOnly := internalmiddleware.RBAC(models.RoleAdmin)

	secured.GET("/auth/me", authHandler.Me)
	secured.GET("/dashboard", staff, dashboardHandler.Stats)

	teachers := secured.Group("/teachers")
	teachers.GET("", staff, teacherHandler.List)
	teachers.GET("/status", staff, teacherHandler.Status)
	teachers.POST("", adminOnly, teacherHandler.Create)
	teachers.POST("/import", adminOnly, teacherHandler.Import)
	teachers.GET("/:id", staff, teacherHandler.Get)
	teachers.PUT("/:id", adminOnly, teacherHandler.Update)
	teachers.DELETE("/:id", adminOnly, teacherHandler.Delete)
	teachers.GET("/:id/evaluations", staff, teacherHandler.ListEvaluations)
	teachers.GET("/:id/evaluations/export", staff, teacherHandler.ExportEvaluations)

	evaluations := secured.Group("/evaluations", staff)
	evaluations.GET("", evaluationHandler.List)
	evaluations.POST("", evaluationHandler.Create)
	evaluations.POST("/report", evaluationHandler.Report)
	evaluations.GET("/:id", evaluationHandler.Get)
	evaluations.PUT("/:id", evaluationHandler.Update)
	evaluations.DELETE("/:id", evaluationHandler.Delete)
	evaluations.GET("/:id/document", evaluationHandler.Document)
	evaluations.GET("/:id/evidence-link", evaluationHandler.EvidenceLink)

	secured.GET("/exports/evaluations", staff, exportHandler.Evaluations)

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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
