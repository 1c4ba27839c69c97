package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/gradlink/gradlink-api/api/swagger"
	"github.com/gradlink/gradlink-api/internal/handler"
	"github.com/gradlink/gradlink-api/internal/middleware"
	"github.com/gradlink/gradlink-api/internal/repository"
	"github.com/gradlink/gradlink-api/internal/service"
	"github.com/gradlink/gradlink-api/pkg/cache"
	"github.com/gradlink/gradlink-api/pkg/config"
	"github.com/gradlink/gradlink-api/pkg/database"
	"github.com/gradlink/gradlink-api/pkg/jobs"
	"github.com/gradlink/gradlink-api/pkg/logger"
	corsmiddleware "github.com/gradlink/gradlink-api/pkg/middleware/cors"
	reqidmiddleware "github.com/gradlink/gradlink-api/pkg/middleware/requestid"
	"github.com/gradlink/gradlink-api/pkg/storage"
)

// @title GradLink API
// @version 0.1.0
// @description Academic project workflow and authorization engine
// @BasePath /api/v1
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

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init file storage", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	fileRepo := repository.NewFileRepository(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, redisClient, jobs.QueueConfig{
		Workers:    cfg.Notifications.FanoutWorkers,
		BufferSize: cfg.Notifications.FanoutBuffer,
		MaxRetries: cfg.Notifications.FanoutRetries,
		Logger:     logr,
	}, cfg.Notifications.UnreadCacheTTL, logr)
	projectSvc := service.NewProjectService(projectRepo, rosterRepo, notificationSvc, nil, logr, metricsSvc)
	advisorSvc := service.NewAdvisorService(projectRepo, userRepo, logr, metricsSvc)
	evaluationSvc := service.NewEvaluationService(evaluationRepo, projectRepo, rosterRepo, notificationSvc, nil, logr)
	messageSvc := service.NewMessageService(messageRepo, userRepo, redisClient, cfg.Notifications.PeerCacheTTL, nil, logr)
	fileSvc := service.NewFileService(fileRepo, projectRepo, store, cfg.Uploads.MaxFileSizeBytes, cfg.Uploads.AllowedMIMEs, logr)

	queueCtx, stopQueue := context.WithCancel(context.Background())
	notificationSvc.Queue().Start(queueCtx)
	defer func() {
		stopQueue()
		notificationSvc.Queue().Stop()
	}()

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Projects:      handler.NewProjectHandler(projectSvc),
		Advisors:      handler.NewAdvisorHandler(advisorSvc),
		Evaluations:   handler.NewEvaluationHandler(evaluationSvc),
		Messages:      handler.NewMessageHandler(messageSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Files:         handler.NewFileHandler(fileSvc),
	}, authSvc)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
