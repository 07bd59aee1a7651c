package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/cache"
	"github.com/SAP-F-2025/exam-session-service/internal/config"
	"github.com/SAP-F-2025/exam-session-service/internal/content"
	"github.com/SAP-F-2025/exam-session-service/internal/examclient"
	"github.com/SAP-F-2025/exam-session-service/internal/handlers"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/scoring"
	"github.com/SAP-F-2025/exam-session-service/internal/services"
	"github.com/SAP-F-2025/exam-session-service/internal/utils"
	"github.com/SAP-F-2025/exam-session-service/internal/validator"
	"github.com/SAP-F-2025/exam-session-service/pkg"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.NewLogger("development").Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Environment)
	ctx := context.Background()

	results := cache.NewMemoryResultCache(cfg.ResultCacheTTL)
	if cfg.RedisURL != "" {
		rdb, err := pkg.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		results = cache.NewRedisResultCache(rdb, cfg.ResultCacheTTL)
		logger.Info("Using Redis result cache")
	} else {
		logger.Warn("REDIS_URL not set, results are cached in memory")
	}

	publisher, err := cfg.Events.CreateEventPublisher(utils.ToSlogLogger(logger))
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", "error", err)
		}
	}()

	v := validator.New()
	catalog := models.DefaultCatalog()

	client := examclient.New(cfg.ExamAPIBaseURL,
		examclient.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		examclient.WithPollPolicy(cfg.Poll),
		examclient.WithLogger(logger),
	)

	manager := services.NewSessionManager(services.SessionDeps{
		Client:        client,
		Builder:       content.NewBuilder(catalog, v.Question(), logger),
		Scorer:        scoring.NewEngine(catalog),
		Catalog:       catalog,
		Publisher:     publisher,
		Logger:        logger,
		SubmitTimeout: cfg.SubmitTimeout,
	}, results, logger,
		services.WithCompletedGrace(cfg.CompletedGrace),
		services.WithIdleTTL(cfg.IdleSessionTTL),
	)
	defer manager.Shutdown()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), utils.LoggerMiddleware(logger), utils.ContextLogger(logger))
	handlers.NewHandlerManager(manager, v, logger).SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "exam_api", cfg.ExamAPIBaseURL, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	logger.Info("Server exited")
}
