package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edupulse/assessment-delivery/internal/cache"
	"github.com/edupulse/assessment-delivery/internal/config"
	"github.com/edupulse/assessment-delivery/internal/handlers"
	"github.com/edupulse/assessment-delivery/internal/services"
	"github.com/edupulse/assessment-delivery/internal/stores/postgres"
	"github.com/edupulse/assessment-delivery/internal/utils"
	"github.com/edupulse/assessment-delivery/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("database initialization failed", "error", err)
		os.Exit(1)
	}
	if err := pkg.Migrate(db); err != nil {
		logger.Error("database migration failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Error("redis initialization failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	publisher, err := cfg.Events.CreateEventPublisher(utils.ToSlogLogger(logger))
	if err != nil {
		logger.Error("event publisher initialization failed", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	validator := utils.NewValidator()
	sessionCache := cache.NewRedisCache(redisClient, logger)

	deliveryService := services.NewDeliveryService(services.DeliveryServiceConfig{
		Assessments: postgres.NewAssessmentPostgreSQL(db),
		Submitter:   postgres.NewSubmissionPostgreSQL(db),
		Cache:       sessionCache,
		Publisher:   publisher,
		Logger:      logger,
		Validator:   validator,
	})
	exportService := services.NewExportService(deliveryService, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go deliveryService.RunTimeWarningLoop(ctx, time.Duration(cfg.TimeWarningPollSeconds)*time.Second)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))
	router.Use(utils.ContextLogger(logger))

	handlerManager := handlers.NewHandlerManager(deliveryService, exportService, validator, logger)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
