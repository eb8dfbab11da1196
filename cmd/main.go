package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"detectx-service/internal/capture"
	"detectx-service/internal/config"
	"detectx-service/internal/handlers"
	"detectx-service/internal/metrics"
	"detectx-service/internal/middleware"
	"detectx-service/internal/models"
	"detectx-service/internal/overlay"
	"detectx-service/internal/services"
)

func main() {
	// Bootstrap logger for configuration loading
	bootLogger, err := initLogger("info", "")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadConfig(bootLogger)
	if err != nil {
		bootLogger.Fatal("Failed to load config", zap.Error(err))
	}

	// Initialize logger
	logger, err := initLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		bootLogger.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync()

	appMetrics := metrics.New()

	// Backend client and status
	client := services.NewDetectionClient(cfg.BackendURL, cfg.BackendRPS, logger)
	checker := services.NewHealthChecker(client, logger)

	checkCtx, cancelCheck := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	if status := checker.Check(checkCtx); status != models.BackendOnline {
		logger.Warn("Detection backend is not reachable; live detection stays disabled until it is re-checked",
			zap.String("backend_url", cfg.BackendURL))
	}
	cancelCheck()

	// Live loop
	sources, err := capture.NewFactory(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to configure frame source", zap.Error(err))
	}
	renderer, err := overlay.NewRenderer()
	if err != nil {
		logger.Fatal("Failed to initialize overlay renderer", zap.Error(err))
	}
	encoder := services.NewFrameEncoder(cfg.FrameWidth, cfg.FrameHeight, cfg.JPEGQuality)

	loop := services.NewLiveLoop(sources, client, renderer, checker, encoder, services.LiveLoopConfig{
		PollInterval:   cfg.PollInterval,
		RequestTimeout: cfg.RequestTimeout,
		HistorySize:    cfg.HistorySize,
	}, appMetrics, logger)

	uploads := services.NewUploadService(client, checker, cfg.MaxFileSizeBytes(), cfg.RequestTimeout, appMetrics, logger)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(checker)
	backendHandler := handlers.NewBackendHandler(checker, client.BaseURL())
	liveHandler := handlers.NewLiveHandler(loop, capture.ListCameras, appMetrics, logger)
	detectHandler := handlers.NewDetectHandler(uploads, cfg.MaxFileSizeBytes())
	exportHandler := handlers.NewExportHandler(uploads, loop)
	statsHandler := handlers.NewStatsHandler(loop, appMetrics)

	// Initialize middlewares
	authMiddleware := middleware.NewAuthMiddleware(cfg)
	loggerMiddleware := middleware.NewLoggerMiddleware(logger)
	recoveryMiddleware := middleware.NewRecoveryMiddleware(logger)
	corsMiddleware := middleware.NewCORSMiddleware()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(
		logger,
		cfg.RateLimit, // limit per client
		time.Minute,   // per minute
		time.Hour,     // block for 1 hour if exceeded
	)
	defer rateLimitMiddleware.Stop()

	// Set Gin to release mode
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := gin.New()

	// Apply global middlewares
	router.Use(loggerMiddleware.RequestLogger("/api/live/state", "/api/live/frame.jpg", "/metrics"))
	router.Use(recoveryMiddleware.RecoveryWithZap())
	router.Use(corsMiddleware.SetupCORS())

	// Health, readiness and metrics endpoints (no auth required)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gin.WrapH(appMetrics.Handler()))

	// Protected endpoints (auth required when API_KEY is set)
	api := router.Group("/api")
	api.Use(authMiddleware.AuthRequired())
	{
		// Backend status
		api.GET("/backend", backendHandler.GetBackend)
		api.POST("/backend/check", backendHandler.CheckBackend)

		// Live detection
		api.GET("/cameras", liveHandler.Cameras)
		api.POST("/live/start", liveHandler.Start)
		api.POST("/live/stop", liveHandler.Stop)
		api.GET("/live/state", liveHandler.State)
		api.GET("/live/history", liveHandler.History)
		api.GET("/live/frame.jpg", liveHandler.Frame)
		api.GET("/live/ws", liveHandler.Stream)

		// Upload detection, rate limited per client
		detect := api.Group("/detect")
		detect.Use(rateLimitMiddleware.RateLimit())
		{
			detect.POST("", detectHandler.Detect)
			detect.POST("/multipart", detectHandler.DetectMultipart)
		}
		api.GET("/export", exportHandler.Export)

		// Stats endpoints
		api.GET("/stats", statsHandler.GetStats)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Release the camera and end websocket streams before draining HTTP
	if err := loop.Close(); err != nil {
		logger.Error("Live loop teardown failed", zap.Error(err))
	}

	// Create a deadline for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown the server gracefully
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	} else {
		logger.Info("Server exited gracefully")
	}
}

// initLogger initializes the logger with proper configuration. When logFile is set,
// entries are also written there with size-based rotation.
func initLogger(level, logFile string) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevelAt(zap.InfoLevel)
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = lvl

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	if logFile == "" {
		return logger, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(config.EncoderConfig), zapcore.AddSync(rotator), lvl)

	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}
