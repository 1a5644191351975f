package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grading-service/internal/batch"
	"grading-service/internal/calibration"
	"grading-service/internal/config"
	"grading-service/internal/ensemble"
	"grading-service/internal/extract"
	"grading-service/internal/grademap"
	"grading-service/internal/grader"
	"grading-service/internal/handler"
	"grading-service/internal/llm"
	"grading-service/internal/metrics"
	"grading-service/internal/notify"
	"grading-service/internal/repository"
	"grading-service/internal/rubric"
	"grading-service/internal/service"
	"grading-service/internal/training"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting Grading Service...")

	// Load configuration
	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	if !cfg.Log.Development {
		logger = newProductionLogger(cfg.Log.Level, logger)
	}

	m := metrics.New()
	catalog := rubric.Default()

	// Initialize database
	db, err := repository.NewDB(cfg.Database.Driver, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if *cfg.Database.Migrate {
		if err := repository.MigrateDB(db, logger); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	ledger := repository.NewLedgerRepository(db, logger)
	engine := calibration.NewEngine(ledger, m, logger)

	// Initialize the grading roster, one rate-limited provider per model
	graders := make([]ensemble.Grader, 0, len(cfg.Models))
	for _, mc := range cfg.Models {
		provider, err := llm.NewProvider(mc, logger)
		if err != nil {
			logger.Fatal("Failed to initialize model", zap.String("model", mc.ID), zap.Error(err))
		}
		limited := llm.NewRateLimitedProvider(provider, mc.RequestsPerMinute, logger)
		defer limited.Close()

		graders = append(graders, grader.New(grader.Config{
			ModelID:     mc.ID,
			Temperature: mc.Temperature,
			MaxTokens:   mc.MaxTokens,
			Retry: llm.RetryPolicy{
				Timeout:    mc.Timeout,
				MaxRetries: mc.MaxRetries,
				RetryDelay: mc.RetryDelay,
			},
		}, limited, catalog, m, logger))

		logger.Info("Model registered",
			zap.String("model", mc.ID),
			zap.String("provider", string(mc.Type)),
			zap.Any("info", limited.GetModelInfo()))
	}

	coordinator := ensemble.NewCoordinator(graders, catalog, engine, ensemble.Options{
		Excluded:            []string{rubric.DiscussionItemID},
		ApplyCalibration:    cfg.Grading.ApplyCalibration,
		MaxDiscussionPoints: cfg.Grading.DiscussionPointsMax,
	}, m, logger)

	// Embeddings are optional
	var embedder training.Embedder
	if cfg.Embedding.Enabled {
		e, err := llm.NewEmbedder(cfg.Embedding.ProviderConfig, logger)
		if err != nil {
			logger.Warn("Embeddings disabled", zap.Error(err))
		} else {
			embedder = e
		}
	}

	extractor := extract.NewExtractor(logger)
	ingestor := training.NewIngestor(ledger, extractor, embedder, coordinator, engine, catalog, cfg.Embedding.MaxChars, logger)

	notifier, err := notify.New(cfg.Telegram, logger)
	if err != nil {
		logger.Warn("Telegram notifications unavailable", zap.Error(err))
		notifier = notify.Nop{}
	}

	grades := grademap.Default(cfg.GradeMap.Tolerance)
	if cfg.GradeMap.Path != "" {
		grades = grademap.Load(cfg.GradeMap.Path, cfg.GradeMap.Tolerance, logger)
	}

	tracker := batch.NewTracker(repository.NewJobRepository(db, logger), m, logger)
	if n, err := tracker.RecoverInterrupted(context.Background(), 500); err != nil {
		logger.Warn("Failed to close interrupted batch jobs", zap.Error(err))
	} else if n > 0 {
		logger.Info("Closed interrupted batch jobs", zap.Int("jobs", n))
	}

	// Initialize service
	grading := service.NewGradingService(ledger, extractor, coordinator, engine, ingestor, tracker, notifier, grades, catalog,
		service.Limits{
			MaxFiles:            cfg.Batch.MaxFiles,
			MaxFileBytes:        cfg.Batch.MaxFileMB << 20,
			UploadsDir:          cfg.Batch.UploadsDir,
			Parallelism:         cfg.Batch.Parallelism,
			SecondsPerItem:      cfg.Batch.SecondsPerItem,
			DiscussionPointsMax: cfg.Grading.DiscussionPointsMax,
		}, m, logger)

	// Initialize HTTP handler
	apiHandler := handler.NewHandler(grading, m, logger)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	router.MaxMultipartMemory = cfg.Server.MaxUploadMB << 20

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register routes
	apiHandler.RegisterRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("Server starting", zap.String("address", serverAddr))

	// Graceful shutdown
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Grading Service is running",
		zap.String("port", cfg.Server.Port),
		zap.Strings("models", coordinator.Models()),
		zap.String("rubric", catalog.Version))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Give running batch jobs the rest of the shutdown window
	drained := make(chan struct{})
	go func() {
		grading.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		logger.Warn("Batch jobs still running at shutdown, they will be failed on next start")
	}

	logger.Info("Server exited")
}

func newProductionLogger(level string, fallback *zap.Logger) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		fallback.Warn("Unknown log level, keeping development logger", zap.String("level", level))
		return fallback
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zc.Build()
	if err != nil {
		fallback.Warn("Failed to build production logger", zap.Error(err))
		return fallback
	}
	return logger
}
