package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/gradelens/backend/internal/api/handlers"
	"github.com/gradelens/backend/internal/cache/redis"
	"github.com/gradelens/backend/internal/events"
	"github.com/gradelens/backend/internal/extract"
	"github.com/gradelens/backend/internal/lifecycle"
	"github.com/gradelens/backend/internal/llm"
	"github.com/gradelens/backend/internal/metrics"
	"github.com/gradelens/backend/internal/middleware/auth"
	"github.com/gradelens/backend/internal/middleware/ratelimit"
	"github.com/gradelens/backend/internal/middleware/security"
	"github.com/gradelens/backend/internal/objectstore"
	"github.com/gradelens/backend/internal/ocr"
	"github.com/gradelens/backend/internal/predict"
	"github.com/gradelens/backend/internal/storage/sqlite"
	"github.com/gradelens/backend/pkg/config"
	appLogger "github.com/gradelens/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting GradeLens API Server")
	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	redisClient, err := redis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	objects, err := objectstore.NewFSStore(cfg.Files.Dir)
	if err != nil {
		appLogger.Fatal("Failed to create object store", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	ocrClient := ocr.NewClient(
		cfg.OCR.Endpoint,
		cfg.OCR.APIKey,
		cfg.OCR.PollIntervalSec,
		cfg.OCR.TimeoutSec,
	)

	extractor := extract.New(llmClient)
	manager := lifecycle.NewManager(sqliteClient, ocrClient, extractor)
	predictor := predict.NewService(
		sqliteClient,
		redisClient,
		llmClient,
		time.Duration(cfg.Predictor.CacheTTLSec)*time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subscriber := events.NewSubscriber(redisClient, manager, cfg.Redis.EventStream)
	go subscriber.Run(ctx)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{})
	defer limiter.Stop()

	documentHandler := handlers.NewDocumentHandler(manager, objects, redisClient, cfg.Redis.EventStream)
	predictionHandler := handlers.NewPredictionHandler(predictor)

	api := app.Group("/api/v1",
		auth.Middleware(auth.Config{JWTSecret: cfg.Auth.JWTSecret}),
		limiter.Middleware(),
	)

	api.Post("/documents/:type", documentHandler.UploadDocument)
	api.Get("/documents/:type", documentHandler.GetDocument)
	api.Post("/documents/:type/extract", documentHandler.ExtractDocument)

	api.Post("/predictions/prompt", predictionHandler.PredictWithPrompt)
	api.Post("/predictions/regression", predictionHandler.PredictWithRegression)
	api.Post("/predictions/combine", predictionHandler.CombinePredictions)
	api.Get("/predictions/latest", predictionHandler.GetLatestPredictions)

	api.Post("/training-examples", predictionHandler.AddTrainingExample)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	cancel()
	app.Shutdown()
	appLogger.Info("Server stopped")
}
