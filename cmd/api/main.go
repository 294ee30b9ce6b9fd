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
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/mindvault/backend/internal/api/handlers"
	cacheredis "github.com/mindvault/backend/internal/cache/redis"
	"github.com/mindvault/backend/internal/chat"
	"github.com/mindvault/backend/internal/chunker"
	"github.com/mindvault/backend/internal/extract"
	"github.com/mindvault/backend/internal/ingestion"
	"github.com/mindvault/backend/internal/llm"
	"github.com/mindvault/backend/internal/metrics"
	"github.com/mindvault/backend/internal/middleware/ratelimit"
	"github.com/mindvault/backend/internal/middleware/security"
	"github.com/mindvault/backend/internal/middleware/validation"
	"github.com/mindvault/backend/internal/quota"
	"github.com/mindvault/backend/internal/rag"
	"github.com/mindvault/backend/internal/storage/object"
	"github.com/mindvault/backend/internal/storage/sqlite"
	"github.com/mindvault/backend/internal/vector/milvus"
	"github.com/mindvault/backend/pkg/config"
	appLogger "github.com/mindvault/backend/pkg/logger"
	"github.com/mindvault/backend/pkg/retry"
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

	appLogger.Info("Starting Mind Vault API Server")

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

	redisClient, err := retry.DoWithResult(context.Background(), retry.DefaultConfig(), func() (*cacheredis.Client, error) {
		return cacheredis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	})
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	milvusClient, err := retry.DoWithResult(context.Background(), retry.DefaultConfig(), func() (*milvus.Client, error) {
		return milvus.NewClient(context.Background(), cfg.Milvus.Endpoint, cfg.Milvus.CollectionName, cfg.Milvus.VectorDim)
	})
	if err != nil {
		appLogger.Fatal("Failed to connect to Milvus", zap.Error(err))
	}
	defer milvusClient.Close()

	err = milvusClient.EnsureCollection(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	objectStore, err := object.NewStore(
		cfg.Object.Endpoint,
		cfg.Object.AccessKey,
		cfg.Object.SecretKey,
		cfg.Object.Bucket,
		cfg.Object.UseSSL,
	)
	if err != nil {
		appLogger.Fatal("Failed to create object store client", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	quotaTracker := quota.NewTracker(redisClient, sqliteClient, cfg.Quota.MessageLimit, cfg.Quota.StorageLimitBytes)

	coordinator, err := ingestion.NewCoordinator(
		sqliteClient,
		objectStore,
		extract.NewExtractor(),
		llmClient,
		milvusClient,
		chunker.Options{
			ChunkSize:    cfg.Ingest.ChunkSize,
			ChunkOverlap: cfg.Ingest.ChunkOverlap,
		},
		cfg.Ingest.Workers,
	)
	if err != nil {
		appLogger.Fatal("Failed to create ingestion coordinator", zap.Error(err))
	}
	defer coordinator.Release()

	contextBuilder := rag.NewContextBuilder(llmClient, milvusClient)
	chatService := chat.NewService(sqliteClient, quotaTracker, contextBuilder, llmClient)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()

	documentHandler := handlers.NewDocumentHandler(sqliteClient, quotaTracker, coordinator)
	chatHandler := handlers.NewChatHandler(chatService)
	wsHandler := handlers.NewWebSocketHandler(chatService)

	api := app.Group("/api/v1")
	api.Use(limiter.Middleware())
	api.Use(validation.Middleware(validation.Config{
		MaxDocumentSize: cfg.Quota.StorageLimitBytes,
	}))

	api.Post("/documents", documentHandler.CreateDocument)
	api.Get("/documents", documentHandler.ListDocuments)

	api.Post("/chat", chatHandler.SendMessage)
	api.Get("/chat/history", chatHandler.ListChats)
	api.Get("/chat/:id", chatHandler.GetMessages)

	api.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

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
	app.Shutdown()
	appLogger.Info("Server stopped")
}
