package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/clearwave/api/internal/client"
	"github.com/clearwave/api/internal/config"
	"github.com/clearwave/api/internal/handler"
	"github.com/clearwave/api/internal/logger"
	"github.com/clearwave/api/internal/middleware"
	"github.com/clearwave/api/internal/notify"
	"github.com/clearwave/api/internal/service"
	"github.com/clearwave/api/internal/storage/sqlite"
	ws "github.com/clearwave/api/internal/websocket"
)

func main() {
	// Load .env in development; ignore absence in containers
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)

	// Redis backs both the task queue and the worker event channel
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("redis not available")
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	store, err := sqlite.NewStore(cfg.Database.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer store.Close()

	storageClient, err := client.NewS3Client(&cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("failed to init object storage")
	}
	transcriptionClient := client.NewTranscriptionClient(&cfg.Transcription)

	validate := validator.New()

	hub := ws.NewHub(log)
	go hub.Run()
	go notify.Relay(ctx, redisClient, hub, log)

	// Services
	fileService := service.NewFileService(store, storageClient, log)
	processingService := service.NewProcessingService(store, asynqClient, log)
	// The transcription service reaches back over the network, so it gets the
	// public base URL when one is configured.
	publicBase := cfg.Transcription.CallbackURL
	if publicBase == "" {
		publicBase = cfg.Server.BaseURL
	}
	transcriptionService := service.NewTranscriptionService(store, transcriptionClient, storageClient, publicBase, log)

	// Handlers
	fileHandler := handler.NewFileHandler(fileService, validate)
	processHandler := handler.NewProcessHandler(processingService, validate)
	transcriptionHandler := handler.NewTranscriptionHandler(transcriptionService, validate)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    250 * 1024 * 1024, // headroom over the handler's own size check
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,Range",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Key-addressed routes for the external transcription service, which holds
	// storage keys but no user token: content to fetch, callback to answer.
	app.Get("/api/files/content/:userId/:filename", fileHandler.DownloadByKey)
	app.Post("/api/files/callback/:userId/:filename", transcriptionHandler.Callback)

	api := app.Group("/api", authMiddleware.Authenticate())

	api.Get("/presets", processHandler.Presets)

	files := api.Group("/files")
	files.Post("/", fileHandler.Upload)
	files.Get("/", fileHandler.List)
	files.Get("/:id", fileHandler.Get)
	files.Get("/:id/download", fileHandler.Download)
	files.Delete("/:id", fileHandler.Delete)
	files.Post("/:id/noise-removal", processHandler.RemoveNoise)
	files.Post("/:id/vocal-removal", processHandler.RemoveVocals)
	files.Post("/:id/melody-removal", processHandler.RemoveMelody)
	files.Post("/:id/enhancement", processHandler.Enhance)
	files.Post("/:id/transcription", transcriptionHandler.Start)

	// WebSocket status events, one subscription per file
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/files/:id", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("id"))
	}))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down server")
		cancel()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("server shutdown error")
		}
	}()

	addr := ":" + cfg.Server.Port
	log.WithField("addr", addr).Info("server starting")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("server error")
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
