package main

import (
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/clearwave/api/internal/client"
	"github.com/clearwave/api/internal/config"
	"github.com/clearwave/api/internal/logger"
	"github.com/clearwave/api/internal/model"
	"github.com/clearwave/api/internal/notify"
	"github.com/clearwave/api/internal/storage/sqlite"
	"github.com/clearwave/api/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	store, err := sqlite.NewStore(cfg.Database.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer store.Close()

	storageClient, err := client.NewS3Client(&cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("failed to init object storage")
	}

	transformer := worker.NewAudioTransformer(cfg.Audio)
	events := notify.NewPublisher(redisClient, log)
	processingWorker := worker.NewProcessingWorker(store, storageClient, transformer, events, log)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				model.QueueAudio:   cfg.Worker.AudioWeight,
				model.QueueEnhance: cfg.Worker.EnhanceWeight,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(model.TaskTypeProcess, processingWorker.ProcessTask)
	mux.HandleFunc(model.TaskTypeEnhance, processingWorker.ProcessTask)

	log.WithField("concurrency", cfg.Worker.Concurrency).Info("worker starting")
	if err := srv.Run(mux); err != nil {
		log.WithError(err).Fatal("worker error")
	}
}
