package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server        ServerConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Database      DatabaseConfig
	Storage       StorageConfig
	Audio         AudioConfig
	Worker        WorkerConfig
	Transcription TranscriptionConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
	BaseURL  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type DatabaseConfig struct {
	Path string
}

type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UsePathStyle    bool
}

type AudioConfig struct {
	NoiseModelPath string
	DemucsModel    string
	SampleRate     int
	ChunkSeconds   int
	TimeoutSeconds int // ceiling on one transform subprocess
}

type WorkerConfig struct {
	Concurrency   int
	AudioWeight   int
	EnhanceWeight int
}

type TranscriptionConfig struct {
	ServiceURL  string
	CallbackURL string
}

func Load() (*Config, error) {
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("STORAGE_ACCESS_KEY_ID")
	readSecret("STORAGE_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.base_url", "BASE_URL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("database.path", "DATABASE_PATH")
	_ = viper.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	_ = viper.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = viper.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("storage.bucket", "STORAGE_BUCKET")
	_ = viper.BindEnv("storage.region", "STORAGE_REGION")
	_ = viper.BindEnv("storage.use_path_style", "STORAGE_USE_PATH_STYLE")
	_ = viper.BindEnv("audio.noise_model_path", "AUDIO_NOISE_MODEL_PATH")
	_ = viper.BindEnv("audio.demucs_model", "AUDIO_DEMUCS_MODEL")
	_ = viper.BindEnv("audio.sample_rate", "AUDIO_SAMPLE_RATE")
	_ = viper.BindEnv("audio.chunk_seconds", "AUDIO_CHUNK_SECONDS")
	_ = viper.BindEnv("audio.timeout_seconds", "AUDIO_TIMEOUT_SECONDS")
	_ = viper.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = viper.BindEnv("worker.audio_weight", "WORKER_AUDIO_WEIGHT")
	_ = viper.BindEnv("worker.enhance_weight", "WORKER_ENHANCE_WEIGHT")
	_ = viper.BindEnv("transcription.service_url", "TRANSCRIPTION_SERVICE_URL")
	_ = viper.BindEnv("transcription.callback_url", "TRANSCRIPTION_CALLBACK_URL")

	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.base_url", "http://localhost:8000")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("database.path", "./data/clearwave.db")
	viper.SetDefault("storage.bucket", "public-file")
	viper.SetDefault("storage.region", "auto")
	viper.SetDefault("storage.use_path_style", true)
	viper.SetDefault("audio.noise_model_path", "./models/std.rnnn")
	viper.SetDefault("audio.demucs_model", "htdemucs")
	viper.SetDefault("audio.sample_rate", 16000)
	viper.SetDefault("audio.chunk_seconds", 300)
	viper.SetDefault("audio.timeout_seconds", 1800)
	viper.SetDefault("worker.concurrency", 4)
	viper.SetDefault("worker.audio_weight", 6)
	viper.SetDefault("worker.enhance_weight", 4)
	viper.SetDefault("transcription.service_url", "http://localhost:9000")

	// Config file is optional; env vars and defaults cover everything.
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
			BaseURL:  viper.GetString("server.base_url"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
		Storage: StorageConfig{
			Endpoint:        viper.GetString("storage.endpoint"),
			AccessKeyID:     viper.GetString("storage.access_key_id"),
			SecretAccessKey: viper.GetString("storage.secret_access_key"),
			Bucket:          viper.GetString("storage.bucket"),
			Region:          viper.GetString("storage.region"),
			UsePathStyle:    viper.GetBool("storage.use_path_style"),
		},
		Audio: AudioConfig{
			NoiseModelPath: viper.GetString("audio.noise_model_path"),
			DemucsModel:    viper.GetString("audio.demucs_model"),
			SampleRate:     viper.GetInt("audio.sample_rate"),
			ChunkSeconds:   viper.GetInt("audio.chunk_seconds"),
			TimeoutSeconds: viper.GetInt("audio.timeout_seconds"),
		},
		Worker: WorkerConfig{
			Concurrency:   viper.GetInt("worker.concurrency"),
			AudioWeight:   viper.GetInt("worker.audio_weight"),
			EnhanceWeight: viper.GetInt("worker.enhance_weight"),
		},
		Transcription: TranscriptionConfig{
			ServiceURL:  viper.GetString("transcription.service_url"),
			CallbackURL: viper.GetString("transcription.callback_url"),
		},
	}

	return cfg, nil
}
