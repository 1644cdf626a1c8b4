package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	UploadDir     string
	MaxFileSize   int64
	MaxBatchFiles int

	ArtifactTTL   time.Duration
	SweepInterval time.Duration

	PreferMagick bool
	MagickBinary string
	FfmpegPath   string
	FfprobePath  string

	// Empty values disable the corresponding integration.
	DatabaseURL  string
	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string
}

func Load() *Config {
	// Missing .env is fine, the environment may be set directly.
	_ = godotenv.Load()

	return &Config{
		UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
		MaxFileSize:   getEnvInt64("MAX_FILE_SIZE", 500<<20),
		MaxBatchFiles: getEnvInt("MAX_BATCH_FILES", 50),
		ArtifactTTL:   getEnvDuration("ARTIFACT_TTL", 10*time.Minute),
		SweepInterval: getEnvDuration("SWEEP_INTERVAL", time.Minute),
		PreferMagick:  getEnvBool("PREFER_MAGICK", true),
		MagickBinary:  getEnv("MAGICK_BINARY", "convert"),
		FfmpegPath:    getEnv("FFMPEG_PATH", "ffmpeg"),
		FfprobePath:   getEnv("FFPROBE_PATH", "ffprobe"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		KafkaBrokers:  getEnvList("KAFKA_BROKERS"),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "media_conversions"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
