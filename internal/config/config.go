package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDisk  = "disk"
	StorageMinIO = "minio"

	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config keeps runtime settings for the service.
type Config struct {
	HTTPAddr      string
	PublicBaseURL string
	LogLevel      string

	DatabaseDriver     string
	DatabaseURL        string
	DatabaseReplicaURL string

	JWTSecret  string
	SessionTTL time.Duration
	RedisURL   string

	StorageBackend string
	StorageDir     string
	UploadMaxBytes int64
	MinIO          MinIOConfig

	TelegramToken  string
	DigestTime     string
	DigestInterval time.Duration

	WorkspaceIdleTTL time.Duration
}

// MinIOConfig holds blob store credentials.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is applied first when present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		HTTPAddr:           env("HTTP_ADDR"),
		PublicBaseURL:      strings.TrimRight(env("PUBLIC_BASE_URL"), "/"),
		LogLevel:           env("LOG_LEVEL"),
		DatabaseDriver:     strings.ToLower(env("DATABASE_DRIVER")),
		DatabaseURL:        env("DATABASE_URL"),
		DatabaseReplicaURL: env("DATABASE_REPLICA_URL"),
		JWTSecret:          env("JWT_SECRET"),
		SessionTTL:         parseHours(env("SESSION_TTL_HOURS")),
		RedisURL:           env("REDIS_URL"),
		StorageBackend:     strings.ToLower(env("STORAGE_BACKEND")),
		StorageDir:         env("STORAGE_DIR"),
		UploadMaxBytes:     parseInt64(env("UPLOAD_MAX_BYTES")),
		MinIO: MinIOConfig{
			Endpoint:  env("MINIO_ENDPOINT"),
			AccessKey: env("MINIO_ACCESS_KEY"),
			SecretKey: env("MINIO_SECRET_KEY"),
			Bucket:    env("MINIO_BUCKET"),
			UseSSL:    parseBool(env("MINIO_USE_SSL")),
			PublicURL: strings.TrimRight(env("MINIO_PUBLIC_URL"), "/"),
		},
		TelegramToken:    env("TELEGRAM_TOKEN"),
		DigestTime:       env("DIGEST_TIME"),
		DigestInterval:   parseHours(env("DIGEST_INTERVAL_HOURS")),
		WorkspaceIdleTTL: parseHours(env("WORKSPACE_IDLE_HOURS")),
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://localhost" + cfg.HTTPAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = DriverSQLite
	}
	if cfg.DatabaseURL == "" && cfg.DatabaseDriver == DriverSQLite {
		cfg.DatabaseURL = "focusflow.db"
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = StorageDisk
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = "data/blobs"
	}
	if cfg.UploadMaxBytes == 0 {
		cfg.UploadMaxBytes = 10 << 20
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "focusflow"
	}
	if cfg.WorkspaceIdleTTL == 0 {
		cfg.WorkspaceIdleTTL = 12 * time.Hour
	}

	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.DatabaseDriver {
	case DriverSQLite:
	case DriverMySQL:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required for mysql")
		}
	default:
		return cfg, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	switch cfg.StorageBackend {
	case StorageDisk:
	case StorageMinIO:
		if cfg.MinIO.Endpoint == "" {
			return cfg, fmt.Errorf("MINIO_ENDPOINT is required for minio storage")
		}
	default:
		return cfg, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	return cfg, nil
}

// DigestEnabled reports whether Telegram digests should be scheduled.
func (c Config) DigestEnabled() bool {
	return c.TelegramToken != "" && (c.DigestTime != "" || c.DigestInterval > 0)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseHours(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}

func parseInt64(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseBool(raw string) bool {
	b, _ := strconv.ParseBool(raw)
	return b
}
