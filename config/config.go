package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"

	UploadLocal = "local"
	UploadGCS   = "gcs"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Mongo    MongoConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Uploads  UploadConfig
}

type ServerConfig struct {
	Port            string
	Environment     string // development, production
	LogLevel        string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type StoreConfig struct {
	Driver string // mongo or postgres
}

type MongoConfig struct {
	URI      string
	Database string
}

type PostgresConfig struct {
	URI         string
	AutoMigrate bool
}

// RedisConfig is optional; an empty Addr disables the cache, change feed and
// queued cleanup.
type RedisConfig struct {
	Addr     string
	CacheTTL time.Duration
}

type UploadConfig struct {
	Driver         string // local or gcs
	Dir            string
	GCSBucket      string
	GCSCredentials string
	Cleanup        bool
	CleanupWorkers int
}

// Load reads the environment (and .env when present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "5001"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			AllowedOrigins:  getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			ShutdownTimeout: time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("RECORD_STORE", StoreMongo)),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/EmpDB_123")),
			Database: getEnv("MONGO_DB", "EmpDB_123"),
		},
		Postgres: PostgresConfig{
			URI:         getEnv("POSTGRES_URI", ""),
			AutoMigrate: getEnvAsBool("POSTGRES_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Addr:     firstEnv("REDIS_ADDR", "REDIS_URI", "REDIS_URL"),
			CacheTTL: time.Duration(getEnvAsInt("CACHE_TTL_SECONDS", 300)) * time.Second,
		},
		Uploads: UploadConfig{
			Driver:         strings.ToLower(getEnv("UPLOAD_DRIVER", UploadLocal)),
			Dir:            getEnv("UPLOAD_DIR", "uploads"),
			GCSBucket:      getEnv("GCS_BUCKET", ""),
			GCSCredentials: getEnv("GCS_CREDENTIALS_FILE", ""),
			Cleanup:        getEnvAsBool("UPLOAD_CLEANUP", false),
			CleanupWorkers: getEnvAsInt("CLEANUP_WORKERS", 2),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case StoreMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required"))
		}
	case StorePostgres:
		if c.Postgres.URI == "" {
			errs = append(errs, errors.New("POSTGRES_URI is required when RECORD_STORE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid RECORD_STORE %q (must be %q or %q)", c.Store.Driver, StoreMongo, StorePostgres))
	}

	switch c.Uploads.Driver {
	case UploadLocal:
		if c.Uploads.Dir == "" {
			errs = append(errs, errors.New("UPLOAD_DIR must not be empty"))
		}
	case UploadGCS:
		if c.Uploads.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required when UPLOAD_DRIVER=gcs"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid UPLOAD_DRIVER %q (must be %q or %q)", c.Uploads.Driver, UploadLocal, UploadGCS))
	}

	if c.Server.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
