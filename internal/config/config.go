package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int `validate:"min=0"`
	MaxIdleConns       int `validate:"min=0"`
	ConnMaxLifetimeSec int `validate:"min=0"`
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// BlobConfig selects and tunes the Blob Store backend.
type BlobConfig struct {
	Backend      string `validate:"required,oneof=local database s3 gcs"`
	LocalRoot    string `validate:"required_if=Backend local"`
	ChunkSize    int    `validate:"min=1024"`
	CacheEntries int    `validate:"min=0"`
	CacheMaxSize int64  `validate:"min=0"`
	GCSBucket    string `validate:"required_if=Backend gcs"`
}

// ShareConfig holds share token and session policy.
type ShareConfig struct {
	TokenSecret      string `validate:"required,min=16"`
	TTLSec           int    `validate:"min=1"`
	SingleUse        bool
	SweepIntervalSec int `validate:"min=0"`
}

// TTL returns the share session lifetime.
func (s ShareConfig) TTL() time.Duration {
	return time.Duration(s.TTLSec) * time.Second
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Env            string `validate:"oneof=dev development prod production test"`
	Port           string `validate:"required"`
	PublicBaseURL  string `validate:"required,url"`
	LogLevel       string `validate:"oneof=debug info warn error"`
	AuthJWTSecret  string `validate:"required,min=16"`
	MaxUploadBytes int    `validate:"min=1"`
	ProfileTable   string `validate:"required"`
	Database       DatabaseConfig
	MinIO          MinIOConfig
	Blob           BlobConfig
	Share          ShareConfig
}

// IsProduction reports whether the app runs with production defaults.
func (c *AppConfig) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		Env:            getEnv("APP_ENV", "dev"),
		Port:           getEnv("PORT", "8080"),
		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AuthJWTSecret:  getEnv("AUTH_JWT_SECRET", ""),
		MaxUploadBytes: getEnvInt("MAX_UPLOAD_BYTES", 20<<20),
		ProfileTable:   getEnv("PROFILE_TABLE", "patients"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Blob: BlobConfig{
			Backend:      getEnv("BLOB_BACKEND", "local"),
			LocalRoot:    getEnv("BLOB_LOCAL_ROOT", "./data/blobs"),
			ChunkSize:    getEnvInt("BLOB_CHUNK_SIZE", 255*1024),
			CacheEntries: getEnvInt("BLOB_CACHE_ENTRIES", 0),
			CacheMaxSize: int64(getEnvInt("BLOB_CACHE_MAX_BYTES", 1<<20)),
			GCSBucket:    getEnv("GCS_BUCKET", ""),
		},
		Share: ShareConfig{
			TokenSecret:      getEnv("SHARE_TOKEN_SECRET", ""),
			TTLSec:           getEnvInt("SHARE_TTL_SEC", 600),
			SingleUse:        getEnvBool("SHARE_SINGLE_USE", false),
			SweepIntervalSec: getEnvInt("SHARE_SWEEP_INTERVAL_SEC", 60),
		},
	}
}

// Validate checks the loaded values. Startup must not continue on error.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Blob.Backend == "s3" && (c.MinIO.Endpoint == "" || c.MinIO.Bucket == "") {
		return fmt.Errorf("invalid configuration: s3 backend requires MINIO_ENDPOINT and MINIO_BUCKET")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
