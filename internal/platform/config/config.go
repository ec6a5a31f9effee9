package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the media delivery service.
type Config struct {
	Addr         string
	LogLevel     string
	JWKSEndpoint string
	CORSOrigins  []string

	// ValidatorTimeout bounds one identity validator call.
	ValidatorTimeout time.Duration

	// MetadataStore selects the resource store backend: "memory" or "postgres".
	MetadataStore string
	DatabaseURL   string

	// BlobStore selects the blob backend: "fs" or "s3".
	BlobStore string
	MediaRoot string
	S3        S3Config

	RateLimit RateLimitConfig
}

// S3Config holds object store settings, used when BlobStore is "s3".
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// RateLimitConfig holds token bucket parameters for per-IP rate limiting.
type RateLimitConfig struct {
	Rate  float64
	Burst int
}

// Load reads configuration from the environment, falling back to
// defaults. A .env file in the working directory is loaded first when
// present.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("loading .env file", "error", err)
	}

	return Config{
		Addr:             envOr("MEDIAGATE_ADDR", ":8080"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		JWKSEndpoint:     envOr("JWKS_ENDPOINT", "http://localhost:8081/.well-known/jwks.json"),
		CORSOrigins:      splitList(envOr("CORS_ORIGINS", "")),
		ValidatorTimeout: time.Duration(envInt("VALIDATOR_TIMEOUT_MS", 2000)) * time.Millisecond,
		MetadataStore:    envOr("METADATA_STORE", "memory"),
		DatabaseURL:      envOr("DATABASE_URL", ""),
		BlobStore:        envOr("BLOB_STORE", "fs"),
		MediaRoot:        envOr("MEDIA_ROOT", "./media"),
		S3: S3Config{
			Endpoint:  envOr("S3_ENDPOINT", ""),
			Region:    envOr("S3_REGION", ""),
			Bucket:    envOr("S3_BUCKET", ""),
			AccessKey: envOr("S3_ACCESS_KEY", ""),
			SecretKey: envOr("S3_SECRET_KEY", ""),
			UseSSL:    envOr("S3_USE_SSL", "false") == "true",
		},
		RateLimit: RateLimitConfig{
			// Seeking players burst ranged requests; keep the burst roomy.
			Rate:  envFloat("RATE_LIMIT_RATE", 50),
			Burst: envInt("RATE_LIMIT_BURST", 100),
		},
	}
}

// Validate checks cross-field consistency before the service starts.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.JWKSEndpoint, validation.Required),
		validation.Field(&c.MetadataStore, validation.In("memory", "postgres")),
		validation.Field(&c.DatabaseURL,
			validation.Required.When(c.MetadataStore == "postgres").
				Error("DATABASE_URL is required when METADATA_STORE is postgres")),
		validation.Field(&c.BlobStore, validation.In("fs", "s3")),
		validation.Field(&c.MediaRoot,
			validation.Required.When(c.BlobStore == "fs").
				Error("MEDIA_ROOT is required when BLOB_STORE is fs")),
		validation.Field(&c.S3, validation.By(func(any) error {
			if c.BlobStore != "s3" {
				return nil
			}
			return validation.ValidateStruct(&c.S3,
				validation.Field(&c.S3.Endpoint, validation.Required),
				validation.Field(&c.S3.Bucket, validation.Required),
				validation.Field(&c.S3.AccessKey, validation.Required),
				validation.Field(&c.S3.SecretKey, validation.Required),
			)
		})),
	)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Warn("invalid float env var, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}
		return f
	}
	return fallback
}
