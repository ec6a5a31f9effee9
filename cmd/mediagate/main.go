package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"mediagate/internal/media"
	"mediagate/internal/media/adapter/fsblob"
	"mediagate/internal/media/adapter/inmem"
	"mediagate/internal/media/adapter/postgres"
	"mediagate/internal/media/adapter/s3blob"
	"mediagate/internal/media/adapter/tokenauth"
	"mediagate/internal/media/middleware"
	"mediagate/internal/platform/config"
	"mediagate/internal/platform/server"
	"mediagate/internal/platform/telemetry"
)

func main() {
	cfg := config.Load()

	// Logging
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	shutdown, err := telemetry.Setup(context.Background(), "mediagate")
	if err != nil {
		slog.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}

	metrics, err := telemetry.NewDeliveryMetrics()
	if err != nil {
		slog.Error("metrics initialization failed", "error", err)
		os.Exit(1)
	}

	// Identity validator
	validator := tokenauth.NewValidator(tokenauth.NewJWKSClient(cfg.JWKSEndpoint, 5*time.Minute))

	// Resource metadata store
	var store media.ResourceStore
	switch cfg.MetadataStore {
	case "postgres":
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("connecting to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
	default:
		store = inmem.NewStore()
	}

	// Blob store
	var blobs media.BlobStore
	switch cfg.BlobStore {
	case "s3":
		s3, err := s3blob.New(s3blob.Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			slog.Error("creating s3 blob store", "error", err)
			os.Exit(1)
		}
		blobs = s3
	default:
		blobs = fsblob.New(cfg.MediaRoot)
	}

	// Rate limiter
	rl := inmem.NewRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst, time.Now)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()

	delivery := media.NewHandler(media.Deps{
		Identity:         validator,
		Store:            store,
		Blobs:            blobs,
		Metrics:          metrics,
		ValidatorTimeout: cfg.ValidatorTimeout,
	})

	mux := http.NewServeMux()
	mux.Handle("GET /media/{path...}", delivery)
	mux.Handle("GET /metrics", telemetry.MetricsHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": "mediagate"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	var handler http.Handler = middleware.Chain(
		mux,
		middleware.Metrics(metrics),
		middleware.RequestID,
		middleware.Logging(logger),
		middleware.Recovery,
		middleware.RateLimit(rl, metrics),
	)
	if len(cfg.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead},
			AllowedHeaders: []string{"Authorization", "Range"},
		}).Handler(handler)
	}

	srv := server.New(cfg.Addr, handler)

	slog.Info("mediagate starting",
		"addr", cfg.Addr,
		"jwks_endpoint", cfg.JWKSEndpoint,
		"metadata_store", cfg.MetadataStore,
		"blob_store", cfg.BlobStore,
	)

	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
	}

	if err := shutdown(context.Background()); err != nil {
		slog.Error("telemetry shutdown error", "error", err)
	}
}
