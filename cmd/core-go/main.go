package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"sensormap/core-go/internal/config"
	"sensormap/core-go/internal/db"
	"sensormap/core-go/internal/filemeta"
	"sensormap/core-go/internal/httpapi"
	"sensormap/core-go/internal/metrics"
	"sensormap/core-go/internal/validate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		l.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := httpapi.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *db.Pool
	if cfg.DatabaseURL != "" {
		p, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()
		pool = p
	}

	m := metrics.New()
	client := &http.Client{Timeout: cfg.PreviewTimeout}

	deps := httpapi.Deps{
		Metrics:   m,
		Validator: validate.New(logger, schemaProvider(cfg, client, logger), m),
	}
	if cfg.PreviewBaseURL != "" {
		deps.Files = filemeta.New(logger, filemeta.NewHTTPPreviewer(client, cfg.PreviewBaseURL), m, filemeta.Options{
			Concurrency: cfg.PreviewConcurrency,
		})
	}

	h := httpapi.NewHandler(logger, pool, deps)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("core-go listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
}

func schemaProvider(cfg config.Config, client *http.Client, logger zerolog.Logger) validate.SchemaProvider {
	switch {
	case cfg.SchemaURL != "":
		logger.Info().Str("url", cfg.SchemaURL).Msg("using remote data map schema")
		return validate.NewHTTPSchemaProvider(client, cfg.SchemaURL, cfg.SchemaCacheTTL)
	case cfg.SchemaPath != "":
		logger.Info().Str("path", cfg.SchemaPath).Msg("using data map schema file")
		return validate.FileSchemaProvider{Path: cfg.SchemaPath}
	default:
		return &validate.StaticSchemaProvider{}
	}
}
