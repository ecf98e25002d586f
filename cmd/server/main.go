// Command server runs the feedback-hub HTTP API.
package main

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/feedback-hub/internal/config"
	httpapi "github.com/tbourn/feedback-hub/internal/http"
	"github.com/tbourn/feedback-hub/internal/llm"
	"github.com/tbourn/feedback-hub/internal/observability"
	"github.com/tbourn/feedback-hub/internal/repo"
	"github.com/tbourn/feedback-hub/internal/services"
	"github.com/tbourn/feedback-hub/internal/storage"
	"github.com/tbourn/feedback-hub/internal/sysutil"
)

// purgeInterval is how often expired idempotency records are deleted.
const purgeInterval = 10 * time.Minute

var cfg config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

// bootstrap loads the environment and configures global logging.
func bootstrap() error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	loaded, err := config.Load()
	if err != nil {
		return err
	}
	cfg = loaded

	sysutil.SetupLogging(sysutil.LogOptions{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: cfg.OTEL.ServiceName,
	})

	gin.SetMode(cfg.GinMode)
	return nil
}

func openDB() (*gorm.DB, error) {
	return repo.OpenSQLite(cfg.DBPath, repo.Options{Tracing: cfg.OTEL.Enabled})
}

func runMigrate() error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(db)

	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	log.Info().Str("db", cfg.DBPath).Msg("schema migrated")
	return nil
}

func runServe(ctx context.Context) error {
	version := sysutil.EnvOr("APP_VERSION", "dev")

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(db)

	if skipMigrate || sysutil.EnvFlag("SKIP_MIGRATE") {
		log.Info().Msg("schema migration skipped")
	} else if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	completer := llm.New(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
	completer.Observe = observability.ObserveLLMRequest
	if cfg.LLM.APIKey == "" {
		log.Warn().Msg("LLM_API_KEY is empty; summary generation will fail upstream")
	}

	store, err := objectStore()
	if err != nil {
		return err
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, completer, store, cfg)

	go purgeIdempotency(ctx, db)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("model", completer.Model()).
			Bool("uploads", store != nil).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

// objectStore returns nil when storage is not configured, which disables uploads.
func objectStore() (services.ObjectStore, error) {
	if !cfg.Storage.Enabled() {
		log.Info().Msg("S3_ENDPOINT not set; uploads disabled")
		return nil, nil
	}
	s, err := storage.NewS3Store(storage.S3Config{
		Endpoint:      cfg.Storage.Endpoint,
		Region:        cfg.Storage.Region,
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		Bucket:        cfg.Storage.Bucket,
		UseSSL:        cfg.Storage.UseSSL,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func purgeIdempotency(ctx context.Context, db *gorm.DB) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency records")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("purged idempotency records")
			}
		}
	}
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
