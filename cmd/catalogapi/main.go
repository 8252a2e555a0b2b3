// cmd/catalogapi/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"movie-catalog/internal/api"
	"movie-catalog/internal/config"
	"movie-catalog/internal/images"
	"movie-catalog/internal/store"
)

// redactDSN hides the password of a postgres URL for logging.
func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPass := strings.Cut(creds, ":")
	if !hasPass {
		return dsn
	}
	return scheme + "://" + user + ":********@" + host
}

// newImageStore picks the image backend from config. The returned handler is
// nil for remote backends.
func newImageStore(cfg config.MediaConfig, logger *slog.Logger) (images.Store, http.Handler, error) {
	switch cfg.Backend {
	case "cloudinary":
		s, err := images.NewCloudinaryStore(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		s, err := images.NewDiskStore(cfg.Dir, cfg.URLPrefix, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Handler(), nil
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Info("Connecting to catalog database",
		slog.String("driver", cfg.Database.Driver),
		slog.String("dsn", redactDSN(cfg.Database.DSN)))
	catalogStore, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		logger.Info("Closing catalog database connection...")
		if err := catalogStore.Close(); err != nil {
			logger.Error("Failed to close catalog database", slog.String("error", err.Error()))
		}
	}()

	imageStore, mediaHandler, err := newImageStore(cfg.Media, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize image storage: %w", err)
	}
	logger.Info("Image storage initialized", slog.String("backend", cfg.Media.Backend))

	handler := api.NewHandler(catalogStore, imageStore, cfg.Media.Backend, logger, cfg.Server.MaxUploadBytes)
	router := api.NewRouter(handler, api.RouterConfig{
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit:   cfg.Server.RateLimit,
		MediaPrefix: cfg.Media.URLPrefix,
		Media:       mediaHandler,
	}, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Catalog API server starting", slog.String("addr", cfg.Server.Addr), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("Catalog API shutting down...", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Catalog API server gracefully stopped.")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Catalog API exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
