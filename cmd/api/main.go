package main

import (
	"audio-upload/internal/adapters/eventbroker/nats"
	"audio-upload/internal/adapters/eventbroker/redis"
	"audio-upload/internal/adapters/handlers/http/chi"
	uploadhandler "audio-upload/internal/adapters/handlers/http/chi/v1/upload"
	"audio-upload/internal/adapters/repository/boltdb"
	"audio-upload/internal/adapters/repository/postgres"
	"audio-upload/internal/adapters/storage/filesystem"
	"audio-upload/internal/adapters/storage/minio"
	"audio-upload/internal/config"
	"audio-upload/internal/core/port"
	"audio-upload/internal/core/service/cleanup"
	"audio-upload/internal/core/service/notify"
	"audio-upload/internal/core/service/upload"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

func main() {

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	//session store
	sessions, db, err := initSessionStore(cfg)
	if err != nil {
		logger.Error("failed to init session store", "driver", cfg.SessionStore.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			logger.Error("failed to close session store", "error", err)
		}
		if db == nil {
			return
		}
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()
	logger.Info("session store ready", "driver", cfg.SessionStore.Driver)

	//storage
	chunks, artifacts, err := initStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to init storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	logger.Info("storage ready", "driver", cfg.Storage.Driver)

	//event broker
	broker, err := nats.NewBroker(ctx, cfg.NATS, logger)
	if err != nil {
		logger.Error("failed to init NATS broker", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := broker.Close(); err != nil {
			logger.Error("failed to close NATS broker", "error", err)
		}
	}()

	sink, err := initNotifier(ctx, cfg, broker, logger)
	if err != nil {
		logger.Error("failed to init notifier", "driver", cfg.Notifier.Driver, "error", err)
		os.Exit(1)
	}
	notifier := notify.NewAsyncNotifier(sink, cfg.Notifier.QueueSize, logger)

	uploadService := upload.NewUploadService(sessions, chunks, artifacts, notifier, broker, cfg.Upload, logger)
	cleanupService := cleanup.NewCleanupService(sessions, chunks, artifacts, notifier, cfg.Upload, logger)

	//http
	uploadHandler := uploadhandler.NewUploadHandlerV1(uploadService, logger)

	router := chi.NewRouter(logger, uploadHandler, chi.RouterOptions{
		Env:            cfg.Env.Env,
		MaxChunkSize:   cfg.Upload.MaxChunkSize,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		servErr := server.ListenAndServe()
		if servErr != nil && !errors.Is(servErr, http.ErrServerClosed) {
			logger.Error("failed to start server", "error", servErr)
			stop()
		}
	}()

	// init sweep task
	wg.Add(1)
	go func() {
		defer wg.Done()
		initSweepTask(ctx, cleanupService, cfg.Upload.SweepEvery, logger)
	}()

	//wait for context cancel
	<-ctx.Done()
	logger.Info("gracefully shutting down app")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	} else {
		logger.Info("server gracefully shutdown complete")
	}

	wg.Wait()

	if err := notifier.Close(); err != nil {
		logger.Error("failed to close notifier", "error", err)
	}
	logger.Info("app shutdown complete", "dropped_events", notifier.Dropped())

}

// initSessionStore returns the *sql.DB backing the store when there is one, main owns it
func initSessionStore(cfg *config.Config) (port.SessionStore, *sql.DB, error) {
	switch cfg.SessionStore.Driver {
	case "bolt":
		store, err := boltdb.NewSessionStore(cfg.SessionStore.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case "postgres":
		db, err := initDB(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewSQLSessionStore(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store driver %q", cfg.SessionStore.Driver)
	}
}

func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (port.ChunkStore, port.ArtifactStore, error) {
	switch cfg.Storage.Driver {
	case "fs":
		chunks, err := filesystem.NewChunkStore(cfg.Storage.ChunkRoot, logger)
		if err != nil {
			return nil, nil, err
		}
		artifacts, err := filesystem.NewArtifactStore(cfg.Storage.ArtifactRoot)
		if err != nil {
			return nil, nil, err
		}
		return chunks, artifacts, nil
	case "minio":
		adapter, err := minio.NewAdapter(ctx, cfg.Minio, logger)
		if err != nil {
			return nil, nil, err
		}
		return adapter, adapter, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func initNotifier(ctx context.Context, cfg *config.Config, broker *nats.Broker, logger *slog.Logger) (port.ProgressNotifier, error) {
	switch cfg.Notifier.Driver {
	case "none", "log":
		return notify.NewLogNotifier(logger), nil
	case "nats":
		return nopCloser{broker}, nil
	case "redis":
		return redis.NewNotifier(ctx, cfg.Redis, logger)
	default:
		return nil, fmt.Errorf("unknown notifier driver %q", cfg.Notifier.Driver)
	}
}

// nopCloser leaves the broker open for job submission, main closes it last
type nopCloser struct {
	*nats.Broker
}

func (nopCloser) Close() error {
	return nil
}

func initDB(cfg config.DatabaseConfig) (*sql.DB, error) {

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenCons)
	db.SetMaxIdleConns(cfg.MaxIdleCons)
	db.SetConnMaxLifetime(cfg.ConMaxLifeTime)

	return db, nil
}

func initSweepTask(ctx context.Context, service port.CleanupService, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	logger.Info("sweep task initialized", "interval", every)

	for {
		select {
		case <-ticker.C:
			logger.Debug("sweep task starting")
			if err := service.CleanupExpiredSessions(ctx, time.Now()); err != nil {
				logger.Error("failed to sweep expired sessions", "error", err)
			}
		case <-ctx.Done():
			logger.Info("sweep task stopped")
			return
		}
	}

}
