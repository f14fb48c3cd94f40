package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"eldercare/backend/internal/config"
	"eldercare/backend/internal/handler"
	"eldercare/backend/internal/pkg/keygen"
	"eldercare/backend/internal/pkg/storage"
	"eldercare/backend/internal/pkg/urlsign"
	"eldercare/backend/internal/repository"
	"eldercare/backend/internal/service"
)

// App holds the wired stores and services for one process.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Blobs        storage.BlobStore
	Docs         repository.DocumentStore
	Ingestion    service.IngestionService
	Environments service.EnvironmentService
	Users        service.UserService
	Server       *Server
}

// New opens the configured blob and document stores and wires the handlers.
// Close releases the stores.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	blobs, local, err := newBlobStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	docs, err := newDocumentStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	envRepo := repository.NewEnvironmentRepository(docs)
	userRepo := repository.NewUserRepository(docs)
	keys := keygen.NewGenerator(keygen.DefaultPrefix)

	ingestion := service.NewIngestionService(blobs, envRepo, keys, logger, service.IngestionOptions{
		URLExpiry: cfg.BlobURLExpiry,
		Timeout:   cfg.IngestTimeout,
	})
	environments := service.NewEnvironmentService(envRepo, blobs, keys.Prefix)
	users := service.NewUserService(userRepo)

	registrars := []routeRegistrar{
		handler.NewEnvironmentHandler(ingestion, environments, cfg.MaxUploadBytes, logger),
		handler.NewUserHandler(users, logger),
	}
	if local != nil {
		registrars = append(registrars, handler.NewFileHandler(local, logger))
	}

	server := NewServer(logger, cfg.CORSAllowedOrigins, registrars...)
	if cfg.ShutdownTimeout > 0 {
		server.shutdownTimeout = cfg.ShutdownTimeout
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		Blobs:        blobs,
		Docs:         docs,
		Ingestion:    ingestion,
		Environments: environments,
		Users:        users,
		Server:       server,
	}, nil
}

func (a *App) Close() error {
	return a.Docs.Close()
}

// Run serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) (err error) {
	a, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	return a.Server.Run(ctx, cfg.ServerPort)
}

func newBlobStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.BlobStore, *storage.LocalStore, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendS3:
		store, err := storage.NewS3Store(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		// Fail at startup on a wrong bucket or endpoint, not on the first upload.
		if err := store.HealthCheck(ctx); err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case config.BlobBackendLocal:
		signer, err := urlsign.NewSigner(cfg.BlobSigningKey)
		if err != nil {
			return nil, nil, err
		}
		store, err := storage.NewLocalStore(cfg.BlobLocalDir, cfg.PublicBaseURL, signer)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("local blob store initialized", "dir", cfg.BlobLocalDir)
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown BLOB_BACKEND %q", cfg.BlobBackend)
	}
}

func newDocumentStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.DocumentStore, error) {
	switch cfg.DocBackend {
	case config.DocBackendPostgres:
		db, err := repository.NewDB(cfg.DSN())
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		if err := repository.Migrate(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, err
		}
		logger.Info("postgres document store initialized", "host", cfg.Host, "db", cfg.Name)
		return repository.NewPostgresStore(db), nil
	case config.DocBackendRedis:
		rdb, err := repository.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		logger.Info("redis document store initialized", "addr", cfg.RedisAddr)
		return repository.NewRedisStore(rdb), nil
	case config.DocBackendBadger:
		store, err := repository.OpenBadgerStore(cfg.BadgerDir, false, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("badger document store initialized", "dir", cfg.BadgerDir)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown DOC_BACKEND %q", cfg.DocBackend)
	}
}
