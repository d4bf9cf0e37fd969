package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/viralforge/socmed/platform/config"
	"github.com/viralforge/socmed/platform/database"
	"github.com/viralforge/socmed/platform/messaging"
	"github.com/viralforge/socmed/platform/runtime"
	eventadapter "github.com/viralforge/socmed/services/media-service/internal/adapters/events"
	httpadapter "github.com/viralforge/socmed/services/media-service/internal/adapters/http"
	"github.com/viralforge/socmed/services/media-service/internal/adapters/memory"
	"github.com/viralforge/socmed/services/media-service/internal/adapters/postgres"
	"github.com/viralforge/socmed/services/media-service/internal/adapters/storage"
	"github.com/viralforge/socmed/services/media-service/internal/application"
	"github.com/viralforge/socmed/services/media-service/internal/ports"
)

type Runtime struct {
	cfg    Config
	logger *slog.Logger
	server *runtime.Server
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := runtime.NewLogger(cfg.ServiceID, cfg.LogLevel)

	var closers []func() error
	fail := func(err error) (*Runtime, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	var (
		media      ports.MediaRepository
		eventDedup ports.EventDedupRepository
	)
	switch cfg.Database.Driver {
	case config.DriverMemory:
		repos := memory.NewRepositories()
		media, eventDedup = repos.Media, repos.EventDedup
	default:
		if err := postgres.RunMigrations(cfg.Database.URL); err != nil {
			return fail(err)
		}
		db, err := database.Connect(ctx, cfg.Database.URL, database.Options{MaxConns: cfg.Database.MaxConns})
		if err != nil {
			return fail(err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fail(err)
		}
		closers = append(closers, sqlDB.Close)
		repos := postgres.NewRepositories(db)
		media, eventDedup = repos.Media, repos.EventDedup
	}

	var objects ports.ObjectStorage
	if cfg.StorageDriver == StorageMemory {
		objects = memory.NewObjectStorage()
	} else {
		fsys, err := storage.NewFilesystem(cfg.StorageRoot)
		if err != nil {
			return fail(err)
		}
		objects = fsys
	}

	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:   cfg.ServiceID,
			EventDedupTTL: cfg.EventDedupTTL,
		},
		Media:      media,
		Storage:    objects,
		EventDedup: eventDedup,
		Logger:     logger,
	})

	busCfg := cfg.Messaging.BusConfig()
	conn := messaging.NewConnectionManager(busCfg, cfg.Messaging.Dialer(), logger)
	closers = append(closers, conn.Close)
	if _, err := conn.Connect(ctx); err != nil {
		return fail(fmt.Errorf("message bus unreachable: %w", err))
	}
	if err := conn.DeclareExchange(ctx, conn.Config().Exchange, messaging.ExchangeTopic, busCfg.Durable); err != nil {
		return fail(err)
	}
	consumer := messaging.NewConsumer(conn, cfg.ServiceID, messaging.NewBusDeadLetterSink(conn, logger), logger)
	if err := eventadapter.NewHandlers(service).Register(consumer, cfg.ConsumerLanes); err != nil {
		return fail(err)
	}

	router := httpadapter.NewRouter(httpadapter.NewHandler(service, logger))
	server, err := runtime.NewServer(logger, cfg.HTTPPort, cfg.GRPCPort, router)
	if err != nil {
		return fail(err)
	}
	for _, c := range closers {
		server.OnShutdown(c)
	}
	server.AddWorker("consumer", consumer.Run)
	server.AddWorker("janitor", eventadapter.NewJanitor(logger, service, cfg.JanitorInterval).Run)
	return &Runtime{cfg: cfg, logger: logger, server: server}, nil
}

func (r *Runtime) Run(ctx context.Context) error {
	return r.server.Run(ctx)
}
