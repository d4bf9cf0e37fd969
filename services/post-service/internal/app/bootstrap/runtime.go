package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/viralforge/socmed/platform/cache"
	"github.com/viralforge/socmed/platform/config"
	"github.com/viralforge/socmed/platform/database"
	"github.com/viralforge/socmed/platform/messaging"
	"github.com/viralforge/socmed/platform/runtime"
	httpadapter "github.com/viralforge/socmed/services/post-service/internal/adapters/http"
	"github.com/viralforge/socmed/services/post-service/internal/adapters/memory"
	"github.com/viralforge/socmed/services/post-service/internal/adapters/postgres"
	"github.com/viralforge/socmed/services/post-service/internal/application"
	"github.com/viralforge/socmed/services/post-service/internal/ports"
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
		posts  ports.PostRepository
		outbox ports.OutboxRepository
	)
	switch cfg.Database.Driver {
	case config.DriverMemory:
		repos := memory.NewRepositories()
		posts, outbox = repos.Posts, repos.Outbox
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
		posts, outbox = repos.Posts, repos.Outbox
	}

	store, closeStore, err := cfg.Cache.OpenStore(ctx)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeStore)
	mode, _ := cache.ParseMode(cfg.Cache.Invalidation)
	keys := cache.NewKeys(cfg.Cache.Namespace)
	gateway := cache.NewGateway(store, keys, logger)
	invalidator := cache.NewInvalidator(store, keys, cache.InvalidatorConfig{
		Mode:       mode,
		DetailKind: "post",
		Scopes:     []string{cache.ScopePosts, cache.ScopeSearch},
	}, logger)

	busCfg := cfg.Messaging.BusConfig()
	conn := messaging.NewConnectionManager(busCfg, cfg.Messaging.Dialer(), logger)
	closers = append(closers, conn.Close)
	if _, err := conn.Connect(ctx); err != nil {
		return fail(fmt.Errorf("message bus unreachable: %w", err))
	}
	if err := conn.DeclareExchange(ctx, conn.Config().Exchange, messaging.ExchangeTopic, busCfg.Durable); err != nil {
		return fail(err)
	}
	publisher := messaging.NewPublisher(conn, cfg.ServiceID, logger)
	relay := messaging.NewRelay(logger, outbox, publisher, cfg.Messaging.RelayInterval, cfg.Messaging.RelayBatchSize,
		messaging.WithMaxAttempts(cfg.Messaging.RelayMaxAttempts))

	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName: cfg.ServiceID,
			Delivery:    cfg.Messaging.Delivery,
			ListTTL:     cfg.Cache.ListTTL,
			DetailTTL:   cfg.Cache.DetailTTL,
		},
		Posts:       posts,
		Publisher:   publisher,
		Relay:       relay,
		Cache:       gateway,
		Invalidator: invalidator,
		Logger:      logger,
	})

	router := httpadapter.NewRouter(httpadapter.NewHandler(service, logger))
	server, err := runtime.NewServer(logger, cfg.HTTPPort, cfg.GRPCPort, router)
	if err != nil {
		return fail(err)
	}
	for _, c := range closers {
		server.OnShutdown(c)
	}
	if cfg.Messaging.Delivery == config.DeliveryOutbox {
		server.AddWorker("outbox-relay", relay.Run)
	}
	return &Runtime{cfg: cfg, logger: logger, server: server}, nil
}

func (r *Runtime) Run(ctx context.Context) error {
	return r.server.Run(ctx)
}
