// Package app assembles the agent from configuration. Host bindings embed an
// App and drive its Agent; the serve command adds the HTTP surface.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"lattice-agent/internal/agent"
	"lattice-agent/internal/command"
	"lattice-agent/internal/config"
	"lattice-agent/internal/delivery"
	"lattice-agent/internal/event"
	"lattice-agent/internal/gate"
	"lattice-agent/internal/handler"
	"lattice-agent/internal/identity"
	"lattice-agent/internal/middleware"
	"lattice-agent/internal/notify"
	"lattice-agent/internal/origin"
	"lattice-agent/internal/repository"
	"lattice-agent/internal/router"
	"lattice-agent/internal/service"
	"lattice-agent/internal/spool"
	"lattice-agent/internal/storage"
	"lattice-agent/internal/token"
	"lattice-agent/internal/tracking"

	_ "github.com/go-sql-driver/mysql"
)

// App owns every long-lived component.
type App struct {
	Config     *config.Config
	ServerID   string
	Agent      *agent.Agent
	Dispatcher *command.Dispatcher
	Queue      *delivery.Queue
	Tokens     *token.Manager
	Notifier   *notify.HTTPNotifier
	Pruner     *service.PruneScheduler

	spool  spool.Spool
	grants repository.GrantRepository
	logger *slog.Logger
}

// Build wires all components. Probes detect optional storage integrations.
// Call Start to launch background work and Close to release resources.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, probes ...storage.Probe) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	serverID, source, err := identity.Resolve(cfg.App.ServerID, cfg.App.DataDir)
	if err != nil {
		return nil, err
	}
	a.ServerID = serverID
	logger.Info("server id resolved", "server_id", serverID, "source", source)

	loc, err := cfg.Token.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TIMEZONE: %w", err)
	}

	a.spool, err = OpenSpool(cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Queue, err = delivery.NewQueue(delivery.Config{
		ServerID:      serverID,
		BatchSize:     cfg.Delivery.BatchSize,
		BatchInterval: cfg.Delivery.BatchInterval,
		Capacity:      cfg.Delivery.BufferCapacity,
		FlushTick:     cfg.Delivery.FlushTick,
		ResendCohort:  cfg.Delivery.ResendCohort,
		Encoding:      cfg.Delivery.Compression,
		SendTimeout:   cfg.Delivery.RequestTimeout,
		Logger:        logger,
	}, delivery.NewHTTPTransport(cfg.Delivery.IngestURL, cfg.Delivery.APIKey, serverID, cfg.Delivery.RequestTimeout), a.spool)
	if err != nil {
		a.spool.Close()
		return nil, err
	}

	a.grants, err = OpenGrants(ctx, cfg, logger)
	if err != nil {
		a.spool.Close()
		return nil, err
	}

	a.Notifier = notify.NewHTTPNotifier(notify.Config{
		URL:       cfg.Notify.MisuseURL,
		APIKey:    cfg.Notify.APIKey,
		Rate:      cfg.Notify.Rate,
		Burst:     cfg.Notify.Burst,
		Timeout:   cfg.Notify.Timeout,
		QueueSize: cfg.Notify.QueueSize,
		Logger:    logger,
	})

	a.Tokens = token.NewManager(token.Config{
		Enabled:   cfg.Token.Enabled,
		Secret:    cfg.Token.Secret,
		Namespace: cfg.Token.Namespace,
		ServerID:  serverID,
		Location:  loc,
		Logger:    logger,
	}, a.grants, a.Notifier)
	if err := a.Tokens.Load(ctx); err != nil {
		a.Notifier.Close(ctx)
		a.closeStores()
		return nil, err
	}
	if cfg.Token.Enabled && !cfg.Token.CanIssue() {
		logger.Warn("token gating enabled without TOKEN_SECRET, issuance is refused")
	}

	a.Pruner = service.NewPruneScheduler(a.Tokens, service.PruneConfig{
		Interval: cfg.Token.PruneInterval,
		Logger:   logger,
	})

	registry := storage.NewRegistry(logger)
	if err := registry.Detect(probes...); err != nil {
		logger.Warn("storage integration detection failed", "error", err)
	}

	origins := origin.NewStore(nil)
	contexts := tracking.NewContextTable(cfg.Tracking.ContextWindow, nil)
	a.Dispatcher = command.NewDispatcher()
	g := gate.New(a.Tokens, a.Dispatcher, cfg.Token.CommandPrefix, logger)
	g.Register(a.Dispatcher)

	a.Agent = agent.New(agent.Deps{
		Factory:     event.NewFactory(serverID, origins, contexts, a.Queue, nil),
		Contexts:    contexts,
		Suppression: tracking.NewSuppressionTable(origins, nil),
		Storage:     registry,
		Gate:        g,
		Logger:      logger,
	})

	return a, nil
}

// Start launches the delivery loop and the prune scheduler.
func (a *App) Start() {
	a.Queue.Start()
	a.Pruner.Start()
}

// Handler builds the HTTP surface: public health endpoints plus the
// authority-protected token and admin API.
func (a *App) Handler() http.Handler {
	validator := middleware.NewAuthorityValidator(middleware.AuthorityConfig{
		Secret: a.Config.AuthoritySecret(),
		Issuer: a.Config.Authority.Issuer,
	})
	if validator == nil {
		a.logger.Warn("no authority secret configured, authority API rejects all requests")
	}

	return router.New(router.Config{
		Handler:        handler.New(a.Config.App.Name, a.Config.App.Version, a.readiness),
		TokenHandler:   handler.NewTokenHandler(a.Tokens, a.logger),
		AdminHandler:   handler.NewAdminHandler(a.Queue, a.Notifier, a.Tokens, a.ServerID, a.Config.Spool.Type),
		Prune:          handler.PruneHandler(a.Pruner),
		AuthMiddleware: middleware.NewAuthorityAuth(validator),
		Logger:         a.logger,
	})
}

func (a *App) readiness() []handler.Check {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status := "ok"
	if _, err := a.spool.Count(ctx); err != nil {
		status = "error"
	}
	return []handler.Check{{Name: "spool", Status: status}}
}

// Close stops background work, spools buffered records until ctx expires
// and releases storage.
func (a *App) Close(ctx context.Context) error {
	a.Pruner.Stop()

	var errs []error
	if err := a.Queue.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close delivery queue: %w", err))
	}
	if err := a.Notifier.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close notifier: %w", err))
	}
	if err := a.closeStores(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeStores() error {
	var errs []error
	if err := a.spool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close spool: %w", err))
	}
	if err := a.grants.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close grant store: %w", err))
	}
	return errors.Join(errs...)
}

// OpenSpool opens the configured spool backend.
func OpenSpool(cfg *config.Config, logger *slog.Logger) (spool.Spool, error) {
	switch cfg.Spool.Type {
	case "redis":
		sp, err := spool.NewRedisSpool(spool.RedisConfig{
			Addr:      cfg.Spool.RedisAddress(),
			Password:  cfg.Spool.RedisPassword,
			DB:        cfg.Spool.RedisDB,
			KeyPrefix: cfg.Spool.RedisPrefix,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis spool: %w", err)
		}
		logger.Info("redis spool initialized", "addr", cfg.Spool.RedisAddress())
		return sp, nil
	default:
		sp, err := spool.NewDirSpool(cfg.Spool.Dir, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("directory spool initialized", "dir", cfg.Spool.Dir)
		return sp, nil
	}
}

// OpenGrants opens the configured grant store.
func OpenGrants(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.GrantRepository, error) {
	switch cfg.Token.GrantStore {
	case "mysql":
		db, err := sql.Open("mysql", cfg.Token.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open mysql: %w", err)
		}
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping mysql: %w", err)
		}
		repo := repository.NewMySQLGrantRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("mysql grant store initialized", "host", cfg.Token.MySQLHost)
		return repo, nil
	case "sqlite":
		repo, err := repository.NewSQLiteGrantRepository(cfg.Token.GrantSQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		repo, err := repository.NewFileGrantRepository(cfg.Token.GrantFile, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("file grant store initialized", "path", cfg.Token.GrantFile)
		return repo, nil
	}
}
