// Package app wires every collaborator together into a running bot:
// config, the trigger engine, the chat registry, the spam ledger and
// dispatcher, the worker pool, the webhook listener, and the ops HTTP
// surface. It owns the process lifecycle — start, the hourly admin
// refresh tick, reload, and graceful shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hkarel/telebot/internal/adminhttp"
	"github.com/hkarel/telebot/internal/admincache"
	"github.com/hkarel/telebot/internal/audit"
	"github.com/hkarel/telebot/internal/config"
	"github.com/hkarel/telebot/internal/dispatcher"
	"github.com/hkarel/telebot/internal/eventbus"
	"github.com/hkarel/telebot/internal/ingress"
	"github.com/hkarel/telebot/internal/mediagroup"
	"github.com/hkarel/telebot/internal/registry"
	"github.com/hkarel/telebot/internal/tgapi"
	"github.com/hkarel/telebot/internal/worker"
)

// App is a fully wired bot instance.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	reloadMu sync.Mutex

	registry *registry.Registry
	triggers *worker.TriggerSet
	groups   *mediagroup.Tracker
	state    *config.State

	client     *tgapi.Client
	dispatcher *dispatcher.Dispatcher
	pool       *worker.Pool

	webhook *ingress.Server
	admin   *adminhttp.Server

	bus    *eventbus.Bus
	sink   *audit.Sink
	mirror *admincache.Mirror
}

// New loads every configured data file and connects every optional
// collaborator, returning a fully wired App ready to Run.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry.New(),
		groups:   mediagroup.NewTracker(logger),
		client:   tgapi.NewClient(cfg.Bot.ID),
	}

	if err := a.loadConfigFiles(); err != nil {
		return nil, err
	}

	var auditSink AuditSink = nil
	if cfg.Audit.Enabled {
		if err := runAuditMigrations(cfg.Audit.URL, logger); err != nil {
			return nil, err
		}
		sink, err := auditNew(ctx, cfg.Audit.URL, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting audit sink: %w", err)
		}
		a.sink = sink
		auditSink = sink
	}

	var events EventPublisher = nil
	if cfg.NATS.Enabled {
		bus, err := eventbus.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting event bus: %w", err)
		}
		a.bus = bus
		events = bus
	}

	if cfg.Cache.Enabled {
		mirror, err := admincache.Connect(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting admin cache: %w", err)
		}
		a.mirror = mirror
	}

	a.dispatcher = dispatcher.New(a.client, a.registry, a.state, logger, auditSink, events)
	a.pool = worker.New(cfg.Bot.WorkerCount, cfg.Bot.QueueSize, a.registry, a.groups, a.dispatcher, logger)

	webhook, err := ingress.New(cfg.Webhook.Listen, cfg.Webhook.Path, cfg.Webhook.CertFile, cfg.Webhook.KeyFile, a.pool, logger)
	if err != nil {
		return nil, fmt.Errorf("building webhook listener: %w", err)
	}
	a.webhook = webhook

	a.admin = adminhttp.New(cfg.Admin.Listen, a.stats, a.Reload, logger)

	return a, nil
}

// AuditSink and EventPublisher alias the dispatcher's collaborator
// interfaces so this package can pass nil through a typed variable
// without importing concrete constructors for every optional backend.
type AuditSink = dispatcher.AuditSink
type EventPublisher = dispatcher.EventPublisher

// auditNew and runAuditMigrations are indirected through package-level
// vars so tests can stub out the Postgres dependency; production always
// uses audit.New and audit.MigrateUp.
var (
	auditNew            = audit.New
	runAuditMigrations  = audit.MigrateUp
)

func (a *App) loadConfigFiles() error {
	triggers, err := config.LoadTriggers(a.cfg.Bot.TriggersFile, a.logger)
	if err != nil {
		return fmt.Errorf("loading triggers: %w", err)
	}
	chats, err := config.LoadChats(a.cfg.Bot.ChatsFile, a.logger)
	if err != nil {
		return fmt.Errorf("loading chats: %w", err)
	}
	state, err := config.LoadState(a.cfg.Bot.StateFile)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}

	// The dispatcher holds the State built on the first load, so a reload
	// refreshes that same State in place rather than replacing the pointer.
	if a.state == nil {
		a.state = state
	} else if err := a.state.Reload(); err != nil {
		return fmt.Errorf("reloading state: %w", err)
	}
	if a.triggers == nil {
		a.triggers = worker.NewTriggerSet(triggers)
	} else {
		a.triggers.Store(triggers)
	}
	a.registry.Replace(chats, triggers, a.logger)

	a.logger.Info("configuration files loaded",
		slog.Int("triggers", len(triggers)),
		slog.Int("chats", len(chats)),
		slog.Int64("parse_errors", config.ConfigParceErrors()),
	)
	return nil
}

// Reload re-reads triggers.yaml, chats.yaml, and state.yaml from disk and
// swaps them into the running bot. Only one reload runs at a time.
func (a *App) Reload(ctx context.Context) error {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()
	return a.loadConfigFiles()
}

func (a *App) stats() adminhttp.Stats {
	return adminhttp.Stats{
		QueueLength:       a.pool.QueueLen(),
		MediaGroupCount:   a.groups.Len(),
		ConfigParceErrors: config.ConfigParceErrors(),
		TriggerCount:      len(a.triggers.Load()),
		ChatCount:         a.registry.Len(),
	}
}

// Run starts the worker pool, the webhook listener, the admin HTTP
// surface, and the hourly admin-refresh tick, and blocks until ctx is
// canceled or a listener fails, at which point everything is shut down
// gracefully. A listener failure is returned as Run's error.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.pool.Start(runCtx)

	errCh := make(chan error, 2)
	go func() {
		if err := a.webhook.Start(); err != nil {
			errCh <- fmt.Errorf("webhook listener: %w", err)
		}
	}()
	go func() {
		if err := a.admin.Start(); err != nil {
			errCh <- fmt.Errorf("admin listener: %w", err)
		}
	}()

	go a.refreshAdminsLoop(runCtx)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		a.logger.Error("server error, shutting down", slog.String("error", err.Error()))
		runErr = err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := a.webhook.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("webhook shutdown error", slog.String("error", err.Error()))
	}
	if err := a.admin.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("admin shutdown error", slog.String("error", err.Error()))
	}

	cancel()
	a.pool.Wait()

	a.Close()
	return runErr
}

// Close releases every optional collaborator's connection.
func (a *App) Close() {
	if a.bus != nil {
		a.bus.Close()
	}
	if a.sink != nil {
		a.sink.Close()
	}
	if a.mirror != nil {
		if err := a.mirror.Close(); err != nil {
			a.logger.Error("closing admin cache connection failed", slog.String("error", err.Error()))
		}
	}
}

func (a *App) refreshAdminsLoop(ctx context.Context) {
	ticker := time.NewTicker(config.AdminRefreshInterval)
	defer ticker.Stop()

	a.refreshAllAdmins(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.refreshAllAdmins(ctx)
		}
	}
}

func (a *App) refreshAllAdmins(ctx context.Context) {
	for _, chat := range a.registry.Snapshot() {
		if err := a.dispatcher.RefreshAdmins(ctx, chat.ID); err != nil {
			a.logger.Error("refreshing admins failed",
				slog.Int64("chat_id", chat.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if a.mirror != nil {
			if err := a.mirror.SetAdmins(ctx, chat.ID, chat.AdminIDs(), chat.OwnerIDs()); err != nil {
				a.logger.Error("mirroring admins to cache failed",
					slog.Int64("chat_id", chat.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// SetupLogger builds a slog.Logger for the given level/format, matching
// the config file's logging section.
func SetupLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
