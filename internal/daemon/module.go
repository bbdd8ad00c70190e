package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/chatflow/internal/backend"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/config"
	"github.com/matheus3301/chatflow/internal/lock"
	"github.com/matheus3301/chatflow/internal/logging"
	"github.com/matheus3301/chatflow/internal/notify"
	"github.com/matheus3301/chatflow/internal/outbox"
	"github.com/matheus3301/chatflow/internal/presence"
	"github.com/matheus3301/chatflow/internal/sched"
	"github.com/matheus3301/chatflow/internal/session"
	"github.com/matheus3301/chatflow/internal/state"
	"github.com/matheus3301/chatflow/internal/status"
	"github.com/matheus3301/chatflow/internal/store"
	intsync "github.com/matheus3301/chatflow/internal/sync"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideBackendClient,
			provideScheduler,
			provideThread,
			provideConversationList,
			provideSessionStore,
			providePresence,
			provideListSynchronizer,
			provideThreadSynchronizer,
			provideSender,
			provideNotifier,
			NewEngine,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		return config.Default()
	}
	return cfg
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.CacheDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideBackendClient(cfg *config.Config) *backend.Client {
	return backend.NewClient(cfg.Backend.BaseURL, backend.WithTimeout(cfg.RequestTimeout()))
}

func provideScheduler(logger *zap.Logger) *sched.Scheduler {
	return sched.New(logger)
}

func provideThread() *state.Thread {
	return state.NewThread()
}

func provideConversationList() *state.ConversationList {
	return state.NewConversationList()
}

func provideSessionStore(db *store.DB, api *backend.Client, b *bus.Bus, logger *zap.Logger) *session.Store {
	return session.NewStore(db, api, b, logger)
}

func providePresence(api *backend.Client, sch *sched.Scheduler, machine *status.Machine, b *bus.Bus, logger *zap.Logger, cfg *config.Config) *presence.Manager {
	return presence.NewManager(api, sch, machine, b, logger, cfg.HeartbeatInterval())
}

func provideListSynchronizer(api *backend.Client, list *state.ConversationList, thread *state.Thread, db *store.DB, machine *status.Machine, sch *sched.Scheduler, b *bus.Bus, logger *zap.Logger, cfg *config.Config) *intsync.ListSynchronizer {
	return intsync.NewListSynchronizer(api, list, thread, db, machine, sch, b, logger, cfg.ConversationPollInterval())
}

func provideThreadSynchronizer(api *backend.Client, thread *state.Thread, lists *intsync.ListSynchronizer, sessions *session.Store, machine *status.Machine, sch *sched.Scheduler, b *bus.Bus, logger *zap.Logger, cfg *config.Config) *intsync.ThreadSynchronizer {
	return intsync.NewThreadSynchronizer(api, thread, lists, sessions, machine, sch, b, logger, cfg.ThreadPollInterval())
}

func provideSender(api *backend.Client, thread *state.Thread, list *state.ConversationList, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(api, thread, list, machine, b, logger)
}

func provideNotifier(b *bus.Bus, logger *zap.Logger, cfg *config.Config) *notify.Scheduler {
	return notify.New(b, logger, cfg.NotificationTTL())
}

func registerLifecycle(lc fx.Lifecycle, engine *Engine, lk *lock.Lock, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			engine.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			engine.Stop()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
