package notex

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/imkrishn/notex/pkg/reconcile"
	"github.com/imkrishn/notex/pkg/session"
	"github.com/imkrishn/notex/pkg/sharing"
	"github.com/imkrishn/notex/pkg/store"
	"github.com/imkrishn/notex/pkg/store/memory"
	"github.com/imkrishn/notex/pkg/store/postgres"
	"github.com/imkrishn/notex/pkg/store/surrealdb"
	"github.com/imkrishn/notex/pkg/trash"
	"github.com/imkrishn/notex/pkg/tree"
)

// Config holds application configuration. Values come from flags and
// environment variables; see Parse.
type Config struct {
	// StoreBackend selects the persistence backend: "postgres", "surrealdb"
	// or "memory".
	StoreBackend string

	PostgresDSN string

	SurrealDBURL  string
	SurrealDBNS   string
	SurrealDBDB   string
	SurrealDBUser string
	SurrealDBPass string

	// SessionBackend selects the token store: "redis" or "memory".
	SessionBackend string
	RedisURL       string

	ServerPort string

	// ReadOnly rejects all write operations at the store layer. Used for
	// maintenance windows.
	ReadOnly bool

	// ConsoleLog switches logging from JSON to human-readable console output.
	ConsoleLog bool

	// DebounceWindow overrides the block reconciliation quiescence window.
	// Zero selects the engine default.
	DebounceWindow time.Duration
}

// App wires the store, the permission gate, the tree manager, the block
// reconciliation engine, the trash and the session store together behind the
// HTTP handlers.
type App struct {
	config   *Config
	store    store.Store
	sessions session.TokenStore
	gate     *sharing.Gate
	bus      *tree.Bus
	tree     *tree.Manager
	engine   *reconcile.Engine
	trash    *trash.Trash
	log      zerolog.Logger

	readOnly atomic.Bool
}

// New creates an application instance, connecting to the configured store
// and session backends.
func New(ctx context.Context, config *Config) (*App, error) {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if config.ConsoleLog {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	var backing store.Store
	var err error
	switch config.StoreBackend {
	case "postgres":
		backing, err = postgres.NewPostgresStore(config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		logger.Info().Msg("connected to PostgreSQL")
	case "surrealdb":
		backing, err = surrealdb.NewSurrealStore(
			config.SurrealDBURL,
			config.SurrealDBNS,
			config.SurrealDBDB,
			config.SurrealDBUser,
			config.SurrealDBPass,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
		}
		logger.Info().Msg("connected to SurrealDB")
	case "memory":
		backing = memory.NewMemoryStore()
		logger.Info().Msg("using in-memory store")
	default:
		return nil, fmt.Errorf("unknown store backend: %s", config.StoreBackend)
	}

	var sessions session.TokenStore
	switch config.SessionBackend {
	case "redis":
		sessions, err = session.NewRedisStore(ctx, config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info().Msg("connected to redis session store")
	case "memory":
		sessions = session.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown session backend: %s", config.SessionBackend)
	}

	app := &App{
		config:   config,
		sessions: sessions,
		log:      logger,
	}
	app.readOnly.Store(config.ReadOnly)
	app.store = store.NewReadOnlyStore(backing, app.IsReadOnly)

	app.gate = sharing.NewGate(app.store, logger)
	app.bus = tree.NewBus()
	app.tree = tree.NewManager(app.store, app.gate, app.bus, logger)
	app.engine = reconcile.NewEngine(app.store, logger, config.DebounceWindow)
	app.trash = trash.New(app.store, app.tree, logger)

	return app, nil
}

// Close flushes pending block writes and releases store and session
// connections.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.engine != nil {
		if err := a.engine.Close(ctx); err != nil {
			a.log.Warn().Err(err).Msg("failed to flush pending writes on close")
		}
	}
	if a.tree != nil {
		a.tree.Close()
	}
	if a.sessions != nil {
		if err := a.sessions.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close session store")
		}
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Store returns the application's store. Useful for tests.
func (a *App) Store() store.Store { return a.store }

// Tree returns the page tree manager.
func (a *App) Tree() *tree.Manager { return a.tree }

// Engine returns the block reconciliation engine.
func (a *App) Engine() *reconcile.Engine { return a.engine }

// SetReadOnly toggles the runtime read-only mode. While enabled every write
// operation fails with store.ErrReadOnly; reads continue to work.
func (a *App) SetReadOnly(readOnly bool) {
	a.readOnly.Store(readOnly)
	a.log.Info().Bool("read_only", readOnly).Msg("read-only mode changed")
}

// IsReadOnly reports whether the application currently rejects writes. The
// ReadOnlyStore wrapper calls this from request goroutines on every write
// while SetReadOnly may flip the flag concurrently, hence the atomic.
func (a *App) IsReadOnly() bool { return a.readOnly.Load() }

// getEnv retrieves an environment variable with a fallback default. Empty
// values are treated the same as unset ones.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
