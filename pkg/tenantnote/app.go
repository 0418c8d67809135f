package tenantnote

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/surrealdb/tenantnote/pkg/auth"
	"github.com/surrealdb/tenantnote/pkg/metrics"
	"github.com/surrealdb/tenantnote/pkg/service"
	"github.com/surrealdb/tenantnote/pkg/store"
	"github.com/surrealdb/tenantnote/pkg/store/memory"
	"github.com/surrealdb/tenantnote/pkg/store/pgxstore"
	"github.com/surrealdb/tenantnote/pkg/store/postgres"
	surrealstore "github.com/surrealdb/tenantnote/pkg/store/surrealdb"
)

// App holds the application state: the wrapped store, the token codec, and
// the services the HTTP handlers call.
type App struct {
	config   *Config
	log      zerolog.Logger
	store    *store.ReadOnlyStore
	readOnly atomic.Bool

	codec    *auth.Codec
	guard    *auth.Guard
	metrics  *metrics.Metrics
	notes    *service.NoteService
	plans    *service.PlanService
	sessions *service.SessionService
}

// New connects to the configured store backend and builds an App on it.
func New(ctx context.Context, config *Config, log zerolog.Logger) (*App, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s, err := openStore(ctx, config, log)
	if err != nil {
		return nil, err
	}

	app, err := NewWithStore(config, s, log)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return app, nil
}

// NewWithStore builds an App on an already opened store. The App takes
// ownership of s and closes it in Close.
func NewWithStore(config *Config, s store.Store, log zerolog.Logger) (*App, error) {
	codec, err := auth.NewCodec([]byte(config.Auth.Secret), config.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token codec: %w", err)
	}

	app := &App{
		config:  config,
		log:     log,
		codec:   codec,
		guard:   auth.NewGuard(codec),
		metrics: metrics.New(),
	}
	app.readOnly.Store(config.ReadOnly)
	app.store = store.NewReadOnlyStore(s, app.IsReadOnly)

	observe := service.WithObserver(app.metrics)
	app.notes = service.NewNoteService(app.store, config.Plans.FreeNoteLimit, observe)
	app.plans = service.NewPlanService(app.store, observe)
	app.sessions = service.NewSessionService(app.store, codec, observe)

	return app, nil
}

func openStore(ctx context.Context, config *Config, log zerolog.Logger) (store.Store, error) {
	storeLog := log.With().Str("store", config.Store.Backend).Logger()

	switch config.Store.Backend {
	case BackendPostgres:
		s, err := postgres.NewPostgresStore(config.Store.PostgresDSN, postgres.WithLogger(storeLog))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		storeLog.Info().Msg("Connected to PostgreSQL")
		return s, nil
	case BackendPgx:
		s, err := pgxstore.New(ctx, config.Store.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		storeLog.Info().Msg("Connected to PostgreSQL via pgx")
		return s, nil
	case BackendSurrealDB:
		sdb := config.Store.SurrealDB
		s, err := surrealstore.NewSurrealStore(ctx, surrealstore.Config{
			URL:       sdb.URL,
			Namespace: sdb.Namespace,
			Database:  sdb.Database,
			Username:  sdb.Username,
			Password:  sdb.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
		}
		storeLog.Info().Str("namespace", sdb.Namespace).Str("database", sdb.Database).Msg("Connected to SurrealDB")
		return s, nil
	case BackendMemory:
		s := memory.New()
		if _, err := store.Seed(ctx, s, store.DemoData); err != nil {
			return nil, fmt.Errorf("failed to seed memory store: %w", err)
		}
		storeLog.Warn().Msg("Using the in-memory store with demo data; nothing is persisted")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", config.Store.Backend)
	}
}

// Close closes the application and its resources.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Store returns the read-only-aware store the services use.
func (a *App) Store() store.Store {
	return a.store
}

// Metrics returns the collectors served at /metrics.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// SetReadOnly switches read-only mode at runtime. While it is on, every
// write answers 503 and reads keep working.
func (a *App) SetReadOnly(readOnly bool) {
	a.readOnly.Store(readOnly)
	a.log.Info().Bool("read_only", readOnly).Msg("Application read-only mode changed")
}

// IsReadOnly reports whether writes are currently rejected.
func (a *App) IsReadOnly() bool {
	return a.readOnly.Load()
}

// Migrate creates or updates the store schema.
func (a *App) Migrate(ctx context.Context) error {
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	a.log.Info().Str("store", a.config.Store.Backend).Msg("Schema is up to date")
	return nil
}

// Seed loads the demo tenants and users. Existing records are left alone.
func (a *App) Seed(ctx context.Context) (store.SeedResult, error) {
	result, err := store.Seed(ctx, a.store, store.DemoData)
	if err != nil {
		return result, fmt.Errorf("seed failed: %w", err)
	}
	a.log.Info().
		Int("tenants_created", result.TenantsCreated).
		Int("users_created", result.UsersCreated).
		Msg("Seeded demo data")
	return result, nil
}

// IssueToken returns a session for a stored user without a password check.
func (a *App) IssueToken(ctx context.Context, email string) (*service.LoginResult, error) {
	return a.sessions.IssueFor(ctx, email)
}
