// Package store defines the persistence contract for tenants, users, and notes.
//
// Four backends implement [Store]:
//
//   - [github.com/surrealdb/tenantnote/pkg/store/postgres.PostgresStore]: GORM over PostgreSQL
//   - [github.com/surrealdb/tenantnote/pkg/store/pgxstore.PgxStore]: raw SQL over a pgx pool
//   - [github.com/surrealdb/tenantnote/pkg/store/surrealdb.SurrealStore]: native SurrealQL
//   - [github.com/surrealdb/tenantnote/pkg/store/memory.MemoryStore]: in-process, for tests and demos
//
// # Tenant isolation
//
// Every note operation takes the caller's tenant id and filters on it in the
// same statement that touches the row. A note that exists in another tenant is
// reported exactly like a note that does not exist: (nil, nil) for reads,
// false for deletes.
//
// # Errors
//
// Missing records are not errors: getters return (nil, nil). Backends wrap
// driver failures with context and use the sentinels below for the conditions
// callers act on.
package store

import (
	"context"
	"errors"

	"github.com/surrealdb/tenantnote/pkg/models"
)

var (
	// ErrLimitReached is returned by CreateNote when the tenant already holds
	// the allowed number of notes. Nothing is written.
	ErrLimitReached = errors.New("note limit reached")

	// ErrReadOnly is returned by every write while the store is read-only.
	ErrReadOnly = errors.New("store is in read-only mode")

	// ErrConflict is returned when a unique key (tenant slug, user email) is taken.
	ErrConflict = errors.New("record already exists")
)

// Unlimited disables the note cap in CreateNote.
const Unlimited = -1

// Store is the persistence contract shared by all backends.
type Store interface {
	// CreateTenant persists a tenant. A zero ID is generated and an empty plan
	// becomes free. Returns ErrConflict if the slug is taken.
	CreateTenant(ctx context.Context, tenant *models.Tenant) error

	// GetTenant returns the tenant, or nil if it does not exist.
	GetTenant(ctx context.Context, id models.TenantID) (*models.Tenant, error)

	// GetTenantBySlug returns the tenant with slug, or nil if none exists.
	GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error)

	// UpgradeTenantPlan sets the plan of the tenant with slug and refreshes its
	// updated_at in one statement, returning the updated row or nil when no
	// tenant has that slug. Setting the current plan again succeeds.
	UpgradeTenantPlan(ctx context.Context, slug string, plan models.Plan) (*models.Tenant, error)

	// CreateUser persists a user. Returns ErrConflict if the email is taken.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail returns the user with its Tenant loaded, or nil.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// ListNotes returns every note of the tenant, newest first, with
	// AuthorEmail filled in.
	ListNotes(ctx context.Context, tenantID models.TenantID) ([]*models.Note, error)

	// GetNote returns the note only if it belongs to tenantID, with
	// AuthorEmail filled in; otherwise nil.
	GetNote(ctx context.Context, tenantID models.TenantID, id models.NoteID) (*models.Note, error)

	// CountNotes returns how many notes the tenant holds.
	CountNotes(ctx context.Context, tenantID models.TenantID) (int, error)

	// CreateNote inserts note unless the tenant already holds limit notes, in
	// which case it returns ErrLimitReached and writes nothing. The count and
	// the insert are atomic with respect to other creates in the same tenant.
	// A negative limit (Unlimited) skips the check. On success note carries its
	// server-assigned ID and timestamps, with CreatedAt equal to UpdatedAt.
	CreateNote(ctx context.Context, note *models.Note, limit int) error

	// UpdateNote applies patch to the note matching both tenantID and id and
	// refreshes updated_at, in a single statement. Returns the updated note, or
	// nil when nothing matched.
	UpdateNote(ctx context.Context, tenantID models.TenantID, id models.NoteID, patch models.NotePatch) (*models.Note, error)

	// DeleteNote removes the note matching both tenantID and id and reports
	// whether a row was deleted.
	DeleteNote(ctx context.Context, tenantID models.TenantID, id models.NoteID) (bool, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Migrate creates or updates the schema. It is idempotent.
	Migrate(ctx context.Context) error

	// Close releases connections. The store is unusable afterwards.
	Close() error
}
