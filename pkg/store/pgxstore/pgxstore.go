// Package pgxstore implements [github.com/surrealdb/tenantnote/pkg/store.Store]
// with hand-written SQL over a pgx connection pool.
//
// It shares its table layout with the GORM backend, so either can serve a
// database migrated by the other. Timestamps come from the database clock
// (now()), which makes created_at and updated_at of a fresh note identical.
package pgxstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surrealdb/tenantnote/pkg/models"
	"github.com/surrealdb/tenantnote/pkg/store"
)

const uniqueViolation = "23505"

const schema = `
	CREATE TABLE IF NOT EXISTS tenants (
		id UUID PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		plan TEXT NOT NULL DEFAULT 'free' CHECK (plan IN ('free', 'pro')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('admin', 'member')),
		tenant_id UUID NOT NULL REFERENCES tenants (id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_users_tenant_id ON users (tenant_id);

	CREATE TABLE IF NOT EXISTS notes (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL REFERENCES tenants (id),
		user_id UUID NOT NULL REFERENCES users (id),
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_notes_tenant_created ON notes (tenant_id, created_at DESC);
`

const noteColumns = `n.id, n.tenant_id, n.user_id, n.title, n.content, n.created_at, n.updated_at, COALESCE(u.email, '')`

// PgxStore implements store.Store over a pgx pool.
type PgxStore struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*PgxStore)(nil)

// New connects a pool to dbURL.
func New(ctx context.Context, dbURL string) (*PgxStore, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &PgxStore{pool: pool}, nil
}

// NewFromPool wraps an existing pool. Close closes the pool.
func NewFromPool(pool *pgxpool.Pool) *PgxStore {
	return &PgxStore{pool: pool}
}

func (s *PgxStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

func (s *PgxStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PgxStore) Close() error {
	s.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Tenant operations

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	if err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.Plan, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *PgxStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID.IsZero() {
		tenant.ID = models.NewTenantID()
	}
	if tenant.Plan == "" {
		tenant.Plan = models.PlanFree
	}

	query := `
		INSERT INTO tenants (id, slug, name, plan)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query, tenant.ID, tenant.Slug, tenant.Name, tenant.Plan).
		Scan(&tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tenant %q: %w", tenant.Slug, store.ErrConflict)
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

func (s *PgxStore) GetTenant(ctx context.Context, id models.TenantID) (*models.Tenant, error) {
	query := `SELECT id, slug, name, plan, created_at, updated_at FROM tenants WHERE id = $1`
	t, err := scanTenant(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

func (s *PgxStore) GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	query := `SELECT id, slug, name, plan, created_at, updated_at FROM tenants WHERE slug = $1`
	t, err := scanTenant(s.pool.QueryRow(ctx, query, slug))
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant by slug: %w", err)
	}
	return t, nil
}

func (s *PgxStore) UpgradeTenantPlan(ctx context.Context, slug string, plan models.Plan) (*models.Tenant, error) {
	query := `
		UPDATE tenants SET plan = $2, updated_at = now()
		WHERE slug = $1
		RETURNING id, slug, name, plan, created_at, updated_at
	`
	t, err := scanTenant(s.pool.QueryRow(ctx, query, slug, plan))
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade tenant: %w", err)
	}
	return t, nil
}

// User operations

func (s *PgxStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = models.NewUserID()
	}

	query := `
		INSERT INTO users (id, email, password_hash, role, tenant_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query, user.ID, user.Email, user.PasswordHash, user.Role, user.TenantID).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %q: %w", user.Email, store.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PgxStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT u.id, u.email, u.password_hash, u.role, u.tenant_id, u.created_at, u.updated_at,
		       t.id, t.slug, t.name, t.plan, t.created_at, t.updated_at
		FROM users u
		JOIN tenants t ON t.id = u.tenant_id
		WHERE u.email = $1
	`
	var (
		u models.User
		t models.Tenant
	)
	err := s.pool.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.TenantID, &u.CreatedAt, &u.UpdatedAt,
		&t.ID, &t.Slug, &t.Name, &t.Plan, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	u.Tenant = &t
	return &u, nil
}

// Note operations

func scanNote(row pgx.Row) (*models.Note, error) {
	var n models.Note
	err := row.Scan(&n.ID, &n.TenantID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt, &n.AuthorEmail)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *PgxStore) ListNotes(ctx context.Context, tenantID models.TenantID) ([]*models.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes n
		LEFT JOIN users u ON u.id = n.user_id
		WHERE n.tenant_id = $1
		ORDER BY n.created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := make([]*models.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}

func (s *PgxStore) GetNote(ctx context.Context, tenantID models.TenantID, id models.NoteID) (*models.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes n
		LEFT JOIN users u ON u.id = n.user_id
		WHERE n.id = $1 AND n.tenant_id = $2
	`
	n, err := scanNote(s.pool.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return n, nil
}

func (s *PgxStore) CountNotes(ctx context.Context, tenantID models.TenantID) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notes WHERE tenant_id = $1`, tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return count, nil
}

func (s *PgxStore) CreateNote(ctx context.Context, note *models.Note, limit int) error {
	if note.ID.IsZero() {
		note.ID = models.NewNoteID()
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if limit >= 0 {
			// serializes creates within the tenant until commit
			var locked models.TenantID
			err := tx.QueryRow(ctx, `SELECT id FROM tenants WHERE id = $1 FOR UPDATE`, note.TenantID).Scan(&locked)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("tenant %s does not exist", note.TenantID)
				}
				return fmt.Errorf("failed to lock tenant: %w", err)
			}

			var count int
			if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM notes WHERE tenant_id = $1`, note.TenantID).Scan(&count); err != nil {
				return fmt.Errorf("failed to count notes: %w", err)
			}
			if count >= limit {
				return store.ErrLimitReached
			}
		}

		query := `
			INSERT INTO notes (id, tenant_id, user_id, title, content, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
			RETURNING created_at, updated_at
		`
		err := tx.QueryRow(ctx, query, note.ID, note.TenantID, note.UserID, note.Title, note.Content).
			Scan(&note.CreatedAt, &note.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create note: %w", err)
		}
		return nil
	})
}

func (s *PgxStore) UpdateNote(ctx context.Context, tenantID models.TenantID, id models.NoteID, patch models.NotePatch) (*models.Note, error) {
	query := `
		UPDATE notes n
		SET title = COALESCE($3::text, n.title),
		    content = COALESCE($4::text, n.content),
		    updated_at = now()
		FROM notes o
		LEFT JOIN users u ON u.id = o.user_id
		WHERE n.id = $1 AND n.tenant_id = $2 AND o.id = n.id
		RETURNING ` + noteColumns
	n, err := scanNote(s.pool.QueryRow(ctx, query, id, tenantID, patch.Title, patch.Content))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	return n, nil
}

func (s *PgxStore) DeleteNote(ctx context.Context, tenantID models.TenantID, id models.NoteID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to delete note: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
