// Package surrealdb provides the SurrealDB implementation of
// [github.com/surrealdb/tenantnote/pkg/store.Store] using native SurrealQL.
//
// Records live in the tenants, users, and notes tables, keyed by their UUIDs.
// Foreign keys (users.tenant_id, notes.tenant_id, notes.user_id) are stored
// as record links because the typed IDs marshal to record ids, so reads can
// follow them (user_id.email) without a join.
//
// All queries are parameterized; the only text assembled at runtime is the
// SET list of a partial update, built from fixed fragments.
//
// The free-plan cap runs inside one BEGIN/COMMIT transaction that also bumps
// the tenant's note_seq field. Two concurrent creates in one tenant therefore
// write the same record and one of them fails to commit with a conflict; it
// is retried against the new count.
package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	sdbmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/surrealdb/tenantnote/pkg/models"
	"github.com/surrealdb/tenantnote/pkg/store"
)

const (
	limitReachedMarker = "tenantnote: note limit reached"
	maxCommitAttempts  = 10
)

// Config holds connection settings.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// SurrealStore implements store.Store over a SurrealDB connection.
type SurrealStore struct {
	db *surrealdb.DB
}

var _ store.Store = (*SurrealStore)(nil)

// NewSurrealStore connects, signs in when credentials are given, and selects
// the namespace and database.
func NewSurrealStore(ctx context.Context, cfg Config) (*SurrealStore, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return &SurrealStore{db: db}, nil
}

const schema = `
	DEFINE TABLE IF NOT EXISTS tenants SCHEMALESS;
	DEFINE INDEX IF NOT EXISTS tenants_slug ON TABLE tenants FIELDS slug UNIQUE;
	DEFINE TABLE IF NOT EXISTS users SCHEMALESS;
	DEFINE INDEX IF NOT EXISTS users_email ON TABLE users FIELDS email UNIQUE;
	DEFINE INDEX IF NOT EXISTS users_tenant ON TABLE users FIELDS tenant_id;
	DEFINE TABLE IF NOT EXISTS notes SCHEMALESS;
	DEFINE INDEX IF NOT EXISTS notes_tenant ON TABLE notes FIELDS tenant_id;
`

// Migrate defines the tables and the unique indexes that back ErrConflict.
func (s *SurrealStore) Migrate(ctx context.Context) error {
	if _, err := s.query(ctx, schema, nil); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

func (s *SurrealStore) Ping(ctx context.Context) error {
	_, err := s.query(ctx, "RETURN true", nil)
	return err
}

// Close closes the database connection
func (s *SurrealStore) Close() error {
	return s.db.Close(context.Background())
}

// query runs sql and returns the raw per-statement results, turning any
// failed statement into an error.
func (s *SurrealStore) query(ctx context.Context, sql string, vars map[string]any) ([]surrealdb.QueryResult[any], error) {
	res, err := surrealdb.Query[any](ctx, s.db, sql, vars)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	// a failed transaction reports every statement as failed; keep all
	// messages so the one that caused it is not lost
	var failures []string
	for _, r := range *res {
		if r.Status != "" && r.Status != "OK" {
			failures = append(failures, fmt.Sprint(r.Result))
		}
	}
	if len(failures) > 0 {
		return nil, fmt.Errorf("query failed: %s", strings.Join(failures, "; "))
	}
	return *res, nil
}

// queryRows runs a single-statement query and decodes its rows.
func queryRows[T any](ctx context.Context, db *surrealdb.DB, sql string, vars map[string]any) ([]T, error) {
	res, err := surrealdb.Query[[]T](ctx, db, sql, vars)
	if err != nil {
		return nil, err
	}
	if res == nil || len(*res) == 0 {
		return nil, nil
	}
	last := (*res)[len(*res)-1]
	if last.Status != "" && last.Status != "OK" {
		return nil, fmt.Errorf("query failed with status %s", last.Status)
	}
	return last.Result, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already contains")
}

func isLimitReached(err error) bool {
	return err != nil && strings.Contains(err.Error(), limitReachedMarker)
}

func isConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "conflict") || strings.Contains(msg, "resource busy")
}

// Row types. Datetimes travel as SurrealDB datetimes, so they decode through
// CustomDateTime rather than time.Time.

type tenantRow struct {
	ID        models.TenantID          `json:"id"`
	Slug      string                   `json:"slug"`
	Name      string                   `json:"name"`
	Plan      models.Plan              `json:"plan"`
	CreatedAt sdbmodels.CustomDateTime `json:"created_at"`
	UpdatedAt sdbmodels.CustomDateTime `json:"updated_at"`
}

func (r *tenantRow) model() *models.Tenant {
	return &models.Tenant{
		ID:        r.ID,
		Slug:      r.Slug,
		Name:      r.Name,
		Plan:      r.Plan,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

type userRow struct {
	ID           models.UserID            `json:"id"`
	Email        string                   `json:"email"`
	PasswordHash string                   `json:"password_hash"`
	Role         models.Role              `json:"role"`
	TenantID     models.TenantID          `json:"tenant_id"`
	Tenant       *tenantRow               `json:"tenant,omitempty"`
	CreatedAt    sdbmodels.CustomDateTime `json:"created_at"`
	UpdatedAt    sdbmodels.CustomDateTime `json:"updated_at"`
}

func (r *userRow) model() *models.User {
	u := &models.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		TenantID:     r.TenantID,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
	}
	if r.Tenant != nil {
		u.Tenant = r.Tenant.model()
	}
	return u
}

type noteRow struct {
	ID          models.NoteID            `json:"id"`
	TenantID    models.TenantID          `json:"tenant_id"`
	UserID      models.UserID            `json:"user_id"`
	Title       string                   `json:"title"`
	Content     string                   `json:"content"`
	CreatedAt   sdbmodels.CustomDateTime `json:"created_at"`
	UpdatedAt   sdbmodels.CustomDateTime `json:"updated_at"`
	AuthorEmail *string                  `json:"author_email,omitempty"`
}

func (r *noteRow) model() *models.Note {
	n := &models.Note{
		ID:        r.ID,
		TenantID:  r.TenantID,
		UserID:    r.UserID,
		Title:     r.Title,
		Content:   r.Content,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
	if r.AuthorEmail != nil {
		n.AuthorEmail = *r.AuthorEmail
	}
	return n
}

// Tenant operations

func (s *SurrealStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID.IsZero() {
		tenant.ID = models.NewTenantID()
	}
	if tenant.Plan == "" {
		tenant.Plan = models.PlanFree
	}

	rows, err := queryRows[tenantRow](ctx, s.db, `
		LET $now = time::now();
		CREATE $id CONTENT {
			slug: $slug,
			name: $name,
			plan: $plan,
			note_seq: 0,
			created_at: $now,
			updated_at: $now
		};
	`, map[string]any{
		"id":   tenant.ID.RecordID(),
		"slug": tenant.Slug,
		"name": tenant.Name,
		"plan": tenant.Plan,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tenant %q: %w", tenant.Slug, store.ErrConflict)
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	if len(rows) > 0 {
		tenant.CreatedAt = rows[0].CreatedAt.Time
		tenant.UpdatedAt = rows[0].UpdatedAt.Time
	}
	return nil
}

func (s *SurrealStore) firstTenant(ctx context.Context, sql string, vars map[string]any) (*models.Tenant, error) {
	rows, err := queryRows[tenantRow](ctx, s.db, sql, vars)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].model(), nil
}

func (s *SurrealStore) GetTenant(ctx context.Context, id models.TenantID) (*models.Tenant, error) {
	t, err := s.firstTenant(ctx, "SELECT * FROM $id", map[string]any{"id": id.RecordID()})
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

func (s *SurrealStore) GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	t, err := s.firstTenant(ctx, "SELECT * FROM tenants WHERE slug = $slug LIMIT 1", map[string]any{"slug": slug})
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant by slug: %w", err)
	}
	return t, nil
}

func (s *SurrealStore) UpgradeTenantPlan(ctx context.Context, slug string, plan models.Plan) (*models.Tenant, error) {
	t, err := s.firstTenant(ctx,
		"UPDATE tenants SET plan = $plan, updated_at = time::now() WHERE slug = $slug RETURN AFTER",
		map[string]any{"slug": slug, "plan": plan})
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade tenant: %w", err)
	}
	return t, nil
}

// User operations

func (s *SurrealStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = models.NewUserID()
	}

	rows, err := queryRows[userRow](ctx, s.db, `
		LET $now = time::now();
		CREATE $id CONTENT {
			email: $email,
			password_hash: $password_hash,
			role: $role,
			tenant_id: $tenant_id,
			created_at: $now,
			updated_at: $now
		};
	`, map[string]any{
		"id":            user.ID.RecordID(),
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"role":          user.Role,
		"tenant_id":     user.TenantID,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %q: %w", user.Email, store.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	if len(rows) > 0 {
		user.CreatedAt = rows[0].CreatedAt.Time
		user.UpdatedAt = rows[0].UpdatedAt.Time
	}
	return nil
}

func (s *SurrealStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	rows, err := queryRows[userRow](ctx, s.db,
		"SELECT *, tenant_id.* AS tenant FROM users WHERE email = $email LIMIT 1",
		map[string]any{"email": email})
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].model(), nil
}

// Note operations

const selectNotes = "SELECT *, user_id.email AS author_email FROM notes"

func (s *SurrealStore) ListNotes(ctx context.Context, tenantID models.TenantID) ([]*models.Note, error) {
	rows, err := queryRows[noteRow](ctx, s.db,
		selectNotes+" WHERE tenant_id = $tenant ORDER BY created_at DESC",
		map[string]any{"tenant": tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	notes := make([]*models.Note, 0, len(rows))
	for i := range rows {
		notes = append(notes, rows[i].model())
	}
	return notes, nil
}

func (s *SurrealStore) GetNote(ctx context.Context, tenantID models.TenantID, id models.NoteID) (*models.Note, error) {
	rows, err := queryRows[noteRow](ctx, s.db,
		selectNotes+" WHERE id = $id AND tenant_id = $tenant",
		map[string]any{"id": id.RecordID(), "tenant": tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].model(), nil
}

type countRow struct {
	Count int `json:"count"`
}

func (s *SurrealStore) CountNotes(ctx context.Context, tenantID models.TenantID) (int, error) {
	rows, err := queryRows[countRow](ctx, s.db,
		"SELECT count() FROM notes WHERE tenant_id = $tenant GROUP ALL",
		map[string]any{"tenant": tenantID})
	if err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Count, nil
}

// createNoteTx counts and inserts atomically. Bumping note_seq on the tenant
// makes concurrent transactions in one tenant conflict at commit.
const createNoteTx = `
	BEGIN TRANSACTION;
	LET $now = time::now();
	IF $limit >= 0 {
		LET $count = (SELECT count() FROM notes WHERE tenant_id = $tenant GROUP ALL)[0].count ?? 0;
		IF $count >= $limit {
			THROW $marker;
		};
	};
	UPDATE $tenant SET note_seq = (note_seq ?? 0) + 1;
	CREATE $id CONTENT {
		tenant_id: $tenant,
		user_id: $user,
		title: $title,
		content: $content,
		created_at: $now,
		updated_at: $now
	};
	COMMIT TRANSACTION;
`

func (s *SurrealStore) CreateNote(ctx context.Context, note *models.Note, limit int) error {
	if note.ID.IsZero() {
		note.ID = models.NewNoteID()
	}
	vars := map[string]any{
		"id":      note.ID.RecordID(),
		"tenant":  note.TenantID,
		"user":    note.UserID,
		"title":   note.Title,
		"content": note.Content,
		"limit":   limit,
		"marker":  limitReachedMarker,
	}

	var err error
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		_, err = s.query(ctx, createNoteTx, vars)
		if err == nil || !isConflict(err) || isLimitReached(err) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 5 * time.Millisecond):
		}
	}
	if err != nil {
		if isLimitReached(err) {
			return store.ErrLimitReached
		}
		return fmt.Errorf("failed to create note: %w", err)
	}

	created, err := s.GetNote(ctx, note.TenantID, note.ID)
	if err != nil {
		return err
	}
	if created == nil {
		return fmt.Errorf("note %s missing after create", note.ID)
	}
	note.CreatedAt = created.CreatedAt
	note.UpdatedAt = created.UpdatedAt
	return nil
}

func (s *SurrealStore) UpdateNote(ctx context.Context, tenantID models.TenantID, id models.NoteID, patch models.NotePatch) (*models.Note, error) {
	set := []string{"updated_at = time::now()"}
	vars := map[string]any{"id": id.RecordID(), "tenant": tenantID}
	if patch.Title != nil {
		set = append(set, "title = $title")
		vars["title"] = *patch.Title
	}
	if patch.Content != nil {
		set = append(set, "content = $content")
		vars["content"] = *patch.Content
	}

	sql := "UPDATE notes SET " + strings.Join(set, ", ") + " WHERE id = $id AND tenant_id = $tenant RETURN AFTER"
	rows, err := queryRows[noteRow](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].model(), nil
}

func (s *SurrealStore) DeleteNote(ctx context.Context, tenantID models.TenantID, id models.NoteID) (bool, error) {
	rows, err := queryRows[noteRow](ctx, s.db,
		"DELETE notes WHERE id = $id AND tenant_id = $tenant RETURN BEFORE",
		map[string]any{"id": id.RecordID(), "tenant": tenantID})
	if err != nil {
		return false, fmt.Errorf("failed to delete note: %w", err)
	}
	return len(rows) > 0, nil
}
