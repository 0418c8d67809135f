// Package postgres provides the PostgreSQL implementation of
// [github.com/surrealdb/tenantnote/pkg/store.Store] using the GORM ORM.
//
// Schema is managed with AutoMigrate. Tenant isolation is enforced by putting
// tenant_id in the WHERE clause of every note statement, and partial updates
// use UPDATE ... RETURNING so that matching, writing, and reading back happen
// in one round trip.
//
// The free-plan cap is strict: CreateNote locks the tenant row with
// SELECT ... FOR UPDATE before counting, so concurrent creates in one tenant
// are serialized while other tenants proceed.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/surrealdb/tenantnote/pkg/models"
	"github.com/surrealdb/tenantnote/pkg/store"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresStore implements store.Store over GORM.
type PostgresStore struct {
	db *gorm.DB
}

var _ store.Store = (*PostgresStore)(nil)

// Option configures a PostgresStore.
type Option func(*options)

type options struct {
	logger        *zerolog.Logger
	maxOpenConns  int
	slowThreshold time.Duration
}

// WithLogger routes GORM's query log through logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithMaxOpenConns bounds the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		o.maxOpenConns = n
	}
}

func NewPostgresStore(dsn string, opts ...Option) (*PostgresStore, error) {
	o := options{slowThreshold: 200 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}

	config := &gorm.Config{TranslateError: true}
	if o.logger != nil {
		config.Logger = newGormLogger(*o.logger, o.slowThreshold)
	}

	db, err := gorm.Open(postgres.Open(dsn), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if o.maxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(o.maxOpenConns)
	}

	return &PostgresStore{db: db}, nil
}

// Migrate creates the tenants, users, and notes tables with their indexes and
// foreign keys. It only adds schema elements.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(
		&models.Tenant{},
		&models.User{},
		&models.Note{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	// ListNotes orders by created_at inside a tenant
	if err := s.db.WithContext(ctx).Exec(
		"CREATE INDEX IF NOT EXISTS idx_notes_tenant_created ON notes (tenant_id, created_at DESC)",
	).Error; err != nil {
		return fmt.Errorf("failed to create notes index: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// now returns the current time at the precision PostgreSQL stores, so values
// handed back to callers compare equal to what is read later.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Tenant operations

func (s *PostgresStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if err := s.db.WithContext(ctx).Create(tenant).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tenant %q: %w", tenant.Slug, store.ErrConflict)
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTenant(ctx context.Context, id models.TenantID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

func (s *PostgresStore) GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).First(&tenant, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant by slug: %w", err)
	}
	return &tenant, nil
}

func (s *PostgresStore) UpgradeTenantPlan(ctx context.Context, slug string, plan models.Plan) (*models.Tenant, error) {
	var tenants []models.Tenant
	err := s.db.WithContext(ctx).
		Model(&tenants).
		Clauses(clause.Returning{}).
		Where("slug = ?", slug).
		Updates(map[string]any{"plan": plan, "updated_at": now()}).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade tenant: %w", err)
	}
	if len(tenants) == 0 {
		return nil, nil
	}
	return &tenants[0], nil
}

// User operations

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %q: %w", user.Email, store.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Tenant").First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// Note operations

// notesWithAuthor selects notes joined with their author's email.
func (s *PostgresStore) notesWithAuthor(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("notes AS n").
		Select("n.*, u.email AS author_email").
		Joins("LEFT JOIN users u ON u.id = n.user_id")
}

func (s *PostgresStore) ListNotes(ctx context.Context, tenantID models.TenantID) ([]*models.Note, error) {
	notes := make([]*models.Note, 0)
	err := s.notesWithAuthor(ctx).
		Where("n.tenant_id = ?", tenantID).
		Order("n.created_at DESC").
		Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

func (s *PostgresStore) GetNote(ctx context.Context, tenantID models.TenantID, id models.NoteID) (*models.Note, error) {
	var notes []*models.Note
	err := s.notesWithAuthor(ctx).
		Where("n.id = ? AND n.tenant_id = ?", id, tenantID).
		Limit(1).
		Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	if len(notes) == 0 {
		return nil, nil
	}
	return notes[0], nil
}

func (s *PostgresStore) CountNotes(ctx context.Context, tenantID models.TenantID) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Note{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return int(count), nil
}

func (s *PostgresStore) CreateNote(ctx context.Context, note *models.Note, limit int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if limit >= 0 {
			var tenant models.Tenant
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Select("id").
				First(&tenant, "id = ?", note.TenantID).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("tenant %s does not exist", note.TenantID)
				}
				return fmt.Errorf("failed to lock tenant: %w", err)
			}

			var count int64
			if err := tx.Model(&models.Note{}).Where("tenant_id = ?", note.TenantID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to count notes: %w", err)
			}
			if count >= int64(limit) {
				return store.ErrLimitReached
			}
		}

		ts := now()
		note.CreatedAt, note.UpdatedAt = ts, ts
		if err := tx.Omit(clause.Associations).Create(note).Error; err != nil {
			return fmt.Errorf("failed to create note: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) UpdateNote(ctx context.Context, tenantID models.TenantID, id models.NoteID, patch models.NotePatch) (*models.Note, error) {
	updates := map[string]any{"updated_at": now()}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Content != nil {
		updates["content"] = *patch.Content
	}

	var notes []models.Note
	err := s.db.WithContext(ctx).
		Model(&notes).
		Clauses(clause.Returning{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Updates(updates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	if len(notes) == 0 {
		return nil, nil
	}
	return &notes[0], nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, tenantID models.TenantID, id models.NoteID) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).Delete(&models.Note{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete note: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
