package store

import (
	"context"
	"fmt"

	"github.com/surrealdb/tenantnote/pkg/models"
)

// ReadOnlyStore wraps a Store and refuses writes while isReadOnly reports true.
//
// The flag is consulted on every call, so an operator can put a running
// server into read-only mode (for a backup or a backend switch) and back
// without recreating the store. Reads always pass through.
type ReadOnlyStore struct {
	Store
	isReadOnly func() bool
}

// NewReadOnlyStore creates a new read-only wrapper for a store
func NewReadOnlyStore(store Store, isReadOnly func() bool) *ReadOnlyStore {
	return &ReadOnlyStore{
		Store:      store,
		isReadOnly: isReadOnly,
	}
}

// ReadOnly reports whether writes are currently refused.
func (r *ReadOnlyStore) ReadOnly() bool {
	return r.isReadOnly()
}

func (r *ReadOnlyStore) checkReadOnly(op string) error {
	if r.isReadOnly() {
		return fmt.Errorf("%s denied: %w", op, ErrReadOnly)
	}
	return nil
}

func (r *ReadOnlyStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if err := r.checkReadOnly("create tenant"); err != nil {
		return err
	}
	return r.Store.CreateTenant(ctx, tenant)
}

func (r *ReadOnlyStore) UpgradeTenantPlan(ctx context.Context, slug string, plan models.Plan) (*models.Tenant, error) {
	if err := r.checkReadOnly("upgrade tenant"); err != nil {
		return nil, err
	}
	return r.Store.UpgradeTenantPlan(ctx, slug, plan)
}

func (r *ReadOnlyStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.checkReadOnly("create user"); err != nil {
		return err
	}
	return r.Store.CreateUser(ctx, user)
}

func (r *ReadOnlyStore) CreateNote(ctx context.Context, note *models.Note, limit int) error {
	if err := r.checkReadOnly("create note"); err != nil {
		return err
	}
	return r.Store.CreateNote(ctx, note, limit)
}

func (r *ReadOnlyStore) UpdateNote(ctx context.Context, tenantID models.TenantID, id models.NoteID, patch models.NotePatch) (*models.Note, error) {
	if err := r.checkReadOnly("update note"); err != nil {
		return nil, err
	}
	return r.Store.UpdateNote(ctx, tenantID, id, patch)
}

func (r *ReadOnlyStore) DeleteNote(ctx context.Context, tenantID models.TenantID, id models.NoteID) (bool, error) {
	if err := r.checkReadOnly("delete note"); err != nil {
		return false, err
	}
	return r.Store.DeleteNote(ctx, tenantID, id)
}

// Migrate is a schema write and is refused in read-only mode too.
func (r *ReadOnlyStore) Migrate(ctx context.Context) error {
	if err := r.checkReadOnly("migrate"); err != nil {
		return err
	}
	return r.Store.Migrate(ctx)
}
