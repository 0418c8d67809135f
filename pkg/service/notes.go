package service

import (
	"context"
	"errors"

	"github.com/surrealdb/tenantnote/pkg/auth"
	"github.com/surrealdb/tenantnote/pkg/errs"
	"github.com/surrealdb/tenantnote/pkg/models"
	"github.com/surrealdb/tenantnote/pkg/store"
)

// DefaultFreeNoteLimit is how many notes a tenant on the free plan may hold.
const DefaultFreeNoteLimit = 3

const (
	msgNoteNotFound   = "Note not found"
	msgTenantNotFound = "Tenant not found"
	msgTitleRequired  = "Title is required"
	msgLimitReached   = "Note limit reached. Upgrade to Pro plan for unlimited notes."
)

// NoteService implements tenant-scoped note CRUD and the plan's note cap.
type NoteService struct {
	store         store.Store
	freeNoteLimit int
	observer      Observer
}

// NewNoteService returns a NoteService capping free tenants at freeNoteLimit notes.
func NewNoteService(s store.Store, freeNoteLimit int, opts ...Option) *NoteService {
	o := buildOptions(opts)
	return &NoteService{
		store:         s,
		freeNoteLimit: freeNoteLimit,
		observer:      o.observer,
	}
}

// parseNoteID treats a malformed id like a missing note.
func parseNoteID(op, raw string) (models.NoteID, error) {
	id, err := models.ParseNoteID(raw)
	if err != nil {
		return models.NoteID{}, errs.Wrap(op, errs.NotFound, msgNoteNotFound, err)
	}
	return id, nil
}

// List returns the tenant's notes, newest first.
func (s *NoteService) List(ctx context.Context, claims *auth.Claims) ([]*models.Note, error) {
	const op = "notes.list"
	notes, err := s.store.ListNotes(ctx, claims.TenantID)
	if err != nil {
		return nil, storeError(op, err)
	}
	return notes, nil
}

// Get returns one note of the caller's tenant.
func (s *NoteService) Get(ctx context.Context, claims *auth.Claims, rawID string) (*models.Note, error) {
	const op = "notes.get"
	id, err := parseNoteID(op, rawID)
	if err != nil {
		return nil, err
	}
	note, err := s.store.GetNote(ctx, claims.TenantID, id)
	if err != nil {
		return nil, storeError(op, err)
	}
	if note == nil {
		return nil, errs.E(op, errs.NotFound, msgNoteNotFound)
	}
	return note, nil
}

// Create adds a note owned by the caller. The tenant's plan is read from the
// store, not from the claims, so an upgrade takes effect immediately.
func (s *NoteService) Create(ctx context.Context, claims *auth.Claims, title, content string) (*models.Note, error) {
	const op = "notes.create"
	if title == "" {
		return nil, errs.E(op, errs.Validation, msgTitleRequired)
	}

	tenant, err := s.store.GetTenant(ctx, claims.TenantID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if tenant == nil {
		return nil, errs.E(op, errs.NotFound, msgTenantNotFound)
	}

	limit := store.Unlimited
	if tenant.Plan == models.PlanFree {
		limit = s.freeNoteLimit
	}

	note := &models.Note{
		TenantID: claims.TenantID,
		UserID:   claims.UserID,
		Title:    title,
		Content:  content,
	}
	if err := s.store.CreateNote(ctx, note, limit); err != nil {
		if errors.Is(err, store.ErrLimitReached) {
			s.observer.NoteLimitRejected(tenant.Slug)
			return nil, errs.Wrap(op, errs.LimitReached, msgLimitReached, err)
		}
		return nil, storeError(op, err)
	}
	s.observer.NoteCreated(tenant.Slug)
	return note, nil
}

// Update changes the supplied fields of a note in the caller's tenant.
// An explicitly empty title is rejected. An empty patch returns the note as
// stored without writing.
func (s *NoteService) Update(ctx context.Context, claims *auth.Claims, rawID string, patch models.NotePatch) (*models.Note, error) {
	const op = "notes.update"
	id, err := parseNoteID(op, rawID)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil && *patch.Title == "" {
		return nil, errs.E(op, errs.Validation, msgTitleRequired)
	}

	var note *models.Note
	if patch.Empty() {
		note, err = s.store.GetNote(ctx, claims.TenantID, id)
	} else {
		note, err = s.store.UpdateNote(ctx, claims.TenantID, id, patch)
	}
	if err != nil {
		return nil, storeError(op, err)
	}
	if note == nil {
		return nil, errs.E(op, errs.NotFound, msgNoteNotFound)
	}
	return note, nil
}

// Delete removes a note in the caller's tenant.
func (s *NoteService) Delete(ctx context.Context, claims *auth.Claims, rawID string) error {
	const op = "notes.delete"
	id, err := parseNoteID(op, rawID)
	if err != nil {
		return err
	}
	deleted, err := s.store.DeleteNote(ctx, claims.TenantID, id)
	if err != nil {
		return storeError(op, err)
	}
	if !deleted {
		return errs.E(op, errs.NotFound, msgNoteNotFound)
	}
	return nil
}
