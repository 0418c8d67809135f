// Package memory provides an in-process implementation of
// [github.com/surrealdb/tenantnote/pkg/store.Store].
//
// All data lives in maps guarded by one mutex, which also makes the note cap
// in CreateNote strict. Records are copied on the way in and out so callers
// never share memory with the store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/surrealdb/tenantnote/pkg/models"
	"github.com/surrealdb/tenantnote/pkg/store"
)

// MemoryStore is a Store backed by Go maps.
type MemoryStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	tenants map[models.TenantID]*models.Tenant
	users   map[models.UserID]*models.User
	notes   map[models.NoteID]*models.Note
	// seq breaks created_at ties so newest-first ordering is stable
	seq     map[models.NoteID]uint64
	nextSeq uint64
}

var _ store.Store = (*MemoryStore)(nil)

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// New returns an empty MemoryStore.
func New(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		now:     time.Now,
		tenants: make(map[models.TenantID]*models.Tenant),
		users:   make(map[models.UserID]*models.User),
		notes:   make(map[models.NoteID]*models.Note),
		seq:     make(map[models.NoteID]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) timestamp() time.Time {
	return s.now().UTC()
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStore) Ping(ctx context.Context) error    { return nil }
func (s *MemoryStore) Close() error                      { return nil }

// Tenant operations

func (s *MemoryStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tenants {
		if t.Slug == tenant.Slug {
			return store.ErrConflict
		}
	}
	if tenant.ID.IsZero() {
		tenant.ID = models.NewTenantID()
	}
	if tenant.Plan == "" {
		tenant.Plan = models.PlanFree
	}
	now := s.timestamp()
	tenant.CreatedAt, tenant.UpdatedAt = now, now

	cp := *tenant
	s.tenants[tenant.ID] = &cp
	return nil
}

func (s *MemoryStore) GetTenant(ctx context.Context, id models.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t := s.tenantBySlug(slug); t != nil {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) tenantBySlug(slug string) *models.Tenant {
	for _, t := range s.tenants {
		if t.Slug == slug {
			return t
		}
	}
	return nil
}

func (s *MemoryStore) UpgradeTenantPlan(ctx context.Context, slug string, plan models.Plan) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tenantBySlug(slug)
	if t == nil {
		return nil, nil
	}
	t.Plan = plan
	t.UpdatedAt = s.timestamp()
	cp := *t
	return &cp, nil
}

// User operations

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return store.ErrConflict
		}
	}
	if user.ID.IsZero() {
		user.ID = models.NewUserID()
	}
	now := s.timestamp()
	user.CreatedAt, user.UpdatedAt = now, now

	cp := *user
	cp.Tenant = nil
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email != email {
			continue
		}
		cp := *u
		if t, ok := s.tenants[u.TenantID]; ok {
			tc := *t
			cp.Tenant = &tc
		}
		return &cp, nil
	}
	return nil, nil
}

// Note operations

func (s *MemoryStore) ListNotes(ctx context.Context, tenantID models.TenantID) ([]*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := make([]*models.Note, 0)
	for _, n := range s.notes {
		if n.TenantID == tenantID {
			notes = append(notes, s.withAuthor(n))
		}
	}
	sort.Slice(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return s.seq[a.ID] > s.seq[b.ID]
	})
	return notes, nil
}

func (s *MemoryStore) GetNote(ctx context.Context, tenantID models.TenantID, id models.NoteID) (*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notes[id]
	if !ok || n.TenantID != tenantID {
		return nil, nil
	}
	return s.withAuthor(n), nil
}

// withAuthor returns a copy of n joined with its author's email. The caller
// must hold the lock.
func (s *MemoryStore) withAuthor(n *models.Note) *models.Note {
	cp := *n
	if u, ok := s.users[n.UserID]; ok {
		cp.AuthorEmail = u.Email
	}
	return &cp
}

func (s *MemoryStore) CountNotes(ctx context.Context, tenantID models.TenantID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countNotes(tenantID), nil
}

func (s *MemoryStore) countNotes(tenantID models.TenantID) int {
	count := 0
	for _, n := range s.notes {
		if n.TenantID == tenantID {
			count++
		}
	}
	return count
}

func (s *MemoryStore) CreateNote(ctx context.Context, note *models.Note, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit >= 0 && s.countNotes(note.TenantID) >= limit {
		return store.ErrLimitReached
	}
	if note.ID.IsZero() {
		note.ID = models.NewNoteID()
	}
	now := s.timestamp()
	note.CreatedAt, note.UpdatedAt = now, now
	note.AuthorEmail = ""

	cp := *note
	cp.Tenant, cp.User = nil, nil
	s.notes[note.ID] = &cp
	s.nextSeq++
	s.seq[note.ID] = s.nextSeq
	return nil
}

func (s *MemoryStore) UpdateNote(ctx context.Context, tenantID models.TenantID, id models.NoteID, patch models.NotePatch) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[id]
	if !ok || n.TenantID != tenantID {
		return nil, nil
	}
	patch.Apply(n)
	n.UpdatedAt = s.timestamp()
	cp := *n
	return &cp, nil
}

func (s *MemoryStore) DeleteNote(ctx context.Context, tenantID models.TenantID, id models.NoteID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[id]
	if !ok || n.TenantID != tenantID {
		return false, nil
	}
	delete(s.notes, id)
	delete(s.seq, id)
	return true, nil
}
