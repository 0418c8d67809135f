// Package storetest holds the behavioral tests every
// [github.com/surrealdb/tenantnote/pkg/store.Store] backend must pass.
//
// Backend packages call [Run] from their own tests with a factory that returns
// an empty, migrated store:
//
//	func TestConformance(t *testing.T) {
//		storetest.Run(t, func(t *testing.T) store.Store { return memory.New() })
//	}
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/tenantnote/pkg/models"
	"github.com/surrealdb/tenantnote/pkg/store"
)

// Factory returns an empty, migrated store. It should register cleanup with t.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"TenantLifecycle", testTenantLifecycle},
		{"UniqueKeys", testUniqueKeys},
		{"UserWithTenant", testUserWithTenant},
		{"CreateAndGetNote", testCreateAndGetNote},
		{"TenantIsolation", testTenantIsolation},
		{"ListNewestFirst", testListNewestFirst},
		{"PartialUpdate", testPartialUpdate},
		{"Delete", testDelete},
		{"NoteLimit", testNoteLimit},
		{"NoteLimitConcurrent", testNoteLimitConcurrent},
		{"Seed", testSeed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// fixture is one tenant with one user.
type fixture struct {
	tenant *models.Tenant
	user   *models.User
}

func newFixture(t *testing.T, s store.Store, slug string) fixture {
	t.Helper()
	ctx := context.Background()

	tenant := &models.Tenant{Slug: slug, Name: slug + " inc"}
	require.NoError(t, s.CreateTenant(ctx, tenant))
	require.False(t, tenant.ID.IsZero())

	user := &models.User{
		Email:        "admin@" + slug + ".test",
		PasswordHash: store.DemoPasswordHash,
		Role:         models.RoleAdmin,
		TenantID:     tenant.ID,
	}
	require.NoError(t, s.CreateUser(ctx, user))
	require.False(t, user.ID.IsZero())
	return fixture{tenant: tenant, user: user}
}

func (f fixture) note(title, content string) *models.Note {
	return &models.Note{TenantID: f.tenant.ID, UserID: f.user.ID, Title: title, Content: content}
}

func testTenantLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s, "acme")
	assert.Equal(t, models.PlanFree, f.tenant.Plan)

	got, err := s.GetTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "acme", got.Slug)
	assert.Equal(t, models.PlanFree, got.Plan)

	got, err = s.GetTenantBySlug(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, f.tenant.ID, got.ID)

	missing, err := s.GetTenantBySlug(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = s.GetTenant(ctx, models.NewTenantID())
	require.NoError(t, err)
	assert.Nil(t, missing)

	for range 2 {
		upgraded, err := s.UpgradeTenantPlan(ctx, "acme", models.PlanPro)
		require.NoError(t, err)
		require.NotNil(t, upgraded)
		assert.Equal(t, models.PlanPro, upgraded.Plan)
		assert.Equal(t, f.tenant.ID, upgraded.ID)
	}

	none, err := s.UpgradeTenantPlan(ctx, "nope", models.PlanPro)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func testUniqueKeys(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s, "acme")

	err := s.CreateTenant(ctx, &models.Tenant{Slug: "acme", Name: "again"})
	assert.ErrorIs(t, err, store.ErrConflict)

	err = s.CreateUser(ctx, &models.User{
		Email:        f.user.Email,
		PasswordHash: store.DemoPasswordHash,
		Role:         models.RoleMember,
		TenantID:     f.tenant.ID,
	})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func testUserWithTenant(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s, "acme")

	u, err := s.GetUserByEmail(ctx, f.user.Email)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, f.user.ID, u.ID)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.Equal(t, store.DemoPasswordHash, u.PasswordHash)
	require.NotNil(t, u.Tenant)
	assert.Equal(t, "acme", u.Tenant.Slug)
	assert.Equal(t, models.PlanFree, u.Tenant.Plan)

	missing, err := s.GetUserByEmail(ctx, "nobody@acme.test")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testCreateAndGetNote(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s, "acme")

	n := f.note("Shopping", "milk")
	require.NoError(t, s.CreateNote(ctx, n, store.Unlimited))
	require.False(t, n.ID.IsZero())
	assert.False(t, n.CreatedAt.IsZero())
	assert.True(t, n.CreatedAt.Equal(n.UpdatedAt), "created_at %s != updated_at %s", n.CreatedAt, n.UpdatedAt)

	got, err := s.GetNote(ctx, f.tenant.ID, n.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Shopping", got.Title)
	assert.Equal(t, "milk", got.Content)
	assert.Equal(t, f.user.ID, got.UserID)
	assert.Equal(t, f.tenant.ID, got.TenantID)
	assert.Equal(t, f.user.Email, got.AuthorEmail)
	assert.True(t, got.CreatedAt.Equal(got.UpdatedAt))

	empty := f.note("Empty", "")
	require.NoError(t, s.CreateNote(ctx, empty, store.Unlimited))
	got, err = s.GetNote(ctx, f.tenant.ID, empty.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "", got.Content)

	count, err := s.CountNotes(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func testTenantIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	acme := newFixture(t, s, "acme")
	globex := newFixture(t, s, "globex")

	n := acme.note("secret", "acme only")
	require.NoError(t, s.CreateNote(ctx, n, store.Unlimited))

	got, err := s.GetNote(ctx, globex.tenant.ID, n.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	list, err := s.ListNotes(ctx, globex.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	title := "stolen"
	updated, err := s.UpdateNote(ctx, globex.tenant.ID, n.ID, models.NotePatch{Title: &title})
	require.NoError(t, err)
	assert.Nil(t, updated)

	deleted, err := s.DeleteNote(ctx, globex.tenant.ID, n.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	got, err = s.GetNote(ctx, acme.tenant.ID, n.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "secret", got.Title)

	count, err := s.CountNotes(ctx, globex.tenant.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func testListNewestFirst(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s, "acme")

	var ids []models.NoteID
	for i := range 3 {
		n := f.note(fmt.Sprintf("note %d", i), "")
		require.NoError(t, s.CreateNote(ctx, n, store.Unlimited))
		ids = append(ids, n.ID)
		// distinct timestamps on backends with coarse clocks
		time.Sleep(5 * time.Millisecond)
	}

	list, err := s.ListNotes(ctx, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[1], list[1].ID)
	assert.Equal(t, ids[0], list[2].ID)
	for _, n := range list {
		assert.Equal(t, f.user.Email, n.AuthorEmail)
	}
}

func testPartialUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s, "acme")

	n := f.note("Shopping", "milk")
	require.NoError(t, s.CreateNote(ctx, n, store.Unlimited))
	time.Sleep(5 * time.Millisecond)

	content := "eggs"
	updated, err := s.UpdateNote(ctx, f.tenant.ID, n.ID, models.NotePatch{Content: &content})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Shopping", updated.Title)
	assert.Equal(t, "eggs", updated.Content)
	assert.True(t, updated.UpdatedAt.After(n.CreatedAt), "updated_at must move forward")
	assert.True(t, updated.CreatedAt.Equal(n.CreatedAt))

	title := "Groceries"
	updated, err = s.UpdateNote(ctx, f.tenant.ID, n.ID, models.NotePatch{Title: &title})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Groceries", updated.Title)
	assert.Equal(t, "eggs", updated.Content)

	missing, err := s.UpdateNote(ctx, f.tenant.ID, models.NewNoteID(), models.NotePatch{Title: &title})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s, "acme")

	n := f.note("Shopping", "")
	require.NoError(t, s.CreateNote(ctx, n, store.Unlimited))

	deleted, err := s.DeleteNote(ctx, f.tenant.ID, n.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteNote(ctx, f.tenant.ID, n.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	got, err := s.GetNote(ctx, f.tenant.ID, n.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testNoteLimit(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s, "acme")

	for i := range 3 {
		require.NoError(t, s.CreateNote(ctx, f.note(fmt.Sprintf("note %d", i), ""), 3))
	}

	rejected := f.note("Shopping", "")
	err := s.CreateNote(ctx, rejected, 3)
	require.ErrorIs(t, err, store.ErrLimitReached)

	count, err := s.CountNotes(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, s.CreateNote(ctx, f.note("unlimited", ""), store.Unlimited))
	count, err = s.CountNotes(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	// the cap counts per tenant
	other := newFixture(t, s, "globex")
	require.NoError(t, s.CreateNote(ctx, other.note("first", ""), 3))
}

func testNoteLimitConcurrent(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFixture(t, s, "acme")

	const attempts = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
		failures []error
	)
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CreateNote(ctx, f.note(fmt.Sprintf("note %d", i), ""), 3)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, store.ErrLimitReached):
				rejected++
			default:
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, failures)
	assert.Equal(t, 3, created)
	assert.Equal(t, attempts-3, rejected)

	count, err := s.CountNotes(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func testSeed(t *testing.T, s store.Store) {
	ctx := context.Background()

	first, err := store.Seed(ctx, s, store.DemoData)
	require.NoError(t, err)
	assert.Equal(t, 2, first.TenantsCreated)
	assert.Equal(t, 4, first.UsersCreated)

	second, err := store.Seed(ctx, s, store.DemoData)
	require.NoError(t, err)
	assert.Zero(t, second.TenantsCreated)
	assert.Zero(t, second.UsersCreated)

	u, err := s.GetUserByEmail(ctx, "user@globex.test")
	require.NoError(t, err)
	require.NotNil(t, u)
	require.NotNil(t, u.Tenant)
	assert.Equal(t, "globex", u.Tenant.Slug)
	assert.Equal(t, models.RoleMember, u.Role)
}
