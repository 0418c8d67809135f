package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/tenantnote/pkg/models"
	"github.com/surrealdb/tenantnote/pkg/store"
	"github.com/surrealdb/tenantnote/pkg/store/memory"
	"github.com/surrealdb/tenantnote/pkg/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return memory.New()
	})
}

func TestNewestFirstWithIdenticalTimestamps(t *testing.T) {
	ctx := context.Background()
	frozen := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := memory.New(memory.WithClock(func() time.Time { return frozen }))

	tenant := &models.Tenant{Slug: "acme", Name: "Acme Corp"}
	require.NoError(t, s.CreateTenant(ctx, tenant))

	first := &models.Note{TenantID: tenant.ID, Title: "first"}
	second := &models.Note{TenantID: tenant.ID, Title: "second"}
	require.NoError(t, s.CreateNote(ctx, first, store.Unlimited))
	require.NoError(t, s.CreateNote(ctx, second, store.Unlimited))

	list, err := s.ListNotes(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Title)
	assert.Equal(t, "first", list[1].Title)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	tenant := &models.Tenant{Slug: "acme", Name: "Acme Corp"}
	require.NoError(t, s.CreateTenant(ctx, tenant))
	tenant.Plan = models.PlanPro

	got, err := s.GetTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, got.Plan)
}

func TestReadOnlyWrapper(t *testing.T) {
	ctx := context.Background()
	readOnly := false
	s := store.NewReadOnlyStore(memory.New(), func() bool { return readOnly })

	tenant := &models.Tenant{Slug: "acme", Name: "Acme Corp"}
	require.NoError(t, s.CreateTenant(ctx, tenant))
	note := &models.Note{TenantID: tenant.ID, Title: "Shopping"}
	require.NoError(t, s.CreateNote(ctx, note, store.Unlimited))

	readOnly = true
	assert.True(t, s.ReadOnly())

	err := s.CreateNote(ctx, &models.Note{TenantID: tenant.ID, Title: "blocked"}, store.Unlimited)
	assert.ErrorIs(t, err, store.ErrReadOnly)

	_, err = s.UpgradeTenantPlan(ctx, "acme", models.PlanPro)
	assert.ErrorIs(t, err, store.ErrReadOnly)

	title := "changed"
	_, err = s.UpdateNote(ctx, tenant.ID, note.ID, models.NotePatch{Title: &title})
	assert.ErrorIs(t, err, store.ErrReadOnly)

	_, err = s.DeleteNote(ctx, tenant.ID, note.ID)
	assert.ErrorIs(t, err, store.ErrReadOnly)

	err = s.CreateUser(ctx, &models.User{Email: "x@acme.test", TenantID: tenant.ID, Role: models.RoleMember})
	assert.ErrorIs(t, err, store.ErrReadOnly)

	// reads still work
	got, err := s.GetNote(ctx, tenant.ID, note.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Shopping", got.Title)

	readOnly = false
	deleted, err := s.DeleteNote(ctx, tenant.ID, note.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestSeedRejectsUnknownPlanOrRole(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	_, err := store.Seed(ctx, s, []store.SeedTenant{{Slug: "initech", Name: "Initech", Plan: "gold"}})
	require.Error(t, err)

	_, err = store.Seed(ctx, s, []store.SeedTenant{{
		Slug:  "initech",
		Name:  "Initech",
		Plan:  models.PlanFree,
		Users: []store.SeedUser{{Email: "peter@initech.test", Role: "owner"}},
	}})
	require.Error(t, err)

	user, err := s.GetUserByEmail(ctx, "peter@initech.test")
	require.NoError(t, err)
	assert.Nil(t, user)
}
