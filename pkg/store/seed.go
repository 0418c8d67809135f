package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/surrealdb/tenantnote/pkg/models"
)

// DemoPasswordHash is the bcrypt hash of "password" shared by the demo users.
const DemoPasswordHash = "$2a$10$92IXUNpkjO0rOQ5byMi.Ye4oKoEa3Ro9llC/.og/at2.uheWG/igi"

// SeedTenant describes a tenant and its users for Seed.
type SeedTenant struct {
	Slug  string
	Name  string
	Plan  models.Plan
	Users []SeedUser
}

// SeedUser describes one user of a SeedTenant.
type SeedUser struct {
	Email        string
	Role         models.Role
	PasswordHash string
}

// DemoData is the two-tenant data set used by the seed command and tests.
var DemoData = []SeedTenant{
	{
		Slug: "acme",
		Name: "Acme Corp",
		Plan: models.PlanFree,
		Users: []SeedUser{
			{Email: "admin@acme.test", Role: models.RoleAdmin, PasswordHash: DemoPasswordHash},
			{Email: "user@acme.test", Role: models.RoleMember, PasswordHash: DemoPasswordHash},
		},
	},
	{
		Slug: "globex",
		Name: "Globex Corporation",
		Plan: models.PlanFree,
		Users: []SeedUser{
			{Email: "admin@globex.test", Role: models.RoleAdmin, PasswordHash: DemoPasswordHash},
			{Email: "user@globex.test", Role: models.RoleMember, PasswordHash: DemoPasswordHash},
		},
	},
}

// SeedResult counts what Seed created. Records that already existed are skipped.
type SeedResult struct {
	TenantsCreated int
	UsersCreated   int
}

// Seed creates the given tenants and users, skipping any slug or email that is
// already present. Running it twice is a no-op the second time.
func Seed(ctx context.Context, s Store, data []SeedTenant) (SeedResult, error) {
	var result SeedResult

	for _, st := range data {
		if !st.Plan.Valid() {
			return result, fmt.Errorf("tenant %s has unknown plan %q", st.Slug, st.Plan)
		}
		tenant, err := s.GetTenantBySlug(ctx, st.Slug)
		if err != nil {
			return result, fmt.Errorf("failed to look up tenant %s: %w", st.Slug, err)
		}
		if tenant == nil {
			tenant = &models.Tenant{Slug: st.Slug, Name: st.Name, Plan: st.Plan}
			if err := s.CreateTenant(ctx, tenant); err != nil {
				return result, fmt.Errorf("failed to create tenant %s: %w", st.Slug, err)
			}
			result.TenantsCreated++
		}

		for _, su := range st.Users {
			if !su.Role.Valid() {
				return result, fmt.Errorf("user %s has unknown role %q", su.Email, su.Role)
			}
			existing, err := s.GetUserByEmail(ctx, su.Email)
			if err != nil {
				return result, fmt.Errorf("failed to look up user %s: %w", su.Email, err)
			}
			if existing != nil {
				continue
			}
			user := &models.User{
				Email:        su.Email,
				Role:         su.Role,
				PasswordHash: su.PasswordHash,
				TenantID:     tenant.ID,
			}
			if err := s.CreateUser(ctx, user); err != nil {
				// lost a race with a concurrent seed
				if errors.Is(err, ErrConflict) {
					continue
				}
				return result, fmt.Errorf("failed to create user %s: %w", su.Email, err)
			}
			result.UsersCreated++
		}
	}
	return result, nil
}
