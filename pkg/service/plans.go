package service

import (
	"context"

	"github.com/surrealdb/tenantnote/pkg/auth"
	"github.com/surrealdb/tenantnote/pkg/errs"
	"github.com/surrealdb/tenantnote/pkg/models"
	"github.com/surrealdb/tenantnote/pkg/store"
)

// PlanService moves tenants from the free plan to pro.
type PlanService struct {
	store    store.Store
	observer Observer
}

// NewPlanService returns a PlanService backed by s.
func NewPlanService(s store.Store, opts ...Option) *PlanService {
	o := buildOptions(opts)
	return &PlanService{store: s, observer: o.observer}
}

// Upgrade sets the tenant identified by slug to pro. Only an admin of that
// same tenant may do so. Upgrading a pro tenant again succeeds unchanged.
func (s *PlanService) Upgrade(ctx context.Context, claims *auth.Claims, slug string) (*models.Tenant, error) {
	const op = "tenants.upgrade"
	if claims.Role != models.RoleAdmin || claims.TenantSlug != slug {
		return nil, errs.E(op, errs.Forbidden, "Forbidden")
	}

	tenant, err := s.store.UpgradeTenantPlan(ctx, slug, models.PlanPro)
	if err != nil {
		return nil, storeError(op, err)
	}
	if tenant == nil {
		return nil, errs.E(op, errs.NotFound, msgTenantNotFound)
	}
	s.observer.TenantUpgraded(slug)
	return tenant, nil
}
