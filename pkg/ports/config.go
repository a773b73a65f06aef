package ports

import (
	"context"

	"github.com/aretw0/switchboard/pkg/domain"
)

// ConfigSource provides decision-time tenant configuration.
// Returns domain.ErrTenantNotFound for unknown tenants.
type ConfigSource interface {
	Tenant(ctx context.Context, tenantID string) (*domain.TenantConfig, error)
}

// ConfigInvalidator is implemented by caching sources that honor the
// invalidation contract: after Invalidate, the next Tenant call for that
// tenant must not serve a version older than the given one.
type ConfigInvalidator interface {
	Invalidate(tenantID, version string)
}
