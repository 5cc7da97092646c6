package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence surface for tenants.
type Repository interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SlugTaken(ctx context.Context, slug string) (bool, error)
}
