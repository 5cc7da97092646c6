package billing

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence surface for subscription mirrors. The
// remote id is the natural key; webhook handlers and the reconcile sweep
// address rows by it without tenant context.
type Repository interface {
	Create(ctx context.Context, s *Subscription) error
	GetByRemoteID(ctx context.Context, remoteID string) (*Subscription, error)
	GetCurrentByTenant(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	ListRemoteIDs(ctx context.Context) ([]string, error)
}
