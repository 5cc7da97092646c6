package dentist

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence surface for dentists. List is scoped to
// the tenant in the context; GetByEmail is global because emails identify
// a single account across the platform.
type Repository interface {
	Create(ctx context.Context, d *Dentist) error
	GetByID(ctx context.Context, id uuid.UUID) (*Dentist, error)
	GetByEmail(ctx context.Context, email string) (*Dentist, error)
	List(ctx context.Context, limit, offset int) ([]*Dentist, int, error)
	Update(ctx context.Context, d *Dentist) error
	SetAdmin(ctx context.Context, id uuid.UUID, admin bool) error
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	Delete(ctx context.Context, id uuid.UUID) error
}
