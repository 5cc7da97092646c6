package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence surface for patients. Every query is
// scoped to the tenant carried in the context.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	ExistsByCPF(ctx context.Context, cpf string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error)
}
