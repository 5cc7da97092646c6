package treatment

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence surface for treatments. All queries are
// scoped to the tenant carried in the context.
type Repository interface {
	Create(ctx context.Context, t *Treatment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Treatment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Treatment, int, error)
	Update(ctx context.Context, t *Treatment) error
}

// AnamnesisRepository stores the questionnaire, keyed by treatment.
type AnamnesisRepository interface {
	Get(ctx context.Context, treatmentID uuid.UUID) (*Anamnesis, error)
	Upsert(ctx context.Context, a *Anamnesis) error
}

// ItemRepository stores treatment plan items.
type ItemRepository interface {
	ListByTreatment(ctx context.Context, treatmentID uuid.UUID) ([]*Item, error)
	Insert(ctx context.Context, item *Item) error
	Update(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PaymentRepository stores the one payment row per treatment.
type PaymentRepository interface {
	Get(ctx context.Context, treatmentID uuid.UUID) (*Payment, error)
	Upsert(ctx context.Context, p *Payment) error
}

// FileRepository stores attachment metadata; bytes live in the object
// store.
type FileRepository interface {
	Create(ctx context.Context, f *File) error
	GetByID(ctx context.Context, id uuid.UUID) (*File, error)
	ListByTreatment(ctx context.Context, treatmentID uuid.UUID) ([]*File, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
