package treatment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andrelfnavarro/cidi-api/internal/domain/patient"
	"github.com/andrelfnavarro/cidi-api/internal/platform/blobstore"
	"github.com/andrelfnavarro/cidi-api/internal/platform/db"
)

// ErrInvalidTransition rejects any status change the transition table
// does not list, including finalizing twice.
var ErrInvalidTransition = errors.New("treatment cannot be finalized in its current status")

// Payment defaults applied when the items save has to create the row.
const (
	DefaultPaymentMethod       = "cash"
	DefaultPaymentInstallments = 1
)

var validPaymentMethods = map[string]bool{
	"cash": true, "credit_card": true, "debit_card": true, "pix": true, "bank_slip": true,
}

const signedURLTTL = 15 * time.Minute

// PatientDirectory is the slice of the patient service this package
// needs.
type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// TxRunner runs fn atomically. Production wiring uses db.InTx; tests run
// fn directly.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	treatments Repository
	anamneses  AnamnesisRepository
	items      ItemRepository
	payments   PaymentRepository
	files      FileRepository
	patients   PatientDirectory
	store      blobstore.ObjectStore
	signer     *blobstore.URLSigner
	inTx       TxRunner
}

func NewService(
	treatments Repository,
	anamneses AnamnesisRepository,
	items ItemRepository,
	payments PaymentRepository,
	files FileRepository,
	patients PatientDirectory,
	store blobstore.ObjectStore,
	signer *blobstore.URLSigner,
	inTx TxRunner,
) *Service {
	if inTx == nil {
		inTx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Service{
		treatments: treatments,
		anamneses:  anamneses,
		items:      items,
		payments:   payments,
		files:      files,
		patients:   patients,
		store:      store,
		signer:     signer,
		inTx:       inTx,
	}
}

// Open starts a new treatment for the patient.
func (s *Service) Open(ctx context.Context, patientID, createdBy uuid.UUID) (*Treatment, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	t := &Treatment{
		PatientID: patientID,
		Status:    StatusOpen,
		CreatedBy: createdBy,
	}
	if err := s.treatments.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	return s.treatments.GetByID(ctx, id)
}

// GetDetail loads the whole record the chart screen needs. A missing
// anamnesis or payment is an empty state, not an error.
func (s *Service) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	t, err := s.treatments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &Detail{Treatment: t, Items: []*Item{}, Files: []*File{}}

	if a, err := s.anamneses.Get(ctx, id); err == nil {
		d.Anamnesis = a
	} else if !db.IsNotFound(err) {
		return nil, err
	}
	if items, err := s.items.ListByTreatment(ctx, id); err == nil && items != nil {
		d.Items = items
	} else if err != nil {
		return nil, err
	}
	if p, err := s.payments.Get(ctx, id); err == nil {
		d.Payment = p
	} else if !db.IsNotFound(err) {
		return nil, err
	}
	if files, err := s.files.ListByTreatment(ctx, id); err == nil && files != nil {
		d.Files = files
	} else if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Treatment, int, error) {
	return s.treatments.ListByPatient(ctx, patientID, limit, offset)
}

// Finalize moves the treatment to finalized. Only open treatments may be
// finalized; there is no server-side re-open.
func (s *Service) Finalize(ctx context.Context, id, dentistID uuid.UUID) (*Treatment, error) {
	t, err := s.treatments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !validTransitions[t.Status][StatusFinalized] {
		return nil, ErrInvalidTransition
	}
	now := time.Now()
	t.Status = StatusFinalized
	t.FinalizedAt = &now
	t.UpdatedBy = &dentistID
	if err := s.treatments.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// SaveAnamnesis upserts the questionnaire. Finalized treatments still
// accept saves.
func (s *Service) SaveAnamnesis(ctx context.Context, treatmentID, dentistID uuid.UUID, a *Anamnesis) (*Anamnesis, error) {
	if _, err := s.treatments.GetByID(ctx, treatmentID); err != nil {
		return nil, err
	}
	a.TreatmentID = treatmentID
	a.UpdatedBy = &dentistID
	if err := s.anamneses.Upsert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// SaveItems reconciles the treatment plan against the incoming set: new
// entries are inserted, matching ids updated in place, missing ones
// deleted. The payment total is then recomputed as the sum of the values
// not covered by insurance.
func (s *Service) SaveItems(ctx context.Context, treatmentID, dentistID uuid.UUID, incoming []ItemInput) ([]*Item, error) {
	if _, err := s.treatments.GetByID(ctx, treatmentID); err != nil {
		return nil, err
	}
	for _, in := range incoming {
		if strings.TrimSpace(in.Description) == "" {
			return nil, fmt.Errorf("item description is required")
		}
		if in.Value < 0 {
			return nil, fmt.Errorf("item value cannot be negative")
		}
	}

	var saved []*Item
	err := s.inTx(ctx, func(ctx context.Context) error {
		existing, err := s.items.ListByTreatment(ctx, treatmentID)
		if err != nil {
			return err
		}
		current := make(map[uuid.UUID]*Item, len(existing))
		for _, item := range existing {
			current[item.ID] = item
		}

		seen := make(map[uuid.UUID]bool, len(incoming))
		for _, in := range incoming {
			item := &Item{
				TreatmentID:        treatmentID,
				Tooth:              in.Tooth,
				Description:        strings.TrimSpace(in.Description),
				Value:              in.Value,
				CoveredByInsurance: in.CoveredByInsurance,
				CompletedAt:        in.CompletedAt,
			}
			if in.ID != nil {
				if _, known := current[*in.ID]; known {
					item.ID = *in.ID
					if err := s.items.Update(ctx, item); err != nil {
						return err
					}
					seen[item.ID] = true
					saved = append(saved, item)
					continue
				}
			}
			if err := s.items.Insert(ctx, item); err != nil {
				return err
			}
			seen[item.ID] = true
			saved = append(saved, item)
		}

		for id := range current {
			if !seen[id] {
				if err := s.items.Delete(ctx, id); err != nil {
					return err
				}
			}
		}

		return s.recomputePaymentTotal(ctx, treatmentID, saved)
	})
	if err != nil {
		return nil, err
	}
	if saved == nil {
		saved = []*Item{}
	}
	return saved, nil
}

// recomputePaymentTotal patches the payment row with the sum of the
// non-covered item values, creating the row with defaults when absent.
func (s *Service) recomputePaymentTotal(ctx context.Context, treatmentID uuid.UUID, items []*Item) error {
	var total float64
	for _, item := range items {
		if !item.CoveredByInsurance {
			total += item.Value
		}
	}

	p, err := s.payments.Get(ctx, treatmentID)
	if err != nil {
		if !db.IsNotFound(err) {
			return err
		}
		p = &Payment{
			TreatmentID:  treatmentID,
			Method:       DefaultPaymentMethod,
			Installments: DefaultPaymentInstallments,
		}
	}
	p.Total = total
	return s.payments.Upsert(ctx, p)
}

// SavePayment updates the dentist-editable payment fields. The total
// stays derived from the items.
func (s *Service) SavePayment(ctx context.Context, treatmentID uuid.UUID, in PaymentInput) (*Payment, error) {
	if _, err := s.treatments.GetByID(ctx, treatmentID); err != nil {
		return nil, err
	}
	if in.Method == "" {
		in.Method = DefaultPaymentMethod
	}
	if !validPaymentMethods[in.Method] {
		return nil, fmt.Errorf("invalid payment method: %s", in.Method)
	}
	if in.Installments <= 0 {
		in.Installments = DefaultPaymentInstallments
	}

	p, err := s.payments.Get(ctx, treatmentID)
	if err != nil {
		if !db.IsNotFound(err) {
			return nil, err
		}
		p = &Payment{TreatmentID: treatmentID}
	}
	p.Method = in.Method
	p.Installments = in.Installments
	p.PaidAt = in.PaidAt
	if err := s.payments.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UploadFile stores the bytes and records the attachment. Objects are
// keyed under <tenant>/<treatment>/<uuid>-<name> so removal of a clinic
// or record maps to a prefix.
func (s *Service) UploadFile(ctx context.Context, treatmentID, dentistID uuid.UUID, name, contentType string, content io.Reader) (*File, error) {
	if _, err := s.treatments.GetByID(ctx, treatmentID); err != nil {
		return nil, err
	}
	if err := blobstore.ValidateContentType(contentType); err != nil {
		return nil, err
	}
	name = sanitizeFilename(name)
	if name == "" {
		return nil, fmt.Errorf("file name is required")
	}

	tenantID := db.TenantFromContext(ctx)
	storagePath := fmt.Sprintf("%s/%s/%s-%s", tenantID, treatmentID, uuid.New(), name)

	info, err := s.store.Upload(ctx, storagePath, contentType, content)
	if err != nil {
		return nil, err
	}

	f := &File{
		TreatmentID: treatmentID,
		StoragePath: storagePath,
		Name:        name,
		Size:        info.Size,
		ContentType: contentType,
		UploadedBy:  dentistID,
	}
	if err := s.files.Create(ctx, f); err != nil {
		// Best effort: do not leak the object when the row failed.
		_ = s.store.Remove(ctx, []string{storagePath})
		return nil, err
	}
	return f, nil
}

func (s *Service) ListFiles(ctx context.Context, treatmentID uuid.UUID) ([]*File, error) {
	if _, err := s.treatments.GetByID(ctx, treatmentID); err != nil {
		return nil, err
	}
	files, err := s.files.ListByTreatment(ctx, treatmentID)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []*File{}
	}
	return files, nil
}

// FileURL returns a short-lived signed download URL for the attachment.
func (s *Service) FileURL(ctx context.Context, treatmentID, fileID uuid.UUID) (string, error) {
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return "", err
	}
	if f.TreatmentID != treatmentID {
		return "", fmt.Errorf("file does not belong to treatment")
	}
	return s.signer.Sign(f.StoragePath, signedURLTTL), nil
}

// DeleteFile removes the object and its row. Object removal is
// idempotent so a retried delete converges.
func (s *Service) DeleteFile(ctx context.Context, treatmentID, fileID uuid.UUID) error {
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if f.TreatmentID != treatmentID {
		return fmt.Errorf("file does not belong to treatment")
	}
	if err := s.store.Remove(ctx, []string{f.StoragePath}); err != nil {
		return err
	}
	return s.files.Delete(ctx, fileID)
}

// sanitizeFilename keeps the base name and drops path separators and
// control characters.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		if r < 32 || r == 127 {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
