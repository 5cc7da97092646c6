package treatment

import (
	"time"

	"github.com/google/uuid"
)

// Treatment statuses. Finalization is advisory: it marks the record as
// closed for the clinic's bookkeeping but does not lock writes.
const (
	StatusOpen      = "open"
	StatusFinalized = "finalized"
)

// validTransitions is the full status transition table. Anything not
// listed is rejected.
var validTransitions = map[string]map[string]bool{
	StatusOpen: {StatusFinalized: true},
}

// Treatment is one course of care for a patient.
type Treatment struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	TenantID    uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	Status      string     `db:"status" json:"status"`
	CreatedBy   uuid.UUID  `db:"created_by" json:"created_by"`
	UpdatedBy   *uuid.UUID `db:"updated_by" json:"updated_by,omitempty"`
	FinalizedAt *time.Time `db:"finalized_at" json:"finalized_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Anamnesis is the health questionnaire, at most one per treatment.
type Anamnesis struct {
	TreatmentID          uuid.UUID  `db:"treatment_id" json:"treatment_id"`
	ChronicDisease       bool       `db:"chronic_disease" json:"chronic_disease"`
	ChronicDiseaseDetail *string    `db:"chronic_disease_detail" json:"chronic_disease_detail,omitempty"`
	Medication           bool       `db:"medication" json:"medication"`
	MedicationDetail     *string    `db:"medication_detail" json:"medication_detail,omitempty"`
	Allergy              bool       `db:"allergy" json:"allergy"`
	AllergyDetail        *string    `db:"allergy_detail" json:"allergy_detail,omitempty"`
	Bleeding             bool       `db:"bleeding" json:"bleeding"`
	BleedingDetail       *string    `db:"bleeding_detail" json:"bleeding_detail,omitempty"`
	Smoker               bool       `db:"smoker" json:"smoker"`
	SmokerDetail         *string    `db:"smoker_detail" json:"smoker_detail,omitempty"`
	Pregnancy            bool       `db:"pregnancy" json:"pregnancy"`
	PregnancyDetail      *string    `db:"pregnancy_detail" json:"pregnancy_detail,omitempty"`
	DentalPain           bool       `db:"dental_pain" json:"dental_pain"`
	DentalPainDetail     *string    `db:"dental_pain_detail" json:"dental_pain_detail,omitempty"`
	GumBleeding          bool       `db:"gum_bleeding" json:"gum_bleeding"`
	GumBleedingDetail    *string    `db:"gum_bleeding_detail" json:"gum_bleeding_detail,omitempty"`
	Notes                *string    `db:"notes" json:"notes,omitempty"`
	UpdatedBy            *uuid.UUID `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// Item is one planned or executed procedure on the treatment plan.
type Item struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	TreatmentID        uuid.UUID  `db:"treatment_id" json:"treatment_id"`
	Tooth              *string    `db:"tooth" json:"tooth,omitempty"`
	Description        string     `db:"description" json:"description"`
	Value              float64    `db:"value" json:"value"`
	CoveredByInsurance bool       `db:"covered_by_insurance" json:"covered_by_insurance"`
	CompletedAt        *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// ItemInput is one entry of the items save. A nil or unknown ID means
// insert; a matching ID means update in place.
type ItemInput struct {
	ID                 *uuid.UUID `json:"id"`
	Tooth              *string    `json:"tooth"`
	Description        string     `json:"description"`
	Value              float64    `json:"value"`
	CoveredByInsurance bool       `json:"covered_by_insurance"`
	CompletedAt        *time.Time `json:"completed_at"`
}

// Payment is the single payment record of a treatment. Total is derived
// from the items; method and installments are set by the dentist. A
// non-nil PaidAt means paid.
type Payment struct {
	TreatmentID  uuid.UUID  `db:"treatment_id" json:"treatment_id"`
	Total        float64    `db:"total" json:"total"`
	Method       string     `db:"method" json:"method"`
	Installments int        `db:"installments" json:"installments"`
	PaidAt       *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// PaymentInput is the dentist-editable part of the payment.
type PaymentInput struct {
	Method       string     `json:"method"`
	Installments int        `json:"installments"`
	PaidAt       *time.Time `json:"paid_at"`
}

// File is an uploaded attachment (x-rays, consent forms, photos).
type File struct {
	ID          uuid.UUID `db:"id" json:"id"`
	TreatmentID uuid.UUID `db:"treatment_id" json:"treatment_id"`
	StoragePath string    `db:"storage_path" json:"-"`
	Name        string    `db:"name" json:"name"`
	Size        int64     `db:"size" json:"size"`
	ContentType string    `db:"content_type" json:"content_type"`
	UploadedBy  uuid.UUID `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Detail is the full treatment record the chart screen renders.
type Detail struct {
	Treatment *Treatment `json:"treatment"`
	Anamnesis *Anamnesis `json:"anamnesis,omitempty"`
	Items     []*Item    `json:"items"`
	Payment   *Payment   `json:"payment,omitempty"`
	Files     []*File    `json:"files"`
}
