package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient is a clinic patient. CPF and email are unique within a tenant;
// CPF is stored as the 11 normalized digits.
type Patient struct {
	ID              uuid.UUID `db:"id" json:"id"`
	TenantID        uuid.UUID `db:"tenant_id" json:"tenant_id"`
	CPF             string    `db:"cpf" json:"cpf"`
	Name            string    `db:"name" json:"name"`
	Email           string    `db:"email" json:"email"`
	Phone           string    `db:"phone" json:"phone"`
	BirthDate       time.Time `db:"birth_date" json:"birth_date"`
	Street          string    `db:"street" json:"street"`
	Number          *string   `db:"number" json:"number,omitempty"`
	Complement      *string   `db:"complement" json:"complement,omitempty"`
	ZipCode         string    `db:"zip_code" json:"zip_code"`
	City            string    `db:"city" json:"city"`
	State           string    `db:"state" json:"state"`
	HasInsurance    bool      `db:"has_insurance" json:"has_insurance"`
	InsuranceName   *string   `db:"insurance_name" json:"insurance_name,omitempty"`
	InsuranceNumber *string   `db:"insurance_number" json:"insurance_number,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// LookupInput is the CPF-entry step of the intake flow.
type LookupInput struct {
	CPF string `json:"cpf"`
}

// LookupResult tells the intake form whether to show the registration
// step or the already-registered screen.
type LookupResult struct {
	Exists bool   `json:"exists"`
	CPF    string `json:"cpf"`
}

// RegisterInput is the intake registration form.
type RegisterInput struct {
	Name            string  `json:"name"`
	CPF             string  `json:"cpf"`
	Email           string  `json:"email"`
	Phone           string  `json:"phone"`
	BirthDate       string  `json:"birth_date"`
	Street          string  `json:"street"`
	Number          *string `json:"number"`
	Complement      *string `json:"complement"`
	ZipCode         string  `json:"zip_code"`
	City            string  `json:"city"`
	State           string  `json:"state"`
	InsuranceName   *string `json:"insurance_name"`
	InsuranceNumber *string `json:"insurance_number"`
}
