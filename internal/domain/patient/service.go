package patient

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andrelfnavarro/cidi-api/internal/platform/db"
	"github.com/andrelfnavarro/cidi-api/pkg/cpf"
)

var (
	// ErrCPFRegistered and ErrEmailRegistered mark intake duplicates. The
	// pre-check is advisory; the unique constraints map to the same errors.
	ErrCPFRegistered   = errors.New("CPF already registered")
	ErrEmailRegistered = errors.New("email already registered")
)

const birthDateLayout = "2006-01-02"

type Service struct {
	patients Repository
}

func NewService(patients Repository) *Service {
	return &Service{patients: patients}
}

// Lookup tells the intake flow whether a CPF is already registered with
// the clinic. The CPF is normalized so formatted and digit-only input hit
// the same record.
func (s *Service) Lookup(ctx context.Context, rawCPF string) (*LookupResult, error) {
	digits, err := cpf.Validate(rawCPF)
	if err != nil {
		return nil, err
	}
	exists, err := s.patients.ExistsByCPF(ctx, digits)
	if err != nil {
		return nil, err
	}
	return &LookupResult{Exists: exists, CPF: digits}, nil
}

// Register creates a patient from the intake form.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Patient, error) {
	digits, err := cpf.Validate(in.CPF)
	if err != nil {
		return nil, err
	}

	required := map[string]string{
		"name":       in.Name,
		"email":      in.Email,
		"phone":      in.Phone,
		"birth_date": in.BirthDate,
		"street":     in.Street,
		"zip_code":   in.ZipCode,
		"city":       in.City,
		"state":      in.State,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%s is required", field)
		}
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("invalid email address")
	}

	birthDate, err := time.Parse(birthDateLayout, in.BirthDate)
	if err != nil {
		return nil, fmt.Errorf("invalid birth_date, expected YYYY-MM-DD")
	}

	hasName := in.InsuranceName != nil && strings.TrimSpace(*in.InsuranceName) != ""
	hasNumber := in.InsuranceNumber != nil && strings.TrimSpace(*in.InsuranceNumber) != ""
	if hasName != hasNumber {
		return nil, fmt.Errorf("insurance name and number must be provided together")
	}

	if exists, err := s.patients.ExistsByCPF(ctx, digits); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrCPFRegistered
	}
	if exists, err := s.patients.ExistsByEmail(ctx, email); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrEmailRegistered
	}

	p := &Patient{
		CPF:          digits,
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		BirthDate:    birthDate,
		Street:       strings.TrimSpace(in.Street),
		Number:       in.Number,
		Complement:   in.Complement,
		ZipCode:      strings.TrimSpace(in.ZipCode),
		City:         strings.TrimSpace(in.City),
		State:        strings.ToUpper(strings.TrimSpace(in.State)),
		HasInsurance: hasName,
	}
	if hasName {
		p.InsuranceName = in.InsuranceName
		p.InsuranceNumber = in.InsuranceNumber
	}

	if err := s.patients.Create(ctx, p); err != nil {
		switch {
		case db.IsUniqueViolation(err, "patients_tenant_id_cpf_key"):
			return nil, ErrCPFRegistered
		case db.IsUniqueViolation(err, "patients_tenant_id_email_key"):
			return nil, ErrEmailRegistered
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// Search matches patients by name fragment or CPF digits within the
// clinic.
func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	query = strings.TrimSpace(query)
	if normalized := cpf.Normalize(query); normalized != "" && len(normalized) >= 3 {
		digitsOnly := true
		for _, r := range query {
			if (r < '0' || r > '9') && r != '.' && r != '-' && r != ' ' {
				digitsOnly = false
				break
			}
		}
		if digitsOnly {
			query = normalized
		}
	}
	return s.patients.Search(ctx, query, limit, offset)
}
