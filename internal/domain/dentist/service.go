package dentist

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andrelfnavarro/cidi-api/internal/domain/tenant"
	"github.com/andrelfnavarro/cidi-api/internal/platform/auth"
	"github.com/andrelfnavarro/cidi-api/internal/platform/db"
)

var (
	// ErrInvalidCredentials hides whether the email or the password was
	// wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrClinicInactive blocks sign-in to a deactivated clinic.
	ErrClinicInactive = errors.New("clinic is inactive")
)

const minPasswordLen = 8

// IdentityProvider is the account capability set the rest of the system
// depends on. The built-in implementation stores credentials in the
// dentists table and issues HS256 session tokens.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	CreateUser(ctx context.Context, tenantID uuid.UUID, in CreateInput) (*Dentist, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, current, newPassword string) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// TenantDirectory is the slice of the tenant service sign-in needs.
type TenantDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
}

type Service struct {
	dentists Repository
	tenants  TenantDirectory
	secret   []byte
	tokenTTL time.Duration
}

var _ IdentityProvider = (*Service)(nil)

func NewService(dentists Repository, tenants TenantDirectory, secret []byte, tokenTTL time.Duration) *Service {
	return &Service{dentists: dentists, tenants: tenants, secret: secret, tokenTTL: tokenTTL}
}

// SignIn checks the credentials and issues a session token scoped to the
// dentist's clinic.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	d, err := s.dentists.GetByEmail(ctx, email)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := auth.CheckPassword(d.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	t, err := s.tenants.GetByID(ctx, d.TenantID)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, ErrClinicInactive
	}
	token, err := auth.IssueToken(s.secret, s.tokenTTL, d.ID, d.TenantID, d.Admin, d.Name, d.Email)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Dentist: d}, nil
}

// CreateUser registers a dentist account under tenantID.
func (s *Service) CreateUser(ctx context.Context, tenantID uuid.UUID, in CreateInput) (*Dentist, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, fmt.Errorf("invalid email address")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("name is required")
	}
	if len(in.Password) < minPasswordLen {
		return nil, fmt.Errorf("password must have at least %d characters", minPasswordLen)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	d := &Dentist{
		TenantID:     tenantID,
		Email:        in.Email,
		Name:         strings.TrimSpace(in.Name),
		CRO:          in.CRO,
		Admin:        in.Admin,
		PasswordHash: hash,
	}
	if err := s.dentists.Create(ctx, d); err != nil {
		if db.IsUniqueViolation(err, "dentists_email_key") {
			return nil, fmt.Errorf("email already registered")
		}
		return nil, err
	}
	return d, nil
}

// FindByEmail looks an account up across all clinics. Checkout
// materialization uses it to reuse an existing account.
func (s *Service) FindByEmail(ctx context.Context, email string) (*Dentist, error) {
	return s.dentists.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Dentist, error) {
	return s.dentists.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Dentist, int, error) {
	return s.dentists.List(ctx, limit, offset)
}

// UpdateProfile applies the dentist's own profile change.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (*Dentist, error) {
	d, err := s.dentists.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) != "" {
		d.Name = strings.TrimSpace(in.Name)
	}
	if in.CRO != nil {
		d.CRO = in.CRO
	}
	if err := s.dentists.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// UpdatePassword rotates the password after checking the current one.
func (s *Service) UpdatePassword(ctx context.Context, id uuid.UUID, current, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("password must have at least %d characters", minPasswordLen)
	}
	d, err := s.dentists.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.CheckPassword(d.PasswordHash, current); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.dentists.SetPasswordHash(ctx, id, hash)
}

// SetAdmin toggles the admin flag on a roster member.
func (s *Service) SetAdmin(ctx context.Context, id uuid.UUID, admin bool) error {
	return s.dentists.SetAdmin(ctx, id, admin)
}

// DeleteUser removes the account and its roster row.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.dentists.Delete(ctx, id)
}

// EnsureAdmin makes sure d is an admin of its clinic, flipping the flag
// when needed. Used when a checkout is completed by an existing account.
func (s *Service) EnsureAdmin(ctx context.Context, d *Dentist) error {
	if d.Admin {
		return nil
	}
	if err := s.dentists.SetAdmin(ctx, d.ID, true); err != nil {
		return err
	}
	d.Admin = true
	return nil
}
