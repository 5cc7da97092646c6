package dentist

import (
	"time"

	"github.com/google/uuid"
)

// Dentist is a clinic staff member. The row doubles as the identity
// record for the built-in provider, so the id is also the JWT subject.
type Dentist struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TenantID     uuid.UUID `db:"tenant_id" json:"tenant_id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	CRO          *string   `db:"cro" json:"cro,omitempty"`
	Admin        bool      `db:"admin" json:"admin"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// SignInInput is the session request body.
type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is the sign-in response: a bearer token plus the profile it
// was issued for.
type Session struct {
	Token   string   `json:"token"`
	Dentist *Dentist `json:"dentist"`
}

// CreateInput is the admin roster creation body.
type CreateInput struct {
	Email    string  `json:"email"`
	Name     string  `json:"name"`
	CRO      *string `json:"cro"`
	Password string  `json:"password"`
	Admin    bool    `json:"admin"`
}

// ProfileInput are the self-service profile fields.
type ProfileInput struct {
	Name string  `json:"name"`
	CRO  *string `json:"cro"`
}

// PasswordInput is the self-service password change body.
type PasswordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}
