package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is a clinic on the platform. Slug is the public handle used in
// patient-facing URLs and is unique across the whole platform.
type Tenant struct {
	ID                    uuid.UUID `db:"id" json:"id"`
	Slug                  string    `db:"slug" json:"slug"`
	DisplayName           string    `db:"display_name" json:"display_name"`
	LogoURL               *string   `db:"logo_url" json:"logo_url,omitempty"`
	PrimaryColor          *string   `db:"primary_color" json:"primary_color,omitempty"`
	Active                bool      `db:"active" json:"active"`
	AllowSelfRegistration bool      `db:"allow_self_registration" json:"allow_self_registration"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// Card is the public projection of a tenant served on the intake pages.
type Card struct {
	Slug                  string  `json:"slug"`
	DisplayName           string  `json:"display_name"`
	LogoURL               *string `json:"logo_url,omitempty"`
	PrimaryColor          *string `json:"primary_color,omitempty"`
	AllowSelfRegistration bool    `json:"allow_self_registration"`
}

// PublicCard projects the fields safe to show unauthenticated visitors.
func (t *Tenant) PublicCard() Card {
	return Card{
		Slug:                  t.Slug,
		DisplayName:           t.DisplayName,
		LogoURL:               t.LogoURL,
		PrimaryColor:          t.PrimaryColor,
		AllowSelfRegistration: t.AllowSelfRegistration,
	}
}

// SettingsInput are the tenant fields an admin may change.
type SettingsInput struct {
	DisplayName           string  `json:"display_name"`
	LogoURL               *string `json:"logo_url"`
	PrimaryColor          *string `json:"primary_color"`
	AllowSelfRegistration *bool   `json:"allow_self_registration"`
}
