package tenant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andrelfnavarro/cidi-api/internal/platform/db"
)

// ErrTenantNotFound covers empty, malformed and unknown slugs alike so the
// public resolver never leaks which of the three happened.
var ErrTenantNotFound = errors.New("clinic not found")

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type Service struct {
	tenants Repository
	now     func() time.Time
}

func NewService(tenants Repository) *Service {
	return &Service{tenants: tenants, now: time.Now}
}

// NormalizeSlug trims and lowercases a slug from a URL path segment.
func NormalizeSlug(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Slugify derives a URL slug from a clinic's display name.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// ResolveSlug finds the active tenant behind a public URL slug. Anything
// that is not an exact match of a known slug resolves to ErrTenantNotFound.
func (s *Service) ResolveSlug(ctx context.Context, raw string) (*Tenant, error) {
	slug := NormalizeSlug(raw)
	if slug == "" || !slugPattern.MatchString(slug) {
		return nil, ErrTenantNotFound
	}
	t, err := s.tenants.GetBySlug(ctx, slug)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return s.tenants.GetByID(ctx, id)
}

// EnsureSlug returns a free slug for name. On collision the unix timestamp
// is appended so checkout materialization never fails on a taken name.
func (s *Service) EnsureSlug(ctx context.Context, name string) (string, error) {
	slug := Slugify(name)
	if slug == "" {
		return "", fmt.Errorf("display name %q yields an empty slug", name)
	}
	taken, err := s.tenants.SlugTaken(ctx, slug)
	if err != nil {
		return "", err
	}
	if !taken {
		return slug, nil
	}
	return fmt.Sprintf("%s-%d", slug, s.now().Unix()), nil
}

// Create registers a new clinic. An empty slug is derived from the display
// name; an explicit slug must be well formed and free.
func (s *Service) Create(ctx context.Context, displayName, slug string) (*Tenant, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, fmt.Errorf("display name is required")
	}
	if slug == "" {
		var err error
		slug, err = s.EnsureSlug(ctx, displayName)
		if err != nil {
			return nil, err
		}
	} else {
		slug = NormalizeSlug(slug)
		if !slugPattern.MatchString(slug) {
			return nil, fmt.Errorf("invalid slug: %s", slug)
		}
	}
	t := &Tenant{
		Slug:                  slug,
		DisplayName:           strings.TrimSpace(displayName),
		Active:                true,
		AllowSelfRegistration: true,
	}
	if err := s.tenants.Create(ctx, t); err != nil {
		if db.IsUniqueViolation(err, "tenants_slug_key") {
			return nil, fmt.Errorf("slug already in use: %s", slug)
		}
		return nil, err
	}
	return t, nil
}

// UpdateSettings applies an admin's settings change to the tenant.
func (s *Service) UpdateSettings(ctx context.Context, id uuid.UUID, in SettingsInput) (*Tenant, error) {
	t, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.DisplayName) != "" {
		t.DisplayName = strings.TrimSpace(in.DisplayName)
	}
	if in.LogoURL != nil {
		t.LogoURL = in.LogoURL
	}
	if in.PrimaryColor != nil {
		t.PrimaryColor = in.PrimaryColor
	}
	if in.AllowSelfRegistration != nil {
		t.AllowSelfRegistration = *in.AllowSelfRegistration
	}
	if err := s.tenants.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Deactivate turns the clinic off. Billing calls this when the
// subscription is canceled.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.tenants.SetActive(ctx, id, false)
}

// Reactivate turns the clinic back on after a past-due subscription
// recovers.
func (s *Service) Reactivate(ctx context.Context, id uuid.UUID) error {
	return s.tenants.SetActive(ctx, id, true)
}
