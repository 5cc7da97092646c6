package tenant

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andrelfnavarro/cidi-api/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the Postgres-backed tenant repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFor(ctx, r.pool)
}

const tenantCols = `id, slug, display_name, logo_url, primary_color,
	active, allow_self_registration, created_at, updated_at`

func scanTenant(row pgx.Row) (*Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Slug, &t.DisplayName, &t.LogoURL, &t.PrimaryColor,
		&t.Active, &t.AllowSelfRegistration, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repoPG) Create(ctx context.Context, t *Tenant) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO tenants (id, slug, display_name, logo_url, primary_color, active, allow_self_registration)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		t.ID, t.Slug, t.DisplayName, t.LogoURL, t.PrimaryColor, t.Active, t.AllowSelfRegistration,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return scanTenant(r.conn(ctx).QueryRow(ctx,
		`SELECT `+tenantCols+` FROM tenants WHERE id = $1`, id))
}

func (r *repoPG) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	return scanTenant(r.conn(ctx).QueryRow(ctx,
		`SELECT `+tenantCols+` FROM tenants WHERE slug = $1`, slug))
}

func (r *repoPG) Update(ctx context.Context, t *Tenant) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE tenants
		SET display_name = $2, logo_url = $3, primary_color = $4,
			allow_self_registration = $5, updated_at = NOW()
		WHERE id = $1`,
		t.ID, t.DisplayName, t.LogoURL, t.PrimaryColor, t.AllowSelfRegistration)
	return err
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE tenants SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	return err
}

func (r *repoPG) SlugTaken(ctx context.Context, slug string) (bool, error) {
	var taken bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE slug = $1)`, slug).Scan(&taken)
	return taken, err
}
