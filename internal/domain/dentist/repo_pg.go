package dentist

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andrelfnavarro/cidi-api/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the Postgres-backed dentist repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFor(ctx, r.pool)
}

const dentistCols = `id, tenant_id, email, name, cro, admin, password_hash, created_at, updated_at`

func scanDentist(row pgx.Row) (*Dentist, error) {
	var d Dentist
	err := row.Scan(&d.ID, &d.TenantID, &d.Email, &d.Name, &d.CRO, &d.Admin,
		&d.PasswordHash, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repoPG) Create(ctx context.Context, d *Dentist) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO dentists (id, tenant_id, email, name, cro, admin, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		d.ID, d.TenantID, d.Email, d.Name, d.CRO, d.Admin, d.PasswordHash,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Dentist, error) {
	return scanDentist(r.conn(ctx).QueryRow(ctx,
		`SELECT `+dentistCols+` FROM dentists WHERE id = $1`, id))
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Dentist, error) {
	return scanDentist(r.conn(ctx).QueryRow(ctx,
		`SELECT `+dentistCols+` FROM dentists WHERE email = $1`, email))
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Dentist, int, error) {
	tenantID := db.TenantFromContext(ctx)
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM dentists WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+dentistCols+` FROM dentists WHERE tenant_id = $1 ORDER BY name LIMIT $2 OFFSET $3`,
		tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var dentists []*Dentist
	for rows.Next() {
		d, err := scanDentist(rows)
		if err != nil {
			return nil, 0, err
		}
		dentists = append(dentists, d)
	}
	return dentists, total, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, d *Dentist) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE dentists SET name = $2, cro = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $4`,
		d.ID, d.Name, d.CRO, db.TenantFromContext(ctx))
	return err
}

func (r *repoPG) SetAdmin(ctx context.Context, id uuid.UUID, admin bool) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE dentists SET admin = $2, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $3`,
		id, admin, db.TenantFromContext(ctx))
	return err
}

func (r *repoPG) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE dentists SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM dentists WHERE id = $1 AND tenant_id = $2`,
		id, db.TenantFromContext(ctx))
	return err
}
