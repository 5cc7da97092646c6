package patient

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andrelfnavarro/cidi-api/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the Postgres-backed patient repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFor(ctx, r.pool)
}

const patientCols = `id, tenant_id, cpf, name, email, phone, birth_date,
	street, number, complement, zip_code, city, state,
	has_insurance, insurance_name, insurance_number, created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.TenantID, &p.CPF, &p.Name, &p.Email, &p.Phone, &p.BirthDate,
		&p.Street, &p.Number, &p.Complement, &p.ZipCode, &p.City, &p.State,
		&p.HasInsurance, &p.InsuranceName, &p.InsuranceNumber, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.TenantID = db.TenantFromContext(ctx)
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, tenant_id, cpf, name, email, phone, birth_date,
			street, number, complement, zip_code, city, state,
			has_insurance, insurance_name, insurance_number)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING created_at`,
		p.ID, p.TenantID, p.CPF, p.Name, p.Email, p.Phone, p.BirthDate,
		p.Street, p.Number, p.Complement, p.ZipCode, p.City, p.State,
		p.HasInsurance, p.InsuranceName, p.InsuranceNumber,
	).Scan(&p.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1 AND tenant_id = $2`,
		id, db.TenantFromContext(ctx)))
}

func (r *repoPG) ExistsByCPF(ctx context.Context, cpf string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE tenant_id = $1 AND cpf = $2)`,
		db.TenantFromContext(ctx), cpf).Scan(&exists)
	return exists, err
}

func (r *repoPG) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE tenant_id = $1 AND email = $2)`,
		db.TenantFromContext(ctx), email).Scan(&exists)
	return exists, err
}

func (r *repoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	tenantID := db.TenantFromContext(ctx)
	pattern := "%" + query + "%"

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM patients
		WHERE tenant_id = $1 AND (name ILIKE $2 OR cpf LIKE $2)`,
		tenantID, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+` FROM patients
		WHERE tenant_id = $1 AND (name ILIKE $2 OR cpf LIKE $2)
		ORDER BY name LIMIT $3 OFFSET $4`,
		tenantID, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}
