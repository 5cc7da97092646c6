package treatment

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andrelfnavarro/cidi-api/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the Postgres-backed treatment repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFor(ctx, r.pool)
}

const treatmentCols = `id, tenant_id, patient_id, status, created_by, updated_by,
	finalized_at, created_at, updated_at`

func scanTreatment(row pgx.Row) (*Treatment, error) {
	var t Treatment
	err := row.Scan(&t.ID, &t.TenantID, &t.PatientID, &t.Status, &t.CreatedBy, &t.UpdatedBy,
		&t.FinalizedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repoPG) Create(ctx context.Context, t *Treatment) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.TenantID = db.TenantFromContext(ctx)
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO treatments (id, tenant_id, patient_id, status, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		t.ID, t.TenantID, t.PatientID, t.Status, t.CreatedBy,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	return scanTreatment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+treatmentCols+` FROM treatments WHERE id = $1 AND tenant_id = $2`,
		id, db.TenantFromContext(ctx)))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Treatment, int, error) {
	tenantID := db.TenantFromContext(ctx)
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM treatments WHERE tenant_id = $1 AND patient_id = $2`,
		tenantID, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+treatmentCols+` FROM treatments
		WHERE tenant_id = $1 AND patient_id = $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		tenantID, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var treatments []*Treatment
	for rows.Next() {
		t, err := scanTreatment(rows)
		if err != nil {
			return nil, 0, err
		}
		treatments = append(treatments, t)
	}
	return treatments, total, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, t *Treatment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE treatments
		SET status = $2, updated_by = $3, finalized_at = $4, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $5`,
		t.ID, t.Status, t.UpdatedBy, t.FinalizedAt, db.TenantFromContext(ctx))
	return err
}

// =========== Anamnesis ===========

type anamnesisRepoPG struct{ pool *pgxpool.Pool }

func NewAnamnesisRepoPG(pool *pgxpool.Pool) AnamnesisRepository {
	return &anamnesisRepoPG{pool: pool}
}

func (r *anamnesisRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFor(ctx, r.pool)
}

const anamnesisCols = `treatment_id,
	chronic_disease, chronic_disease_detail, medication, medication_detail,
	allergy, allergy_detail, bleeding, bleeding_detail,
	smoker, smoker_detail, pregnancy, pregnancy_detail,
	dental_pain, dental_pain_detail, gum_bleeding, gum_bleeding_detail,
	notes, updated_by, updated_at`

func scanAnamnesis(row pgx.Row) (*Anamnesis, error) {
	var a Anamnesis
	err := row.Scan(&a.TreatmentID,
		&a.ChronicDisease, &a.ChronicDiseaseDetail, &a.Medication, &a.MedicationDetail,
		&a.Allergy, &a.AllergyDetail, &a.Bleeding, &a.BleedingDetail,
		&a.Smoker, &a.SmokerDetail, &a.Pregnancy, &a.PregnancyDetail,
		&a.DentalPain, &a.DentalPainDetail, &a.GumBleeding, &a.GumBleedingDetail,
		&a.Notes, &a.UpdatedBy, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *anamnesisRepoPG) Get(ctx context.Context, treatmentID uuid.UUID) (*Anamnesis, error) {
	return scanAnamnesis(r.conn(ctx).QueryRow(ctx,
		`SELECT `+anamnesisCols+` FROM anamneses WHERE treatment_id = $1`, treatmentID))
}

func (r *anamnesisRepoPG) Upsert(ctx context.Context, a *Anamnesis) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO anamneses (treatment_id,
			chronic_disease, chronic_disease_detail, medication, medication_detail,
			allergy, allergy_detail, bleeding, bleeding_detail,
			smoker, smoker_detail, pregnancy, pregnancy_detail,
			dental_pain, dental_pain_detail, gum_bleeding, gum_bleeding_detail,
			notes, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (treatment_id) DO UPDATE SET
			chronic_disease = EXCLUDED.chronic_disease,
			chronic_disease_detail = EXCLUDED.chronic_disease_detail,
			medication = EXCLUDED.medication,
			medication_detail = EXCLUDED.medication_detail,
			allergy = EXCLUDED.allergy,
			allergy_detail = EXCLUDED.allergy_detail,
			bleeding = EXCLUDED.bleeding,
			bleeding_detail = EXCLUDED.bleeding_detail,
			smoker = EXCLUDED.smoker,
			smoker_detail = EXCLUDED.smoker_detail,
			pregnancy = EXCLUDED.pregnancy,
			pregnancy_detail = EXCLUDED.pregnancy_detail,
			dental_pain = EXCLUDED.dental_pain,
			dental_pain_detail = EXCLUDED.dental_pain_detail,
			gum_bleeding = EXCLUDED.gum_bleeding,
			gum_bleeding_detail = EXCLUDED.gum_bleeding_detail,
			notes = EXCLUDED.notes,
			updated_by = EXCLUDED.updated_by,
			updated_at = NOW()
		RETURNING updated_at`,
		a.TreatmentID,
		a.ChronicDisease, a.ChronicDiseaseDetail, a.Medication, a.MedicationDetail,
		a.Allergy, a.AllergyDetail, a.Bleeding, a.BleedingDetail,
		a.Smoker, a.SmokerDetail, a.Pregnancy, a.PregnancyDetail,
		a.DentalPain, a.DentalPainDetail, a.GumBleeding, a.GumBleedingDetail,
		a.Notes, a.UpdatedBy,
	).Scan(&a.UpdatedAt)
}

// =========== Items ===========

type itemRepoPG struct{ pool *pgxpool.Pool }

func NewItemRepoPG(pool *pgxpool.Pool) ItemRepository { return &itemRepoPG{pool: pool} }

func (r *itemRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFor(ctx, r.pool)
}

const itemCols = `id, treatment_id, tooth, description, value, covered_by_insurance, completed_at`

func scanItem(row pgx.Row) (*Item, error) {
	var i Item
	err := row.Scan(&i.ID, &i.TreatmentID, &i.Tooth, &i.Description, &i.Value,
		&i.CoveredByInsurance, &i.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *itemRepoPG) ListByTreatment(ctx context.Context, treatmentID uuid.UUID) ([]*Item, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM treatment_items WHERE treatment_id = $1 ORDER BY id`, treatmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func (r *itemRepoPG) Insert(ctx context.Context, item *Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO treatment_items (id, treatment_id, tooth, description, value, covered_by_insurance, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, item.TreatmentID, item.Tooth, item.Description, item.Value,
		item.CoveredByInsurance, item.CompletedAt)
	return err
}

func (r *itemRepoPG) Update(ctx context.Context, item *Item) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE treatment_items
		SET tooth = $2, description = $3, value = $4, covered_by_insurance = $5, completed_at = $6
		WHERE id = $1`,
		item.ID, item.Tooth, item.Description, item.Value,
		item.CoveredByInsurance, item.CompletedAt)
	return err
}

func (r *itemRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM treatment_items WHERE id = $1`, id)
	return err
}

// =========== Payment ===========

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

func (r *paymentRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFor(ctx, r.pool)
}

func (r *paymentRepoPG) Get(ctx context.Context, treatmentID uuid.UUID) (*Payment, error) {
	var p Payment
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT treatment_id, total, method, installments, paid_at, updated_at
		FROM treatment_payments WHERE treatment_id = $1`, treatmentID,
	).Scan(&p.TreatmentID, &p.Total, &p.Method, &p.Installments, &p.PaidAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepoPG) Upsert(ctx context.Context, p *Payment) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO treatment_payments (treatment_id, total, method, installments, paid_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (treatment_id) DO UPDATE SET
			total = EXCLUDED.total,
			method = EXCLUDED.method,
			installments = EXCLUDED.installments,
			paid_at = EXCLUDED.paid_at,
			updated_at = NOW()
		RETURNING updated_at`,
		p.TreatmentID, p.Total, p.Method, p.Installments, p.PaidAt,
	).Scan(&p.UpdatedAt)
}

// =========== Files ===========

type fileRepoPG struct{ pool *pgxpool.Pool }

func NewFileRepoPG(pool *pgxpool.Pool) FileRepository { return &fileRepoPG{pool: pool} }

func (r *fileRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFor(ctx, r.pool)
}

const fileCols = `id, treatment_id, storage_path, name, size, content_type, uploaded_by, created_at`

func scanFile(row pgx.Row) (*File, error) {
	var f File
	err := row.Scan(&f.ID, &f.TreatmentID, &f.StoragePath, &f.Name, &f.Size,
		&f.ContentType, &f.UploadedBy, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *fileRepoPG) Create(ctx context.Context, f *File) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO treatment_files (id, treatment_id, storage_path, name, size, content_type, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		f.ID, f.TreatmentID, f.StoragePath, f.Name, f.Size, f.ContentType, f.UploadedBy,
	).Scan(&f.CreatedAt)
}

func (r *fileRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*File, error) {
	return scanFile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+fileCols+` FROM treatment_files WHERE id = $1`, id))
}

func (r *fileRepoPG) ListByTreatment(ctx context.Context, treatmentID uuid.UUID) ([]*File, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+fileCols+` FROM treatment_files WHERE treatment_id = $1 ORDER BY created_at`, treatmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (r *fileRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM treatment_files WHERE id = $1`, id)
	return err
}
