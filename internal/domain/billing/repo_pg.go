package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andrelfnavarro/cidi-api/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the Postgres-backed subscription mirror repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFor(ctx, r.pool)
}

const subCols = `id, tenant_id, remote_id, remote_customer_id, price_id, quantity, status,
	current_period_start, current_period_end, trial_end, cancel_at_period_end,
	created_at, updated_at`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var s Subscription
	err := row.Scan(&s.ID, &s.TenantID, &s.RemoteID, &s.RemoteCustomerID, &s.PriceID,
		&s.Quantity, &s.Status, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.TrialEnd,
		&s.CancelAtPeriodEnd, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) Create(ctx context.Context, s *Subscription) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO subscriptions (id, tenant_id, remote_id, remote_customer_id, price_id,
			quantity, status, current_period_start, current_period_end, trial_end,
			cancel_at_period_end)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		s.ID, s.TenantID, s.RemoteID, s.RemoteCustomerID, s.PriceID,
		s.Quantity, s.Status, s.CurrentPeriodStart, s.CurrentPeriodEnd, s.TrialEnd,
		s.CancelAtPeriodEnd,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *repoPG) GetByRemoteID(ctx context.Context, remoteID string) (*Subscription, error) {
	return scanSubscription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+subCols+` FROM subscriptions WHERE remote_id = $1`, remoteID))
}

func (r *repoPG) GetCurrentByTenant(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	return scanSubscription(r.conn(ctx).QueryRow(ctx, `
		SELECT `+subCols+` FROM subscriptions
		WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT 1`, tenantID))
}

func (r *repoPG) Update(ctx context.Context, s *Subscription) error {
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE subscriptions
		SET remote_customer_id = $2, price_id = $3, quantity = $4, status = $5,
			current_period_start = $6, current_period_end = $7, trial_end = $8,
			cancel_at_period_end = $9, updated_at = NOW()
		WHERE remote_id = $1
		RETURNING updated_at`,
		s.RemoteID, s.RemoteCustomerID, s.PriceID, s.Quantity, s.Status,
		s.CurrentPeriodStart, s.CurrentPeriodEnd, s.TrialEnd, s.CancelAtPeriodEnd,
	).Scan(&s.UpdatedAt)
}

func (r *repoPG) ListRemoteIDs(ctx context.Context) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT remote_id FROM subscriptions ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
