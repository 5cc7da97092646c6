package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/andrelfnavarro/cidi-api/internal/platform/payment"
)

// Subscription is the local mirror of the processor's subscription
// object. The processor stays authoritative; resync overwrites this row
// wholesale. The most recent row per tenant is the one that counts.
type Subscription struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	TenantID           uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	RemoteID           string     `db:"remote_id" json:"remote_id"`
	RemoteCustomerID   string     `db:"remote_customer_id" json:"remote_customer_id"`
	PriceID            string     `db:"price_id" json:"price_id"`
	Quantity           int        `db:"quantity" json:"quantity"`
	Status             string     `db:"status" json:"status"`
	CurrentPeriodStart *time.Time `db:"current_period_start" json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `db:"current_period_end" json:"current_period_end,omitempty"`
	TrialEnd           *time.Time `db:"trial_end" json:"trial_end,omitempty"`
	CancelAtPeriodEnd  bool       `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// applyRemote overwrites the mirrored fields from the authoritative
// object.
func (s *Subscription) applyRemote(remote *payment.Subscription) {
	s.RemoteID = remote.ID
	s.RemoteCustomerID = remote.CustomerID
	s.PriceID = remote.PriceID
	s.Quantity = remote.Quantity
	s.Status = remote.Status
	s.CurrentPeriodStart = unixTime(remote.CurrentPeriodStart)
	s.CurrentPeriodEnd = unixTime(remote.CurrentPeriodEnd)
	s.TrialEnd = unixTime(remote.TrialEnd)
	s.CancelAtPeriodEnd = remote.CancelAtPeriodEnd
}

func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// CheckoutInput is the public signup request.
type CheckoutInput struct {
	PriceID     string `json:"price_id"`
	Quantity    int    `json:"quantity"`
	CompanyName string `json:"company_name"`
	Email       string `json:"email"`
}

// CheckoutResult carries the hosted checkout URL to redirect the buyer
// to.
type CheckoutResult struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CompleteInput finishes the signup after the processor redirects back.
type CompleteInput struct {
	SessionID string `json:"session_id"`
}

// CompleteResult reports what the materialization created or reused.
type CompleteResult struct {
	TenantSlug string `json:"tenant_slug"`
	Email      string `json:"email"`
	Reused     bool   `json:"reused"`
}
