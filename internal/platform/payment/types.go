// Package payment is the client for the hosted payment processor that
// backs clinic subscriptions. The wire shapes follow the processor's API;
// the base URL is configurable so tests can stand in an httptest server.
package payment

import (
	"encoding/json"
	"fmt"
)

// Subscription statuses reported by the processor.
const (
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
	SubscriptionUnpaid   = "unpaid"
)

// CheckoutSession is a hosted checkout session.
type CheckoutSession struct {
	ID             string            `json:"id"`
	URL            string            `json:"url"`
	Status         string            `json:"status"`         // open, complete, expired
	PaymentStatus  string            `json:"payment_status"` // paid, unpaid, no_payment_required
	CustomerID     string            `json:"customer"`
	SubscriptionID string            `json:"subscription"`
	CustomerEmail  string            `json:"customer_email"`
	Metadata       map[string]string `json:"metadata"`
}

// Paid reports whether the session completed with a settled payment.
func (s *CheckoutSession) Paid() bool {
	return s.Status == "complete" && s.PaymentStatus == "paid"
}

// Subscription is the processor's authoritative subscription object.
type Subscription struct {
	ID                 string            `json:"id"`
	CustomerID         string            `json:"customer"`
	Status             string            `json:"status"`
	Quantity           int               `json:"quantity"`
	PriceID            string            `json:"price_id"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	TrialEnd           int64             `json:"trial_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	Metadata           map[string]string `json:"metadata"`
}

// Customer is the processor's customer object.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PortalSession is a hosted billing portal session.
type PortalSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Event is a webhook delivery from the processor. Data.Object carries the
// raw payload of the affected resource; callers unmarshal it into the type
// the event kind implies.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Event kinds the reconciler consumes. Anything else is ignored.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventSubscriptionCreated  = "customer.subscription.created"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaymentOK     = "invoice.payment_succeeded"
	EventInvoicePaymentFailed = "invoice.payment_failed"
)

// KnownEventKinds is the closed set of event kinds with handlers.
var KnownEventKinds = map[string]bool{
	EventCheckoutCompleted:    true,
	EventSubscriptionCreated:  true,
	EventSubscriptionUpdated:  true,
	EventSubscriptionDeleted:  true,
	EventInvoicePaymentOK:     true,
	EventInvoicePaymentFailed: true,
}

// APIError is a non-2xx response from the processor.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment api error (status %d, code %q): %s", e.StatusCode, e.Code, e.Message)
}
