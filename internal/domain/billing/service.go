package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/andrelfnavarro/cidi-api/internal/domain/dentist"
	"github.com/andrelfnavarro/cidi-api/internal/domain/tenant"
	"github.com/andrelfnavarro/cidi-api/internal/platform/db"
	"github.com/andrelfnavarro/cidi-api/internal/platform/payment"
)

var (
	// ErrSessionNotPaid blocks materialization of unpaid checkouts.
	ErrSessionNotPaid = errors.New("checkout session is not paid")
	// ErrNoSubscription means the clinic has no mirror row yet.
	ErrNoSubscription = errors.New("no subscription on record")
)

// TenantManager is the slice of the tenant service billing drives.
type TenantManager interface {
	GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
	Create(ctx context.Context, displayName, slug string) (*tenant.Tenant, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Reactivate(ctx context.Context, id uuid.UUID) error
}

// AccountManager is the slice of the dentist identity provider billing
// needs to materialize a signup.
type AccountManager interface {
	CreateUser(ctx context.Context, tenantID uuid.UUID, in dentist.CreateInput) (*dentist.Dentist, error)
	FindByEmail(ctx context.Context, email string) (*dentist.Dentist, error)
	EnsureAdmin(ctx context.Context, d *dentist.Dentist) error
}

type Service struct {
	subs       Repository
	client     payment.Client
	tenants    TenantManager
	accounts   AccountManager
	logger     zerolog.Logger
	appBaseURL string
}

func NewService(subs Repository, client payment.Client, tenants TenantManager, accounts AccountManager, logger zerolog.Logger, appBaseURL string) *Service {
	return &Service{
		subs:       subs,
		client:     client,
		tenants:    tenants,
		accounts:   accounts,
		logger:     logger,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
	}
}

// CreateCheckout opens a hosted checkout session for a clinic signup.
func (s *Service) CreateCheckout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if in.PriceID == "" {
		return nil, fmt.Errorf("price_id is required")
	}
	if strings.TrimSpace(in.CompanyName) == "" {
		return nil, fmt.Errorf("company_name is required")
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, fmt.Errorf("invalid email address")
	}
	if in.Quantity <= 0 {
		in.Quantity = 1
	}

	sess, err := s.client.CreateCheckoutSession(ctx, payment.CheckoutParams{
		PriceID:       in.PriceID,
		Quantity:      in.Quantity,
		CustomerEmail: in.Email,
		CompanyName:   strings.TrimSpace(in.CompanyName),
		SuccessURL:    s.appBaseURL + "/signup/done?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.appBaseURL + "/signup",
	})
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// CompleteCheckout verifies payment and materializes the signup: account,
// tenant, admin role, and subscription mirror. Every step is
// create-or-reuse; there is no compensating transaction because the
// processor's payment record is the source of truth and a retry
// converges.
func (s *Service) CompleteCheckout(ctx context.Context, sessionID string) (*CompleteResult, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	sess, err := s.client.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Paid() {
		return nil, ErrSessionNotPaid
	}
	return s.materialize(ctx, sess)
}

func (s *Service) materialize(ctx context.Context, sess *payment.CheckoutSession) (*CompleteResult, error) {
	email := strings.ToLower(strings.TrimSpace(sess.CustomerEmail))
	companyName := sess.Metadata["company_name"]
	if companyName == "" {
		companyName = email[:strings.Index(email+"@", "@")]
	}

	var (
		owner  *dentist.Dentist
		t      *tenant.Tenant
		reused bool
	)

	existing, err := s.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		// The account already exists: reuse it and its clinic.
		reused = true
		owner = existing
		t, err = s.tenants.GetByID(ctx, existing.TenantID)
		if err != nil {
			return nil, fmt.Errorf("load clinic of existing account: %w", err)
		}
		if err := s.accounts.EnsureAdmin(db.WithTenant(ctx, t.ID), owner); err != nil {
			return nil, fmt.Errorf("promote existing account: %w", err)
		}
	case db.IsNotFound(err):
		t, err = s.tenants.Create(ctx, companyName, "")
		if err != nil {
			return nil, fmt.Errorf("create clinic: %w", err)
		}
		owner, err = s.accounts.CreateUser(db.WithTenant(ctx, t.ID), t.ID, dentist.CreateInput{
			Email:    email,
			Name:     companyName,
			Password: uuid.NewString(),
			Admin:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("create account: %w", err)
		}
		s.logger.Info().Str("tenant_slug", t.Slug).Str("email", email).
			Msg("clinic materialized from checkout, password reset required")
	default:
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if sess.SubscriptionID != "" {
		if _, err := s.subs.GetByRemoteID(ctx, sess.SubscriptionID); db.IsNotFound(err) {
			// Tag the remote object with the tenant so later resyncs can
			// find their way home without a local row.
			if _, err := s.client.UpdateSubscriptionMetadata(ctx, sess.SubscriptionID, map[string]string{
				"tenant_id": t.ID.String(),
			}); err != nil {
				s.logger.Error().Err(err).Str("subscription", sess.SubscriptionID).
					Msg("failed to tag subscription with tenant")
			}
			remote, err := s.client.GetSubscription(ctx, sess.SubscriptionID)
			if err != nil {
				return nil, fmt.Errorf("fetch subscription: %w", err)
			}
			mirror := &Subscription{TenantID: t.ID}
			mirror.applyRemote(remote)
			if err := s.subs.Create(ctx, mirror); err != nil {
				if !db.IsUniqueViolation(err, "subscriptions_remote_id_key") {
					return nil, fmt.Errorf("mirror subscription: %w", err)
				}
			}
		} else if err != nil {
			return nil, fmt.Errorf("lookup subscription mirror: %w", err)
		}
	}

	return &CompleteResult{TenantSlug: t.Slug, Email: owner.Email, Reused: reused}, nil
}

// ResyncSubscription re-fetches the authoritative subscription object
// and overwrites the local mirror. All webhook handlers funnel into it;
// replaying the same event converges on the same state.
func (s *Service) ResyncSubscription(ctx context.Context, remoteID string) error {
	remote, err := s.client.GetSubscription(ctx, remoteID)
	if err != nil {
		return fmt.Errorf("fetch subscription %s: %w", remoteID, err)
	}

	local, err := s.subs.GetByRemoteID(ctx, remoteID)
	if err != nil {
		if !db.IsNotFound(err) {
			return err
		}
		tenantID, parseErr := uuid.Parse(remote.Metadata["tenant_id"])
		if parseErr != nil {
			s.logger.Warn().Str("subscription", remoteID).
				Msg("subscription has no tenant tag, skipping mirror insert")
			return nil
		}
		mirror := &Subscription{TenantID: tenantID}
		mirror.applyRemote(remote)
		if err := s.subs.Create(ctx, mirror); err != nil {
			return fmt.Errorf("insert mirror: %w", err)
		}
		return s.applyStatusSideEffects(ctx, tenantID, "", remote.Status)
	}

	prevStatus := local.Status
	prevQuantity := local.Quantity
	local.applyRemote(remote)
	if err := s.subs.Update(ctx, local); err != nil {
		return fmt.Errorf("update mirror: %w", err)
	}

	if prevQuantity != remote.Quantity {
		if _, err := s.client.UpdateSubscriptionMetadata(ctx, remoteID, map[string]string{
			"seats": strconv.Itoa(remote.Quantity),
		}); err != nil {
			s.logger.Error().Err(err).Str("subscription", remoteID).
				Msg("failed to propagate seat count")
		}
	}

	return s.applyStatusSideEffects(ctx, local.TenantID, prevStatus, remote.Status)
}

// applyStatusSideEffects reacts to explicit status pairs; every other
// combination is a plain mirror update.
func (s *Service) applyStatusSideEffects(ctx context.Context, tenantID uuid.UUID, prev, next string) error {
	if prev == next {
		return nil
	}
	switch {
	case next == payment.SubscriptionPastDue:
		s.logger.Warn().Str("tenant_id", tenantID.String()).
			Msg("subscription is past due")
	case next == payment.SubscriptionCanceled:
		if err := s.tenants.Deactivate(ctx, tenantID); err != nil {
			return fmt.Errorf("deactivate tenant: %w", err)
		}
		s.logger.Info().Str("tenant_id", tenantID.String()).
			Msg("clinic deactivated, subscription canceled")
	case prev == payment.SubscriptionPastDue && next == payment.SubscriptionActive:
		if err := s.tenants.Reactivate(ctx, tenantID); err != nil {
			return fmt.Errorf("reactivate tenant: %w", err)
		}
		s.logger.Info().Str("tenant_id", tenantID.String()).
			Msg("clinic reactivated, subscription recovered")
	}
	return nil
}

// HandleEvent dispatches a verified webhook event. Unknown kinds are
// logged at debug and ignored.
func (s *Service) HandleEvent(ctx context.Context, event payment.Event) error {
	switch event.Type {
	case payment.EventCheckoutCompleted:
		var sess payment.CheckoutSession
		if err := json.Unmarshal(event.Data.Object, &sess); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		if !sess.Paid() {
			s.logger.Debug().Str("session", sess.ID).Msg("checkout completed without payment, ignoring")
			return nil
		}
		_, err := s.materialize(ctx, &sess)
		return err

	case payment.EventSubscriptionCreated,
		payment.EventSubscriptionUpdated,
		payment.EventSubscriptionDeleted:
		var sub payment.Subscription
		if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return s.ResyncSubscription(ctx, sub.ID)

	case payment.EventInvoicePaymentOK, payment.EventInvoicePaymentFailed:
		var invoice struct {
			Subscription string `json:"subscription"`
		}
		if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		if invoice.Subscription == "" {
			return nil
		}
		return s.ResyncSubscription(ctx, invoice.Subscription)

	default:
		s.logger.Debug().Str("type", event.Type).Msg("ignoring unhandled webhook event")
		return nil
	}
}

// CurrentSubscription returns the clinic's latest mirror row.
func (s *Service) CurrentSubscription(ctx context.Context) (*Subscription, error) {
	sub, err := s.subs.GetCurrentByTenant(ctx, db.TenantFromContext(ctx))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrNoSubscription
		}
		return nil, err
	}
	return sub, nil
}

// PortalURL opens a hosted billing portal session for the clinic.
func (s *Service) PortalURL(ctx context.Context) (string, error) {
	sub, err := s.CurrentSubscription(ctx)
	if err != nil {
		return "", err
	}
	portal, err := s.client.CreateBillingPortalSession(ctx, sub.RemoteCustomerID, s.appBaseURL+"/settings/billing")
	if err != nil {
		return "", err
	}
	return portal.URL, nil
}

// Reconcile resyncs every stored subscription against the processor. The
// cli runs it as a sweep to close any gap webhooks left behind.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	ids, err := s.subs.ListRemoteIDs(ctx)
	if err != nil {
		return 0, err
	}
	var failed int
	for _, id := range ids {
		if err := s.ResyncSubscription(ctx, id); err != nil {
			failed++
			s.logger.Error().Err(err).Str("subscription", id).Msg("resync failed")
		}
	}
	if failed > 0 {
		return len(ids), fmt.Errorf("%d of %d subscriptions failed to resync", failed, len(ids))
	}
	return len(ids), nil
}
