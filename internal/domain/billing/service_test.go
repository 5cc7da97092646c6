package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/andrelfnavarro/cidi-api/internal/domain/dentist"
	"github.com/andrelfnavarro/cidi-api/internal/domain/tenant"
	"github.com/andrelfnavarro/cidi-api/internal/platform/payment"
)

// -- Mock subscription repository --

type mockSubRepo struct {
	items map[string]*Subscription
}

func newMockSubRepo() *mockSubRepo {
	return &mockSubRepo{items: make(map[string]*Subscription)}
}

func (m *mockSubRepo) Create(_ context.Context, s *Subscription) error {
	if _, exists := m.items[s.RemoteID]; exists {
		return errors.New("duplicate key value violates unique constraint \"subscriptions_remote_id_key\"")
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now()
	s.UpdatedAt = time.Now()
	m.items[s.RemoteID] = s
	return nil
}

func (m *mockSubRepo) GetByRemoteID(_ context.Context, remoteID string) (*Subscription, error) {
	s, ok := m.items[remoteID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *s
	return &copied, nil
}

func (m *mockSubRepo) GetCurrentByTenant(_ context.Context, tenantID uuid.UUID) (*Subscription, error) {
	var latest *Subscription
	for _, s := range m.items {
		if s.TenantID != tenantID {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, pgx.ErrNoRows
	}
	return latest, nil
}

func (m *mockSubRepo) Update(_ context.Context, s *Subscription) error {
	stored, ok := m.items[s.RemoteID]
	if !ok {
		return pgx.ErrNoRows
	}
	*stored = *s
	stored.UpdatedAt = time.Now()
	return nil
}

func (m *mockSubRepo) ListRemoteIDs(_ context.Context) ([]string, error) {
	var ids []string
	for id := range m.items {
		ids = append(ids, id)
	}
	return ids, nil
}

// -- Mock processor client --

type mockClient struct {
	sessions      map[string]*payment.CheckoutSession
	subscriptions map[string]*payment.Subscription
	metadataCalls []map[string]string
}

func newMockClient() *mockClient {
	return &mockClient{
		sessions:      make(map[string]*payment.CheckoutSession),
		subscriptions: make(map[string]*payment.Subscription),
	}
}

func (m *mockClient) CreateCheckoutSession(_ context.Context, params payment.CheckoutParams) (*payment.CheckoutSession, error) {
	sess := &payment.CheckoutSession{
		ID:            "cs_" + uuid.NewString()[:8],
		URL:           "https://checkout.example.com/pay",
		Status:        "open",
		CustomerEmail: params.CustomerEmail,
		Metadata:      map[string]string{"company_name": params.CompanyName},
	}
	m.sessions[sess.ID] = sess
	return sess, nil
}

func (m *mockClient) GetCheckoutSession(_ context.Context, id string) (*payment.CheckoutSession, error) {
	sess, ok := m.sessions[id]
	if !ok {
		return nil, &payment.APIError{StatusCode: 404, Message: "no such session"}
	}
	return sess, nil
}

func (m *mockClient) GetSubscription(_ context.Context, id string) (*payment.Subscription, error) {
	sub, ok := m.subscriptions[id]
	if !ok {
		return nil, &payment.APIError{StatusCode: 404, Message: "no such subscription"}
	}
	copied := *sub
	return &copied, nil
}

func (m *mockClient) UpdateSubscriptionMetadata(_ context.Context, id string, metadata map[string]string) (*payment.Subscription, error) {
	sub, ok := m.subscriptions[id]
	if !ok {
		return nil, &payment.APIError{StatusCode: 404, Message: "no such subscription"}
	}
	if sub.Metadata == nil {
		sub.Metadata = make(map[string]string)
	}
	for k, v := range metadata {
		sub.Metadata[k] = v
	}
	m.metadataCalls = append(m.metadataCalls, metadata)
	return sub, nil
}

func (m *mockClient) UpdateCustomer(_ context.Context, id string, params payment.CustomerParams) (*payment.Customer, error) {
	return &payment.Customer{ID: id, Name: params.Name, Email: params.Email}, nil
}

func (m *mockClient) CreateBillingPortalSession(_ context.Context, customerID, returnURL string) (*payment.PortalSession, error) {
	return &payment.PortalSession{ID: "bps_1", URL: "https://billing.example.com/portal"}, nil
}

// -- Mock tenant and account managers --

type mockTenantManager struct {
	items       map[uuid.UUID]*tenant.Tenant
	deactivated []uuid.UUID
	reactivated []uuid.UUID
}

func newMockTenantManager() *mockTenantManager {
	return &mockTenantManager{items: make(map[uuid.UUID]*tenant.Tenant)}
}

func (m *mockTenantManager) GetByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	t, ok := m.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

func (m *mockTenantManager) Create(_ context.Context, displayName, slug string) (*tenant.Tenant, error) {
	if slug == "" {
		slug = tenant.Slugify(displayName)
	}
	for _, other := range m.items {
		if other.Slug == slug {
			slug = fmt.Sprintf("%s-%d", slug, 1718822400)
			break
		}
	}
	t := &tenant.Tenant{ID: uuid.New(), Slug: slug, DisplayName: displayName, Active: true, AllowSelfRegistration: true}
	m.items[t.ID] = t
	return t, nil
}

func (m *mockTenantManager) Deactivate(_ context.Context, id uuid.UUID) error {
	if t, ok := m.items[id]; ok {
		t.Active = false
	}
	m.deactivated = append(m.deactivated, id)
	return nil
}

func (m *mockTenantManager) Reactivate(_ context.Context, id uuid.UUID) error {
	if t, ok := m.items[id]; ok {
		t.Active = true
	}
	m.reactivated = append(m.reactivated, id)
	return nil
}

type mockAccountManager struct {
	byEmail map[string]*dentist.Dentist
}

func newMockAccountManager() *mockAccountManager {
	return &mockAccountManager{byEmail: make(map[string]*dentist.Dentist)}
}

func (m *mockAccountManager) CreateUser(_ context.Context, tenantID uuid.UUID, in dentist.CreateInput) (*dentist.Dentist, error) {
	if _, exists := m.byEmail[in.Email]; exists {
		return nil, fmt.Errorf("email already registered")
	}
	d := &dentist.Dentist{ID: uuid.New(), TenantID: tenantID, Email: in.Email, Name: in.Name, Admin: in.Admin}
	m.byEmail[in.Email] = d
	return d, nil
}

func (m *mockAccountManager) FindByEmail(_ context.Context, email string) (*dentist.Dentist, error) {
	d, ok := m.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return d, nil
}

func (m *mockAccountManager) EnsureAdmin(_ context.Context, d *dentist.Dentist) error {
	d.Admin = true
	return nil
}

type billingFixture struct {
	svc      *Service
	subs     *mockSubRepo
	client   *mockClient
	tenants  *mockTenantManager
	accounts *mockAccountManager
}

func newBillingFixture() *billingFixture {
	f := &billingFixture{
		subs:     newMockSubRepo(),
		client:   newMockClient(),
		tenants:  newMockTenantManager(),
		accounts: newMockAccountManager(),
	}
	f.svc = NewService(f.subs, f.client, f.tenants, f.accounts, zerolog.Nop(), "https://app.example.com")
	return f
}

func (f *billingFixture) seedRemoteSubscription(id, status string, quantity int, tenantID uuid.UUID) *payment.Subscription {
	sub := &payment.Subscription{
		ID:                 id,
		CustomerID:         "cus_1",
		Status:             status,
		Quantity:           quantity,
		PriceID:            "price_basic",
		CurrentPeriodStart: time.Now().Unix(),
		CurrentPeriodEnd:   time.Now().Add(30 * 24 * time.Hour).Unix(),
		Metadata:           map[string]string{},
	}
	if tenantID != uuid.Nil {
		sub.Metadata["tenant_id"] = tenantID.String()
	}
	f.client.subscriptions[id] = sub
	return sub
}

func (f *billingFixture) seedPaidSession(email, company, subID string) *payment.CheckoutSession {
	sess := &payment.CheckoutSession{
		ID:             "cs_paid",
		Status:         "complete",
		PaymentStatus:  "paid",
		CustomerID:     "cus_1",
		SubscriptionID: subID,
		CustomerEmail:  email,
		Metadata:       map[string]string{"company_name": company},
	}
	f.client.sessions[sess.ID] = sess
	return sess
}

func TestCreateCheckout(t *testing.T) {
	f := newBillingFixture()
	result, err := f.svc.CreateCheckout(context.Background(), CheckoutInput{
		PriceID: "price_basic", Quantity: 3, CompanyName: "Clinica X", Email: "dono@clinica.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.URL == "" || result.SessionID == "" {
		t.Errorf("incomplete result: %+v", result)
	}
}

func TestCreateCheckout_Validation(t *testing.T) {
	f := newBillingFixture()
	cases := []CheckoutInput{
		{Quantity: 1, CompanyName: "X", Email: "a@b.com"},
		{PriceID: "price_basic", CompanyName: "", Email: "a@b.com"},
		{PriceID: "price_basic", CompanyName: "X", Email: "not-an-email"},
	}
	for i, in := range cases {
		if _, err := f.svc.CreateCheckout(context.Background(), in); err == nil {
			t.Errorf("case %d accepted", i)
		}
	}
}

func TestCompleteCheckout(t *testing.T) {
	f := newBillingFixture()
	f.seedRemoteSubscription("sub_1", payment.SubscriptionActive, 2, uuid.Nil)
	f.seedPaidSession("dono@clinica.com", "Clinica X", "sub_1")

	result, err := f.svc.CompleteCheckout(context.Background(), "cs_paid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TenantSlug != "clinica-x" {
		t.Errorf("slug = %q", result.TenantSlug)
	}
	if result.Reused {
		t.Error("fresh signup reported as reused")
	}

	owner := f.accounts.byEmail["dono@clinica.com"]
	if owner == nil || !owner.Admin {
		t.Fatal("admin account not created")
	}
	mirror := f.subs.items["sub_1"]
	if mirror == nil {
		t.Fatal("mirror row not created")
	}
	if mirror.Status != payment.SubscriptionActive || mirror.Quantity != 2 {
		t.Errorf("mirror not populated: %+v", mirror)
	}
	if f.client.subscriptions["sub_1"].Metadata["tenant_id"] != mirror.TenantID.String() {
		t.Error("remote subscription not tagged with tenant")
	}
}

func TestCompleteCheckout_NotPaid(t *testing.T) {
	f := newBillingFixture()
	f.client.sessions["cs_open"] = &payment.CheckoutSession{
		ID: "cs_open", Status: "open", PaymentStatus: "unpaid",
	}
	if _, err := f.svc.CompleteCheckout(context.Background(), "cs_open"); !errors.Is(err, ErrSessionNotPaid) {
		t.Errorf("got %v, want ErrSessionNotPaid", err)
	}
	if len(f.tenants.items) != 0 || len(f.accounts.byEmail) != 0 {
		t.Error("unpaid session materialized rows")
	}
}

func TestCompleteCheckout_ReusesExistingAccount(t *testing.T) {
	f := newBillingFixture()
	existingTenant, _ := f.tenants.Create(context.Background(), "Clinica X", "")
	f.accounts.byEmail["dono@clinica.com"] = &dentist.Dentist{
		ID: uuid.New(), TenantID: existingTenant.ID, Email: "dono@clinica.com", Admin: false,
	}
	f.seedRemoteSubscription("sub_1", payment.SubscriptionActive, 1, uuid.Nil)
	f.seedPaidSession("dono@clinica.com", "Clinica X", "sub_1")

	result, err := f.svc.CompleteCheckout(context.Background(), "cs_paid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Reused {
		t.Error("existing account not reported as reused")
	}
	if len(f.tenants.items) != 1 {
		t.Errorf("a second tenant was created")
	}
	if !f.accounts.byEmail["dono@clinica.com"].Admin {
		t.Error("existing account not promoted to admin")
	}
}

func TestCompleteCheckout_SlugCollisionGetsSuffix(t *testing.T) {
	f := newBillingFixture()
	f.tenants.Create(context.Background(), "Clinica X", "")
	f.seedRemoteSubscription("sub_1", payment.SubscriptionActive, 1, uuid.Nil)
	f.seedPaidSession("outro@clinica.com", "Clinica X", "sub_1")

	result, err := f.svc.CompleteCheckout(context.Background(), "cs_paid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TenantSlug != "clinica-x-1718822400" {
		t.Errorf("slug = %q, want timestamp-suffixed", result.TenantSlug)
	}
}

func TestCompleteCheckout_Idempotent(t *testing.T) {
	f := newBillingFixture()
	f.seedRemoteSubscription("sub_1", payment.SubscriptionActive, 1, uuid.Nil)
	f.seedPaidSession("dono@clinica.com", "Clinica X", "sub_1")

	if _, err := f.svc.CompleteCheckout(context.Background(), "cs_paid"); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if _, err := f.svc.CompleteCheckout(context.Background(), "cs_paid"); err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if len(f.tenants.items) != 1 {
		t.Errorf("retry created another tenant: %d", len(f.tenants.items))
	}
	if len(f.subs.items) != 1 {
		t.Errorf("retry created another mirror: %d", len(f.subs.items))
	}
}

func TestResyncSubscription_InsertsMissingMirror(t *testing.T) {
	f := newBillingFixture()
	clinic, _ := f.tenants.Create(context.Background(), "Clinica X", "")
	f.seedRemoteSubscription("sub_1", payment.SubscriptionActive, 2, clinic.ID)

	if err := f.svc.ResyncSubscription(context.Background(), "sub_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mirror := f.subs.items["sub_1"]
	if mirror == nil {
		t.Fatal("mirror not inserted")
	}
	if mirror.TenantID != clinic.ID {
		t.Error("mirror bound to wrong tenant")
	}
}

func TestResyncSubscription_ReplayIdempotent(t *testing.T) {
	f := newBillingFixture()
	clinic, _ := f.tenants.Create(context.Background(), "Clinica X", "")
	f.seedRemoteSubscription("sub_1", payment.SubscriptionCanceled, 1, clinic.ID)

	// Same resync twice: same mirror state, one deactivation only.
	if err := f.svc.ResyncSubscription(context.Background(), "sub_1"); err != nil {
		t.Fatalf("first resync: %v", err)
	}
	if err := f.svc.ResyncSubscription(context.Background(), "sub_1"); err != nil {
		t.Fatalf("second resync: %v", err)
	}
	if len(f.subs.items) != 1 {
		t.Errorf("replay duplicated rows: %d", len(f.subs.items))
	}
	if len(f.tenants.deactivated) != 1 {
		t.Errorf("tenant flag flipped %d times, want 1", len(f.tenants.deactivated))
	}
}

func TestResyncSubscription_StatusSideEffects(t *testing.T) {
	t.Run("canceled deactivates tenant", func(t *testing.T) {
		f := newBillingFixture()
		clinic, _ := f.tenants.Create(context.Background(), "Clinica X", "")
		remote := f.seedRemoteSubscription("sub_1", payment.SubscriptionActive, 1, clinic.ID)
		if err := f.svc.ResyncSubscription(context.Background(), "sub_1"); err != nil {
			t.Fatalf("seed resync: %v", err)
		}

		remote.Status = payment.SubscriptionCanceled
		if err := f.svc.ResyncSubscription(context.Background(), "sub_1"); err != nil {
			t.Fatalf("resync: %v", err)
		}
		if f.tenants.items[clinic.ID].Active {
			t.Error("tenant still active after cancellation")
		}
	})

	t.Run("past_due recovery reactivates tenant", func(t *testing.T) {
		f := newBillingFixture()
		clinic, _ := f.tenants.Create(context.Background(), "Clinica X", "")
		remote := f.seedRemoteSubscription("sub_1", payment.SubscriptionPastDue, 1, clinic.ID)
		if err := f.svc.ResyncSubscription(context.Background(), "sub_1"); err != nil {
			t.Fatalf("seed resync: %v", err)
		}

		remote.Status = payment.SubscriptionActive
		if err := f.svc.ResyncSubscription(context.Background(), "sub_1"); err != nil {
			t.Fatalf("resync: %v", err)
		}
		if len(f.tenants.reactivated) != 1 {
			t.Error("tenant not reactivated")
		}
	})

	t.Run("active to active has no side effect", func(t *testing.T) {
		f := newBillingFixture()
		clinic, _ := f.tenants.Create(context.Background(), "Clinica X", "")
		f.seedRemoteSubscription("sub_1", payment.SubscriptionActive, 1, clinic.ID)
		if err := f.svc.ResyncSubscription(context.Background(), "sub_1"); err != nil {
			t.Fatalf("seed resync: %v", err)
		}
		if err := f.svc.ResyncSubscription(context.Background(), "sub_1"); err != nil {
			t.Fatalf("resync: %v", err)
		}
		if len(f.tenants.deactivated) != 0 || len(f.tenants.reactivated) != 0 {
			t.Error("unexpected tenant flag flips")
		}
	})
}

func TestResyncSubscription_QuantityChangePropagates(t *testing.T) {
	f := newBillingFixture()
	clinic, _ := f.tenants.Create(context.Background(), "Clinica X", "")
	remote := f.seedRemoteSubscription("sub_1", payment.SubscriptionActive, 2, clinic.ID)
	if err := f.svc.ResyncSubscription(context.Background(), "sub_1"); err != nil {
		t.Fatalf("seed resync: %v", err)
	}
	calls := len(f.client.metadataCalls)

	remote.Quantity = 5
	if err := f.svc.ResyncSubscription(context.Background(), "sub_1"); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if len(f.client.metadataCalls) != calls+1 {
		t.Fatalf("seat count not propagated")
	}
	last := f.client.metadataCalls[len(f.client.metadataCalls)-1]
	if last["seats"] != "5" {
		t.Errorf("seats = %q, want 5", last["seats"])
	}
	if f.subs.items["sub_1"].Quantity != 5 {
		t.Error("mirror quantity not updated")
	}
}

func TestHandleEvent_UnknownKindIgnored(t *testing.T) {
	f := newBillingFixture()
	err := f.svc.HandleEvent(context.Background(), payment.Event{
		ID: "evt_1", Type: "customer.created",
	})
	if err != nil {
		t.Fatalf("unknown kinds must be ignored, got %v", err)
	}
}

func TestReconcile(t *testing.T) {
	f := newBillingFixture()
	clinicA, _ := f.tenants.Create(context.Background(), "Clinica A", "")
	clinicB, _ := f.tenants.Create(context.Background(), "Clinica B", "")
	f.seedRemoteSubscription("sub_a", payment.SubscriptionActive, 1, clinicA.ID)
	f.seedRemoteSubscription("sub_b", payment.SubscriptionCanceled, 1, clinicB.ID)
	f.svc.ResyncSubscription(context.Background(), "sub_a")
	f.svc.ResyncSubscription(context.Background(), "sub_b")

	f.client.subscriptions["sub_a"].Status = payment.SubscriptionPastDue
	total, err := f.svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("swept %d, want 2", total)
	}
	if f.subs.items["sub_a"].Status != payment.SubscriptionPastDue {
		t.Error("sweep did not refresh mirror")
	}
}

func TestCurrentSubscription_None(t *testing.T) {
	f := newBillingFixture()
	if _, err := f.svc.CurrentSubscription(context.Background()); !errors.Is(err, ErrNoSubscription) {
		t.Errorf("got %v, want ErrNoSubscription", err)
	}
}
