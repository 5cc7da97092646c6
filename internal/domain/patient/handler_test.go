package patient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/andrelfnavarro/cidi-api/internal/domain/tenant"
)

type mockResolver struct {
	clinics map[string]*tenant.Tenant
}

func (m *mockResolver) ResolveSlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	t, ok := m.clinics[slug]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return t, nil
}

func newTestHandler() (*Handler, *mockRepo, *mockResolver, *echo.Echo) {
	svc, repo := newTestService()
	resolver := &mockResolver{clinics: map[string]*tenant.Tenant{
		"sorriso-odonto": {
			ID: uuid.New(), Slug: "sorriso-odonto", DisplayName: "Sorriso Odonto",
			Active: true, AllowSelfRegistration: true,
		},
	}}
	return NewHandler(svc, resolver), repo, resolver, echo.New()
}

func intakeContext(e *echo.Echo, method, body, slug string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("slug")
	c.SetParamValues(slug)
	return c, rec
}

func TestHandler_Lookup(t *testing.T) {
	h, _, _, e := newTestHandler()
	c, rec := intakeContext(e, http.MethodPost, `{"cpf":"111.444.777-35"}`, "sorriso-odonto")

	if err := h.Lookup(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var result LookupResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if result.Exists || result.CPF != "11144477735" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestHandler_Lookup_InvalidCPF(t *testing.T) {
	h, _, _, e := newTestHandler()
	c, _ := intakeContext(e, http.MethodPost, `{"cpf":"111.444.777-36"}`, "sorriso-odonto")

	err := h.Lookup(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_Lookup_UnknownClinic(t *testing.T) {
	h, _, _, e := newTestHandler()
	c, _ := intakeContext(e, http.MethodPost, `{"cpf":"111.444.777-35"}`, "no-such-clinic")

	err := h.Lookup(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_Register(t *testing.T) {
	h, repo, _, e := newTestHandler()
	body := `{
		"name": "Maria Souza",
		"cpf": "111.444.777-35",
		"email": "maria@example.com",
		"phone": "+55 11 98888-7777",
		"birth_date": "1990-04-12",
		"street": "Rua das Flores",
		"zip_code": "01310-100",
		"city": "Sao Paulo",
		"state": "SP"
	}`
	c, rec := intakeContext(e, http.MethodPost, body, "sorriso-odonto")

	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if len(repo.items) != 1 {
		t.Errorf("expected 1 row, got %d", len(repo.items))
	}
}

func TestHandler_Register_DuplicateConflict(t *testing.T) {
	h, repo, _, e := newTestHandler()
	svcInput := validInput()
	if _, err := h.svc.Register(context.Background(), svcInput); err != nil {
		t.Fatalf("seed register: %v", err)
	}

	body := `{
		"name": "Maria Souza",
		"cpf": "11144477735",
		"email": "maria2@example.com",
		"phone": "+55 11 98888-7777",
		"birth_date": "1990-04-12",
		"street": "Rua das Flores",
		"zip_code": "01310-100",
		"city": "Sao Paulo",
		"state": "SP"
	}`
	c, _ := intakeContext(e, http.MethodPost, body, "sorriso-odonto")

	err := h.Register(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
	if len(repo.items) != 1 {
		t.Errorf("duplicate registration created a row")
	}
}

func TestHandler_Register_SelfRegistrationOff(t *testing.T) {
	h, _, resolver, e := newTestHandler()
	resolver.clinics["sorriso-odonto"].AllowSelfRegistration = false

	c, _ := intakeContext(e, http.MethodPost, `{}`, "sorriso-odonto")
	err := h.Register(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when self registration is off, got %v", err)
	}
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	h, _, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetPatient(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}
