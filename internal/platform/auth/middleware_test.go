package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/andrelfnavarro/cidi-api/internal/platform/db"
)

var testSecret = []byte("test-secret-key")

func issueTestToken(t *testing.T, tenantID uuid.UUID, admin bool, ttl time.Duration) string {
	t.Helper()
	token, err := IssueToken(testSecret, ttl, uuid.New(), tenantID, admin, "Dra. Ana", "ana@clinic.com")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return token
}

func TestIssueAndParseToken(t *testing.T) {
	dentistID := uuid.New()
	tenantID := uuid.New()

	token, err := IssueToken(testSecret, time.Hour, dentistID, tenantID, true, "Dra. Ana", "ana@clinic.com")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	claims, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}

	if claims.Subject != dentistID.String() {
		t.Errorf("expected subject %s, got %s", dentistID, claims.Subject)
	}
	if claims.TenantID != tenantID.String() {
		t.Errorf("expected tenant %s, got %s", tenantID, claims.TenantID)
	}
	if !claims.Admin {
		t.Error("expected admin claim to be true")
	}
	if claims.Email != "ana@clinic.com" {
		t.Errorf("unexpected email claim: %s", claims.Email)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token := issueTestToken(t, uuid.New(), false, time.Hour)

	if _, err := ParseToken([]byte("other-secret"), token); err == nil {
		t.Error("expected error for token signed with different secret")
	}
}

func TestParseToken_Expired(t *testing.T) {
	token := issueTestToken(t, uuid.New(), false, -time.Minute)

	if _, err := ParseToken(testSecret, token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tenantID := uuid.New()
	token := issueTestToken(t, tenantID, false, time.Hour)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		ctx := c.Request().Context()
		if UserIDFromContext(ctx) == "" {
			t.Error("expected user id in context")
		}
		if db.TenantFromContext(ctx) != tenantID {
			t.Error("expected tenant id in context")
		}
		if IsAdminFromContext(ctx) {
			t.Error("expected non-admin")
		}
		return c.String(http.StatusOK, "ok")
	}

	mw := JWTMiddleware(testSecret)
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := JWTMiddleware(testSecret)
	err := mw(func(c echo.Context) error { return nil })(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestJWTMiddleware_MalformedHeader(t *testing.T) {
	e := echo.New()

	for _, header := range []string{"Basic abc", "Bearer", "garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		mw := JWTMiddleware(testSecret)
		err := mw(func(c echo.Context) error { return nil })(c)

		httpErr, ok := err.(*echo.HTTPError)
		if !ok {
			t.Fatalf("header %q: expected echo.HTTPError, got %T", header, err)
		}
		if httpErr.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, httpErr.Code)
		}
	}
}

func TestJWTMiddleware_InvalidToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := JWTMiddleware(testSecret)
	err := mw(func(c echo.Context) error { return nil })(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestRequireAdmin_AllowsAdmin(t *testing.T) {
	token := issueTestToken(t, uuid.New(), true, time.Hour)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dentists", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	}

	chained := JWTMiddleware(testSecret)(RequireAdmin()(handler))
	if err := chained(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called for admin")
	}
}

func TestRequireAdmin_RejectsNonAdmin(t *testing.T) {
	token := issueTestToken(t, uuid.New(), false, time.Hour)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dentists", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	chained := JWTMiddleware(testSecret)(RequireAdmin()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}))
	err := chained(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}

func TestUserIDFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if uid := UserIDFromContext(req.Context()); uid != "" {
		t.Errorf("expected empty user id, got %q", uid)
	}
}
