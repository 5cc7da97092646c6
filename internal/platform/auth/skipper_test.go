package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestIsPublicPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/health/db", true},
		{"/api/v1/sessions", true},
		{"/public/clinics/sorriso-odonto", true},
		{"/public/clinics/sorriso-odonto/patients/lookup", true},
		{"/public/signup/checkout", true},
		{"/webhooks/payment", true},
		{"/files/tenant/treatment/photo.png", true},
		{"/api/v1/patients", false},
		{"/api/v1/dentists", false},
		{"/api/v1/treatments/abc/items", false},
		{"/", false},
	}
	for _, tt := range tests {
		if got := IsPublicPath(tt.path); got != tt.want {
			t.Errorf("IsPublicPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestAuthSkipper(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if !AuthSkipper(c) {
		t.Error("expected /health to skip auth")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	c = e.NewContext(req, httptest.NewRecorder())
	if AuthSkipper(c) {
		t.Error("expected /api/v1/patients to require auth")
	}
}
