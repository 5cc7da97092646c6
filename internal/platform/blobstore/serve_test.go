package blobstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func serveRequest(t *testing.T, h echo.HandlerFunc, signedURL string) *httptest.ResponseRecorder {
	t.Helper()
	u, err := url.Parse(signedURL)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, u.RequestURI(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/files/*")
	c.SetParamNames("*")
	c.SetParamValues(strings.TrimPrefix(u.Path, "/files/"))

	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestServeHandler(t *testing.T) {
	store := NewInMemoryStore()
	signer := NewURLSigner([]byte("secret"), "https://api.example.com")
	h := ServeHandler(store, signer)

	if _, err := store.Upload(context.Background(), "t1/tr1/photo.png", "image/png", strings.NewReader("png-bytes")); err != nil {
		t.Fatalf("upload: %v", err)
	}

	rec := serveRequest(t, h, signer.Sign("t1/tr1/photo.png", time.Minute))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "png-bytes" {
		t.Errorf("body = %q", body)
	}
}

func TestServeHandler_BadSignature(t *testing.T) {
	store := NewInMemoryStore()
	signer := NewURLSigner([]byte("secret"), "https://api.example.com")
	h := ServeHandler(store, signer)

	if _, err := store.Upload(context.Background(), "t1/tr1/photo.png", "image/png", strings.NewReader("png-bytes")); err != nil {
		t.Fatalf("upload: %v", err)
	}

	otherSigner := NewURLSigner([]byte("other-secret"), "https://api.example.com")
	rec := serveRequest(t, h, otherSigner.Sign("t1/tr1/photo.png", time.Minute))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestServeHandler_Expired(t *testing.T) {
	store := NewInMemoryStore()
	signer := NewURLSigner([]byte("secret"), "https://api.example.com")
	h := ServeHandler(store, signer)

	rec := serveRequest(t, h, signer.Sign("t1/tr1/photo.png", -time.Minute))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestServeHandler_MissingObject(t *testing.T) {
	store := NewInMemoryStore()
	signer := NewURLSigner([]byte("secret"), "https://api.example.com")
	h := ServeHandler(store, signer)

	rec := serveRequest(t, h, signer.Sign("t1/tr1/gone.png", time.Minute))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
