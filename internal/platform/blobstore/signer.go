package blobstore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var (
	ErrURLExpired          = errors.New("signed url expired")
	ErrInvalidURLSignature = errors.New("invalid url signature")
)

// URLSigner issues and verifies time-limited download URLs for stored
// objects. Files are never exposed directly; clients receive a signed URL
// that the download handler verifies.
type URLSigner struct {
	secret  []byte
	baseURL string
}

// NewURLSigner creates a URLSigner. baseURL is the public base of the API,
// e.g. "https://api.cidi.com.br".
func NewURLSigner(secret []byte, baseURL string) *URLSigner {
	return &URLSigner{secret: secret, baseURL: baseURL}
}

// Sign returns a download URL for path that is valid for ttl.
func (s *URLSigner) Sign(path string, ttl time.Duration) string {
	expires := time.Now().Add(ttl).Unix()
	sig := s.signature(path, expires)

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", sig)

	return fmt.Sprintf("%s/files/%s?%s", s.baseURL, path, q.Encode())
}

// Verify checks the signature and expiry extracted from a download request.
func (s *URLSigner) Verify(path string, expires int64, sig string) error {
	expected := s.signature(path, expires)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrInvalidURLSignature
	}
	if time.Now().Unix() > expires {
		return ErrURLExpired
	}
	return nil
}

// signature computes the hex HMAC-SHA256 over "path:expires".
func (s *URLSigner) signature(path string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", path, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
