package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SignatureHeader is the header carrying the webhook payload signature.
const SignatureHeader = "Payment-Signature"

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// SignPayload computes the hex HMAC-SHA256 signature of a webhook payload.
// It is exported so tests and the outbound side can produce valid headers.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ConstructEvent verifies the signature header against the raw payload and
// only then parses the event. The header format is "sha256=<hex>"; the
// comparison is constant time. Nothing is parsed from an unverified body.
func ConstructEvent(payload []byte, sigHeader, secret string) (Event, error) {
	var event Event

	if sigHeader == "" {
		return event, ErrMissingSignature
	}

	sig := strings.TrimPrefix(sigHeader, "sha256=")
	expected := SignPayload(payload, secret)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return event, ErrInvalidSignature
	}

	if err := json.Unmarshal(payload, &event); err != nil {
		return event, fmt.Errorf("parse webhook payload: %w", err)
	}
	return event, nil
}
