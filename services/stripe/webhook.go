package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook event types we handle
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded         = "charge.refunded"
)

// DefaultTolerance bounds how old a signed webhook timestamp may be
const DefaultTolerance = 5 * time.Minute

var (
	ErrInvalidSignatureHeader = errors.New("invalid Stripe-Signature header")
	ErrSignatureMismatch      = errors.New("webhook signature mismatch")
	ErrTimestampTooOld        = errors.New("webhook timestamp outside tolerance")
)

// Event is a verified webhook event envelope
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ConstructEvent verifies the Stripe-Signature header against the shared
// webhook secret and, only if it matches, parses the payload into an Event.
// The signature scheme is HMAC-SHA256 over "<timestamp>.<payload>".
func ConstructEvent(payload []byte, sigHeader, secret string) (*Event, error) {
	return constructEventAt(payload, sigHeader, secret, time.Now(), DefaultTolerance)
}

func constructEventAt(payload []byte, sigHeader, secret string, now time.Time, tolerance time.Duration) (*Event, error) {
	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return nil, err
	}

	if now.Sub(time.Unix(timestamp, 0)) > tolerance {
		return nil, ErrTimestampTooOld
	}

	expected := ComputeSignature(timestamp, payload, secret)
	matched := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, ErrSignatureMismatch
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	return &event, nil
}

// ComputeSignature returns the hex HMAC-SHA256 signature for a signed payload
func ComputeSignature(timestamp int64, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// parseSignatureHeader splits "t=<unix>,v1=<sig>[,v1=<sig>...]"
func parseSignatureHeader(header string) (int64, []string, error) {
	if header == "" {
		return 0, nil, ErrInvalidSignatureHeader
	}

	var timestamp int64 = -1
	var signatures []string

	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "t":
			t, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return 0, nil, ErrInvalidSignatureHeader
			}
			timestamp = t
		case "v1":
			signatures = append(signatures, parts[1])
		}
	}

	if timestamp < 0 || len(signatures) == 0 {
		return 0, nil, ErrInvalidSignatureHeader
	}
	return timestamp, signatures, nil
}
