package stripe

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

func signedHeader(t *testing.T, payload []byte, at time.Time) string {
	t.Helper()
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, ComputeSignature(ts, payload, testWebhookSecret))
}

func TestConstructEventValidSignature(t *testing.T) {
	payload := []byte(`{
		"id": "evt_123",
		"type": "payment_intent.succeeded",
		"created": 1700000000,
		"data": {"object": {"id": "pi_123", "metadata": {"courseId": "c1", "userId": "u1"}}}
	}`)
	now := time.Now()

	event, err := constructEventAt(payload, signedHeader(t, payload, now), testWebhookSecret, now, DefaultTolerance)
	require.NoError(t, err)
	assert.Equal(t, "evt_123", event.ID)
	assert.Equal(t, EventPaymentIntentSucceeded, event.Type)
	assert.Equal(t, int64(1700000000), event.Created)
	assert.Contains(t, string(event.Data.Object), "pi_123")
}

func TestConstructEventSignatureMismatch(t *testing.T) {
	payload := []byte(`{"id":"evt_123","type":"payment_intent.succeeded"}`)
	now := time.Now()

	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), ComputeSignature(now.Unix(), payload, "whsec_wrong"))
	_, err := constructEventAt(payload, header, testWebhookSecret, now, DefaultTolerance)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestConstructEventTamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_123","type":"payment_intent.succeeded"}`)
	now := time.Now()
	header := signedHeader(t, payload, now)

	tampered := []byte(`{"id":"evt_123","type":"charge.refunded"}`)
	_, err := constructEventAt(tampered, header, testWebhookSecret, now, DefaultTolerance)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestConstructEventStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_123","type":"payment_intent.succeeded"}`)
	now := time.Now()
	header := signedHeader(t, payload, now.Add(-10*time.Minute))

	_, err := constructEventAt(payload, header, testWebhookSecret, now, DefaultTolerance)
	assert.ErrorIs(t, err, ErrTimestampTooOld)
}

func TestConstructEventMalformedHeader(t *testing.T) {
	payload := []byte(`{"id":"evt_123"}`)
	now := time.Now()

	for _, header := range []string{
		"",
		"garbage",
		"t=notanumber,v1=abc",
		"v1=abc",       // no timestamp
		"t=1700000000", // no signature
	} {
		_, err := constructEventAt(payload, header, testWebhookSecret, now, 100*365*24*time.Hour)
		assert.ErrorIs(t, err, ErrInvalidSignatureHeader, "header %q", header)
	}
}

func TestConstructEventMultipleSignatures(t *testing.T) {
	payload := []byte(`{"id":"evt_123","type":"payment_intent.succeeded"}`)
	now := time.Now()
	ts := now.Unix()

	// A rolled secret may leave a stale v1 entry ahead of the valid one
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s",
		ts,
		ComputeSignature(ts, payload, "whsec_old"),
		ComputeSignature(ts, payload, testWebhookSecret))

	event, err := constructEventAt(payload, header, testWebhookSecret, now, DefaultTolerance)
	require.NoError(t, err)
	assert.Equal(t, "evt_123", event.ID)
}

func TestAmountInMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1999), AmountInMinorUnits(19.99))
	assert.Equal(t, int64(1050), AmountInMinorUnits(10.50))
	assert.Equal(t, int64(0), AmountInMinorUnits(0))
	assert.Equal(t, int64(100), AmountInMinorUnits(1))
	// 29.99 is not exactly representable; rounding must not truncate to 2998
	assert.Equal(t, int64(2999), AmountInMinorUnits(29.99))
}
