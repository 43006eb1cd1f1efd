//go:build unit

package payment_test

import (
	"testing"
	"time"

	"marketlink/internal/domain/payment"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestNewProcessedEvent(t *testing.T) {
	orderID := uuid.New()
	ev, err := payment.NewProcessedEvent("evt_001", orderID, payment.TypePaymentSucceeded, 2000, []byte(`{}`), now)
	require.NoError(t, err)

	assert.Equal(t, "evt_001", ev.EventID())
	assert.Equal(t, orderID, ev.OrderID())
	assert.Equal(t, payment.StatusProcessed, ev.Status())
	require.NotNil(t, ev.ProcessedAt())
	assert.Equal(t, now, *ev.ProcessedAt())
	assert.Nil(t, ev.ErrorDetail())
}

func TestNewRejectedEvent(t *testing.T) {
	ev, err := payment.NewRejectedEvent("evt_001", uuid.New(), payment.TypePaymentSucceeded, 1900, []byte(`{}`), "amount mismatch", now)
	require.NoError(t, err)

	assert.Equal(t, payment.StatusRejected, ev.Status())
	require.NotNil(t, ev.ErrorDetail())
	assert.Equal(t, "amount mismatch", *ev.ErrorDetail())
	assert.Nil(t, ev.ProcessedAt())
}

func TestEmptyEventIDRejected(t *testing.T) {
	_, err := payment.NewProcessedEvent("", uuid.New(), payment.TypePaymentSucceeded, 2000, nil, now)
	assert.ErrorIs(t, err, payment.ErrEmptyEventID)

	_, err = payment.NewRejectedEvent("", uuid.New(), payment.TypePaymentFailed, 0, nil, "x", now)
	assert.ErrorIs(t, err, payment.ErrEmptyEventID)
}
