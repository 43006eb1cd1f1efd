package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUnverifiable = errors.New("notification signature verification failed")
	ErrUnavailable  = errors.New("payment gateway unavailable")
)

type EventType string

const (
	EventPaymentSucceeded EventType = "payment.succeeded"
	EventPaymentFailed    EventType = "payment.failed"
)

// Intent is the gateway-side checkout handle for an order. ClientRef is what
// the customer-facing checkout needs; the engine persists only the ID.
type Intent struct {
	ID        string
	ClientRef string
}

// Notification is a verified webhook payload. Raw preserves the exact bytes
// for the append-only ledger.
type Notification struct {
	EventID     string
	Type        EventType
	OrderID     uuid.UUID
	AmountCents int64
	Raw         []byte
}

// PaymentGateway is the external collaborator boundary: the engine only
// creates checkout intents and authenticates incoming notifications. Checkout
// UI and card handling live on the gateway's side.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, orderID uuid.UUID, amountCents int64) (*Intent, error)
	VerifyNotification(body []byte, signatureHeader string) (*Notification, error)
}
