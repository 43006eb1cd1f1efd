package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyEventID = errors.New("payment event id is empty")
)

type EventStatus string

const (
	StatusProcessed EventStatus = "processed"
	StatusRejected  EventStatus = "rejected"
)

type EventType string

const (
	TypePaymentSucceeded EventType = "payment.succeeded"
	TypePaymentFailed    EventType = "payment.failed"
)

// Event is one row of the append-only payment ledger. The externally supplied
// EventID carries a storage-level uniqueness constraint; it is the idempotency
// anchor for at-least-once webhook delivery. Rows are never mutated after the
// initial write.
type Event struct {
	id          uuid.UUID
	eventID     string
	orderID     uuid.UUID
	eventType   EventType
	amountCents int64
	status      EventStatus
	payload     []byte
	errorDetail *string
	processedAt *time.Time
	createdAt   time.Time
}

func NewProcessedEvent(eventID string, orderID uuid.UUID, eventType EventType, amountCents int64, payload []byte, now time.Time) (*Event, error) {
	if eventID == "" {
		return nil, ErrEmptyEventID
	}
	processedAt := now
	return &Event{
		id:          uuid.New(),
		eventID:     eventID,
		orderID:     orderID,
		eventType:   eventType,
		amountCents: amountCents,
		status:      StatusProcessed,
		payload:     payload,
		processedAt: &processedAt,
		createdAt:   now,
	}, nil
}

func NewRejectedEvent(eventID string, orderID uuid.UUID, eventType EventType, amountCents int64, payload []byte, reason string, now time.Time) (*Event, error) {
	if eventID == "" {
		return nil, ErrEmptyEventID
	}
	return &Event{
		id:          uuid.New(),
		eventID:     eventID,
		orderID:     orderID,
		eventType:   eventType,
		amountCents: amountCents,
		status:      StatusRejected,
		payload:     payload,
		errorDetail: &reason,
		createdAt:   now,
	}, nil
}

func ReconstructEvent(
	id uuid.UUID,
	eventID string,
	orderID uuid.UUID,
	eventType EventType,
	amountCents int64,
	status EventStatus,
	payload []byte,
	errorDetail *string,
	processedAt *time.Time,
	createdAt time.Time,
) *Event {
	return &Event{
		id:          id,
		eventID:     eventID,
		orderID:     orderID,
		eventType:   eventType,
		amountCents: amountCents,
		status:      status,
		payload:     payload,
		errorDetail: errorDetail,
		processedAt: processedAt,
		createdAt:   createdAt,
	}
}

func (e *Event) ID() uuid.UUID           { return e.id }
func (e *Event) EventID() string         { return e.eventID }
func (e *Event) OrderID() uuid.UUID      { return e.orderID }
func (e *Event) Type() EventType         { return e.eventType }
func (e *Event) AmountCents() int64      { return e.amountCents }
func (e *Event) Status() EventStatus     { return e.status }
func (e *Event) Payload() []byte         { return e.payload }
func (e *Event) ErrorDetail() *string    { return e.errorDetail }
func (e *Event) ProcessedAt() *time.Time { return e.processedAt }
func (e *Event) CreatedAt() time.Time    { return e.createdAt }
