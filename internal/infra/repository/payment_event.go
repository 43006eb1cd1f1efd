package repository

import (
	"context"
	"errors"
	"time"

	"marketlink/internal/domain/payment"
	"marketlink/internal/infra"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentEventRepository is the append-only settlement ledger. The unique key
// on event_id is enforced at the storage layer so that even a lock-coordinator
// failure cannot produce a double-processed event.
type PaymentEventRepository struct{}

func NewPaymentEventRepository() *PaymentEventRepository {
	return &PaymentEventRepository{}
}

func (r *PaymentEventRepository) Insert(ctx context.Context, db DBTX, ev *payment.Event) error {
	_, err := db.Exec(ctx, `
		INSERT INTO payment_events (id, event_id, order_id, event_type, amount_cents, status, payload, error_detail, processed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ev.ID(), ev.EventID(), ev.OrderID(), string(ev.Type()), ev.AmountCents(),
		string(ev.Status()), ev.Payload(), ev.ErrorDetail(), ev.ProcessedAt(), ev.CreatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return infra.WrapRepoErr("payment event already recorded", err, infra.KindDuplicateKey)
		}
		return infra.WrapRepoErr("failed to insert payment event", err)
	}
	return nil
}

func (r *PaymentEventRepository) FindByEventID(ctx context.Context, db DBTX, eventID string) (*payment.Event, error) {
	var (
		id          uuid.UUID
		evID        string
		orderID     uuid.UUID
		eventType   string
		amountCents int64
		status      string
		payload     []byte
		errorDetail *string
		processedAt *time.Time
		createdAt   time.Time
	)
	err := db.QueryRow(ctx, `
		SELECT id, event_id, order_id, event_type, amount_cents, status, payload, error_detail, processed_at, created_at
		FROM payment_events
		WHERE event_id = $1`, eventID,
	).Scan(&id, &evID, &orderID, &eventType, &amountCents, &status, &payload, &errorDetail, &processedAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("payment event not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to query payment event", err)
	}

	return payment.ReconstructEvent(id, evID, orderID, payment.EventType(eventType),
		amountCents, payment.EventStatus(status), payload, errorDetail, processedAt, createdAt), nil
}
