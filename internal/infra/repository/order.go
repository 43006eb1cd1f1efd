package repository

import (
	"context"
	"errors"
	"time"

	"marketlink/internal/domain/order"
	"marketlink/internal/infra"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgErrCodeUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrCodeUniqueViolation
}

type OrderRepository struct{}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{}
}

func (r *OrderRepository) Create(ctx context.Context, db DBTX, o *order.Order) error {
	_, err := db.Exec(ctx, `
		INSERT INTO orders (id, customer_id, vendor_id, variant_id, total_amount_cents, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID(), o.CustomerID(), o.VendorID(), o.VariantID(),
		o.TotalAmountCents(), o.Status().String(), o.CreatedAt(), o.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return infra.WrapRepoErr("order already exists", err, infra.KindDuplicateKey)
		}
		return infra.WrapRepoErr("failed to create order", err)
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*order.Order, error) {
	var (
		orderID, customerID, vendorID, variantID uuid.UUID
		totalAmountCents                         int64
		status                                   string
		paymentIntentRef                         *string
		createdAt, updatedAt                     time.Time
	)
	err := db.QueryRow(ctx, `
		SELECT id, customer_id, vendor_id, variant_id, total_amount_cents, status, payment_intent_ref, created_at, updated_at
		FROM orders
		WHERE id = $1`, id,
	).Scan(&orderID, &customerID, &vendorID, &variantID, &totalAmountCents, &status, &paymentIntentRef, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("order not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to query order", err)
	}

	o, err := order.Reconstruct(orderID, customerID, vendorID, variantID,
		totalAmountCents, order.Status(status), paymentIntentRef, createdAt, updatedAt)
	if err != nil {
		return nil, infra.WrapRepoErr("corrupt order row", err)
	}
	return o, nil
}

// UpdateStatus applies a guarded transition; the row-level guard mirrors the
// domain transition table so concurrent writers serialize on the row and only
// one of them can take a given edge. Zero rows → KindConflict, the caller
// re-reads to distinguish already-in-target from an illegal edge.
func (r *OrderRepository) UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, from []order.Status, to order.Status) error {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = s.String()
	}

	tag, err := db.Exec(ctx, `
		UPDATE orders
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)`,
		id, to.String(), allowed,
	)
	if err != nil {
		return infra.WrapRepoErr("failed to update order status", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("order status guard rejected transition", nil, infra.KindConflict)
	}
	return nil
}

// SetPaymentIntent records the gateway reference once; the column carries a
// uniqueness constraint and is immutable after the first write.
func (r *OrderRepository) SetPaymentIntent(ctx context.Context, db DBTX, id uuid.UUID, intentRef string) error {
	tag, err := db.Exec(ctx, `
		UPDATE orders
		SET payment_intent_ref = $2, updated_at = now()
		WHERE id = $1 AND payment_intent_ref IS NULL`,
		id, intentRef,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return infra.WrapRepoErr("payment intent ref already used", err, infra.KindDuplicateKey)
		}
		return infra.WrapRepoErr("failed to set payment intent ref", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("payment intent ref already set", nil, infra.KindConflict)
	}
	return nil
}
