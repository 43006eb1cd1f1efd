package readstore

import (
	"context"
	"errors"

	"marketlink/internal/infra"
	"marketlink/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderReadStore struct {
	pool *pgxpool.Pool
}

func NewOrderReadStore(pool *pgxpool.Pool) *OrderReadStore {
	return &OrderReadStore{pool: pool}
}

func (s *OrderReadStore) FindByID(ctx context.Context, id uuid.UUID) (*queries.OrderView, error) {
	var v queries.OrderView
	err := s.pool.QueryRow(ctx, `
		SELECT o.id, o.customer_id, o.vendor_id, o.variant_id, sv.name,
		       o.total_amount_cents, o.status, o.payment_intent_ref, o.created_at, o.updated_at
		FROM orders o
		JOIN service_variants sv ON sv.id = o.variant_id
		WHERE o.id = $1`, id,
	).Scan(&v.ID, &v.CustomerID, &v.VendorID, &v.VariantID, &v.VariantName,
		&v.TotalAmountCents, &v.Status, &v.PaymentIntentRef, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("order not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to query order view", err)
	}

	return &v, nil
}

func (s *OrderReadStore) FindByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*queries.OrderListItem, error) {
	return s.list(ctx, `
		SELECT o.id, o.variant_id, sv.name, o.total_amount_cents, o.status, o.created_at
		FROM orders o
		JOIN service_variants sv ON sv.id = o.variant_id
		WHERE o.customer_id = $1
		ORDER BY o.created_at DESC`, customerID)
}

func (s *OrderReadStore) FindByVendorID(ctx context.Context, vendorID uuid.UUID) ([]*queries.OrderListItem, error) {
	return s.list(ctx, `
		SELECT o.id, o.variant_id, sv.name, o.total_amount_cents, o.status, o.created_at
		FROM orders o
		JOIN service_variants sv ON sv.id = o.variant_id
		WHERE o.vendor_id = $1
		ORDER BY o.created_at DESC`, vendorID)
}

func (s *OrderReadStore) list(ctx context.Context, sql string, arg any) ([]*queries.OrderListItem, error) {
	rows, err := s.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to query order list", err)
	}
	defer rows.Close()

	items := []*queries.OrderListItem{}
	for rows.Next() {
		var item queries.OrderListItem
		if err := rows.Scan(&item.ID, &item.VariantID, &item.VariantName,
			&item.TotalAmountCents, &item.Status, &item.CreatedAt); err != nil {
			return nil, infra.WrapRepoErr("failed to scan order list item", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to read order list", err)
	}

	return items, nil
}
