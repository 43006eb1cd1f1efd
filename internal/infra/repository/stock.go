package repository

import (
	"context"
	"errors"
	"time"

	"marketlink/internal/infra"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type VariantSnapshot struct {
	ID         uuid.UUID
	VendorID   uuid.UUID
	Name       string
	PriceCents int64
	Stock      int32
	Version    int64
	UpdatedAt  time.Time
}

// StockRepository is the durable stock ledger. Quantity only ever moves
// through TryDecrement; there is no increment on the hot path because stock
// restitution is an explicit reconciliation concern, not an automatic one.
type StockRepository struct{}

func NewStockRepository() *StockRepository {
	return &StockRepository{}
}

func (r *StockRepository) FindByID(ctx context.Context, db DBTX, variantID uuid.UUID) (*VariantSnapshot, error) {
	var v VariantSnapshot
	err := db.QueryRow(ctx, `
		SELECT id, vendor_id, name, price_cents, stock, version, updated_at
		FROM service_variants
		WHERE id = $1`, variantID,
	).Scan(&v.ID, &v.VendorID, &v.Name, &v.PriceCents, &v.Stock, &v.Version, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("service variant not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to query service variant", err)
	}

	return &v, nil
}

// TryDecrement is a single atomic read-and-conditional-write: the decrement
// only lands when quantity is still positive at the instant of the update.
// It stays correct even when the caller skipped the lease.
func (r *StockRepository) TryDecrement(ctx context.Context, db DBTX, variantID uuid.UUID) error {
	tag, err := db.Exec(ctx, `
		UPDATE service_variants
		SET stock = stock - 1, version = version + 1, updated_at = now()
		WHERE id = $1 AND stock > 0`, variantID,
	)
	if err != nil {
		return infra.WrapRepoErr("failed to decrement stock", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows is ambiguous; re-read to report a definitive outcome.
	var stock int32
	err = db.QueryRow(ctx, `SELECT stock FROM service_variants WHERE id = $1`, variantID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return infra.WrapRepoErr("service variant not found", err, infra.KindNotFound)
		}
		return infra.WrapRepoErr("failed to re-read stock", err)
	}

	return infra.WrapRepoErr("stock exhausted", nil, infra.KindConflict)
}
