package commands

import (
	"context"
	"errors"
	"log/slog"

	"marketlink/internal/domain/order"
	"marketlink/internal/gateway"
	"marketlink/internal/infra"
	"marketlink/internal/infra/lock"
	"marketlink/internal/infra/repository"
	"marketlink/internal/pkg/clock"
	"marketlink/internal/pkg/errs"
	"marketlink/internal/usecase/queries"

	"github.com/google/uuid"
)

var (
	ErrVariantNotFound         = errs.New("service variant not found")
	ErrOutOfStock              = errs.New("service variant out of stock")
	ErrVariantBusy             = errs.New("service variant busy, retry later")
	ErrGatewayUnavailable      = errs.New("payment gateway unavailable")
	ErrDatabaseOperationFailed = errs.New("database operation failed")
)

type ReserveResult struct {
	Order *queries.OrderView
	// CheckoutRef is what the customer-facing checkout needs to collect
	// payment; empty only when intent creation is still outstanding.
	CheckoutRef string
}

type ReservationCommands interface {
	Reserve(ctx context.Context, customerID, variantID uuid.UUID) (*ReserveResult, error)
}

type reservationCommandsImpl struct {
	locks        LockCoordinator
	variants     StockRepository
	orders       OrderRepository
	tx           TxRunner
	db           repository.DBTX
	gateway      gateway.PaymentGateway
	orderQueries queries.OrderQueries
	clock        clock.Clock
}

func NewReservationCommands(
	locks LockCoordinator,
	variants StockRepository,
	orders OrderRepository,
	tx TxRunner,
	db repository.DBTX,
	gw gateway.PaymentGateway,
	orderQueries queries.OrderQueries,
	clk clock.Clock,
) ReservationCommands {
	return &reservationCommandsImpl{
		locks:        locks,
		variants:     variants,
		orders:       orders,
		tx:           tx,
		db:           db,
		gateway:      gw,
		orderQueries: orderQueries,
		clock:        clk,
	}
}

// Reserve holds the variant lease only around the local critical section
// (decrement + order insert); the gateway call happens strictly after release
// so a slow gateway cannot stretch lease hold time.
func (r *reservationCommandsImpl) Reserve(ctx context.Context, customerID, variantID uuid.UUID) (*ReserveResult, error) {
	token, err := r.locks.Acquire(ctx, lock.StockKey(variantID))
	if err != nil {
		if errors.Is(err, lock.ErrLeaseBusy) {
			return nil, ErrVariantBusy
		}
		return nil, errs.Mark(err, ErrVariantBusy)
	}

	ord, err := r.reserveUnderLease(ctx, customerID, variantID)

	if releaseErr := r.locks.Release(ctx, lock.StockKey(variantID), token); releaseErr != nil {
		// Expired-and-reacquired leases surface here; the TTL already
		// bounded the hold, nothing to recover.
		slog.Warn("lease release failed", "variant_id", variantID, "error", releaseErr.Error())
	}
	if err != nil {
		return nil, err
	}

	checkoutRef, err := r.createPaymentIntent(ctx, ord)
	if err != nil {
		// Stock is already decremented and the order committed as pending
		// with no intent ref. That degraded state is left for reconciliation;
		// the caller gets an honest gateway error instead of a fake success.
		return nil, err
	}

	view, err := r.orderQueries.GetByID(ctx, ord.ID())
	if err != nil {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	return &ReserveResult{Order: view, CheckoutRef: checkoutRef}, nil
}

func (r *reservationCommandsImpl) reserveUnderLease(ctx context.Context, customerID, variantID uuid.UUID) (*order.Order, error) {
	variant, err := r.variants.FindByID(ctx, r.db, variantID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrVariantNotFound
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	ord, err := order.NewOrder(customerID, variant.VendorID, variant.ID, variant.PriceCents, r.clock.Now())
	if err != nil {
		return nil, err
	}

	// The conditional decrement and the order insert commit together: an
	// order row exists exactly when a unit of stock was taken for it.
	err = r.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		if err := r.variants.TryDecrement(ctx, tx, variantID); err != nil {
			return err
		}
		return r.orders.Create(ctx, tx, ord)
	})
	if err != nil {
		switch {
		case infra.IsKind(err, infra.KindConflict):
			return nil, ErrOutOfStock
		case infra.IsKind(err, infra.KindNotFound):
			return nil, ErrVariantNotFound
		default:
			return nil, errs.Mark(err, ErrDatabaseOperationFailed)
		}
	}

	slog.Info("stock reserved",
		"variant_id", variantID,
		"order_id", ord.ID(),
		"customer_id", customerID)

	return ord, nil
}

func (r *reservationCommandsImpl) createPaymentIntent(ctx context.Context, ord *order.Order) (string, error) {
	intent, err := r.gateway.CreateIntent(ctx, ord.ID(), ord.TotalAmountCents())
	if err != nil {
		slog.Error("payment intent creation failed, order left pending",
			"order_id", ord.ID(),
			"error", err.Error())
		return "", errs.Mark(err, ErrGatewayUnavailable)
	}

	if err := r.orders.SetPaymentIntent(ctx, r.db, ord.ID(), intent.ID); err != nil {
		return "", errs.Mark(err, ErrDatabaseOperationFailed)
	}

	return intent.ClientRef, nil
}
