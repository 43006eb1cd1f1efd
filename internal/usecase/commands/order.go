package commands

import (
	"context"
	"log/slog"

	"marketlink/internal/domain/order"
	"marketlink/internal/infra"
	"marketlink/internal/infra/repository"
	"marketlink/internal/pkg/errs"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound     = errs.New("order not found")
	ErrInvalidTransition = errs.New("illegal order status transition")
)

type TransitionResult struct {
	OrderID uuid.UUID
	Status  order.Status
	// AlreadyDone reports an idempotent same-state request, distinguished
	// from an illegal edge which is an error.
	AlreadyDone bool
}

type OrderCommands interface {
	Cancel(ctx context.Context, orderID uuid.UUID) (*TransitionResult, error)
	StartFulfillment(ctx context.Context, orderID uuid.UUID) (*TransitionResult, error)
	Complete(ctx context.Context, orderID uuid.UUID) (*TransitionResult, error)
}

type orderCommandsImpl struct {
	orders OrderRepository
	db     repository.DBTX
}

func NewOrderCommands(orders OrderRepository, db repository.DBTX) OrderCommands {
	return &orderCommandsImpl{orders: orders, db: db}
}

func (c *orderCommandsImpl) Cancel(ctx context.Context, orderID uuid.UUID) (*TransitionResult, error) {
	return c.transition(ctx, orderID, order.StatusCancelled)
}

func (c *orderCommandsImpl) StartFulfillment(ctx context.Context, orderID uuid.UUID) (*TransitionResult, error) {
	return c.transition(ctx, orderID, order.StatusProcessing)
}

func (c *orderCommandsImpl) Complete(ctx context.Context, orderID uuid.UUID) (*TransitionResult, error) {
	return c.transition(ctx, orderID, order.StatusCompleted)
}

// transition applies a guarded status update; when the guard rejects, the row
// is re-read so the caller gets a definitive outcome instead of an ambiguous
// conflict: same-state is idempotent success, anything else an illegal edge.
func (c *orderCommandsImpl) transition(ctx context.Context, orderID uuid.UUID, to order.Status) (*TransitionResult, error) {
	err := c.orders.UpdateStatus(ctx, c.db, orderID, order.AllowedSources(to), to)
	if err == nil {
		slog.Info("order status changed", "order_id", orderID, "status", to.String())
		return &TransitionResult{OrderID: orderID, Status: to}, nil
	}
	if !infra.IsKind(err, infra.KindConflict) {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	ord, findErr := c.orders.FindByID(ctx, c.db, orderID)
	if findErr != nil {
		if infra.IsKind(findErr, infra.KindNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, errs.Mark(findErr, ErrDatabaseOperationFailed)
	}

	if ord.Status() == to {
		return &TransitionResult{OrderID: orderID, Status: to, AlreadyDone: true}, nil
	}

	slog.Error("illegal order transition rejected",
		"order_id", orderID,
		"current_status", ord.Status().String(),
		"requested_status", to.String())

	return nil, ErrInvalidTransition
}
