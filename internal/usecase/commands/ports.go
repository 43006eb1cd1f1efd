package commands

import (
	"context"
	"time"

	"marketlink/internal/domain/order"
	"marketlink/internal/domain/payment"
	"marketlink/internal/infra/repository"

	"github.com/google/uuid"
)

//go:generate mockgen -source=ports.go -destination=../../../tests/mock/commands/ports_mock.go -package=commandsmock

// TxRunner is the unit-of-work boundary: everything inside fn commits or
// rolls back as one atomic unit.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx repository.DBTX) error) error
}

// LockCoordinator grants short-lived named leases; Acquire fails fast once
// its bounded wait is exhausted.
type LockCoordinator interface {
	Acquire(ctx context.Context, resourceKey string) (token string, err error)
	Release(ctx context.Context, resourceKey, token string) error
}

type StockRepository interface {
	FindByID(ctx context.Context, db repository.DBTX, variantID uuid.UUID) (*repository.VariantSnapshot, error)
	TryDecrement(ctx context.Context, db repository.DBTX, variantID uuid.UUID) error
}

type OrderRepository interface {
	Create(ctx context.Context, db repository.DBTX, o *order.Order) error
	FindByID(ctx context.Context, db repository.DBTX, id uuid.UUID) (*order.Order, error)
	UpdateStatus(ctx context.Context, db repository.DBTX, id uuid.UUID, from []order.Status, to order.Status) error
	SetPaymentIntent(ctx context.Context, db repository.DBTX, id uuid.UUID, intentRef string) error
}

type PaymentEventRepository interface {
	Insert(ctx context.Context, db repository.DBTX, ev *payment.Event) error
	FindByEventID(ctx context.Context, db repository.DBTX, eventID string) (*payment.Event, error)
}

type NotificationRepository interface {
	CreateJob(ctx context.Context, db repository.DBTX, kind, topic string, payload []byte, runAt time.Time) error
}
