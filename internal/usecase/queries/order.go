package queries

import (
	"context"
	"time"

	"marketlink/internal/infra"
	"marketlink/internal/pkg/errs"

	"github.com/google/uuid"
)

var ErrOrderNotFound = errs.New("order not found")

// Read models (DTO for read side)
type OrderView struct {
	ID               uuid.UUID `json:"id"`
	CustomerID       uuid.UUID `json:"customer_id"`
	VendorID         uuid.UUID `json:"vendor_id"`
	VariantID        uuid.UUID `json:"variant_id"`
	VariantName      string    `json:"variant_name"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	Status           string    `json:"status"`
	PaymentIntentRef *string   `json:"payment_intent_ref,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type OrderListItem struct {
	ID               uuid.UUID `json:"id"`
	VariantID        uuid.UUID `json:"variant_id"`
	VariantName      string    `json:"variant_name"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

type OrderReadStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*OrderView, error)
	FindByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*OrderListItem, error)
	FindByVendorID(ctx context.Context, vendorID uuid.UUID) ([]*OrderListItem, error)
}

type OrderQueries interface {
	GetByID(ctx context.Context, id uuid.UUID) (*OrderView, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*OrderListItem, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]*OrderListItem, error)
}

type orderQueriesImpl struct {
	store OrderReadStore
}

func NewOrderQueries(store OrderReadStore) OrderQueries {
	return &orderQueriesImpl{store: store}
}

func (q *orderQueriesImpl) GetByID(ctx context.Context, id uuid.UUID) (*OrderView, error) {
	view, err := q.store.FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return view, nil
}

func (q *orderQueriesImpl) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*OrderListItem, error) {
	return q.store.FindByCustomerID(ctx, customerID)
}

func (q *orderQueriesImpl) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]*OrderListItem, error) {
	return q.store.FindByVendorID(ctx, vendorID)
}
