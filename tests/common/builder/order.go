package builder

import (
	"time"

	"marketlink/internal/domain/order"
	"marketlink/internal/infra/repository"
	"marketlink/internal/usecase/queries"

	"github.com/google/uuid"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// OrderBuilder assembles orders for tests with sane defaults; override what
// the case under test cares about.
type OrderBuilder struct {
	id               uuid.UUID
	customerID       uuid.UUID
	vendorID         uuid.UUID
	variantID        uuid.UUID
	totalAmountCents int64
	status           order.Status
	paymentIntentRef *string
	now              time.Time
}

func NewOrderBuilder() *OrderBuilder {
	return &OrderBuilder{
		id:               uuid.New(),
		customerID:       uuid.New(),
		vendorID:         uuid.New(),
		variantID:        uuid.New(),
		totalAmountCents: 2000,
		status:           order.StatusPending,
		now:              fixedNow,
	}
}

func (b *OrderBuilder) WithID(id uuid.UUID) *OrderBuilder {
	b.id = id
	return b
}

func (b *OrderBuilder) WithCustomerID(id uuid.UUID) *OrderBuilder {
	b.customerID = id
	return b
}

func (b *OrderBuilder) WithVariantID(id uuid.UUID) *OrderBuilder {
	b.variantID = id
	return b
}

func (b *OrderBuilder) WithAmount(cents int64) *OrderBuilder {
	b.totalAmountCents = cents
	return b
}

func (b *OrderBuilder) WithStatus(s order.Status) *OrderBuilder {
	b.status = s
	return b
}

func (b *OrderBuilder) WithPaymentIntentRef(ref string) *OrderBuilder {
	b.paymentIntentRef = &ref
	return b
}

func (b *OrderBuilder) BuildDomain() (*order.Order, error) {
	return order.Reconstruct(b.id, b.customerID, b.vendorID, b.variantID,
		b.totalAmountCents, b.status, b.paymentIntentRef, b.now, b.now)
}

func (b *OrderBuilder) BuildView() *queries.OrderView {
	return &queries.OrderView{
		ID:               b.id,
		CustomerID:       b.customerID,
		VendorID:         b.vendorID,
		VariantID:        b.variantID,
		VariantName:      "Screen replacement",
		TotalAmountCents: b.totalAmountCents,
		Status:           b.status.String(),
		PaymentIntentRef: b.paymentIntentRef,
		CreatedAt:        b.now,
		UpdatedAt:        b.now,
	}
}

// VariantBuilder assembles stock snapshots for tests.
type VariantBuilder struct {
	id         uuid.UUID
	vendorID   uuid.UUID
	name       string
	priceCents int64
	stock      int32
}

func NewVariantBuilder() *VariantBuilder {
	return &VariantBuilder{
		id:         uuid.New(),
		vendorID:   uuid.New(),
		name:       "Screen replacement",
		priceCents: 2000,
		stock:      5,
	}
}

func (b *VariantBuilder) WithID(id uuid.UUID) *VariantBuilder {
	b.id = id
	return b
}

func (b *VariantBuilder) WithPrice(cents int64) *VariantBuilder {
	b.priceCents = cents
	return b
}

func (b *VariantBuilder) WithStock(n int32) *VariantBuilder {
	b.stock = n
	return b
}

func (b *VariantBuilder) Build() *repository.VariantSnapshot {
	return &repository.VariantSnapshot{
		ID:         b.id,
		VendorID:   b.vendorID,
		Name:       b.name,
		PriceCents: b.priceCents,
		Stock:      b.stock,
		Version:    1,
		UpdatedAt:  fixedNow,
	}
}
