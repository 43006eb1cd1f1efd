package order

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidAmount     = errors.New("order amount must be positive")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("illegal status transition")
	ErrAlreadyInState    = errors.New("order already in requested status")
	ErrIntentAlreadySet  = errors.New("payment intent reference already set")
	ErrEmptyIntentRef    = errors.New("payment intent reference is empty")
	ErrAmountMismatch    = errors.New("declared amount does not match order total")
)

type Order struct {
	id               uuid.UUID
	customerID       uuid.UUID
	vendorID         uuid.UUID
	variantID        uuid.UUID
	totalAmountCents int64
	status           Status
	paymentIntentRef *string
	createdAt        time.Time
	updatedAt        time.Time
}

// NewOrder creates a pending order. Total amount is fixed here and never
// mutated afterwards; settlement validates declared amounts against it.
func NewOrder(customerID, vendorID, variantID uuid.UUID, totalAmountCents int64, now time.Time) (*Order, error) {
	if totalAmountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	return &Order{
		id:               uuid.New(),
		customerID:       customerID,
		vendorID:         vendorID,
		variantID:        variantID,
		totalAmountCents: totalAmountCents,
		status:           StatusPending,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

func Reconstruct(
	id, customerID, vendorID, variantID uuid.UUID,
	totalAmountCents int64,
	status Status,
	paymentIntentRef *string,
	createdAt, updatedAt time.Time,
) (*Order, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	return &Order{
		id:               id,
		customerID:       customerID,
		vendorID:         vendorID,
		variantID:        variantID,
		totalAmountCents: totalAmountCents,
		status:           status,
		paymentIntentRef: paymentIntentRef,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}, nil
}

// TransitionTo distinguishes idempotent same-state requests from illegal
// edges: the former return ErrAlreadyInState, the latter ErrInvalidTransition.
func (o *Order) TransitionTo(next Status, now time.Time) error {
	if o.status == next {
		return ErrAlreadyInState
	}
	if !o.status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	o.status = next
	o.updatedAt = now
	return nil
}

// AttachPaymentIntent records the gateway reference; it is immutable once set.
func (o *Order) AttachPaymentIntent(ref string, now time.Time) error {
	if ref == "" {
		return ErrEmptyIntentRef
	}
	if o.paymentIntentRef != nil {
		return ErrIntentAlreadySet
	}
	o.paymentIntentRef = &ref
	o.updatedAt = now
	return nil
}

// VerifyDeclaredAmount guards settlement against gateway/order divergence.
func (o *Order) VerifyDeclaredAmount(declaredCents int64) error {
	if declaredCents != o.totalAmountCents {
		return ErrAmountMismatch
	}
	return nil
}

func (o *Order) IsSettled() bool {
	return o.status != StatusPending
}

func (o *Order) ID() uuid.UUID             { return o.id }
func (o *Order) CustomerID() uuid.UUID     { return o.customerID }
func (o *Order) VendorID() uuid.UUID       { return o.vendorID }
func (o *Order) VariantID() uuid.UUID      { return o.variantID }
func (o *Order) TotalAmountCents() int64   { return o.totalAmountCents }
func (o *Order) Status() Status            { return o.status }
func (o *Order) PaymentIntentRef() *string { return o.paymentIntentRef }
func (o *Order) CreatedAt() time.Time      { return o.createdAt }
func (o *Order) UpdatedAt() time.Time      { return o.updatedAt }
