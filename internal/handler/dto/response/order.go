package response

import (
	"time"

	"marketlink/internal/usecase/queries"

	"github.com/google/uuid"
)

type OrderResponse struct {
	ID               uuid.UUID `json:"id"`
	CustomerID       uuid.UUID `json:"customerId"`
	VendorID         uuid.UUID `json:"vendorId"`
	VariantID        uuid.UUID `json:"variantId"`
	VariantName      string    `json:"variantName"`
	TotalAmountCents int64     `json:"totalAmountCents"`
	Status           string    `json:"status"`
	PaymentIntentRef *string   `json:"paymentIntentRef,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type CreateOrderResponse struct {
	Order      *OrderResponse `json:"order"`
	PaymentRef string         `json:"paymentRef"`
}

type OrderListResponse struct {
	ID               uuid.UUID `json:"id"`
	VariantID        uuid.UUID `json:"variantId"`
	VariantName      string    `json:"variantName"`
	TotalAmountCents int64     `json:"totalAmountCents"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
}

type TransitionResponse struct {
	OrderID     uuid.UUID `json:"orderId"`
	Status      string    `json:"status"`
	AlreadyDone bool      `json:"alreadyDone"`
}

type WebhookResponse struct {
	Received bool      `json:"received"`
	Outcome  string    `json:"outcome"`
	OrderID  uuid.UUID `json:"orderId,omitempty"`
}

func FromOrderView(rm *queries.OrderView) *OrderResponse {
	return &OrderResponse{
		ID:               rm.ID,
		CustomerID:       rm.CustomerID,
		VendorID:         rm.VendorID,
		VariantID:        rm.VariantID,
		VariantName:      rm.VariantName,
		TotalAmountCents: rm.TotalAmountCents,
		Status:           rm.Status,
		PaymentIntentRef: rm.PaymentIntentRef,
		CreatedAt:        rm.CreatedAt,
		UpdatedAt:        rm.UpdatedAt,
	}
}

func FromOrderListItem(rm *queries.OrderListItem) *OrderListResponse {
	return &OrderListResponse{
		ID:               rm.ID,
		VariantID:        rm.VariantID,
		VariantName:      rm.VariantName,
		TotalAmountCents: rm.TotalAmountCents,
		Status:           rm.Status,
		CreatedAt:        rm.CreatedAt,
	}
}
