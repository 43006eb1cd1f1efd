package request

import (
	"github.com/google/uuid"
)

type CreateOrderRequest struct {
	VariantID uuid.UUID `json:"variant_id" binding:"required"`
}
