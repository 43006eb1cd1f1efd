package api

import (
	"context"
	"errors"
	"net/http"

	reqdto "marketlink/internal/handler/dto/request"
	resdto "marketlink/internal/handler/dto/response"
	"marketlink/internal/handler/httperr"
	"marketlink/internal/usecase/commands"
	"marketlink/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	customerIDHeader = "X-Customer-ID"
	vendorIDHeader   = "X-Vendor-ID"
)

type OrderHandler struct {
	reservationCommands commands.ReservationCommands
	orderCommands       commands.OrderCommands
	orderQueries        queries.OrderQueries
}

func NewOrderHandler(
	reservationCommands commands.ReservationCommands,
	orderCommands commands.OrderCommands,
	orderQueries queries.OrderQueries,
) *OrderHandler {
	return &OrderHandler{
		reservationCommands: reservationCommands,
		orderCommands:       orderCommands,
		orderQueries:        orderQueries,
	}
}

// @Summary Create repair order
// @Description Reserve stock for a service variant and create a pending order
// @Tags orders
// @Accept json
// @Produce json
// @Param X-Customer-ID header string true "Customer reference"
// @Param request body reqdto.CreateOrderRequest true "Order request"
// @Success 201 {object} resdto.CreateOrderResponse
// @Failure 400 {object} httperr.Response
// @Failure 404 {object} httperr.Response
// @Failure 409 {object} httperr.Response
// @Failure 502 {object} httperr.Response
// @Router /orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	customerID, ok := h.getCustomerID(c)
	if !ok {
		return
	}

	var req reqdto.CreateOrderRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, bindErr,
			httperr.CodeBadRequest, "Invalid request format", nil)
		return
	}

	result, err := h.reservationCommands.Reserve(c.Request.Context(), customerID, req.VariantID)
	if err != nil {
		switch {
		case errors.Is(err, commands.ErrVariantNotFound):
			httperr.AbortWithError(c, http.StatusNotFound, err,
				httperr.CodeNotFound, "Service variant not found", nil)
		case errors.Is(err, commands.ErrOutOfStock):
			httperr.AbortWithError(c, http.StatusConflict, err,
				httperr.CodeOutOfStock, "Service variant is out of stock", nil)
		case errors.Is(err, commands.ErrVariantBusy):
			// Contended lease: indistinguishable from exhaustion for the
			// caller, and retryable either way.
			httperr.AbortWithError(c, http.StatusConflict, err,
				httperr.CodeOutOfStock, "Service variant is busy, please retry", nil)
		case errors.Is(err, commands.ErrGatewayUnavailable):
			httperr.AbortWithError(c, http.StatusBadGateway, err,
				httperr.CodeGatewayError, "Payment gateway unavailable, order is pending", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err,
				httperr.CodeInternalError, "Internal server error", nil)
		}
		return
	}

	c.JSON(http.StatusCreated, resdto.CreateOrderResponse{
		Order:      resdto.FromOrderView(result.Order),
		PaymentRef: result.CheckoutRef,
	})
}

// @Summary Get order
// @Description Get order by ID
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} resdto.OrderResponse
// @Failure 400 {object} httperr.Response
// @Failure 404 {object} httperr.Response
// @Router /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := h.getOrderID(c)
	if !ok {
		return
	}

	view, err := h.orderQueries.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, queries.ErrOrderNotFound) {
			httperr.AbortWithError(c, http.StatusNotFound, err,
				httperr.CodeNotFound, "Order not found", nil)
			return
		}
		httperr.AbortWithError(c, http.StatusInternalServerError, err,
			httperr.CodeInternalError, "Internal server error", nil)
		return
	}

	c.JSON(http.StatusOK, resdto.FromOrderView(view))
}

// @Summary List customer orders
// @Description List all orders for the calling customer
// @Tags orders
// @Produce json
// @Param X-Customer-ID header string true "Customer reference"
// @Success 200 {array} resdto.OrderListResponse
// @Router /orders [get]
func (h *OrderHandler) ListMine(c *gin.Context) {
	customerID, ok := h.getCustomerID(c)
	if !ok {
		return
	}

	items, err := h.orderQueries.ListByCustomer(c.Request.Context(), customerID)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err,
			httperr.CodeInternalError, "Internal server error", nil)
		return
	}

	response := make([]*resdto.OrderListResponse, len(items))
	for i, rm := range items {
		response[i] = resdto.FromOrderListItem(rm)
	}

	c.JSON(http.StatusOK, response)
}

// @Summary List vendor orders
// @Description List all orders placed against the calling vendor
// @Tags orders
// @Produce json
// @Param X-Vendor-ID header string true "Vendor reference"
// @Success 200 {array} resdto.OrderListResponse
// @Router /orders/vendor [get]
func (h *OrderHandler) ListForVendor(c *gin.Context) {
	vendorID, ok := h.getVendorID(c)
	if !ok {
		return
	}

	items, err := h.orderQueries.ListByVendor(c.Request.Context(), vendorID)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err,
			httperr.CodeInternalError, "Internal server error", nil)
		return
	}

	response := make([]*resdto.OrderListResponse, len(items))
	for i, rm := range items {
		response[i] = resdto.FromOrderListItem(rm)
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Cancel order
// @Description Cancel a pending or paid order
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} resdto.TransitionResponse
// @Failure 404 {object} httperr.Response
// @Failure 409 {object} httperr.Response
// @Router /orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *gin.Context) {
	h.applyTransition(c, h.orderCommands.Cancel)
}

// @Summary Complete order
// @Description Vendor marks a processing order as completed
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} resdto.TransitionResponse
// @Failure 404 {object} httperr.Response
// @Failure 409 {object} httperr.Response
// @Router /orders/{id}/complete [post]
func (h *OrderHandler) Complete(c *gin.Context) {
	h.applyTransition(c, h.orderCommands.Complete)
}

func (h *OrderHandler) applyTransition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*commands.TransitionResult, error)) {
	id, ok := h.getOrderID(c)
	if !ok {
		return
	}

	result, err := fn(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, commands.ErrOrderNotFound):
			httperr.AbortWithError(c, http.StatusNotFound, err,
				httperr.CodeNotFound, "Order not found", nil)
		case errors.Is(err, commands.ErrInvalidTransition):
			httperr.AbortWithError(c, http.StatusConflict, err,
				httperr.CodeInvalidState, "Order is not in a state that allows this action", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err,
				httperr.CodeInternalError, "Internal server error", nil)
		}
		return
	}

	c.JSON(http.StatusOK, resdto.TransitionResponse{
		OrderID:     result.OrderID,
		Status:      result.Status.String(),
		AlreadyDone: result.AlreadyDone,
	})
}

func (h *OrderHandler) getOrderID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err,
			httperr.CodeBadRequest, "Invalid order ID format", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *OrderHandler) getCustomerID(c *gin.Context) (uuid.UUID, bool) {
	return h.getPartyID(c, customerIDHeader)
}

func (h *OrderHandler) getVendorID(c *gin.Context) (uuid.UUID, bool) {
	return h.getPartyID(c, vendorIDHeader)
}

func (h *OrderHandler) getPartyID(c *gin.Context, header string) (uuid.UUID, bool) {
	raw := c.GetHeader(header)
	if raw == "" {
		httperr.AbortWithError(c, http.StatusBadRequest, errors.New("missing "+header+" header"),
			httperr.CodeBadRequest, header+" header is required", nil)
		return uuid.Nil, false
	}

	partyID, err := uuid.Parse(raw)
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err,
			httperr.CodeBadRequest, "Invalid "+header+" format", nil)
		return uuid.Nil, false
	}

	return partyID, true
}
