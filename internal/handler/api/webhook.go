package api

import (
	"errors"
	"net/http"

	resdto "marketlink/internal/handler/dto/response"
	"marketlink/internal/handler/httperr"
	"marketlink/internal/usecase/commands"

	"github.com/gin-gonic/gin"
)

const signatureHeader = "Gateway-Signature"

type WebhookHandler struct {
	settlementCommands commands.SettlementCommands
}

func NewWebhookHandler(settlementCommands commands.SettlementCommands) *WebhookHandler {
	return &WebhookHandler{settlementCommands: settlementCommands}
}

// @Summary Payment gateway webhook
// @Description Receive a signed payment notification and settle the referenced order
// @Tags webhooks
// @Accept json
// @Produce json
// @Param Gateway-Signature header string true "HMAC signature"
// @Success 200 {object} resdto.WebhookResponse
// @Failure 400 {object} httperr.Response
// @Failure 409 {object} httperr.Response
// @Router /webhooks/payment [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err,
			httperr.CodeBadRequest, "Unreadable request body", nil)
		return
	}

	result, err := h.settlementCommands.Settle(c.Request.Context(), body, c.GetHeader(signatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, commands.ErrUnverifiableNotification):
			httperr.AbortWithError(c, http.StatusBadRequest, err,
				httperr.CodeBadRequest, "Signature verification failed", nil)
		case errors.Is(err, commands.ErrUnknownOrder):
			httperr.AbortWithError(c, http.StatusBadRequest, err,
				httperr.CodeBadRequest, "Notification references an unknown order", nil)
		case errors.Is(err, commands.ErrAmountMismatch):
			httperr.AbortWithError(c, http.StatusBadRequest, err,
				httperr.CodeBadRequest, "Declared amount does not match order total", nil)
		case errors.Is(err, commands.ErrSettlementConflict):
			httperr.AbortWithError(c, http.StatusConflict, err,
				httperr.CodeInvalidState, "Order is not in a settleable state", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err,
				httperr.CodeInternalError, "Internal server error", nil)
		}
		return
	}

	c.JSON(http.StatusOK, resdto.WebhookResponse{
		Received: true,
		Outcome:  string(result.Outcome),
		OrderID:  result.OrderID,
	})
}
