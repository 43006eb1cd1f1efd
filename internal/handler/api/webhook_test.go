//go:build unit

package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketlink/internal/handler/api"
	"marketlink/internal/usecase/commands"
	commandsmock "marketlink/tests/mock/commands"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type WebhookHandlerTestSuite struct {
	suite.Suite
	router         *gin.Engine
	mockCtrl       *gomock.Controller
	mockSettlement *commandsmock.MockSettlementCommands
	handler        *api.WebhookHandler
}

func (s *WebhookHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.router = gin.New()

	s.mockCtrl = gomock.NewController(s.T())
	s.mockSettlement = commandsmock.NewMockSettlementCommands(s.mockCtrl)
	s.handler = api.NewWebhookHandler(s.mockSettlement)

	s.router.POST("/webhooks/payment", s.handler.Receive)
}

func (s *WebhookHandlerTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func TestWebhookHandlerSuite(t *testing.T) {
	suite.Run(t, new(WebhookHandlerTestSuite))
}

func (s *WebhookHandlerTestSuite) post(body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Gateway-Signature", signature)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *WebhookHandlerTestSuite) TestReceive() {
	body := []byte(`{"id":"evt_001","type":"payment.succeeded"}`)
	orderID := uuid.New()

	s.Run("processed", func() {
		s.mockSettlement.EXPECT().Settle(gomock.Any(), body, "sig").Return(
			&commands.SettlementResult{Outcome: commands.OutcomeProcessed, OrderID: orderID}, nil)

		rec := s.post(body, "sig")
		s.Equal(http.StatusOK, rec.Code)

		var resp struct {
			Received bool   `json:"received"`
			Outcome  string `json:"outcome"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.True(resp.Received)
		s.Equal("processed", resp.Outcome)
	})

	s.Run("duplicate acknowledged with 200", func() {
		s.mockSettlement.EXPECT().Settle(gomock.Any(), body, "sig").Return(
			&commands.SettlementResult{Outcome: commands.OutcomeDuplicateIgnored, OrderID: orderID}, nil)

		rec := s.post(body, "sig")
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("unknown type acknowledged with 200", func() {
		s.mockSettlement.EXPECT().Settle(gomock.Any(), body, "sig").Return(
			&commands.SettlementResult{Outcome: commands.OutcomeIgnoredUnknown}, nil)

		rec := s.post(body, "sig")
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("unverifiable signature", func() {
		s.mockSettlement.EXPECT().Settle(gomock.Any(), body, "bad").Return(nil, commands.ErrUnverifiableNotification)

		rec := s.post(body, "bad")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown order", func() {
		s.mockSettlement.EXPECT().Settle(gomock.Any(), body, "sig").Return(nil, commands.ErrUnknownOrder)

		rec := s.post(body, "sig")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("amount mismatch", func() {
		s.mockSettlement.EXPECT().Settle(gomock.Any(), body, "sig").Return(nil, commands.ErrAmountMismatch)

		rec := s.post(body, "sig")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("settlement conflict", func() {
		s.mockSettlement.EXPECT().Settle(gomock.Any(), body, "sig").Return(nil, commands.ErrSettlementConflict)

		rec := s.post(body, "sig")
		s.Equal(http.StatusConflict, rec.Code)
	})
}
