//go:build unit

package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketlink/internal/gateway"
	infragateway "marketlink/internal/infra/gateway"
	"marketlink/internal/pkg/clock"
	"marketlink/internal/pkg/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "whsec_test_dummy"

var verifyNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newClient(t *testing.T, baseURL string) (*infragateway.Client, *clock.MockClock) {
	t.Helper()
	cfg := config.NewTestConfig().Gateway
	cfg.WebhookSecret = webhookSecret
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	clk := clock.NewMockClock(verifyNow)
	return infragateway.NewClient(cfg, clk), clk
}

func notificationBody(t *testing.T, orderID uuid.UUID, amount int64) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":   "evt_001",
		"type": "payment.succeeded",
		"data": map[string]any{
			"order_id":     orderID,
			"amount_cents": amount,
		},
	})
	require.NoError(t, err)
	return body
}

func TestVerifyNotification(t *testing.T) {
	client, _ := newClient(t, "")
	orderID := uuid.New()
	body := notificationBody(t, orderID, 2000)

	t.Run("valid signature", func(t *testing.T) {
		header := infragateway.SignNotification(webhookSecret, verifyNow.Unix(), body)

		note, err := client.VerifyNotification(body, header)
		require.NoError(t, err)
		assert.Equal(t, "evt_001", note.EventID)
		assert.Equal(t, gateway.EventPaymentSucceeded, note.Type)
		assert.Equal(t, orderID, note.OrderID)
		assert.Equal(t, int64(2000), note.AmountCents)
		assert.Equal(t, body, note.Raw)
	})

	t.Run("tampered body", func(t *testing.T) {
		header := infragateway.SignNotification(webhookSecret, verifyNow.Unix(), body)
		tampered := notificationBody(t, orderID, 99)

		_, err := client.VerifyNotification(tampered, header)
		assert.ErrorIs(t, err, gateway.ErrUnverifiable)
	})

	t.Run("wrong secret", func(t *testing.T) {
		header := infragateway.SignNotification("whsec_other", verifyNow.Unix(), body)

		_, err := client.VerifyNotification(body, header)
		assert.ErrorIs(t, err, gateway.ErrUnverifiable)
	})

	t.Run("expired timestamp", func(t *testing.T) {
		old := verifyNow.Add(-time.Hour).Unix()
		header := infragateway.SignNotification(webhookSecret, old, body)

		_, err := client.VerifyNotification(body, header)
		assert.ErrorIs(t, err, gateway.ErrUnverifiable)
	})

	t.Run("garbled header", func(t *testing.T) {
		for _, header := range []string{"", "nonsense", "t=abc,v1=def", "v1=deadbeef"} {
			_, err := client.VerifyNotification(body, header)
			assert.ErrorIs(t, err, gateway.ErrUnverifiable, "header %q", header)
		}
	})

	t.Run("valid signature over non-json body", func(t *testing.T) {
		junk := []byte("not json")
		header := infragateway.SignNotification(webhookSecret, verifyNow.Unix(), junk)

		_, err := client.VerifyNotification(junk, header)
		assert.ErrorIs(t, err, gateway.ErrUnverifiable)
	})

	t.Run("missing event id", func(t *testing.T) {
		noID := []byte(`{"type":"payment.succeeded","data":{}}`)
		header := infragateway.SignNotification(webhookSecret, verifyNow.Unix(), noID)

		_, err := client.VerifyNotification(noID, header)
		assert.ErrorIs(t, err, gateway.ErrUnverifiable)
	})
}

func TestCreateIntent(t *testing.T) {
	orderID := uuid.New()

	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/intents", r.URL.Path)
			assert.Contains(t, r.Header.Get("Authorization"), "Bearer ")

			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, orderID.String(), req["order_id"])
			assert.Equal(t, float64(2000), req["amount_cents"])

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"pi_123","client_ref":"pi_123_secret"}`))
		}))
		defer srv.Close()

		client, _ := newClient(t, srv.URL)
		intent, err := client.CreateIntent(context.Background(), orderID, 2000)
		require.NoError(t, err)
		assert.Equal(t, "pi_123", intent.ID)
		assert.Equal(t, "pi_123_secret", intent.ClientRef)
	})

	t.Run("server error marked unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client, _ := newClient(t, srv.URL)
		_, err := client.CreateIntent(context.Background(), orderID, 2000)
		assert.ErrorIs(t, err, gateway.ErrUnavailable)
	})

	t.Run("connection refused marked unavailable", func(t *testing.T) {
		client, _ := newClient(t, "http://127.0.0.1:1")
		_, err := client.CreateIntent(context.Background(), orderID, 2000)
		assert.ErrorIs(t, err, gateway.ErrUnavailable)
	})
}
