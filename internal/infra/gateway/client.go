package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"marketlink/internal/gateway"
	"marketlink/internal/pkg/clock"
	"marketlink/internal/pkg/config"
	"marketlink/internal/pkg/errs"

	"github.com/google/uuid"
)

// Client talks to the hosted checkout service. Intents are created over HTTP;
// notifications come back signed with the shared webhook secret as
// "t=<unix>,v1=<hex(hmac-sha256(secret, t + "." + body))>".
type Client struct {
	httpClient *http.Client
	cfg        config.GatewayConfig
	clock      clock.Clock
}

func NewClient(cfg config.GatewayConfig, clk clock.Clock) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		clock:      clk,
	}
}

type createIntentRequest struct {
	OrderID     uuid.UUID `json:"order_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
}

type createIntentResponse struct {
	ID        string `json:"id"`
	ClientRef string `json:"client_ref"`
}

func (c *Client) CreateIntent(ctx context.Context, orderID uuid.UUID, amountCents int64) (*gateway.Intent, error) {
	body, err := json.Marshal(createIntentRequest{
		OrderID:     orderID,
		AmountCents: amountCents,
		Currency:    "usd",
	})
	if err != nil {
		return nil, errs.Wrap(err, "failed to encode intent request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/intents", bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(err, "failed to build intent request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Mark(err, gateway.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		slog.Error("gateway rejected intent creation",
			"order_id", orderID,
			"status_code", resp.StatusCode)
		return nil, errs.Mark(fmt.Errorf("gateway returned status %d", resp.StatusCode), gateway.ErrUnavailable)
	}

	var out createIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errs.Mark(errs.Wrap(err, "failed to decode intent response"), gateway.ErrUnavailable)
	}

	return &gateway.Intent{ID: out.ID, ClientRef: out.ClientRef}, nil
}

type notificationPayload struct {
	EventID string    `json:"id"`
	Type    string    `json:"type"`
	Data    eventData `json:"data"`
}

type eventData struct {
	OrderID     uuid.UUID `json:"order_id"`
	AmountCents int64     `json:"amount_cents"`
}

// VerifyNotification fails closed: any parse, timestamp or digest problem
// yields ErrUnverifiable and the payload is not processed further.
func (c *Client) VerifyNotification(body []byte, signatureHeader string) (*gateway.Notification, error) {
	ts, sig, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return nil, errs.Mark(err, gateway.ErrUnverifiable)
	}

	age := c.clock.Now().Unix() - ts
	if age < 0 {
		age = -age
	}
	if c.cfg.SignatureTolerance > 0 && age > int64(c.cfg.SignatureTolerance.Seconds()) {
		return nil, errs.Mark(fmt.Errorf("signature timestamp outside tolerance"), gateway.ErrUnverifiable)
	}

	expected := computeSignature(c.cfg.WebhookSecret, ts, body)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return nil, gateway.ErrUnverifiable
	}

	var payload notificationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errs.Mark(errs.Wrap(err, "malformed notification payload"), gateway.ErrUnverifiable)
	}
	if payload.EventID == "" {
		return nil, errs.Mark(fmt.Errorf("notification missing event id"), gateway.ErrUnverifiable)
	}

	return &gateway.Notification{
		EventID:     payload.EventID,
		Type:        gateway.EventType(payload.Type),
		OrderID:     payload.Data.OrderID,
		AmountCents: payload.Data.AmountCents,
		Raw:         body,
	}, nil
}

func parseSignatureHeader(header string) (int64, string, error) {
	var tsPart, sigPart string
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			tsPart = v
		case "v1":
			sigPart = v
		}
	}
	if tsPart == "" || sigPart == "" {
		return 0, "", fmt.Errorf("malformed signature header")
	}

	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed signature timestamp")
	}

	return ts, sigPart, nil
}

func computeSignature(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignNotification produces the header a gateway would attach; the test
// harness and local stub gateway share it with VerifyNotification.
func SignNotification(secret string, ts int64, body []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", ts, computeSignature(secret, ts, body))
}
