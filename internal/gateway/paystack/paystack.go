package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/skrillzofficial/eventry-api/pkg/config"
)

// Client talks to the Paystack transaction API. Amounts cross the wire in
// the currency's subunit (kobo).
type Client struct {
	baseURL   string
	secretKey string
	hc        *http.Client
	logger    *zap.Logger
	observe   func(time.Duration)
}

// New builds a gateway client from configuration.
func New(cfg config.PaystackConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		hc:        &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// WithLatencyObserver registers a callback invoked with the duration of each
// gateway round trip.
func (c *Client) WithLatencyObserver(fn func(time.Duration)) *Client {
	c.observe = fn
	return c
}

// InitializeRequest starts a hosted-page transaction.
type InitializeRequest struct {
	Email       string
	Amount      decimal.Decimal
	Reference   string
	CallbackURL string
	Metadata    map[string]interface{}
}

// InitializeResponse carries the redirect target for the hosted payment page.
type InitializeResponse struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// VerifyResponse is the settled state of one payment attempt.
type VerifyResponse struct {
	Status    string
	Reference string
	Amount    decimal.Decimal
	PaidAt    string
	Channel   string
}

// Successful reports whether the gateway settled the payment.
func (v *VerifyResponse) Successful() bool {
	return v != nil && v.Status == "success"
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	PaidAt    string `json:"paid_at"`
	Channel   string `json:"channel"`
}

// Initialize requests an authorization URL for a new transaction.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	payload := map[string]interface{}{
		"email":     req.Email,
		"amount":    req.Amount.Mul(decimal.NewFromInt(100)).IntPart(),
		"reference": req.Reference,
	}
	if req.CallbackURL != "" {
		payload["callback_url"] = req.CallbackURL
	}
	if len(req.Metadata) > 0 {
		payload["metadata"] = req.Metadata
	}

	var data initializeData
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", payload, &data); err != nil {
		return nil, err
	}
	return &InitializeResponse{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

// Verify fetches the settled state of a transaction by reference.
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResponse, error) {
	if reference == "" {
		return nil, fmt.Errorf("paystack verify: reference required")
	}

	var data verifyData
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &data); err != nil {
		return nil, err
	}
	return &VerifyResponse{
		Status:    data.Status,
		Reference: data.Reference,
		Amount:    decimal.NewFromInt(data.Amount).Div(decimal.NewFromInt(100)),
		PaidAt:    data.PaidAt,
		Channel:   data.Channel,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("paystack encode request: %w", err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("paystack build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if c.observe != nil {
		c.observe(time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("paystack %s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("paystack decode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Status {
		c.logger.Warn("paystack request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", envelope.Message))
		return fmt.Errorf("paystack %s: %s (http %d)", path, envelope.Message, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("paystack decode data: %w", err)
		}
	}
	return nil
}
