// Package tripay is the Tripay payment provider client.
package tripay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/service/payment"
)

const (
	// SandboxURL is the sandbox API root.
	SandboxURL = "https://tripay.co.id/api-sandbox"
	// ProductionURL is the production API root.
	ProductionURL = "https://tripay.co.id/api"

	bodyReadLimit int64 = 1 << 20
	refundReason        = "Order cancelled by customer"
)

// Config holds the merchant credentials.
type Config struct {
	BaseURL      string
	APIKey       string
	PrivateKey   string
	MerchantCode string
	CallbackURL  string
	ReturnURL    string
}

// StatusError is a non-2xx answer from the provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tripay status %d: %s", e.Code, e.Body)
}

// Client talks to the Tripay HTTP API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient validates the credentials and builds the client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.PrivateKey) == "" || strings.TrimSpace(cfg.MerchantCode) == "" {
		return nil, errors.New("tripay api key, private key and merchant code are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = SandboxURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{cfg: cfg, httpClient: &http.Client{Timeout: 15 * time.Second}}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

var _ payment.Gateway = (*Client)(nil)

type orderItem struct {
	SKU      string `json:"sku,omitempty"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type createRequest struct {
	Method        string      `json:"method"`
	MerchantRef   string      `json:"merchant_ref"`
	Amount        int64       `json:"amount"`
	CustomerName  string      `json:"customer_name"`
	OrderItems    []orderItem `json:"order_items"`
	CallbackURL   string      `json:"callback_url,omitempty"`
	ReturnURL     string      `json:"return_url,omitempty"`
	ExpiredTime   int64       `json:"expired_time,omitempty"`
	Signature     string      `json:"signature"`
	CustomerEmail string      `json:"customer_email,omitempty"`
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CreateIntent opens a closed-payment transaction.
func (c *Client) CreateIntent(ctx context.Context, req payment.IntentRequest) (payment.Intent, error) {
	items := make([]orderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, orderItem{
			SKU:      strconv.FormatInt(it.ProductID, 10),
			Name:     it.ProductName,
			Price:    it.Price,
			Quantity: it.Quantity,
		})
	}
	body := createRequest{
		Method:       req.Method,
		MerchantRef:  req.MerchantRef,
		Amount:       req.Amount,
		CustomerName: req.CustomerName,
		OrderItems:   items,
		CallbackURL:  c.cfg.CallbackURL,
		ReturnURL:    c.cfg.ReturnURL,
		Signature:    c.TransactionSignature(req.MerchantRef, req.Amount),
	}
	if !req.ExpiresAt.IsZero() {
		body.ExpiredTime = req.ExpiresAt.Unix()
	}

	raw, env, err := c.post(ctx, "/transaction/create", body, nil)
	if err != nil {
		return payment.Intent{}, err
	}
	if !env.Success {
		return payment.Intent{}, fmt.Errorf("tripay create transaction: %s", env.Message)
	}

	var data struct {
		Reference   string `json:"reference"`
		CheckoutURL string `json:"checkout_url"`
		ExpiredTime int64  `json:"expired_time"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return payment.Intent{}, fmt.Errorf("decode tripay transaction: %w", err)
	}
	if data.Reference == "" {
		return payment.Intent{}, errors.New("tripay transaction without reference")
	}

	in := payment.Intent{Reference: data.Reference, CheckoutURL: data.CheckoutURL, Raw: raw}
	if data.ExpiredTime > 0 {
		in.ExpiresAt = time.Unix(data.ExpiredTime, 0).UTC()
	}
	return in, nil
}

// VerifyCallback checks the X-Callback-Signature header against the raw body.
func (c *Client) VerifyCallback(signature string, body []byte) bool {
	if signature == "" {
		return false
	}
	want := c.sign(body)
	return hmac.Equal([]byte(strings.ToLower(strings.TrimSpace(signature))), []byte(want))
}

// RequestRefund asks the provider to return a settled payment.
func (c *Client) RequestRefund(ctx context.Context, p domain.Payment) (payment.RefundResult, error) {
	if p.Reference == "" {
		return payment.RefundResult{}, errors.New("payment has no provider reference")
	}
	payload := map[string]string{"reference": p.Reference, "reason": refundReason}
	signed, err := json.Marshal(payload)
	if err != nil {
		return payment.RefundResult{}, err
	}

	raw, env, err := c.post(ctx, "/transaction/refund", payload, map[string]string{"X-Signature": c.sign(signed)})
	if err != nil {
		return payment.RefundResult{}, err
	}
	return payment.RefundResult{Success: env.Success, Raw: raw}, nil
}

// TransactionSignature is HMAC-SHA256(merchant code + merchant ref + amount).
func (c *Client) TransactionSignature(merchantRef string, amount int64) string {
	return c.sign([]byte(c.cfg.MerchantCode + merchantRef + strconv.FormatInt(amount, 10)))
}

func (c *Client) sign(msg []byte) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.PrivateKey))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) post(ctx context.Context, path string, body any, headers map[string]string) ([]byte, envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, envelope{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, envelope{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, envelope{}, fmt.Errorf("tripay %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, bodyReadLimit))
	if err != nil {
		return nil, envelope{}, fmt.Errorf("read tripay %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, envelope{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, envelope{}, fmt.Errorf("decode tripay %s: %w", path, err)
	}
	return raw, env, nil
}
