// Package push delivers notifications to devices through FCM.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"palmshell-dispatch/internal/service/notify"
)

// DefaultEndpoint is the FCM HTTP send endpoint.
const DefaultEndpoint = "https://fcm.googleapis.com/fcm/send"

const bodyReadLimit int64 = 4096

// Client sends FCM messages with a server key.
type Client struct {
	httpClient *http.Client
	endpoint   string
	serverKey  string
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

// WithEndpoint overrides the send endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if e := strings.TrimSpace(endpoint); e != "" {
			c.endpoint = e
		}
	}
}

// NewClient builds the FCM client.
func NewClient(serverKey string, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(serverKey)
	if key == "" {
		return nil, errors.New("fcm server key is required")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   DefaultEndpoint,
		serverKey:  key,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

var _ notify.PushSender = (*Client)(nil)

type message struct {
	To           string            `json:"to"`
	Notification payload           `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type sendResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

// Send pushes n to the device token. Rejections that a retry cannot fix
// wrap notify.ErrPermanent.
func (c *Client) Send(ctx context.Context, token string, n notify.Notification) error {
	data := make(map[string]string, len(n.Data)+1)
	for k, v := range n.Data {
		data[k] = v
	}
	if n.Kind != "" {
		data["type"] = n.Kind
	}
	raw, err := json.Marshal(message{To: token, Notification: payload{Title: n.Title, Body: n.Body}, Data: data})
	if err != nil {
		return fmt.Errorf("encode push: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.serverKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, bodyReadLimit))
		return fmt.Errorf("push rejected with status %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(msg)), notify.ErrPermanent)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push failed with status %d", resp.StatusCode)
	}

	var body sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode push response: %w", err)
	}
	if body.Failure == 0 {
		return nil
	}
	reason := ""
	if len(body.Results) > 0 {
		reason = body.Results[0].Error
	}
	switch reason {
	case "NotRegistered", "InvalidRegistration", "MismatchSenderId", "MessageTooBig":
		return fmt.Errorf("push rejected: %s: %w", reason, notify.ErrPermanent)
	default:
		return fmt.Errorf("push failed: %s", reason)
	}
}
