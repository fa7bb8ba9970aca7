// Package distance estimates road distance from the warehouse to a destination.
package distance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/geo"
)

const (
	defaultBaseURL       = "https://maps.googleapis.com/maps/api"
	bodyReadLimit  int64 = 1024
)

var errAPIKeyRequired = errors.New("google maps api key is required")

// Client calls the Google Distance Matrix API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	origin     domain.Location
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

// WithBaseURL overrides the API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// NewClient builds the client for trips starting at origin.
func NewClient(apiKey string, origin domain.Location, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	c := &Client{
		apiKey:     key,
		origin:     origin,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type matrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int64 `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value int64 `json:"value"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// Estimate returns the driving distance and duration to dest.
func (c *Client) Estimate(ctx context.Context, dest domain.Location) (domain.Estimate, error) {
	q := url.Values{}
	q.Set("origins", latLng(c.origin))
	q.Set("destinations", latLng(dest))
	q.Set("mode", "driving")
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/distancematrix/json?"+q.Encode(), nil)
	if err != nil {
		return domain.Estimate{}, fmt.Errorf("build distance request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Estimate{}, fmt.Errorf("execute distance request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, bodyReadLimit))
		return domain.Estimate{}, fmt.Errorf("distance request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var body matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Estimate{}, fmt.Errorf("decode distance response: %w", err)
	}
	if body.Status != "OK" {
		return domain.Estimate{}, fmt.Errorf("distance matrix status %s", body.Status)
	}
	if len(body.Rows) == 0 || len(body.Rows[0].Elements) == 0 {
		return domain.Estimate{}, errors.New("distance matrix returned no elements")
	}
	el := body.Rows[0].Elements[0]
	if el.Status != "OK" {
		return domain.Estimate{}, fmt.Errorf("distance matrix element status %s", el.Status)
	}

	return domain.Estimate{
		DistanceKm:  geo.Round2(float64(el.Distance.Value) / 1000),
		DurationMin: int(math.Round(float64(el.Duration.Value) / 60)),
	}, nil
}

func latLng(l domain.Location) string {
	return strconv.FormatFloat(l.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(l.Lng, 'f', -1, 64)
}

// Straight estimates from the great-circle distance when no maps key is configured.
type Straight struct {
	Origin domain.Location
}

// Estimate applies the road factor and average speed to the straight line.
func (s Straight) Estimate(_ context.Context, dest domain.Location) (domain.Estimate, error) {
	return geo.Estimate(s.Origin, dest), nil
}
