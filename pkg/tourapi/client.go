package tourapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
)

const (
	defaultTimeout              = 10 * time.Second
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("tour api base url is required")

// Client talks to the tour catalogue and order REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithAPIKey sends the key as a bearer token on every request.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(apiKey)
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds the tour API client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("parse tour api base url: %w", err)
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// GetTour loads the summary of a single tour.
func (c *Client) GetTour(ctx context.Context, tourID string) (*Tour, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tour api client not configured")
	}
	trimmed := strings.TrimSpace(tourID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tour id is required")
	}

	var tour Tour
	if err := c.do(ctx, http.MethodGet, "tours/"+url.PathEscape(trimmed), nil, &tour, "tour"); err != nil {
		return nil, err
	}
	return &tour, nil
}

// ListSchedules returns every scheduled date of a tour with its ticket options.
func (c *Client) ListSchedules(ctx context.Context, tourID string) ([]Schedule, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tour api client not configured")
	}
	trimmed := strings.TrimSpace(tourID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tour id is required")
	}

	var schedules []Schedule
	if err := c.do(ctx, http.MethodGet, "tours/"+url.PathEscape(trimmed)+"/schedules", nil, &schedules, "tour schedules"); err != nil {
		return nil, err
	}
	return schedules, nil
}

// CreateOrder submits an order for one scheduled date.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderConfirmation, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tour api client not configured")
	}
	if strings.TrimSpace(req.TourScheduleID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tour schedule id is required")
	}
	if len(req.Tickets) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one ticket")
	}

	var confirmation OrderConfirmation
	if err := c.do(ctx, http.MethodPost, "orders", req, &confirmation, "order"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(confirmation.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order response missing order id")
	}
	return &confirmation, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, label string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal "+label+" request")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build "+label+" request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute "+label+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode == http.StatusNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, cause, label+" not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, label+" request failed")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+label+" response")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
}
