// Package push is a thin client for the Expo-style push gateway. The
// dispatcher only depends on the Deliverer interface, so tests and other
// providers can swap the transport.
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

	"github.com/clinicware/attend-platform/pkg/logging"
)

const defaultBaseURL = "https://exp.host/--/api/v2/push"

// ErrBulkUnsupported signals that the configured gateway has no batch send
// endpoint; callers fall back to per-item sends.
var ErrBulkUnsupported = errors.New("push: bulk send not supported by gateway")

// Deliverer is the delivery surface the dispatcher consumes. SendBulk may
// return ErrBulkUnsupported, in which case SendOne must still work.
type Deliverer interface {
	SendOne(ctx context.Context, msg Message) (Receipt, error)
	SendBulk(ctx context.Context, msgs []Message) ([]Receipt, error)
}

// Config controls the gateway client.
type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *logging.Logger
	// DisableBulk forces the per-item path even if the gateway has the
	// batch endpoint.
	DisableBulk bool
}

// Client talks to the push gateway over HTTP.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *logging.Logger
	disableBulk bool
}

// New creates a configured push client.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:     baseURL,
		accessToken: cfg.AccessToken,
		httpClient:  httpClient,
		logger:      logger,
		disableBulk: cfg.DisableBulk,
	}
}

var _ Deliverer = (*Client)(nil)

// SendOne delivers a single push message.
func (c *Client) SendOne(ctx context.Context, msg Message) (Receipt, error) {
	if err := msg.validate(); err != nil {
		return Receipt{}, err
	}
	tickets, err := c.post(ctx, "/send", []Message{msg})
	if err != nil {
		return Receipt{}, err
	}
	if len(tickets) == 0 {
		return Receipt{}, errors.New("push: gateway returned no ticket")
	}
	return tickets[0].receipt(), nil
}

// SendBulk delivers a batch in one request when the gateway supports it.
func (c *Client) SendBulk(ctx context.Context, msgs []Message) ([]Receipt, error) {
	if c.disableBulk {
		return nil, ErrBulkUnsupported
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	for _, m := range msgs {
		if err := m.validate(); err != nil {
			return nil, err
		}
	}
	tickets, err := c.post(ctx, "/send-batch", msgs)
	if errors.Is(err, ErrBulkUnsupported) {
		return nil, ErrBulkUnsupported
	}
	if err != nil {
		return nil, err
	}
	if len(tickets) != len(msgs) {
		return nil, fmt.Errorf("push: gateway returned %d tickets for %d messages", len(tickets), len(msgs))
	}
	receipts := make([]Receipt, len(tickets))
	for i, t := range tickets {
		receipts[i] = t.receipt()
	}
	return receipts, nil
}

func (c *Client) post(ctx context.Context, path string, msgs []Message) ([]gatewayTicket, error) {
	payload, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("push: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("push: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push: gateway request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("push: read response: %w", err)
	}
	// Gateways without the batch endpoint answer 404/405 on /send-batch.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed {
		return nil, ErrBulkUnsupported
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("push: gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed gatewayResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("push: decode response: %w", err)
	}
	return parsed.Data, nil
}
