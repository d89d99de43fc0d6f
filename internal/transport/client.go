package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/jmsoler/facegate/internal/facegate/types"
)

// Client delivers credential messages to the controller over HTTP and
// returns the controller's decision. Delivery is retried with a fixed
// backoff; a credential that cannot be delivered is reported as an error
// and dropped by the caller — decoder state is never affected by
// transport outcome.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger

	attempts int
	backoff  time.Duration
}

// ClientConfig holds delivery tunables. Zero values get defaults.
type ClientConfig struct {
	BaseURL  string
	Attempts int           // total tries, default 3
	Backoff  time.Duration // delay between tries, default 500ms
	Timeout  time.Duration // per-request timeout, default 20s (the controller may hold the request open for a full recognition session)
}

func NewClient(cfg ClientConfig, logger *log.Logger) *Client {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	return &Client{
		baseURL:  cfg.BaseURL,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
		attempts: cfg.Attempts,
		backoff:  cfg.Backoff,
	}
}

// Submit posts one credential and waits for the controller's decision.
// A "busy" rejection is a valid decision, not a delivery failure, and is
// not retried.
func (c *Client) Submit(ctx context.Context, msg Message) (types.Decision, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return types.Decision{}, fmt.Errorf("marshal credential: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return types.Decision{}, ctx.Err()
			case <-time.After(c.backoff):
			}
			c.logger.Printf("credential delivery retry %d/%d", attempt, c.attempts)
		}

		decision, retryable, err := c.post(ctx, body)
		if err == nil {
			return decision, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return types.Decision{}, fmt.Errorf("deliver credential: %w", lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) (types.Decision, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/credential", bytes.NewReader(body))
	if err != nil {
		return types.Decision{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return types.Decision{}, true, err
	}
	defer resp.Body.Close()

	// 409 means another session is in flight: a synchronous rejection,
	// carried as a decision body. Everything else non-2xx is a fault.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
		_, _ = io.Copy(io.Discard, resp.Body)
		return types.Decision{}, resp.StatusCode >= 500,
			fmt.Errorf("controller returned %s", resp.Status)
	}

	var decision types.Decision
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return types.Decision{}, false, fmt.Errorf("decode decision: %w", err)
	}
	return decision, false, nil
}
