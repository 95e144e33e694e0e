// Package cloud implements the remote text-generation client consumed by
// the model router. Calls are bounded by the provider timeout and the
// cloud-tier rate limiter; transient transport errors get a short
// exponential-backoff retry inside that window. Failures are returned to
// the caller so the circuit breaker can be updated; this package never
// falls back on its own.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/hearthware/concierge/internal/ratelimit"
)

// ErrRateLimited is returned when the cloud-tier limiter denies the call.
var ErrRateLimited = errors.New("cloud: request limit exceeded")

// Response is one completion result.
type Response struct {
	Text    string  `json:"text"`
	CostUSD float64 `json:"cost_usd"`
}

// Client sends completion requests to a remote provider. When no endpoint
// is configured it runs in simulation mode and synthesizes responses
// locally, which keeps the orchestration path exercisable without network
// access.
type Client struct {
	endpoint string
	timeout  time.Duration
	limiter  *ratelimit.SlidingWindowLimiter
	http     *http.Client

	costMu    sync.Mutex
	totalCost float64
}

// New creates a cloud client. endpoint may be empty for simulation mode.
func New(endpoint string, timeout time.Duration, limiter *ratelimit.SlidingWindowLimiter) *Client {
	return &Client{
		endpoint: endpoint,
		timeout:  timeout,
		limiter:  limiter,
		http:     &http.Client{Timeout: timeout},
	}
}

// Complete executes one completion call under the provider timeout and the
// cloud-tier rate limit.
func (c *Client) Complete(ctx context.Context, prompt, provider string) (*Response, error) {
	if !c.limiter.Allow() {
		return nil, ErrRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp *Response
	var err error
	if c.endpoint == "" {
		resp, err = c.simulate(ctx, prompt, provider)
	} else {
		resp, err = c.post(ctx, prompt, provider)
	}
	if err != nil {
		return nil, err
	}

	c.costMu.Lock()
	c.totalCost += resp.CostUSD
	c.costMu.Unlock()
	return resp, nil
}

// StreamComplete returns the completion as a sequence of growing prefixes,
// one word appended at a time.
func (c *Client) StreamComplete(ctx context.Context, prompt, provider string) ([]string, error) {
	resp, err := c.Complete(ctx, prompt, provider)
	if err != nil {
		return nil, err
	}
	words := strings.Fields(resp.Text)
	chunks := make([]string, 0, len(words))
	for i := range words {
		chunks = append(chunks, strings.Join(words[:i+1], " "))
	}
	return chunks, nil
}

// TotalCostUSD reports the accumulated provider spend for this process.
func (c *Client) TotalCostUSD() float64 {
	c.costMu.Lock()
	defer c.costMu.Unlock()
	return c.totalCost
}

// post sends the completion request over HTTP with bounded retries.
func (c *Client) post(ctx context.Context, prompt, provider string) (*Response, error) {
	body, err := json.Marshal(map[string]string{
		"prompt":   prompt,
		"provider": provider,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var out Response
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("provider returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return backoff.Permanent(fmt.Errorf("provider returned %d", resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(100*time.Millisecond),
	), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		log.Warn().Str("provider", provider).Err(err).Msg("cloud completion failed")
		return nil, err
	}
	return &out, nil
}

// simulate synthesizes a completion without network access. Cost is a token
// estimate so spend accounting stays exercised in simulation mode.
func (c *Client) simulate(ctx context.Context, prompt, provider string) (*Response, error) {
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	tokens := len(strings.Fields(prompt))
	if tokens < 1 {
		tokens = 1
	}
	return &Response{
		Text:    fmt.Sprintf("[Cloud:%s] %s", provider, prompt),
		CostUSD: float64(tokens) * 0.00001,
	}, nil
}
