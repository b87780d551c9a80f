package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/lukasedel/docsorter/internal/gate"
)

// ClientConfig for the inference-proxy client.
type ClientConfig struct {
	ProxyURL string
	APIKey   string        // if empty, no Authorization header is sent
	Timeout  time.Duration // per-attempt http client timeout

	MaxRetries    int     // attempts, not re-attempts; default 4
	BackoffFactor float64 // seconds multiplier; default 1.5

	// BreakerEnabled wraps the whole retried call in a circuit breaker.
	// Off by default; the retry contract is unchanged either way.
	BreakerEnabled bool
}

// AttemptRecorder receives one observation per network attempt.
type AttemptRecorder interface {
	RecordAttempt(model string, err error)
}

// Client performs one logical "ask the model" operation per Send call.
// The injected gate bounds concurrent calls process-wide; it is held for the
// entire retry loop, so a slow retried call consumes exactly one slot.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	gate       *gate.Gate
	logger     *slog.Logger
	metrics    AttemptRecorder
	breaker    *gobreaker.CircuitBreaker[string]

	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg ClientConfig, g *gate.Gate, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 1.5
	}
	if g == nil {
		g = gate.New(gate.DefaultCapacity)
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		gate:       g,
		logger:     logger,
		sleep:      sleepCtx,
	}
	if cfg.BreakerEnabled {
		c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name: "inference-proxy",
		})
	}
	return c
}

// SetMetrics attaches an attempt recorder. Optional.
func (c *Client) SetMetrics(m AttemptRecorder) { c.metrics = m }

// Send performs the request with bounded retries and exponential backoff on
// transient failures (transport errors and statuses 429/502/503/504).
// Returns the assistant's message content, or *BackendUnavailableError once
// all attempts are spent on transient failures.
func (c *Client) Send(ctx context.Context, req Request) (string, error) {
	if err := c.gate.Acquire(ctx); err != nil {
		return "", err
	}
	defer c.gate.Release()

	if c.breaker != nil {
		return c.breaker.Execute(func() (string, error) {
			return c.sendWithRetry(ctx, req)
		})
	}
	return c.sendWithRetry(ctx, req)
}

func (c *Client) sendWithRetry(ctx context.Context, req Request) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		c.logger.Info("inference.attempt",
			"req_id", rid,
			"model", req.Model,
			"attempt", attempt,
			"max_attempts", c.cfg.MaxRetries,
			"queue_depth", c.gate.QueueDepth(),
		)

		content, err := c.post(ctx, req)
		if c.metrics != nil {
			c.metrics.RecordAttempt(req.Model, err)
		}
		if err == nil {
			c.logger.Info("inference.ok",
				"req_id", rid,
				"model", req.Model,
				"attempts", attempt,
				"content_len", len(content),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return content, nil
		}
		lastErr = err

		if !isRetryable(err) {
			c.logger.Error("inference.permanent_error",
				"req_id", rid, "model", req.Model, "attempt", attempt, "error", err,
			)
			return "", err
		}
		if attempt == c.cfg.MaxRetries {
			break
		}

		wait := time.Duration(c.cfg.BackoffFactor * float64(attempt) * float64(time.Second))
		c.logger.Warn("inference.retry",
			"req_id", rid,
			"model", req.Model,
			"attempt", attempt,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)
		if err := c.sleep(ctx, wait); err != nil {
			return "", err
		}
	}

	c.logger.Error("inference.exhausted",
		"req_id", rid,
		"model", req.Model,
		"attempts", c.cfg.MaxRetries,
		"elapsed_ms", time.Since(start).Milliseconds(),
		"error", lastErr,
	)
	return "", &BackendUnavailableError{Attempts: c.cfg.MaxRetries, Err: lastErr}
}

func (c *Client) post(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ProxyURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &transportError{err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("inference.body_close_error", "error", err)
		}
	}()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &statusError{code: resp.StatusCode, body: truncate(string(raw), 2048)}
	}

	var envelope proxyEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("decode proxy response: %w", err)
	}
	if !envelope.Success {
		return "", fmt.Errorf("proxy error: %s", envelope.Error)
	}
	if len(envelope.Data.Choices) == 0 {
		return "", fmt.Errorf("no choices in proxy response")
	}
	return envelope.Data.Choices[0].Message.Content, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
