// Package delivery performs a single HTTP delivery attempt and normalises
// the outcome into a structured result, per spec §4.2. This package never
// mutates Webhook or Event state; it only observes and reports.
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/casapps/hookrelay/src/internal/models"
)

const userAgent = "hookrelay-webhook/1.0"

// Result is the sum type spec.md §9 describes over {success,
// retryable-failure, non-retryable-failure, transport-failure}, flattened
// into a single struct the worker branches on via Success/Retryable.
type Result struct {
	Success           bool
	Retryable         bool
	StatusCode        int
	ResponseBody      string
	ErrorMessage      string
	RetryAfterSeconds *int
}

// Client performs webhook delivery attempts over HTTP.
type Client struct {
	httpClient *http.Client
}

// Config holds the connect/read timeouts from spec §4.2 and §6.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// DefaultConfig returns the spec-mandated defaults: 5s connect, 10s read.
func DefaultConfig() Config {
	return Config{ConnectTimeout: 5 * time.Second, ReadTimeout: 10 * time.Second}
}

// New builds a Client whose transport enforces the configured connect and
// overall read timeouts.
func New(cfg Config) *Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: cfg.ReadTimeout,
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
			Transport: transport,
		},
	}
}

// Deliver issues a single HTTP POST of payload to webhook.URL and maps the
// outcome per the table in spec §4.2.
func (c *Client) Deliver(ctx context.Context, webhook *models.Webhook, payload []byte) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(payload))
	if err != nil {
		return Result{Retryable: true, ErrorMessage: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{StatusCode: 0, Retryable: true, ErrorMessage: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{StatusCode: resp.StatusCode, Retryable: true, ErrorMessage: fmt.Sprintf("failed to read response body: %v", err)}
	}

	return mapOutcome(resp.StatusCode, string(body), resp.Header.Get("Retry-After"))
}

func mapOutcome(statusCode int, body, retryAfterHeader string) Result {
	retryAfter := parseRetryAfter(retryAfterHeader)

	switch {
	case statusCode >= 200 && statusCode < 300:
		return Result{Success: true, StatusCode: statusCode, ResponseBody: body}
	case statusCode == http.StatusTooManyRequests:
		return Result{StatusCode: statusCode, Retryable: true, ResponseBody: body, RetryAfterSeconds: retryAfter}
	case statusCode >= 500 && statusCode < 600:
		return Result{StatusCode: statusCode, Retryable: true, ResponseBody: body, RetryAfterSeconds: retryAfter}
	default:
		return Result{StatusCode: statusCode, Retryable: false, ResponseBody: body}
	}
}

// parseRetryAfter extracts a Retry-After header value that is expressed
// as an integer count of seconds. The HTTP-date form is acknowledged by
// spec §4.2/§9 but not required, and is treated as absent here.
func parseRetryAfter(header string) *int {
	if header == "" {
		return nil
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return nil
	}
	return &seconds
}
