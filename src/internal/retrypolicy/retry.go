// Package retrypolicy computes next-attempt delays and retry eligibility
// per spec §4.3.
package retrypolicy

import (
	"math"
	"math/rand"
	"time"
)

// Config holds the backoff parameters from spec §4.3/§6.
type Config struct {
	BaseDelayMs int
	MaxDelayMs  int
	MaxRetries  int
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{BaseDelayMs: 1000, MaxDelayMs: 60000, MaxRetries: 5}
}

// Policy computes retry delays and eligibility for a fixed configuration.
type Policy struct {
	cfg Config
}

// New builds a Policy from cfg.
func New(cfg Config) *Policy {
	return &Policy{cfg: cfg}
}

// ShouldRetry implements spec §4.3: shouldRetry(retryCount) = retryCount
// < maxRetries.
func (p *Policy) ShouldRetry(retryCount int) bool {
	return retryCount < p.cfg.MaxRetries
}

// MaxRetries exposes the configured retry bound. The worker's
// collapse-to-FAILURE check goes through ShouldRetry, not this method.
func (p *Policy) MaxRetries() int {
	return p.cfg.MaxRetries
}

// CalculateDelay returns the jittered exponential backoff for retryCount,
// per spec §4.3: cap = min(base*2^n, max), delay = cap + U[0, cap]. The
// jitter is additive, so the worst case is 2*maxDelayMs (property P5).
func (p *Policy) CalculateDelay(retryCount int) time.Duration {
	capMs := capDelayMs(retryCount, p.cfg.BaseDelayMs, p.cfg.MaxDelayMs)
	jitter := 0
	if capMs > 0 {
		jitter = rand.Intn(capMs + 1)
	}
	return time.Duration(capMs+jitter) * time.Millisecond
}

// CalculateDelayWithRetryAfter implements spec §4.3's Retry-After
// honouring variant: if retryAfterSeconds is a positive integer, return
// max(retryAfterSeconds*1000, baseDelayMs); otherwise fall back to the
// jittered value from CalculateDelay.
func (p *Policy) CalculateDelayWithRetryAfter(retryCount int, retryAfterSeconds *int) time.Duration {
	if retryAfterSeconds != nil && *retryAfterSeconds > 0 {
		ms := *retryAfterSeconds * 1000
		if ms < p.cfg.BaseDelayMs {
			ms = p.cfg.BaseDelayMs
		}
		return time.Duration(ms) * time.Millisecond
	}
	return p.CalculateDelay(retryCount)
}

// capDelayMs computes min(base*2^n, max) without overflowing for large n.
func capDelayMs(retryCount, baseDelayMs, maxDelayMs int) int {
	if retryCount < 0 {
		retryCount = 0
	}
	// Guard against overflow: once base*2^n would exceed maxDelayMs there
	// is no need to keep shifting.
	if retryCount > 30 {
		return maxDelayMs
	}
	scaled := float64(baseDelayMs) * math.Pow(2, float64(retryCount))
	if scaled > float64(maxDelayMs) {
		return maxDelayMs
	}
	return int(scaled)
}
