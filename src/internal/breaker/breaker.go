// Package breaker implements the per-webhook circuit breaker state
// machine of spec §4.4. Unlike the teacher's CircuitBreaker (which owns a
// map of in-memory CircuitBreakerInfo keyed by webhook id), this breaker
// exposes only pure transitions on a caller-supplied state object, matching
// spec §4.4's "the breaker exposes only pure transitions on a passed-in
// state object; persistence is the worker's responsibility."
package breaker

import (
	"sync"
	"time"

	"github.com/casapps/hookrelay/src/internal/models"
)

// Config holds the breaker parameters from spec §4.4/§6.
type Config struct {
	FailureThreshold  int
	CooldownSeconds   int
	HalfOpenTestLimit int
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, CooldownSeconds: 60, HalfOpenTestLimit: 3}
}

// Breaker evaluates transitions against a Config. Apart from the HALF_OPEN
// probe counts below, it holds no per-webhook state itself, so a single
// instance is safe to share across webhooks and goroutines as long as each
// Webhook it operates on is guarded by the caller.
type Breaker struct {
	cfg Config

	// halfOpenProbes tracks in-flight probe admissions per webhook while
	// HALF_OPEN, bounding concurrent test requests to HalfOpenTestLimit.
	// This is the one piece of cross-call state the breaker must keep,
	// since admission count cannot be derived from the persisted Webhook
	// row alone without a second round trip. Guarded by mu because
	// distinct webhooks' lanes run concurrently and share this map.
	mu             sync.Mutex
	halfOpenProbes map[string]int
}

// New builds a Breaker from cfg.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, halfOpenProbes: make(map[string]int)}
}

// AllowRequest reports whether a delivery attempt may proceed for the
// given webhook state, mutating state in place when a CLOSED/OPEN/
// HALF_OPEN transition is implied by the current time. The caller must
// persist state afterwards if Allow returns true and a transition
// occurred (OPEN -> HALF_OPEN), per the worker procedure in spec §4.7
// step 3.
func (b *Breaker) AllowRequest(webhook *models.Webhook, now time.Time) bool {
	switch webhook.CircuitState {
	case models.CircuitClosed, "":
		return true

	case models.CircuitOpen:
		if webhook.CircuitOpenedAt == nil {
			// Defensive: OPEN without a timestamp is an invariant
			// violation; treat as eligible for immediate recovery probe.
			b.transitionToHalfOpen(webhook)
			return true
		}
		cooldownElapsed := now.After(webhook.CircuitOpenedAt.Add(time.Duration(b.cfg.CooldownSeconds) * time.Second)) ||
			now.Equal(webhook.CircuitOpenedAt.Add(time.Duration(b.cfg.CooldownSeconds)*time.Second))
		if !cooldownElapsed {
			return false
		}
		b.transitionToHalfOpen(webhook)
		return true

	case models.CircuitHalfOpen:
		key := webhook.ID.String()
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.halfOpenProbes[key] >= b.cfg.HalfOpenTestLimit {
			return false
		}
		b.halfOpenProbes[key]++
		return true

	default:
		return false
	}
}

// transitionToHalfOpen moves webhook to HALF_OPEN; the request admitted by
// the transition counts as the first probe.
func (b *Breaker) transitionToHalfOpen(webhook *models.Webhook) {
	webhook.CircuitState = models.CircuitHalfOpen
	b.mu.Lock()
	b.halfOpenProbes[webhook.ID.String()] = 1
	b.mu.Unlock()
}

// RecordSuccess applies a successful delivery outcome to webhook's breaker
// fields, per spec §4.4.
func (b *Breaker) RecordSuccess(webhook *models.Webhook) {
	switch webhook.CircuitState {
	case models.CircuitClosed, "":
		webhook.ConsecutiveFailures = 0

	case models.CircuitHalfOpen:
		webhook.CircuitState = models.CircuitClosed
		webhook.ConsecutiveFailures = 0
		webhook.CircuitOpenedAt = nil
		b.mu.Lock()
		delete(b.halfOpenProbes, webhook.ID.String())
		b.mu.Unlock()

	case models.CircuitOpen:
		// A success should not be observable while OPEN, since the
		// request is blocked by AllowRequest; explicitly a no-op per
		// spec §9 design notes.
	}
}

// RecordFailure applies a failed delivery outcome to webhook's breaker
// fields, per spec §4.4.
func (b *Breaker) RecordFailure(webhook *models.Webhook, now time.Time) {
	switch webhook.CircuitState {
	case models.CircuitClosed, "":
		webhook.ConsecutiveFailures++
		if webhook.ConsecutiveFailures >= b.cfg.FailureThreshold {
			webhook.CircuitState = models.CircuitOpen
			opened := now
			webhook.CircuitOpenedAt = &opened
		}

	case models.CircuitHalfOpen:
		webhook.CircuitState = models.CircuitOpen
		opened := now
		webhook.CircuitOpenedAt = &opened
		b.mu.Lock()
		delete(b.halfOpenProbes, webhook.ID.String())
		b.mu.Unlock()

	case models.CircuitOpen:
		// No-op: failures while OPEN don't re-stamp the cooldown clock.
	}
}

// Reset returns the breaker to CLOSED and clears all counters, for
// operator intervention per spec §4.4.
func (b *Breaker) Reset(webhook *models.Webhook) {
	webhook.CircuitState = models.CircuitClosed
	webhook.ConsecutiveFailures = 0
	webhook.CircuitOpenedAt = nil
	b.mu.Lock()
	delete(b.halfOpenProbes, webhook.ID.String())
	b.mu.Unlock()
}
