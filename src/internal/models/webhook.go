package models

import (
	"time"

	"github.com/google/uuid"
)

// CircuitState is the per-webhook circuit breaker state, persisted as an
// enumerated string on the Webhook row.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// Webhook is a subscriber endpoint. Its health fields (circuit state,
// failure counters, pause window) are updated by the delivery worker and,
// for the breaker fields only, by the operator breaker reset (REST and
// CLI); webhook registration only ever sets URL and Metadata.
type Webhook struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	URL      string    `json:"url" gorm:"type:text;not null"`
	Metadata string    `json:"metadata,omitempty" gorm:"type:text"` // opaque, producer-supplied JSON blob

	CircuitState        CircuitState `json:"circuit_state" gorm:"type:varchar(16);not null;default:'CLOSED'"`
	ConsecutiveFailures int          `json:"consecutive_failures" gorm:"not null;default:0"`
	CircuitOpenedAt     *time.Time   `json:"circuit_opened_at,omitempty"`
	LastFailureTime     *time.Time   `json:"last_failure_time,omitempty"`
	TotalSuccesses      int64        `json:"total_successes" gorm:"not null;default:0"`
	TotalFailures       int64        `json:"total_failures" gorm:"not null;default:0"`
	PausedUntil         *time.Time   `json:"paused_until,omitempty"`
	IsDisabled          bool         `json:"is_disabled" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EnsureDefaults assigns an id and initialises the health fields, matching
// the spec's "created by the registration surface; health fields
// initialised to CLOSED/0/absent" lifecycle clause. The repository layer
// calls this before the first insert.
func (w *Webhook) EnsureDefaults() {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.CircuitState == "" {
		w.CircuitState = CircuitClosed
	}
}

// IsPaused reports whether the webhook is currently suspended from
// delivery, either permanently (disabled) or until a point in time.
func (w *Webhook) IsPaused(now time.Time) bool {
	if w.IsDisabled {
		return true
	}
	return w.PausedUntil != nil && w.PausedUntil.After(now)
}

// SuccessRate returns the webhook's lifetime delivery success ratio, 1.0
// when there have been no attempts at all.
func (w *Webhook) SuccessRate() float64 {
	total := w.TotalSuccesses + w.TotalFailures
	if total == 0 {
		return 1.0
	}
	return float64(w.TotalSuccesses) / float64(total)
}
