package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the delivery state machine defined in spec §4.7:
// PENDING -> PROCESSING -> (SUCCESS | FAILURE | RETRY_PENDING | PAUSED).
// RETRY_PENDING -> PENDING on re-enqueue; PAUSED -> PENDING on external
// resume. SUCCESS and FAILURE are terminal to the core.
type EventStatus string

const (
	EventPending      EventStatus = "PENDING"
	EventProcessing   EventStatus = "PROCESSING"
	EventRetryPending EventStatus = "RETRY_PENDING"
	EventSuccess      EventStatus = "SUCCESS"
	EventFailure      EventStatus = "FAILURE"
	EventPaused       EventStatus = "PAUSED"
)

// IsTerminal reports whether status is one the core never leaves.
func (s EventStatus) IsTerminal() bool {
	return s == EventSuccess || s == EventFailure
}

// Event is a single delivery job bound to a webhook.
type Event struct {
	ID            uuid.UUID   `json:"id" gorm:"type:uuid;primary_key"`
	WebhookID     uuid.UUID   `json:"webhook_id" gorm:"type:uuid;not null;index"`
	Payload       []byte      `json:"payload" gorm:"type:blob"`
	Status        EventStatus `json:"status" gorm:"type:varchar(16);not null;default:'PENDING';index"`
	RetryCount    int         `json:"retry_count" gorm:"not null;default:0"`
	LastError     string      `json:"last_error,omitempty" gorm:"type:text"`
	NextAttemptAt *time.Time  `json:"next_attempt_at,omitempty" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EnsureDefaults assigns an id and the initial PENDING status. The
// repository layer calls this before the first insert.
func (e *Event) EnsureDefaults() {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = EventPending
	}
}
