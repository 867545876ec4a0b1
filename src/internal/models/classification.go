package models

import (
	"time"

	"github.com/google/uuid"
)

// Decision is the error classifier's output, one of the four actions the
// delivery worker can take after a failed attempt.
type Decision string

const (
	DecisionRetry         Decision = "RETRY"
	DecisionFailPermanent Decision = "FAIL_PERMANENT"
	DecisionPauseWebhook  Decision = "PAUSE_WEBHOOK"
	DecisionEscalate      Decision = "ESCALATE"
)

// ErrorType is the derived tag used in explanations and the advisor
// request payload.
type ErrorType string

const (
	ErrorTypeRateLimit ErrorType = "RATE_LIMIT"
	ErrorTypeServer    ErrorType = "SERVER_ERROR"
	ErrorTypeAuth      ErrorType = "AUTH_ERROR"
	ErrorTypeClient    ErrorType = "CLIENT_ERROR"
	ErrorTypeTimeout   ErrorType = "TIMEOUT_ERROR"
	ErrorTypeDNS       ErrorType = "DNS_ERROR"
	ErrorTypeNetwork   ErrorType = "NETWORK_ERROR"
	ErrorTypeUnknown   ErrorType = "UNKNOWN_ERROR"
)

// ErrorClassification is the append-only audit row written on every
// failed delivery attempt.
type ErrorClassification struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	EventID           uuid.UUID `json:"event_id" gorm:"type:uuid;not null;index"`
	WebhookID         uuid.UUID `json:"webhook_id" gorm:"type:uuid;not null;index"`
	StatusCode        int       `json:"status_code"`
	ErrorMessage      string    `json:"error_message" gorm:"type:text"`
	Decision          Decision  `json:"decision" gorm:"type:varchar(32);not null"`
	Explanation       string    `json:"explanation" gorm:"type:text"`
	ErrorType         ErrorType `json:"error_type" gorm:"type:varchar(32)"`
	RetryAfterSeconds *int      `json:"retry_after_seconds,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// EnsureDefaults assigns an id to the append-only row.
func (c *ErrorClassification) EnsureDefaults() {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
}
