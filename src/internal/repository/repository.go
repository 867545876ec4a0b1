package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/casapps/hookrelay/src/internal/models"
)

// ErrNotFound is returned by any Get-by-ID method when no row matches.
var ErrNotFound = errors.New("repository: not found")

// WebhookRepository is the contract spec §6 describes for webhook
// registration, breaker-state persistence, and operator reset/disable.
type WebhookRepository interface {
	Create(ctx context.Context, webhook *models.Webhook) error
	Get(ctx context.Context, id uuid.UUID) (*models.Webhook, error)
	Update(ctx context.Context, webhook *models.Webhook) error
	List(ctx context.Context) ([]models.Webhook, error)
}

// EventRepository is the contract for event persistence and the
// RETRY_PENDING queue-replenishment query (scheduled retries whose due
// time has passed). It has no query for PENDING events.
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	Get(ctx context.Context, id uuid.UUID) (*models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	DueForRetry(ctx context.Context, now time.Time, limit int) ([]models.Event, error)
}

// ErrorClassificationRepository is the append-only audit trail spec §4.6
// draws diagnostics recommendations from.
type ErrorClassificationRepository interface {
	Create(ctx context.Context, classification *models.ErrorClassification) error
	RecentForWebhook(ctx context.Context, webhookID uuid.UUID, limit int) ([]models.ErrorClassification, error)
}
