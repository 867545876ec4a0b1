package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/casapps/hookrelay/src/internal/models"
)

// gormWebhookRepository is the default WebhookRepository.
type gormWebhookRepository struct{ db *gorm.DB }

// NewWebhookRepository builds a GORM-backed WebhookRepository.
func NewWebhookRepository(db *gorm.DB) WebhookRepository {
	return &gormWebhookRepository{db: db}
}

func (r *gormWebhookRepository) Create(ctx context.Context, webhook *models.Webhook) error {
	webhook.EnsureDefaults()
	return r.db.WithContext(ctx).Create(webhook).Error
}

func (r *gormWebhookRepository) Get(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	var webhook models.Webhook
	err := r.db.WithContext(ctx).First(&webhook, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &webhook, nil
}

func (r *gormWebhookRepository) Update(ctx context.Context, webhook *models.Webhook) error {
	return r.db.WithContext(ctx).Save(webhook).Error
}

func (r *gormWebhookRepository) List(ctx context.Context) ([]models.Webhook, error) {
	var webhooks []models.Webhook
	err := r.db.WithContext(ctx).Order("created_at asc").Find(&webhooks).Error
	return webhooks, err
}

// gormEventRepository is the default EventRepository.
type gormEventRepository struct{ db *gorm.DB }

// NewEventRepository builds a GORM-backed EventRepository.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &gormEventRepository{db: db}
}

func (r *gormEventRepository) Create(ctx context.Context, event *models.Event) error {
	event.EnsureDefaults()
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *gormEventRepository) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *gormEventRepository) Update(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Save(event).Error
}

// DueForRetry returns up to limit RETRY_PENDING events whose
// next_attempt_at has passed, oldest first — the dispatcher's
// replenishment query alongside the in-process queue (spec §4.1, §4.7).
func (r *gormEventRepository) DueForRetry(ctx context.Context, now time.Time, limit int) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", models.EventRetryPending, now).
		Order("next_attempt_at asc").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// gormErrorClassificationRepository is the default
// ErrorClassificationRepository.
type gormErrorClassificationRepository struct{ db *gorm.DB }

// NewErrorClassificationRepository builds a GORM-backed
// ErrorClassificationRepository.
func NewErrorClassificationRepository(db *gorm.DB) ErrorClassificationRepository {
	return &gormErrorClassificationRepository{db: db}
}

func (r *gormErrorClassificationRepository) Create(ctx context.Context, classification *models.ErrorClassification) error {
	classification.EnsureDefaults()
	return r.db.WithContext(ctx).Create(classification).Error
}

func (r *gormErrorClassificationRepository) RecentForWebhook(ctx context.Context, webhookID uuid.UUID, limit int) ([]models.ErrorClassification, error) {
	var classifications []models.ErrorClassification
	err := r.db.WithContext(ctx).
		Where("webhook_id = ?", webhookID).
		Order("created_at desc").
		Limit(limit).
		Find(&classifications).Error
	return classifications, err
}
