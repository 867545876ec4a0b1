package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/casapps/hookrelay/src/internal/classifier"
	"github.com/casapps/hookrelay/src/internal/delivery"
	"github.com/casapps/hookrelay/src/internal/models"
	"github.com/casapps/hookrelay/src/internal/repository"
)

// process runs the full per-event procedure of spec §4.7: gate on
// webhook pause/breaker state, attempt delivery, classify any failure,
// and react per the resulting decision. Every branch persists the event
// (and, when it changed, the webhook) before returning, except when the
// webhook lookup or the PROCESSING update fails with a storage error,
// which is logged and leaves the event as it was. A webhook that does not
// exist makes the event FAILURE.
func (p *Pool) process(ctx context.Context, event *models.Event) {
	now := time.Now().UTC()

	webhook, err := p.webhooks.Get(ctx, event.WebhookID)
	if errors.Is(err, repository.ErrNotFound) {
		event.Status = models.EventFailure
		event.LastError = "webhook not found"
		event.NextAttemptAt = nil
		if err := p.events.Update(ctx, event); err != nil {
			log.Printf("worker: failed to mark event %s failed: %v", event.ID, err)
		}
		return
	}
	if err != nil {
		log.Printf("worker: failed to load webhook %s for event %s: %v", event.WebhookID, event.ID, err)
		return
	}

	if webhook.IsPaused(now) {
		p.reschedule(ctx, event, webhook.PausedUntil, models.EventPaused)
		return
	}

	if !p.breaker.AllowRequest(webhook, now) {
		cooldownUntil := now.Add(p.cfg.CircuitCooldown)
		if webhook.CircuitOpenedAt != nil {
			cooldownUntil = webhook.CircuitOpenedAt.Add(p.cfg.CircuitCooldown)
		}
		p.reschedule(ctx, event, &cooldownUntil, models.EventRetryPending)
		return
	}

	event.Status = models.EventProcessing
	if err := p.events.Update(ctx, event); err != nil {
		log.Printf("worker: failed to mark event %s processing: %v", event.ID, err)
		return
	}

	result := p.client.Deliver(ctx, webhook, event.Payload)

	if result.Success {
		p.breaker.RecordSuccess(webhook)
		webhook.TotalSuccesses++
		event.Status = models.EventSuccess
		event.LastError = ""
		p.persist(ctx, event, webhook)
		return
	}

	p.handleFailure(ctx, event, webhook, result, now)
}

func (p *Pool) handleFailure(ctx context.Context, event *models.Event, webhook *models.Webhook, result delivery.Result, now time.Time) {
	delivCtx := classifier.Context{
		RetryCount:          event.RetryCount,
		RecentFailureRate:   failureRate(webhook),
		WebhookID:           webhook.ID.String(),
		TotalFailures:       webhook.TotalFailures,
		TotalSuccesses:      webhook.TotalSuccesses,
		ConsecutiveFailures: webhook.ConsecutiveFailures,
		CircuitBreakerState: webhook.CircuitState,
	}
	outcome := p.classifier.Classify(ctx, result, delivCtx)

	classification := &models.ErrorClassification{
		EventID:           event.ID,
		WebhookID:         webhook.ID,
		StatusCode:        result.StatusCode,
		ErrorMessage:      result.ErrorMessage,
		Decision:          outcome.Decision,
		Explanation:       outcome.Explanation,
		ErrorType:         outcome.ErrorType,
		RetryAfterSeconds: result.RetryAfterSeconds,
	}
	if err := p.classifications.Create(ctx, classification); err != nil {
		log.Printf("worker: failed to persist classification for event %s: %v", event.ID, err)
	}

	event.LastError = result.ErrorMessage
	webhook.TotalFailures++
	webhook.LastFailureTime = &now
	p.breaker.RecordFailure(webhook, now)

	switch outcome.Decision {
	case models.DecisionRetry:
		if p.retry.ShouldRetry(event.RetryCount) {
			delay := p.retry.CalculateDelayWithRetryAfter(event.RetryCount, result.RetryAfterSeconds)
			nextAttempt := now.Add(delay)
			event.RetryCount++
			event.Status = models.EventRetryPending
			event.NextAttemptAt = &nextAttempt
		} else {
			event.Status = models.EventFailure
			event.NextAttemptAt = nil
		}

	case models.DecisionFailPermanent:
		event.Status = models.EventFailure
		event.NextAttemptAt = nil

	case models.DecisionPauseWebhook:
		pausedUntil := now.Add(p.cfg.PauseWindow)
		webhook.PausedUntil = &pausedUntil
		event.Status = models.EventPaused
		event.NextAttemptAt = &pausedUntil

	case models.DecisionEscalate:
		event.Status = models.EventFailure
		event.NextAttemptAt = nil
		if p.notifier != nil {
			p.notifier.Escalate(event, webhook, classification)
		}

	default:
		event.Status = models.EventFailure
		event.NextAttemptAt = nil
	}

	p.persist(ctx, event, webhook)
}

// reschedule re-enqueues event for a later attempt without running a
// delivery attempt at all — used when the webhook is paused or its
// breaker is open and we already know the call would be refused.
func (p *Pool) reschedule(ctx context.Context, event *models.Event, at *time.Time, status models.EventStatus) {
	event.Status = status
	event.NextAttemptAt = at
	if err := p.events.Update(ctx, event); err != nil {
		log.Printf("worker: failed to reschedule event %s: %v", event.ID, err)
	}
}

func (p *Pool) persist(ctx context.Context, event *models.Event, webhook *models.Webhook) {
	if err := p.events.Update(ctx, event); err != nil {
		log.Printf("worker: failed to persist event %s: %v", event.ID, err)
	}
	if err := p.webhooks.Update(ctx, webhook); err != nil {
		log.Printf("worker: failed to persist webhook %s: %v", webhook.ID, err)
	}
}

func failureRate(webhook *models.Webhook) float64 {
	total := webhook.TotalSuccesses + webhook.TotalFailures
	if total == 0 {
		return 0
	}
	return float64(webhook.TotalFailures) / float64(total)
}
