package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casapps/hookrelay/src/internal/models"
)

func TestPool_StartStopDrainsCleanly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	db := setupTestDB(t)
	p := newTestPool(t, db)
	p.cfg.PollInterval = 5 * time.Millisecond

	webhook, event := createWebhookAndEvent(t, p, server.URL)
	_ = webhook
	p.queue.Enqueue(event)

	ctx := t.Context()
	p.Start(ctx)

	require.Eventually(t, func() bool {
		refetched, err := p.events.Get(ctx, event.ID)
		return err == nil && refetched.Status == models.EventSuccess
	}, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Stop(stopCtx)
}

func TestPool_StopReturnsAfterFullDrain(t *testing.T) {
	db := setupTestDB(t)
	p := newTestPool(t, db)
	p.cfg.PollInterval = 5 * time.Millisecond

	ctx := t.Context()
	p.Start(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Stop(stopCtx)

	select {
	case <-p.done:
	default:
		t.Fatal("expected pool to have fully drained after Stop returns")
	}
}

func TestPool_ReplenisherRequeuesDueRetries(t *testing.T) {
	db := setupTestDB(t)
	p := newTestPool(t, db)
	p.cfg.PollInterval = 5 * time.Millisecond

	ctx := t.Context()
	webhook := &models.Webhook{URL: "https://example.com/hook"}
	require.NoError(t, p.webhooks.Create(ctx, webhook))

	past := time.Now().UTC().Add(-time.Minute)
	event := &models.Event{WebhookID: webhook.ID, Status: models.EventRetryPending, NextAttemptAt: &past}
	require.NoError(t, p.events.Create(ctx, event))

	p.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		p.Stop(stopCtx)
	}()

	assert.Eventually(t, func() bool {
		refetched, err := p.events.Get(ctx, event.ID)
		return err == nil && refetched.Status != models.EventRetryPending
	}, time.Second, 5*time.Millisecond)
}
