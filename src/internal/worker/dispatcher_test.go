package worker

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/casapps/hookrelay/src/internal/breaker"
	"github.com/casapps/hookrelay/src/internal/classifier"
	"github.com/casapps/hookrelay/src/internal/delivery"
	"github.com/casapps/hookrelay/src/internal/models"
	"github.com/casapps/hookrelay/src/internal/queue"
	"github.com/casapps/hookrelay/src/internal/repository"
	"github.com/casapps/hookrelay/src/internal/retrypolicy"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Webhook{}, &models.Event{}, &models.ErrorClassification{}))
	return db
}

func newTestPool(t *testing.T, db *gorm.DB) *Pool {
	engine := classifier.NewRuleEngine(classifier.DefaultRules())
	cl := classifier.New(nil, engine, nil)
	return New(
		DefaultConfig(),
		queue.NewInProcessQueue(),
		repository.NewWebhookRepository(db),
		repository.NewEventRepository(db),
		repository.NewErrorClassificationRepository(db),
		delivery.New(delivery.Config{ConnectTimeout: time.Second, ReadTimeout: time.Second}),
		retrypolicy.New(retrypolicy.Config{BaseDelayMs: 1000, MaxDelayMs: 60000, MaxRetries: 3}),
		breaker.New(breaker.Config{FailureThreshold: 3, CooldownSeconds: 60, HalfOpenTestLimit: 1}),
		cl,
		nil,
	)
}

func createWebhookAndEvent(t *testing.T, p *Pool, url string) (*models.Webhook, *models.Event) {
	ctx := t.Context()
	webhook := &models.Webhook{URL: url}
	require.NoError(t, p.webhooks.Create(ctx, webhook))
	event := &models.Event{WebhookID: webhook.ID, Payload: []byte(`{}`)}
	require.NoError(t, p.events.Create(ctx, event))
	return webhook, event
}

func TestPool_ProcessSuccessUpdatesWebhookAndEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	db := setupTestDB(t)
	p := newTestPool(t, db)
	webhook, event := createWebhookAndEvent(t, p, server.URL)

	p.process(t.Context(), event)

	refetchedEvent, err := p.events.Get(t.Context(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventSuccess, refetchedEvent.Status)

	refetchedWebhook, err := p.webhooks.Get(t.Context(), webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), refetchedWebhook.TotalSuccesses)
	assert.Equal(t, models.CircuitClosed, refetchedWebhook.CircuitState)
}

func TestPool_ProcessRetryableFailureSchedulesRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	db := setupTestDB(t)
	p := newTestPool(t, db)
	_, event := createWebhookAndEvent(t, p, server.URL)

	p.process(t.Context(), event)

	refetched, err := p.events.Get(t.Context(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventRetryPending, refetched.Status)
	assert.Equal(t, 1, refetched.RetryCount)
	require.NotNil(t, refetched.NextAttemptAt)
	assert.True(t, refetched.NextAttemptAt.After(time.Now()))

	classifications, err := p.classifications.RecentForWebhook(t.Context(), event.WebhookID, 10)
	require.NoError(t, err)
	require.Len(t, classifications, 1)
	assert.Equal(t, models.DecisionRetry, classifications[0].Decision)
}

func TestPool_ProcessNonRetryableFailureIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	db := setupTestDB(t)
	p := newTestPool(t, db)
	_, event := createWebhookAndEvent(t, p, server.URL)

	p.process(t.Context(), event)

	refetched, err := p.events.Get(t.Context(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventFailure, refetched.Status)
	assert.Nil(t, refetched.NextAttemptAt)
}

func TestPool_ProcessLegalHoldPausesWebhook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnavailableForLegalReasons)
	}))
	defer server.Close()

	db := setupTestDB(t)
	p := newTestPool(t, db)
	webhook, event := createWebhookAndEvent(t, p, server.URL)

	p.process(t.Context(), event)

	refetchedEvent, err := p.events.Get(t.Context(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventPaused, refetchedEvent.Status)
	require.NotNil(t, refetchedEvent.NextAttemptAt)

	refetchedWebhook, err := p.webhooks.Get(t.Context(), webhook.ID)
	require.NoError(t, err)
	require.NotNil(t, refetchedWebhook.PausedUntil)
	assert.True(t, refetchedWebhook.IsPaused(time.Now().UTC()))
}

func TestPool_ProcessSkipsDeliveryWhenWebhookPaused(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	db := setupTestDB(t)
	p := newTestPool(t, db)
	webhook, event := createWebhookAndEvent(t, p, server.URL)

	pausedUntil := time.Now().UTC().Add(time.Hour)
	webhook.PausedUntil = &pausedUntil
	require.NoError(t, p.webhooks.Update(t.Context(), webhook))

	p.process(t.Context(), event)

	assert.False(t, called)
	refetched, err := p.events.Get(t.Context(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventPaused, refetched.Status)
}

func TestPool_ProcessSkipsDeliveryWhenCircuitOpen(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	db := setupTestDB(t)
	p := newTestPool(t, db)
	webhook, event := createWebhookAndEvent(t, p, server.URL)

	now := time.Now().UTC()
	webhook.CircuitState = models.CircuitOpen
	webhook.CircuitOpenedAt = &now
	require.NoError(t, p.webhooks.Update(t.Context(), webhook))

	p.process(t.Context(), event)

	assert.False(t, called)
	refetched, err := p.events.Get(t.Context(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventRetryPending, refetched.Status)
}

func TestPool_ProcessExhaustsRetriesToTerminalFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	db := setupTestDB(t)
	p := newTestPool(t, db)
	_, event := createWebhookAndEvent(t, p, server.URL)
	event.RetryCount = 3 // already at MaxRetries
	require.NoError(t, p.events.Update(t.Context(), event))

	p.process(t.Context(), event)

	refetched, err := p.events.Get(t.Context(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventFailure, refetched.Status)
}

func TestPool_ProcessUnknownWebhookFailsEvent(t *testing.T) {
	db := setupTestDB(t)
	p := newTestPool(t, db)
	event := &models.Event{ID: uuid.New(), WebhookID: uuid.New(), Payload: []byte(`{}`)}

	// A missing webhook is terminal for the event.
	p.process(t.Context(), event)
	assert.Equal(t, models.EventFailure, event.Status)
}
