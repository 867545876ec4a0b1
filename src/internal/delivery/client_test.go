package delivery

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/casapps/hookrelay/src/internal/models"
)

func newTestWebhook(url string) *models.Webhook {
	return &models.Webhook{ID: uuid.New(), URL: url}
}

func TestDeliver_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := New(DefaultConfig())
	result := client.Deliver(t.Context(), newTestWebhook(server.URL), []byte(`{"event":"test"}`))

	assert.True(t, result.Success)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.False(t, result.Retryable)
}

func TestDeliver_RateLimitedWithRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(DefaultConfig())
	result := client.Deliver(t.Context(), newTestWebhook(server.URL), nil)

	assert.False(t, result.Success)
	assert.True(t, result.Retryable)
	assert.Equal(t, http.StatusTooManyRequests, result.StatusCode)
	if assert.NotNil(t, result.RetryAfterSeconds) {
		assert.Equal(t, 30, *result.RetryAfterSeconds)
	}
}

func TestDeliver_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(DefaultConfig())
	result := client.Deliver(t.Context(), newTestWebhook(server.URL), nil)

	assert.True(t, result.Retryable)
	assert.Equal(t, http.StatusServiceUnavailable, result.StatusCode)
}

func TestDeliver_ClientErrorIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(DefaultConfig())
	result := client.Deliver(t.Context(), newTestWebhook(server.URL), nil)

	assert.False(t, result.Success)
	assert.False(t, result.Retryable)
}

func TestDeliver_TransportFailureIsRetryable(t *testing.T) {
	client := New(Config{ConnectTimeout: 50 * time.Millisecond, ReadTimeout: 50 * time.Millisecond})
	result := client.Deliver(t.Context(), newTestWebhook("http://127.0.0.1:1"), nil)

	assert.False(t, result.Success)
	assert.True(t, result.Retryable)
	assert.Equal(t, 0, result.StatusCode)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Nil(t, parseRetryAfter(""))
	assert.Nil(t, parseRetryAfter("not-a-number"))
	assert.Nil(t, parseRetryAfter("-5"))
	assert.Nil(t, parseRetryAfter("0"))
	if v := parseRetryAfter("12"); assert.NotNil(t, v) {
		assert.Equal(t, 12, *v)
	}
}
