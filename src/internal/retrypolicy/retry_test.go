package retrypolicy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldRetry(t *testing.T) {
	p := New(Config{BaseDelayMs: 1000, MaxDelayMs: 60000, MaxRetries: 3})
	assert.True(t, p.ShouldRetry(0))
	assert.True(t, p.ShouldRetry(2))
	assert.False(t, p.ShouldRetry(3))
	assert.False(t, p.ShouldRetry(10))
}

func TestCalculateDelay_WithinCapBounds(t *testing.T) {
	cfg := Config{BaseDelayMs: 1000, MaxDelayMs: 60000, MaxRetries: 5}
	p := New(cfg)

	for retryCount := 0; retryCount < 10; retryCount++ {
		capMs := capDelayMs(retryCount, cfg.BaseDelayMs, cfg.MaxDelayMs)
		for i := 0; i < 20; i++ {
			delay := p.CalculateDelay(retryCount)
			assert.GreaterOrEqual(t, delay, time.Duration(capMs)*time.Millisecond)
			assert.LessOrEqual(t, delay, time.Duration(2*capMs)*time.Millisecond)
		}
	}
}

func TestCalculateDelay_NeverExceedsTwiceMax(t *testing.T) {
	cfg := Config{BaseDelayMs: 1000, MaxDelayMs: 60000, MaxRetries: 20}
	p := New(cfg)
	for i := 0; i < 50; i++ {
		delay := p.CalculateDelay(15)
		assert.LessOrEqual(t, delay, time.Duration(2*cfg.MaxDelayMs)*time.Millisecond)
	}
}

func TestCalculateDelayWithRetryAfter_HonoursHeader(t *testing.T) {
	p := New(Config{BaseDelayMs: 1000, MaxDelayMs: 60000, MaxRetries: 5})
	seconds := 10
	delay := p.CalculateDelayWithRetryAfter(0, &seconds)
	assert.Equal(t, 10*time.Second, delay)
}

func TestCalculateDelayWithRetryAfter_FloorsAtBaseDelay(t *testing.T) {
	p := New(Config{BaseDelayMs: 5000, MaxDelayMs: 60000, MaxRetries: 5})
	seconds := 1
	delay := p.CalculateDelayWithRetryAfter(0, &seconds)
	assert.Equal(t, 5*time.Second, delay)
}

func TestCalculateDelayWithRetryAfter_FallsBackWhenAbsent(t *testing.T) {
	p := New(Config{BaseDelayMs: 1000, MaxDelayMs: 60000, MaxRetries: 5})
	delay := p.CalculateDelayWithRetryAfter(0, nil)
	assert.GreaterOrEqual(t, delay, time.Second)
	assert.LessOrEqual(t, delay, 2*time.Second)
}

func TestCapDelayMs_GuardsOverflow(t *testing.T) {
	assert.Equal(t, 60000, capDelayMs(100, 1000, 60000))
	assert.Equal(t, 1000, capDelayMs(0, 1000, 60000))
	assert.Equal(t, 60000, capDelayMs(6, 1000, 60000))
}
