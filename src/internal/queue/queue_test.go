package queue

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casapps/hookrelay/src/internal/models"
)

func TestInProcessQueue_FIFOSingleProducer(t *testing.T) {
	q := NewInProcessQueue()
	assert.True(t, q.IsEmpty())

	first := &models.Event{ID: uuid.New()}
	second := &models.Event{ID: uuid.New()}

	require.True(t, q.Enqueue(first))
	require.True(t, q.Enqueue(second))
	assert.Equal(t, 2, q.Size())

	assert.Equal(t, first, q.Dequeue())
	assert.Equal(t, second, q.Dequeue())
	assert.True(t, q.IsEmpty())
	assert.Nil(t, q.Dequeue())
}

func TestInProcessQueue_RejectsNil(t *testing.T) {
	q := NewInProcessQueue()
	assert.False(t, q.Enqueue(nil))
	assert.True(t, q.IsEmpty())
}

func TestInProcessQueue_ConcurrentProducersConsumers(t *testing.T) {
	q := NewInProcessQueue()
	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				q.Enqueue(&models.Event{ID: uuid.New()})
			}
		}()
	}
	wg.Wait()

	seen := 0
	for q.Dequeue() != nil {
		seen++
	}
	assert.Equal(t, producers*perProducer, seen)
	assert.True(t, q.IsEmpty())
}
