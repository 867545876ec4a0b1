package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"

	"github.com/casapps/hookrelay/src/internal/models"
)

// RedisQueue is the durable/distributed queue backend spec §4.1 and §9
// call out as a drop-in replacement for InProcessQueue: "the contract
// allows a durable/distributed replacement without changing callers."
// It implements the same synchronous Queue interface over a single Redis
// list, using RPUSH/LPOP so FIFO order is preserved per list.
type RedisQueue struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

// NewRedisQueue returns a queue backed by the given Redis list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key, ctx: context.Background()}
}

// Enqueue implements Queue. It rejects only a nil event; transport errors
// to Redis are logged and also reported as a false return, since a durable
// queue backend that silently drops would violate the "every accepted
// event is persisted before delivery" guarantee upstream callers rely on.
func (q *RedisQueue) Enqueue(event *models.Event) bool {
	if event == nil {
		return false
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("redis queue: failed to marshal event %s: %v", event.ID, err)
		return false
	}
	if err := q.client.RPush(q.ctx, q.key, payload).Err(); err != nil {
		log.Printf("redis queue: failed to enqueue event %s: %v", event.ID, err)
		return false
	}
	return true
}

// Dequeue implements Queue, returning nil when the queue is empty or on
// transport error.
func (q *RedisQueue) Dequeue() *models.Event {
	result, err := q.client.LPop(q.ctx, q.key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		log.Printf("redis queue: failed to dequeue from %s: %v", q.key, err)
		return nil
	}
	var event models.Event
	if err := json.Unmarshal([]byte(result), &event); err != nil {
		log.Printf("redis queue: failed to unmarshal dequeued event: %v", err)
		return nil
	}
	return &event
}

// IsEmpty implements Queue.
func (q *RedisQueue) IsEmpty() bool {
	return q.Size() == 0
}

// Size implements Queue.
func (q *RedisQueue) Size() int {
	n, err := q.client.LLen(q.ctx, q.key).Result()
	if err != nil {
		log.Printf("redis queue: failed to get length of %s: %v", q.key, err)
		return 0
	}
	return int(n)
}
