// Package worker implements the delivery dispatcher and worker pool of
// spec §4.7: a bounded pool of goroutines pulling events off a queue,
// each running the full attempt -> classify -> react procedure.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/casapps/hookrelay/src/internal/alerting"
	"github.com/casapps/hookrelay/src/internal/breaker"
	"github.com/casapps/hookrelay/src/internal/classifier"
	"github.com/casapps/hookrelay/src/internal/delivery"
	"github.com/casapps/hookrelay/src/internal/models"
	"github.com/casapps/hookrelay/src/internal/queue"
	"github.com/casapps/hookrelay/src/internal/repository"
	"github.com/casapps/hookrelay/src/internal/retrypolicy"
)

// Config configures pool size and poll cadence (spec §6
// delivery.workerThreads / delivery.pollIntervalMs).
type Config struct {
	WorkerThreads   int
	PollInterval    time.Duration
	PauseWindow     time.Duration
	CircuitCooldown time.Duration
}

// DefaultConfig matches spec §6's stated defaults.
func DefaultConfig() Config {
	return Config{WorkerThreads: 5, PollInterval: 100 * time.Millisecond, PauseWindow: time.Hour, CircuitCooldown: time.Minute}
}

// Pool is the dispatcher + worker pool described in spec §4.7: each of
// WorkerThreads goroutines loops dequeuing from Queue, and one more
// goroutine polls the DB for due retries and puts them back on Queue.
type Pool struct {
	cfg        Config
	queue      queue.Queue
	webhooks   repository.WebhookRepository
	events     repository.EventRepository
	classifications repository.ErrorClassificationRepository
	client     *delivery.Client
	retry      *retrypolicy.Policy
	breaker    *breaker.Breaker
	classifier *classifier.Classifier
	notifier   *alerting.Notifier

	stop chan struct{}
	done chan struct{}
}

// New wires a Pool from its collaborators. notifier may be nil to
// disable ESCALATE emails.
func New(
	cfg Config,
	q queue.Queue,
	webhooks repository.WebhookRepository,
	events repository.EventRepository,
	classifications repository.ErrorClassificationRepository,
	client *delivery.Client,
	retry *retrypolicy.Policy,
	cb *breaker.Breaker,
	cl *classifier.Classifier,
	notifier *alerting.Notifier,
) *Pool {
	return &Pool{
		cfg: cfg, queue: q, webhooks: webhooks, events: events, classifications: classifications,
		client: client, retry: retry, breaker: cb, classifier: cl, notifier: notifier,
		stop: make(chan struct{}), done: make(chan struct{}),
	}
}

// Start launches WorkerThreads lanes plus one retry-replenishment poller.
// It returns immediately; call Stop to drain and shut down.
func (p *Pool) Start(ctx context.Context) {
	n := p.cfg.WorkerThreads
	if n <= 0 {
		n = 1
	}

	running := make(chan struct{}, n+1)
	for i := 0; i < n; i++ {
		running <- struct{}{}
		go p.runLane(ctx, running)
	}
	running <- struct{}{}
	go p.runReplenisher(ctx, running)

	go func() {
		for i := 0; i < n+1; i++ {
			<-running
		}
		close(p.done)
	}()
}

// Stop signals all lanes to exit and waits until every lane and the
// replenisher have returned or ctx is done, whichever comes first. It does
// not cancel in-flight attempts itself; those end only when the context
// passed to Start is cancelled. Stop must be called at most once.
func (p *Pool) Stop(ctx context.Context) {
	close(p.stop)
	select {
	case <-p.done:
	case <-ctx.Done():
	}
}

func (p *Pool) runLane(ctx context.Context, running chan struct{}) {
	defer func() { running <- struct{}{} }()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			event := p.queue.Dequeue()
			if event == nil {
				continue
			}
			p.process(ctx, event)
		}
	}
}

// runReplenisher moves RETRY_PENDING events whose next_attempt_at has
// passed back onto the queue, bridging the in-process queue (which holds
// no concept of "wake me later") with persisted retry scheduling.
func (p *Pool) runReplenisher(ctx context.Context, running chan struct{}) {
	defer func() { running <- struct{}{} }()

	ticker := time.NewTicker(p.cfg.PollInterval * 5)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := p.events.DueForRetry(ctx, time.Now().UTC(), 100)
			if err != nil {
				log.Printf("worker: replenish query failed: %v", err)
				continue
			}
			for i := range due {
				ev := due[i]
				ev.Status = models.EventPending
				if err := p.events.Update(ctx, &ev); err != nil {
					log.Printf("worker: failed to mark event %s pending: %v", ev.ID, err)
					continue
				}
				p.queue.Enqueue(&ev)
			}
		}
	}
}
