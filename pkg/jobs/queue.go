// Package jobs runs background work on a fixed pool of goroutines with bounded retries.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrQueueFull    = errors.New("queue full")
	ErrQueueStopped = errors.New("queue not running")
)

const maxBackoff = time.Minute

// Job wraps one payload. Attempt counts failed runs so far.
type Job[T any] struct {
	ID       string
	Payload  T
	Attempt  int
	Enqueued time.Time
}

type Handler[T any] func(context.Context, Job[T]) error

// Config sizes the pool. A failed job waits RetryDelay, doubling per attempt, before it
// is pushed back. OnGiveUp sees jobs that failed MaxRetries+1 times or could not be requeued.
type Config[T any] struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
	OnGiveUp   func(Job[T], error)
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Submitted int64
	Succeeded int64
	Retried   int64
	Abandoned int64
	Pending   int
}

type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     Config[T]
	log     *zap.Logger
	ch      chan Job[T]

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	submitted, succeeded, retried, abandoned atomic.Int64
}

func New[T any](name string, handler Handler[T], cfg Config[T]) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		log:     cfg.Logger.With(zap.String("queue", name)),
		ch:      make(chan Job[T], cfg.BufferSize),
	}
}

// Start launches the workers. Further calls are no-ops while the queue runs.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.wg.Add(q.cfg.Workers)
	for i := 0; i < q.cfg.Workers; i++ {
		go q.work(q.ctx)
	}
	q.log.Info("queue started", zap.Int("workers", q.cfg.Workers), zap.Int("buffer", q.cfg.BufferSize))
}

// Stop cancels the workers and waits for in-flight handlers. Buffered jobs are dropped.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	cancel := q.cancel
	q.cancel = nil
	q.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	q.wg.Wait()
	st := q.Stats()
	q.log.Info("queue stopped",
		zap.Int64("succeeded", st.Succeeded),
		zap.Int64("abandoned", st.Abandoned),
		zap.Int("dropped", st.Pending))
}

// Submit buffers job without blocking. It fails when the queue is stopped or full.
func (q *Queue[T]) Submit(job Job[T]) error {
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	if err := q.push(job); err != nil {
		return err
	}
	q.submitted.Add(1)
	return nil
}

func (q *Queue[T]) Stats() Stats {
	return Stats{
		Submitted: q.submitted.Load(),
		Succeeded: q.succeeded.Load(),
		Retried:   q.retried.Load(),
		Abandoned: q.abandoned.Load(),
		Pending:   len(q.ch),
	}
}

func (q *Queue[T]) push(job Job[T]) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.cancel == nil || q.ctx.Err() != nil {
		return fmt.Errorf("%s: %w", q.name, ErrQueueStopped)
	}
	select {
	case q.ch <- job:
		return nil
	default:
		return fmt.Errorf("%s: %w", q.name, ErrQueueFull)
	}
}

func (q *Queue[T]) work(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.ch:
			if err := q.handler(ctx, job); err != nil {
				q.fail(ctx, job, err)
				continue
			}
			q.succeeded.Add(1)
		}
	}
}

func (q *Queue[T]) fail(ctx context.Context, job Job[T], err error) {
	job.Attempt++
	if job.Attempt > q.cfg.MaxRetries {
		q.giveUp(job, err)
		return
	}
	delay := q.backoff(job.Attempt)
	q.retried.Add(1)
	q.log.Warn("job failed, will retry",
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempt),
		zap.Duration("delay", delay),
		zap.Error(err))

	go func() {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
			if perr := q.push(job); perr != nil {
				q.giveUp(job, perr)
			}
		}
	}()
}

func (q *Queue[T]) backoff(attempt int) time.Duration {
	d := q.cfg.RetryDelay
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func (q *Queue[T]) giveUp(job Job[T], err error) {
	q.abandoned.Add(1)
	q.log.Error("job abandoned", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
	if q.cfg.OnGiveUp != nil {
		q.cfg.OnGiveUp(job, err)
	}
}
