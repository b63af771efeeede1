package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ProcessorQueue is the in-memory Queue: a buffered channel drained by a
// fixed pool of workers.
type ProcessorQueue struct {
	handle  Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*options)

type options struct {
	workers int
	size    int
	timeout time.Duration
}

func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.size = n
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{workers: 4, size: 256, timeout: 15 * time.Minute}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func NewProcessorQueue(handle Handler, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	o := buildOptions(opts)
	q := &ProcessorQueue{
		handle:  handle,
		logger:  logger,
		workers: o.workers,
		timeout: o.timeout,
		ch:      make(chan Job, o.size),
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)
				for job := range q.ch {
					runJob(q.handle, q.logger, q.timeout, workerID, job)
				}
				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// runJob is shared by both queue backends.
func runJob(handle Handler, logger *slog.Logger, timeout time.Duration, workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("processing panicked", "worker_id", workerID, "run_id", job.RunID, "panic", r)
		}
	}()

	if err := handle(ctx, job); err != nil {
		logger.Error("processing failed", "worker_id", workerID, "run_id", job.RunID,
			"error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return
	}
	logger.Info("processed run successfully", "worker_id", workerID, "run_id", job.RunID,
		"elapsed_ms", time.Since(start).Milliseconds())
}

// Enqueue blocks when the buffer is full until a worker frees a slot or ctx ends.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "run_id", job.RunID)
		return ErrClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued run for processing", "run_id", job.RunID, "file", job.Filename)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "run_id", job.RunID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	waitDrained(ctx, &q.wg, q.logger)
}

func waitDrained(ctx context.Context, wg *sync.WaitGroup, logger *slog.Logger) {
	done := make(chan struct{})
	go func() { defer close(done); wg.Wait() }()

	select {
	case <-ctx.Done():
		logger.Warn("shutdown interrupted by context")
	case <-done:
		logger.Info("queue drained, shutdown complete")
	}
}
