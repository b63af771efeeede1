package async

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// popTimeout bounds each BLPOP so workers notice Shutdown.
const popTimeout = time.Second

// RedisQueue implements Queue on a Redis list: RPUSH to enqueue, BLPOP in
// each worker. Jobs survive a daemon restart; the uploaded file they point
// to must be on storage every worker can read.
type RedisQueue struct {
	client  *redis.Client
	key     string
	handle  Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	logger.Info("connecting to redis", "addr", cfg.Addr, "db", cfg.DB, "password_set", cfg.Password != "")
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Error("failed to ping redis", "error", err)
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRedisQueue(client *redis.Client, key string, handle Handler, logger *slog.Logger, opts ...Option) *RedisQueue {
	if logger == nil {
		logger = slog.Default()
	}
	if key == "" {
		key = "extractor:runs"
	}
	o := buildOptions(opts)
	q := &RedisQueue{
		client:  client,
		key:     key,
		handle:  handle,
		logger:  logger,
		workers: o.workers,
		timeout: o.timeout,
		stop:    make(chan struct{}),
	}
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(i + 1)
	}
	return q
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		q.logger.Error("failed to push job", "key", q.key, "run_id", job.RunID, "error", err)
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Info("queued run for processing", "key", q.key, "run_id", job.RunID, "file", job.Filename)
	return nil
}

func (q *RedisQueue) work(workerID int) {
	defer q.wg.Done()
	q.logger.Info("worker started", "worker_id", workerID, "backend", "redis")
	defer q.logger.Info("worker stopped", "worker_id", workerID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-q.stop
		cancel()
	}()

	for {
		job, err := q.dequeue(ctx)
		switch {
		case err == nil:
			runJob(q.handle, q.logger, q.timeout, workerID, job)
		case errors.Is(err, redis.Nil):
			// BLPOP timed out; poll again.
		case ctx.Err() != nil:
			return
		default:
			q.logger.Error("failed to pop job", "worker_id", workerID, "error", err)
			select {
			case <-q.stop:
				return
			case <-time.After(popTimeout):
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (q *RedisQueue) dequeue(ctx context.Context) (Job, error) {
	val, err := q.client.BLPop(ctx, popTimeout, q.key).Result()
	if err != nil {
		return Job{}, err
	}
	if len(val) < 2 {
		return Job{}, fmt.Errorf("invalid BLPOP result: %d elements", len(val))
	}
	var job Job
	if err := json.Unmarshal([]byte(val[1]), &job); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	return job, nil
}

// Shutdown stops polling; jobs already popped finish. Queued jobs stay in Redis.
func (q *RedisQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.stop)
	q.mu.Unlock()

	waitDrained(ctx, &q.wg, q.logger)
}
