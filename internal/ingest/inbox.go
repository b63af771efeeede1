package ingest

import (
	"context"
	"log/slog"
)

// EnqueueFunc hands an accepted document to the run queue.
type EnqueueFunc func(ctx context.Context, path string) error

// Inbox feeds new PDFs dropped into watched directories to an EnqueueFunc,
// skipping content that was already ingested.
type Inbox struct {
	ingestor Ingestor
	enqueue  EnqueueFunc
	logger   *slog.Logger
}

func NewInbox(ingestor Ingestor, enqueue EnqueueFunc, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{ingestor: ingestor, enqueue: enqueue, logger: logger}
}

// Run blocks until ctx is done. Per-file failures are logged, not returned.
func (in *Inbox) Run(ctx context.Context, cfg WatchConfig) error {
	if cfg.Logger == nil {
		cfg.Logger = in.logger
	}
	events, errs, err := StartWatcher(ctx, cfg)
	if err != nil {
		return err
	}
	in.logger.Info("inbox.watch.start", "roots", cfg.Roots, "debounce", cfg.Debounce)

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("inbox.watch.stop")
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			in.logger.Warn("inbox.watch.error", "error", err)
		case path, ok := <-events:
			if !ok {
				in.logger.Info("inbox.watch.stop")
				return nil
			}
			in.handle(ctx, path)
		}
	}
}

func (in *Inbox) handle(ctx context.Context, path string) {
	res, err := in.ingestor.IngestPath(ctx, path)
	if err != nil {
		in.logger.Warn("inbox.ingest.failed", "path", path, "error", err)
		return
	}
	if res.Deduplicated {
		return
	}
	if err := in.enqueue(ctx, res.SourcePath); err != nil {
		in.logger.Error("inbox.enqueue.failed", "path", res.SourcePath, "error", err)
		return
	}
	in.logger.Info("inbox.enqueued", "path", res.SourcePath, "sha256", res.HashHex)
}
