package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/company-extractor/internal/app"
	"github.com/joseph-ayodele/company-extractor/internal/async"
	"github.com/joseph-ayodele/company-extractor/internal/common"
	"github.com/joseph-ayodele/company-extractor/internal/ingest"
	"github.com/joseph-ayodele/company-extractor/internal/repository"
	"github.com/joseph-ayodele/company-extractor/internal/server"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs before exit.
func run() int {
	configPath := flag.String("config", "", "optional YAML config file")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	logger := app.NewLogger(false, *verbose)

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid config", "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return 1
	}
	defer store.Close()

	if err := store.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		return 1
	}

	p, err := app.BuildPipeline(cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		return 1
	}

	runs := repository.NewRunRepository(store, logger)
	svc := server.NewService(runs, p.Processor, nil, p.Backend, store, server.Options{
		UploadDir:        cfg.Server.UploadDir,
		MaxUploadBytes:   int64(cfg.Server.MaxUploadMB) << 20,
		DefaultChunkSize: cfg.Pipeline.ChunkSize,
		DefaultDedup:     cfg.Pipeline.Dedup,
	}, logger)

	queueOpts := []async.Option{
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	}
	var queue async.Queue
	switch cfg.Queue.Backend {
	case common.QueueRedis:
		client, err := async.NewRedisClient(ctx, async.RedisConfig{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			return 1
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err)
			}
		}()
		queue = async.NewRedisQueue(client, cfg.Queue.RedisKey, svc.ProcessJob, logger, queueOpts...)
	default:
		queue = async.NewProcessorQueue(svc.ProcessJob, logger, queueOpts...)
	}
	svc.AttachQueue(queue)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("company-extractor listening", "addr", cfg.Server.HTTPAddr, "queue", cfg.Queue.Backend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	health := server.NewHealthServer(logger)
	if err := health.Start(cfg.Server.GRPCAddr); err != nil {
		logger.Error("failed to start grpc health server", "error", err)
		return 1
	}

	if cfg.Ingest.InboxDir != "" {
		if err := os.MkdirAll(cfg.Ingest.InboxDir, 0o755); err != nil {
			logger.Error("failed to create inbox directory", "dir", cfg.Ingest.InboxDir, "error", err)
			return 1
		}
		inbox := ingest.NewInbox(ingest.NewFSIngestor(logger), svc.SubmitPath, logger)
		go func() {
			err := inbox.Run(ctx, ingest.WatchConfig{
				Roots:       []string{cfg.Ingest.InboxDir},
				InitialScan: true,
				Debounce:    cfg.Ingest.Debounce,
			})
			if err != nil {
				logger.Error("inbox stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	health.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	health.Stop()
	return 0
}
