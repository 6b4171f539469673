package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/lumeskin-platform/cmd/mainconfig"
	"github.com/wolfman30/lumeskin-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/lumeskin-platform/internal/config"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.UseMemoryQueue {
		// The in-memory queue is only reachable from the API process, which
		// already runs its own worker.
		logger.Error("USE_MEMORY_QUEUE is set; the API server runs the assistant worker inline")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	app, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Options{AWS: awsCfg})
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.Close(context.Background())

	worker := app.Worker()
	worker.Start(ctx)
	logger.Info("assistant worker started", "workers", cfg.WorkerCount)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down assistant worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("assistant worker stopped")
	case <-doneCtx.Done():
		logger.Error("assistant worker shutdown timed out", "error", doneCtx.Err())
	}
}
