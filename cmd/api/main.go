package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/lumeskin-platform/cmd/mainconfig"
	"github.com/wolfman30/lumeskin-platform/internal/app/bootstrap"
	"github.com/wolfman30/lumeskin-platform/internal/assistant"
	appconfig "github.com/wolfman30/lumeskin-platform/internal/config"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Local development keeps settings in .env; production injects them.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting lumeskin API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"kv_backend", cfg.KVBackend,
	)

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

	worker := app.StartBackground(ctx)
	srv := newHTTPServer(":"+cfg.Port, app.Router())

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	waitForWorker(worker, shutdownTimeout, logger)

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// newHTTPServer applies the timeouts used in every environment. WriteTimeout
// stays zero so the staff queue websocket is not cut off.
func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func waitForWorker(worker *assistant.Worker, timeout time.Duration, logger *logging.Logger) bool {
	if worker == nil {
		return true
	}
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("inline assistant worker stopped")
		return true
	case <-time.After(timeout):
		logger.Error("inline assistant worker shutdown timed out")
		return false
	}
}
