package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/lumeskin-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/lumeskin-platform/internal/config"
	"github.com/wolfman30/lumeskin-platform/internal/kv"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

func memoryConfig() *appconfig.Config {
	return &appconfig.Config{
		Env:            "test",
		KVBackend:      kv.BackendMemory,
		KeyPrefix:      "derma_",
		AIProvider:     bootstrap.ProviderNone,
		UseMemoryQueue: true,
		WorkerCount:    1,
		AllowedOrigins: []string{"*"},
	}
}

func TestNewHTTPServerTimeouts(t *testing.T) {
	srv := newHTTPServer(":0", http.NotFoundHandler())
	assert.Equal(t, ":0", srv.Addr)
	assert.Equal(t, 15*time.Second, srv.ReadTimeout)
	assert.Equal(t, 60*time.Second, srv.IdleTimeout)
	assert.Zero(t, srv.WriteTimeout)
}

func TestWaitForWorkerNil(t *testing.T) {
	assert.True(t, waitForWorker(nil, time.Millisecond, logging.New("error")))
}

func TestServerLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := logging.New("error")

	app, err := bootstrap.Build(ctx, memoryConfig(), logger, bootstrap.Options{AWS: aws.Config{Region: "us-east-1"}})
	require.NoError(t, err)
	defer app.Close(context.Background())

	worker := app.StartBackground(ctx)
	require.NotNil(t, worker)

	srv := httptest.NewServer(newHTTPServer(":0", app.Router()).Handler)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	srv.Close()

	cancel()
	assert.True(t, waitForWorker(worker, 5*time.Second, logger))
}
