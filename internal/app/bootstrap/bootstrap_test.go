package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/lumeskin-platform/internal/config"
	"github.com/wolfman30/lumeskin-platform/internal/events"
	"github.com/wolfman30/lumeskin-platform/internal/kv"
	"github.com/wolfman30/lumeskin-platform/internal/notify"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		Env:                  "test",
		KVBackend:            kv.BackendMemory,
		KeyPrefix:            "derma_",
		AIProvider:           ProviderNone,
		UseMemoryQueue:       true,
		WorkerCount:          1,
		SMTPPort:             587,
		SendGridFromName:     "Lume Skin",
		AllowedOrigins:       []string{"*"},
		RateLimitRPS:         50,
		RateLimitBurst:       50,
		QueueRefreshInterval: 0,
	}
}

func testAWS() aws.Config {
	return aws.Config{Region: "us-east-1"}
}

func TestBuildRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()

	client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true)
	require.NotNil(t, client)
	defer client.Close()

	cfg.RedisAddr = ""
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, nil, true))

	cfg.RedisAddr = "127.0.0.1:1"
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.New("error"), true))
}

func TestBuildKVBackend(t *testing.T) {
	ctx := context.Background()
	logger := logging.New("error")

	cfg := testConfig()
	backend, release, err := BuildKVBackend(ctx, cfg, testAWS(), nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &kv.MemoryBackend{}, backend)
	require.NoError(t, release(ctx))

	mr := miniredis.RunT(t)
	cfg.KVBackend = kv.BackendRedis
	cfg.RedisAddr = mr.Addr()
	backend, release, err = BuildKVBackend(ctx, cfg, testAWS(), nil, logger)
	require.NoError(t, err)
	require.NoError(t, backend.Set(ctx, "derma_users", []byte("[]")))
	assert.True(t, mr.Exists("derma_users"))
	require.NoError(t, release(ctx))

	cfg.KVBackend = kv.BackendSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "lume.db")
	backend, release, err = BuildKVBackend(ctx, cfg, testAWS(), nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &kv.SQLiteBackend{}, backend)
	require.NoError(t, release(ctx))

	cfg.KVBackend = kv.BackendPostgres
	_, _, err = BuildKVBackend(ctx, cfg, testAWS(), nil, logger)
	assert.ErrorContains(t, err, "DATABASE_URL")

	cfg.KVBackend = kv.BackendDynamoDB
	cfg.KVTable = ""
	_, _, err = BuildKVBackend(ctx, cfg, testAWS(), nil, logger)
	assert.ErrorContains(t, err, "KV_TABLE")

	cfg.KVBackend = "etcd"
	_, _, err = BuildKVBackend(ctx, cfg, testAWS(), nil, logger)
	assert.ErrorContains(t, err, "unknown KV_BACKEND")
}

func TestBuildEmailSenderPrecedence(t *testing.T) {
	logger := logging.New("error")
	cfg := testConfig()

	sender, name := BuildEmailSender(cfg, testAWS(), logger)
	assert.Equal(t, "log", name)
	assert.IsType(t, &notify.LogSender{}, sender)

	cfg.SMTPHost = "smtp.example.com"
	_, name = BuildEmailSender(cfg, testAWS(), logger)
	assert.Equal(t, "smtp", name)

	cfg.SESFromEmail = "desk@lumeskin.example"
	_, name = BuildEmailSender(cfg, testAWS(), logger)
	assert.Equal(t, "ses", name)

	cfg.SendGridAPIKey = "SG.test"
	_, name = BuildEmailSender(cfg, testAWS(), logger)
	assert.Equal(t, "sendgrid", name)
}

func TestBuildEventPublisherFallsBackToLog(t *testing.T) {
	cfg := testConfig()
	cfg.EventOutbox = true

	pub, deliverer, release := BuildEventPublisher(cfg, nil, logging.New("error"))
	defer release()
	assert.IsType(t, &events.LogPublisher{}, pub)
	assert.Nil(t, deliverer, "no outbox without a pool")
}

func TestBuildAssistantModel(t *testing.T) {
	ctx := context.Background()
	logger := logging.New("error")
	cfg := testConfig()

	model, release, err := BuildAssistantModel(ctx, cfg, testAWS(), logger)
	require.NoError(t, err)
	release()
	assert.Nil(t, model)

	cfg.AIProvider = ProviderBedrock
	cfg.BedrockModelID = "anthropic.claude-3-haiku"
	model, _, err = BuildAssistantModel(ctx, cfg, testAWS(), logger)
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.Equal(t, "anthropic.claude-3-haiku", model.Name())

	cfg.AIProvider = "openai"
	_, _, err = BuildAssistantModel(ctx, cfg, testAWS(), logger)
	assert.Error(t, err)
}

func TestBuildAssistantPipeline(t *testing.T) {
	cfg := testConfig()
	p, err := BuildAssistantPipeline(cfg, testAWS())
	require.NoError(t, err)
	assert.True(t, p.Inline)
	assert.Nil(t, p.Images)

	cfg.UseMemoryQueue = false
	_, err = BuildAssistantPipeline(cfg, testAWS())
	assert.Error(t, err)

	cfg.AssistantQueueURL = "https://sqs.us-east-1.amazonaws.com/123/lume-assistant"
	cfg.AssistantTasksTable = "lume-assistant-tasks"
	cfg.ImageBucket = "lume-images"
	p, err = BuildAssistantPipeline(cfg, testAWS())
	require.NoError(t, err)
	assert.False(t, p.Inline)
	assert.NotNil(t, p.Images)
}

func TestBuildAppServesRouter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := Build(ctx, testConfig(), logging.New("error"), Options{AWS: testAWS()})
	require.NoError(t, err)
	defer app.Close(context.Background())
	worker := app.StartBackground(ctx)
	require.NotNil(t, worker)
	defer func() {
		cancel()
		worker.Wait()
	}()

	srv := httptest.NewServer(app.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/auth/login", "application/json",
		strings.NewReader(`{"email":"admin@derma.com","role":"PATIENT"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBuildRequiresConfig(t *testing.T) {
	_, err := Build(context.Background(), nil, nil, Options{})
	assert.Error(t, err)
}
