package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/wolfman30/lumeskin-platform/internal/assistant"
	"github.com/wolfman30/lumeskin-platform/internal/audit"
	appconfig "github.com/wolfman30/lumeskin-platform/internal/config"
	"github.com/wolfman30/lumeskin-platform/internal/events"
	"github.com/wolfman30/lumeskin-platform/internal/notify"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

// AI_PROVIDER values.
const (
	ProviderAuto    = "auto"
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
	ProviderNone    = "none"
)

// BuildEmailSender picks the first configured transport: SendGrid, SES, SMTP.
// Without any, emails are only logged.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (notify.EmailSender, string) {
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey: cfg.SendGridAPIKey,
		From:   notify.Mailbox{Address: cfg.SendGridFromEmail, Name: cfg.SendGridFromName},
	}, logger); sg != nil {
		return sg, "sendgrid"
	}
	if strings.TrimSpace(cfg.SESFromEmail) != "" {
		ses := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			From: notify.Mailbox{Address: cfg.SESFromEmail, Name: cfg.SendGridFromName},
		}, logger)
		return ses, "ses"
	}
	if smtp := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     notify.Mailbox{Address: cfg.SMTPFromEmail, Name: cfg.SendGridFromName},
	}, logger); smtp != nil {
		return smtp, "smtp"
	}
	return notify.NewLogSender(logger), "log"
}

// BuildEventPublisher returns the MQTT publisher when a broker is configured,
// otherwise a log publisher. With EVENT_OUTBOX and a pool, events are staged
// in Postgres and a Deliverer forwards them; the caller starts it.
func BuildEventPublisher(cfg *appconfig.Config, pool *pgxpool.Pool, logger *logging.Logger) (events.Publisher, *events.Deliverer, func()) {
	var sink events.Publisher = events.NewLogPublisher(logger)
	release := func() {}
	if strings.TrimSpace(cfg.MQTTBrokerURL) != "" {
		mqttPub, err := events.ConnectMQTT(events.MQTTConfig{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			QoS:         1,
		}, logger)
		if err != nil {
			logger.Warn("mqtt unavailable; logging events instead", "error", err)
		} else {
			sink = mqttPub
			release = mqttPub.Close
		}
	}
	if !cfg.EventOutbox {
		return sink, nil, release
	}
	if pool == nil {
		logger.Warn("EVENT_OUTBOX set without DATABASE_URL; publishing directly")
		return sink, nil, release
	}
	outbox := events.NewOutboxStore(pool)
	return events.NewOutboxPublisher(outbox), events.NewDeliverer(outbox, sink, logger), release
}

// BuildAuditService opens the audit database, or returns nil when
// AUDIT_DATABASE_URL is unset.
func BuildAuditService(cfg *appconfig.Config) (*audit.Service, *sql.DB, error) {
	if strings.TrimSpace(cfg.AuditDatabaseURL) == "" {
		return nil, nil, nil
	}
	db, err := sql.Open("postgres", cfg.AuditDatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: open audit db: %w", err)
	}
	return audit.NewService(db), db, nil
}

// BuildAssistantModel wires the generative model named by AI_PROVIDER. With
// auto, Gemini is primary and Bedrock the fallback when both are configured.
// A nil model makes every task settle FAILED with the fixed fallback.
func BuildAssistantModel(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (assistant.Model, func(), error) {
	release := func() {}
	var gemini assistant.Model
	var bedrock assistant.Model

	wantGemini := cfg.AIProvider == ProviderGemini || cfg.AIProvider == ProviderAuto || cfg.AIProvider == ""
	wantBedrock := cfg.AIProvider == ProviderBedrock || cfg.AIProvider == ProviderAuto || cfg.AIProvider == ""

	switch cfg.AIProvider {
	case "", ProviderAuto, ProviderGemini, ProviderBedrock, ProviderNone:
	default:
		return nil, release, fmt.Errorf("bootstrap: unknown AI_PROVIDER %q", cfg.AIProvider)
	}

	if wantGemini && strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		g, err := assistant.NewGeminiModel(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, release, err
		}
		gemini = g
		release = func() { _ = g.Close() }
	}
	if wantBedrock && strings.TrimSpace(cfg.BedrockModelID) != "" {
		bedrock = assistant.NewBedrockModel(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
	}

	switch {
	case gemini != nil && bedrock != nil:
		logger.Info("assistant model configured", "primary", gemini.Name(), "fallback", bedrock.Name())
		return assistant.NewFallbackModel(gemini, bedrock, logger), release, nil
	case gemini != nil:
		logger.Info("assistant model configured", "primary", gemini.Name())
		return gemini, release, nil
	case bedrock != nil:
		logger.Info("assistant model configured", "primary", bedrock.Name())
		return bedrock, release, nil
	}
	if cfg.AIProvider != ProviderNone {
		logger.Warn("no assistant model configured; AI tasks will return the fallback", "provider", cfg.AIProvider)
	}
	return nil, release, nil
}

// AssistantPipeline is the queue, task store and optional image store shared
// by the API (publishing) and the worker (consuming).
type AssistantPipeline struct {
	Queue  assistant.TaskQueue
	Tasks  assistant.TaskStore
	Images assistant.ImageStore
	// Inline is true when the queue lives in this process and the API must
	// run the worker itself.
	Inline bool
}

// BuildAssistantPipeline uses the in-process queue and task store when
// USE_MEMORY_QUEUE is set, otherwise SQS and DynamoDB.
func BuildAssistantPipeline(cfg *appconfig.Config, awsCfg aws.Config) (AssistantPipeline, error) {
	var p AssistantPipeline
	if strings.TrimSpace(cfg.ImageBucket) != "" {
		p.Images = assistant.NewS3ImageStore(s3.NewFromConfig(awsCfg), cfg.ImageBucket)
	}
	if cfg.UseMemoryQueue {
		p.Queue = assistant.NewMemoryQueue(0)
		p.Tasks = assistant.NewMemoryTaskStore()
		p.Inline = true
		return p, nil
	}
	if strings.TrimSpace(cfg.AssistantQueueURL) == "" || strings.TrimSpace(cfg.AssistantTasksTable) == "" {
		return p, fmt.Errorf("bootstrap: ASSISTANT_QUEUE_URL and ASSISTANT_TASKS_TABLE are required without USE_MEMORY_QUEUE")
	}
	p.Queue = assistant.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.AssistantQueueURL)
	p.Tasks = assistant.NewDynamoTaskStore(dynamodb.NewFromConfig(awsCfg), cfg.AssistantTasksTable)
	return p, nil
}
