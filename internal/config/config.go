package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	PublicBaseURL  string
	LogLevel       string
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int

	// Key-value backend for the persisted collections and session markers.
	KVBackend     string
	KeyPrefix     string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	DatabaseURL   string
	KVTable       string
	MongoURI      string
	MongoDatabase string
	SQLitePath    string

	SessionSecret string
	SessionTTL    time.Duration

	QueueRefreshInterval time.Duration

	// Assistant (AI) configuration
	AIProvider          string
	GeminiAPIKey        string
	GeminiModel         string
	BedrockModelID      string
	AITimeout           time.Duration
	UseMemoryQueue      bool
	WorkerCount         int
	AssistantQueueURL   string
	AssistantTasksTable string
	ImageBucket         string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Email configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	SMTPFromEmail     string

	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTTopicPrefix string
	// EventOutbox stages domain events in Postgres before delivery.
	EventOutbox     bool

	AuditDatabaseURL string
}

// Load reads configuration from environment variables
func Load() *Config {
	databaseURL := getEnv("DATABASE_URL", "")
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 40),

		KVBackend:     strings.ToLower(strings.TrimSpace(getEnv("KV_BACKEND", "memory"))),
		KeyPrefix:     getEnv("KV_KEY_PREFIX", "derma_"),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		DatabaseURL:   databaseURL,
		KVTable:       getEnv("KV_TABLE", "lume_kv"),
		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "lumeskin"),
		SQLitePath:    getEnv("SQLITE_PATH", "lumeskin.db"),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		QueueRefreshInterval: getEnvAsDuration("QUEUE_REFRESH_INTERVAL", 30*time.Second),

		AIProvider:          strings.ToLower(strings.TrimSpace(getEnv("AI_PROVIDER", "auto"))),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-3-flash-preview"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		AITimeout:           getEnvAsDuration("AI_TIMEOUT", 0),
		UseMemoryQueue:      getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:         getEnvAsInt("WORKER_COUNT", 2),
		AssistantQueueURL:   getEnv("ASSISTANT_QUEUE_URL", ""),
		AssistantTasksTable: getEnv("ASSISTANT_TASKS_TABLE", ""),
		ImageBucket:         getEnv("IMAGE_BUCKET", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Lume Skin"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SMTPFromEmail:     getEnv("SMTP_FROM_EMAIL", ""),

		MQTTBrokerURL:   getEnv("MQTT_BROKER_URL", ""),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "lumeskin-api"),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "lumeskin"),
		EventOutbox:     getEnvAsBool("EVENT_OUTBOX", false),

		AuditDatabaseURL: getEnv("AUDIT_DATABASE_URL", databaseURL),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
