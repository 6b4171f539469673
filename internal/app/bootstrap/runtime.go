package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appconfig "github.com/wolfman30/lumeskin-platform/internal/config"
	"github.com/wolfman30/lumeskin-platform/internal/kv"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

const mongoCollection = "kv_store"

// closer releases a resource built during bootstrap.
type closer func(context.Context) error

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err, "addr", cfg.RedisAddr)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildPostgresPool connects to DATABASE_URL, or returns nil when it is unset.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, nil
}

// BuildKVBackend selects the store backend named by KV_BACKEND. pool is only
// consulted for the postgres backend.
func BuildKVBackend(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, pool *pgxpool.Pool, logger *logging.Logger) (kv.Backend, closer, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	noop := func(context.Context) error { return nil }

	switch cfg.KVBackend {
	case "", kv.BackendMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return kv.NewMemoryBackend(), noop, nil

	case kv.BackendRedis:
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return nil, nil, fmt.Errorf("bootstrap: redis backend unavailable at %s", cfg.RedisAddr)
		}
		return kv.NewRedisBackend(client), func(context.Context) error { return client.Close() }, nil

	case kv.BackendPostgres:
		if pool == nil {
			return nil, nil, fmt.Errorf("bootstrap: postgres backend requires DATABASE_URL")
		}
		return kv.NewPostgresBackend(pool), noop, nil

	case kv.BackendDynamoDB:
		if strings.TrimSpace(cfg.KVTable) == "" {
			return nil, nil, fmt.Errorf("bootstrap: dynamodb backend requires KV_TABLE")
		}
		return kv.NewDynamoBackend(dynamodb.NewFromConfig(awsCfg), cfg.KVTable), noop, nil

	case kv.BackendMongo:
		if strings.TrimSpace(cfg.MongoURI) == "" {
			return nil, nil, fmt.Errorf("bootstrap: mongo backend requires MONGO_URI")
		}
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: connect mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, fmt.Errorf("bootstrap: ping mongo: %w", err)
		}
		coll := client.Database(cfg.MongoDatabase).Collection(mongoCollection)
		return kv.NewMongoBackend(coll), client.Disconnect, nil

	case kv.BackendSQLite:
		backend, err := kv.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: open sqlite: %w", err)
		}
		return backend, func(context.Context) error { return backend.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown KV_BACKEND %q", cfg.KVBackend)
	}
}
