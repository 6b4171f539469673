// Package kv provides the key-value backends that hold the clinic's JSON
// collections and session markers. Every backend stores opaque byte values.
package kv

import (
	"context"
	"errors"
)

// ErrEmptyKey is returned when an operation is given a blank key.
var ErrEmptyKey = errors.New("kv: key required")

// Backend is the minimal contract the store needs. Get reports found=false,
// with a nil error, when the key does not exist.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Backend names accepted by KV_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
	BackendMongo    = "mongo"
	BackendSQLite   = "sqlite"
)
