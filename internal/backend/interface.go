package backend

import (
	"context"

	"transactions/internal/amqp"
	"transactions/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store, the optional event publisher and a
// cleanup function releasing both.
type BackendResult struct {
	Store store.Store
	// Publisher is nil when AMQP is disabled or unreachable.
	Publisher *amqp.Client
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the store described by config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	PostgresDSN string

	// Mongo specific
	MongoURI      string
	MongoDatabase string

	// Event publishing, optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MongoBackend    BackendType = "mongo"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MongoBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
