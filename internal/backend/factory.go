package backend

import (
	"context"
	"errors"
	"fmt"

	"transactions/internal/amqp"
	"transactions/internal/log"
	"transactions/internal/store"
	"transactions/internal/store/memory"
	"transactions/internal/store/mongo"
	"transactions/internal/store/postgres"
	"transactions/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentStorage),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	st, err := f.openStore(ctx, config)
	if err != nil {
		return nil, err
	}

	publisher := f.openPublisher(config)

	return &BackendResult{
		Store:     st,
		Publisher: publisher,
		Cleanup: func() error {
			var errs []error
			if publisher != nil {
				errs = append(errs, publisher.Close())
			}
			errs = append(errs, st.Close())
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) openStore(ctx context.Context, config Config) (store.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := sqlite.NewRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", log.FieldBackend, config.Type.String(), "db_path", config.SQLiteDBPath)
		return repo, nil

	case PostgresBackend:
		repo, err := postgres.NewRepository(config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Initialized Postgres backend", log.FieldBackend, config.Type.String())
		return repo, nil

	case MongoBackend:
		repo, err := mongo.NewRepository(ctx, config.MongoURI, config.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Mongo repository: %w", err)
		}
		f.logger.Info("Initialized Mongo backend", log.FieldBackend, config.Type.String(), "database", config.MongoDatabase)
		return repo, nil

	case MemoryBackend:
		f.logger.Info("Initialized memory backend", log.FieldBackend, config.Type.String())
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// openPublisher connects to the broker when configured. A broker that is down
// at startup only disables event publishing.
func (f *DefaultFactory) openPublisher(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err.Error())
		return nil
	}

	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
