package backend

import (
	"context"
	"fmt"

	"gastos/internal/amqp"
	"gastos/internal/log"
	"gastos/internal/services"
	gsheet "gastos/internal/sheets/google"
	"gastos/internal/storage"
	"gastos/internal/store"
	"gastos/internal/store/memory"
	"gastos/internal/store/remote"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend builds the raw store for config.Type, then wraps it in an
// ExpenseService that publishes to AMQP when configured. A failing AMQP
// connection is logged and the backend runs without events.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	raw, err := f.createStore(ctx, config)
	if err != nil {
		return nil, err
	}

	var publisher services.Publisher
	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			publisher = amqpClient
		}
	}

	svc := services.NewExpenseService(raw, publisher)

	f.logger.Info("Initialized backend",
		log.FieldBackend, config.Type.String(),
		"events_enabled", publisher != nil)

	return &BackendResult{
		Store:   svc,
		Raw:     raw,
		Cleanup: svc.Close,
	}, nil
}

func (f *DefaultFactory) createStore(ctx context.Context, config Config) (store.Store, error) {
	switch config.Type {
	case MemoryBackend:
		if config.SeedFile == "" {
			return memory.New(), nil
		}
		return memory.NewFromFile(config.SeedFile), nil

	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		return repo, nil

	case RemoteBackend:
		cli, err := remote.NewClient(config.RemoteBaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize remote client: %w", err)
		}
		return cli, nil

	case SheetsBackend:
		cli, err := gsheet.New(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		if err := cli.EnsureHeader(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare sheet: %w", err)
		}
		return cli, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
