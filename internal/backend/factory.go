package backend

import (
	"context"
	"errors"
	"fmt"

	"moneymanager/internal/amqp"
	"moneymanager/internal/log"
	"moneymanager/internal/services"
	"moneymanager/internal/storage"
)

var _ services.EventPublisher = (*amqp.Client)(nil)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backend config: %w", err)
	}

	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// Initialize AMQP client (optional)
	var (
		amqpClient *amqp.Client
		publisher  services.EventPublisher
	)
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
			amqpClient = nil
		} else {
			publisher = amqpClient
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	svcConfig := services.DefaultConfig()
	if config.EditWindow > 0 {
		svcConfig.EditWindow = config.EditWindow
	}

	f.logger.InfoContext(ctx, "Initialized ledger backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", amqpClient != nil,
		"edit_window", svcConfig.EditWindow)

	return &BackendResult{
		Services:   services.New(repo, publisher, svcConfig),
		Repository: repo,
		Events:     amqpClient,
		Cleanup:    closeAll(repo, amqpClient),
	}, nil
}

// closeAll closes the AMQP client first so no event is published against a
// closed store.
func closeAll(repo *storage.SQLiteRepository, client *amqp.Client) CleanupFunc {
	return func() error {
		var errs []error
		if client != nil {
			if err := client.Close(); err != nil {
				errs = append(errs, fmt.Errorf("amqp: %w", err))
			}
		}
		if err := repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
		return errors.Join(errs...)
	}
}
