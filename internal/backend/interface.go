package backend

import (
	"context"

	"moneymanager/internal/amqp"
	"moneymanager/internal/services"
	"moneymanager/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the wired ledger and the resources behind it
type BackendResult struct {
	Services   *services.Services
	Repository *storage.SQLiteRepository
	// Events is nil when AMQP is not configured or unreachable
	Events  *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the store, connects AMQP if configured and wires the services
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
