package backend

import (
	"fmt"
	"time"

	"moneymanager/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	SQLiteDBPath string

	// AMQP is optional; without it no ledger events are published
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	EditWindow time.Duration
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	return Config{
		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
		EditWindow:   appConfig.EditWindow,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required")
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is set")
	}
	if c.EditWindow < 0 {
		return fmt.Errorf("edit window cannot be negative: %v", c.EditWindow)
	}
	return nil
}
