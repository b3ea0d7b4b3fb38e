// Package backend builds the record store selected by configuration and
// wraps it in the expense service, optionally publishing events to AMQP.
package backend

import (
	"context"

	"gastos/internal/store"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the store and its cleanup function.
type BackendResult struct {
	// Store validates at the boundary and publishes events when enabled.
	Store store.Store
	// Raw is the underlying store without validation or events. The mirror
	// worker reconciles from it.
	Raw     store.Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Memory
	SeedFile string

	// SQLite
	SQLiteDBPath string

	// Remote HTTP service
	RemoteBaseURL string

	// Google Sheets
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Events, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	RemoteBackend BackendType = "remote"
	SheetsBackend BackendType = "sheets"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, RemoteBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
