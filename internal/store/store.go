// Package store defines the ports a record store must satisfy. Concrete
// implementations live in the memory, remote, storage and sheets packages.
package store

import (
	"context"
	"errors"

	"gastos/internal/core"
)

var (
	// ErrNotFound is returned when no record carries the requested id.
	ErrNotFound = errors.New("expense not found")
	// ErrIDAssigned is returned by Create for a record that already has an id.
	ErrIDAssigned = errors.New("new expense must not carry an id")
)

// Ports for record stores.
type (
	Creator interface {
		// Create persists e and returns it with its store-assigned ID.
		Create(ctx context.Context, e core.Expense) (core.Expense, error)
	}

	Lister interface {
		// List returns every record in store order.
		List(ctx context.Context) ([]core.Expense, error)
	}

	Updater interface {
		// Update replaces the record with e.ID and returns the stored record.
		Update(ctx context.Context, e core.Expense) (core.Expense, error)
	}

	Deleter interface {
		Delete(ctx context.Context, id string) error
	}

	Store interface {
		Creator
		Lister
		Updater
		Deleter
	}
)
