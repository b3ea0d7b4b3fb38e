// Package services holds the application service that sits between the
// view coordinator and a record store: it validates records at the
// boundary, calls the store and publishes the resulting events.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/store"
)

// ErrMissingID is returned by Update and Delete for an empty id.
var ErrMissingID = errors.New("expense id is required")

// Publisher receives an event after each successful mutation.
type Publisher interface {
	PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
}

// ExpenseService validates records and forwards them to a store. It
// satisfies store.Store itself, so callers need not know it is there.
type ExpenseService struct {
	store     store.Store
	publisher Publisher
	logger    *log.Logger
}

var _ store.Store = (*ExpenseService)(nil)

// NewExpenseService wires st and an optional publisher (nil disables events).
func NewExpenseService(st store.Store, publisher Publisher) *ExpenseService {
	return &ExpenseService{
		store:     st,
		publisher: publisher,
		logger:    log.Default(log.ComponentExpense),
	}
}

func normalize(e core.Expense) core.Expense {
	e.ID = strings.TrimSpace(e.ID)
	e.Category = strings.TrimSpace(e.Category)
	e.Description = strings.TrimSpace(e.Description)
	return e
}

// Create validates e, stores it and publishes a created event.
func (s *ExpenseService) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	e = normalize(e)
	if e.ID != "" {
		return core.Expense{}, store.ErrIDAssigned
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	created, err := s.store.Create(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	if created.ID == "" {
		return core.Expense{}, fmt.Errorf("create expense: store returned no id")
	}

	s.logger.InfoContext(ctx, "Expense created", log.NewFields().WithExpense(created).ToSlice()...)
	s.publish(ctx, amqp.NewCreatedEvent(created))
	return created, nil
}

// List returns the stored records, dropping any that fail validation.
func (s *ExpenseService) List(ctx context.Context) ([]core.Expense, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.Expense, 0, len(records))
	for _, e := range records {
		if err := e.Validate(); err != nil || e.ID == "" {
			s.logger.WarnContext(ctx, "Dropping invalid stored expense",
				log.FieldExpenseID, e.ID, log.FieldError, err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *ExpenseService) Update(ctx context.Context, e core.Expense) (core.Expense, error) {
	e = normalize(e)
	if e.ID == "" {
		return core.Expense{}, ErrMissingID
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	updated, err := s.store.Update(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", e.ID, err)
	}

	s.logger.InfoContext(ctx, "Expense updated", log.NewFields().WithExpense(updated).ToSlice()...)
	s.publish(ctx, amqp.NewUpdatedEvent(updated))
	return updated, nil
}

func (s *ExpenseService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrMissingID
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Expense deleted", log.FieldExpenseID, id)
	s.publish(ctx, amqp.NewDeletedEvent(id))
	return nil
}

// publish never fails the mutation: the record is already stored.
func (s *ExpenseService) publish(ctx context.Context, ev *amqp.ExpenseEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			log.FieldEventType, ev.Type,
			log.FieldExpenseID, ev.ID,
			log.FieldError, err)
	}
}

// Close closes the store and publisher when they hold resources.
func (s *ExpenseService) Close() error {
	var errs []error
	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}
