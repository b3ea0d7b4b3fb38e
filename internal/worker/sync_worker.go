// Package worker mirrors expense events into a secondary store (Google
// Sheets) and periodically reconciles the mirror with the primary store in
// case events were lost.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/store"
)

// Mirror is the write side of the mirrored store.
type Mirror interface {
	Upsert(ctx context.Context, e core.Expense) error
	Delete(ctx context.Context, id string) error
	ReplaceAll(ctx context.Context, records []core.Expense) error
}

// Consumer delivers events until ctx is done.
type Consumer interface {
	ConsumeWithReconnect(ctx context.Context, handler amqp.EventHandler) error
}

// SyncWorker applies expense events to a mirror.
type SyncWorker struct {
	mirror Mirror
	source store.Lister
	logger *log.Logger
}

// NewSyncWorker returns a worker writing to mirror. source may be nil, in
// which case Reconcile is a no-op.
func NewSyncWorker(mirror Mirror, source store.Lister) *SyncWorker {
	return &SyncWorker{
		mirror: mirror,
		source: source,
		logger: log.Default(log.ComponentWorker),
	}
}

// HandleEvent applies one event. Deleting a record the mirror does not
// have is not an error.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	switch ev.Type {
	case amqp.EventCreated, amqp.EventUpdated:
		if err := w.mirror.Upsert(ctx, *ev.Expense); err != nil {
			return fmt.Errorf("mirror %s %s: %w", ev.Type, ev.ID, err)
		}
	case amqp.EventDeleted:
		if err := w.mirror.Delete(ctx, ev.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("mirror delete %s: %w", ev.ID, err)
		}
	}

	w.logger.InfoContext(ctx, "Mirrored expense event",
		log.FieldOperation, log.OpSync,
		log.FieldEventType, ev.Type,
		log.FieldExpenseID, ev.ID)
	return nil
}

// Reconcile overwrites the mirror with the primary store's records.
func (w *SyncWorker) Reconcile(ctx context.Context) error {
	if w.source == nil {
		return nil
	}
	records, err := w.source.List(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: list source: %w", err)
	}
	if err := w.mirror.ReplaceAll(ctx, records); err != nil {
		return fmt.Errorf("reconcile: replace mirror: %w", err)
	}
	w.logger.InfoContext(ctx, "Mirror reconciled",
		log.FieldOperation, log.OpReconcile,
		log.FieldCount, len(records))
	return nil
}

// Run consumes events and, when interval is positive, reconciles once at
// start and then every interval. It returns when ctx is cancelled or the
// consumer fails for good.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer, interval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.ConsumeWithReconnect(ctx, w.HandleEvent)
	})

	if interval > 0 && w.source != nil {
		g.Go(func() error {
			w.reconcileLogged(ctx)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					w.reconcileLogged(ctx)
				}
			}
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// reconcileLogged keeps the loop alive across failures; the next tick
// retries.
func (w *SyncWorker) reconcileLogged(ctx context.Context) {
	if err := w.Reconcile(ctx); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Periodic reconcile failed", log.FieldError, err)
	}
}
