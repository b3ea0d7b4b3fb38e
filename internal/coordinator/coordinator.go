// Package coordinator keeps the canonical expense collection in memory,
// applies the current filter criteria and derives the view the UI shows.
//
// The collection is loaded once and then kept in step with the store from
// each mutation's own result. A mutation that fails leaves the collection
// and the view exactly as they were.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gastos/internal/aggregate"
	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/store"
)

// DefaultTimeout bounds each store call.
const DefaultTimeout = 10 * time.Second

var (
	// ErrDuplicateID means a store result would put the same id twice in
	// the collection.
	ErrDuplicateID = errors.New("duplicate expense id")
	// ErrIDChanged means the store answered an update with another id.
	ErrIDChanged = errors.New("store changed the expense id")
)

// View is a consistent snapshot for rendering. Summary covers the filtered
// Expenses; Categories come from the whole collection.
type View struct {
	Expenses   []core.Expense     `json:"expenses"`
	Summary    core.Summary       `json:"summary"`
	Categories []string           `json:"categories"`
	Criteria   aggregate.Criteria `json:"criteria"`
	Loaded     bool               `json:"loaded"`
}

type Coordinator struct {
	store   store.Store
	timeout time.Duration
	logger  *log.Logger

	// mu is held for writing across each store call so readers never see
	// a mutation in flight.
	mu       sync.RWMutex
	records  []core.Expense
	criteria aggregate.Criteria
	loaded   bool
}

type Option func(*Coordinator)

// WithTimeout sets the per-call store timeout; zero or negative disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

func New(st store.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   st,
		timeout: DefaultTimeout,
		logger:  log.Default(log.ComponentCoordinator),
		records: make([]core.Expense, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Load replaces the collection with the store's records.
func (c *Coordinator) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	records, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}
	seen := make(map[string]struct{}, len(records))
	for _, e := range records {
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("load expenses: %w: %q", ErrDuplicateID, e.ID)
		}
		seen[e.ID] = struct{}{}
	}

	c.records = append(make([]core.Expense, 0, len(records)), records...)
	c.loaded = true
	c.logger.InfoContext(ctx, "Expenses loaded", log.FieldOperation, log.OpLoad, log.FieldCount, len(records))
	return nil
}

// Reload re-reads the whole collection on operator request.
func (c *Coordinator) Reload(ctx context.Context) error {
	return c.Load(ctx)
}

// Add creates draft in the store and appends the stored record.
func (c *Coordinator) Add(ctx context.Context, draft core.Expense) (core.Expense, error) {
	if draft.ID != "" {
		return core.Expense{}, store.ErrIDAssigned
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	created, err := c.store.Create(ctx, draft)
	if err != nil {
		return core.Expense{}, err
	}
	if created.ID == "" {
		return core.Expense{}, fmt.Errorf("add expense: store returned no id")
	}
	if c.indexOf(created.ID) >= 0 {
		return core.Expense{}, fmt.Errorf("add expense: %w: %q", ErrDuplicateID, created.ID)
	}

	c.records = append(c.records, created)
	return created, nil
}

// Edit updates an existing record in place, keeping its position.
func (c *Coordinator) Edit(ctx context.Context, e core.Expense) (core.Expense, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(e.ID)
	if i < 0 {
		return core.Expense{}, store.ErrNotFound
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	updated, err := c.store.Update(ctx, e)
	if err != nil {
		return core.Expense{}, err
	}
	if updated.ID != e.ID {
		return core.Expense{}, fmt.Errorf("edit expense %q: %w (got %q)", e.ID, ErrIDChanged, updated.ID)
	}

	c.records[i] = updated
	return updated, nil
}

// Remove deletes id from the store, then from the collection.
func (c *Coordinator) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return store.ErrNotFound
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}

	c.records = append(c.records[:i:i], c.records[i+1:]...)
	return nil
}

func (c *Coordinator) SetCriteria(criteria aggregate.Criteria) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.criteria = criteria
}

func (c *Coordinator) ClearCriteria() {
	c.SetCriteria(aggregate.Criteria{})
}

// View derives the current snapshot. All slices are fresh copies.
func (c *Coordinator) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	filtered := c.criteria.Apply(c.records)
	return View{
		Expenses:   filtered,
		Summary:    aggregate.Summarize(filtered),
		Categories: aggregate.DistinctCategories(c.records),
		Criteria:   c.criteria,
		Loaded:     c.loaded,
	}
}

// Get looks id up in the unfiltered collection.
func (c *Coordinator) Get(id string) (core.Expense, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(id); i >= 0 {
		return c.records[i], true
	}
	return core.Expense{}, false
}

// Loaded reports whether the collection has been read from the store.
func (c *Coordinator) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *Coordinator) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range c.records {
		if c.records[i].ID == id {
			return i
		}
	}
	return -1
}
