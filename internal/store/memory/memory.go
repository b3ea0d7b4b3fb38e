// Package memory implements an in-process record store, optionally seeded
// from a CSV file. It is used for local development and tests.
package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/store"
)

type Store struct {
	mu    sync.Mutex
	items []core.Expense
}

var _ store.Store = (*Store)(nil)

// New returns a store holding seed. Seed records without an id get one.
func New(seed ...core.Expense) *Store {
	s := &Store{items: make([]core.Expense, 0, len(seed))}
	for _, e := range seed {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		s.items = append(s.items, e)
	}
	return s
}

// NewFromFile seeds a store from a CSV file with the columns
// date,amount,category[,description] and an optional header row. Blank
// lines and lines starting with '#' are ignored; invalid rows are skipped
// with a warning. A missing file yields an empty store.
func NewFromFile(path string) *Store {
	logger := log.Default(log.ComponentMemory)
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Cannot open seed file", "path", path, log.FieldError, err)
		}
		return New()
	}
	defer f.Close()

	seed, skipped := ReadCSV(f)
	for _, s := range skipped {
		logger.Warn("Skipping invalid seed row", "path", path, log.FieldError, s)
	}
	logger.Info("Seeded memory store", "path", path, log.FieldCount, len(seed))
	return New(seed...)
}

// ReadCSV parses seed rows. Rows that fail to parse or validate are
// reported in skipped and left out of records.
func ReadCSV(r io.Reader) (records []core.Expense, skipped []error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped = append(skipped, err)
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				continue
			}
			break
		}
		line, _ := cr.FieldPos(0)
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "date") {
			continue // header
		}
		e, err := parseRow(row)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		records = append(records, e)
	}
	return records, skipped
}

func parseRow(row []string) (core.Expense, error) {
	if len(row) < 3 {
		return core.Expense{}, fmt.Errorf("expected at least 3 columns, got %d", len(row))
	}
	date, err := core.ParseDate(row[0])
	if err != nil {
		return core.Expense{}, err
	}
	amount, err := core.ParseAmount(row[1])
	if err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{
		Date:     date,
		Amount:   amount,
		Category: strings.TrimSpace(row[2]),
	}
	if len(row) > 3 {
		e.Description = strings.TrimSpace(row[3])
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// Create stores e under a fresh uuid.
func (s *Store) Create(_ context.Context, e core.Expense) (core.Expense, error) {
	if e.ID != "" {
		return core.Expense{}, store.ErrIDAssigned
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	e.ID = uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	return e, nil
}

// List returns a copy of all records in insertion order.
func (s *Store) List(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.items...), nil
}

func (s *Store) Update(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(e.ID)
	if i < 0 {
		return core.Expense{}, store.ErrNotFound
	}
	s.items[i] = e
	return e, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return store.ErrNotFound
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}
