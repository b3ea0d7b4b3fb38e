// Package storage is the SQLite record store. Amounts are kept as exact
// decimal strings and records are listed in insertion order.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/store"

	_ "modernc.org/sqlite"
)

const (
	insertExpense = `INSERT INTO expenses (id, amount, category, date, description)
VALUES (?, ?, ?, ?, ?)`

	listExpenses = `SELECT id, amount, category, date, description FROM expenses ORDER BY seq`

	updateExpense = `UPDATE expenses
SET amount = ?, category = ?, date = ?, description = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

	deleteExpense = `DELETE FROM expenses WHERE id = ?`
	countExpenses = `SELECT COUNT(*) FROM expenses`
)

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

var _ store.Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: log.Default(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Create inserts e under a fresh uuid.
func (r *SQLiteRepository) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID != "" {
		return core.Expense{}, store.ErrIDAssigned
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	e.ID = uuid.NewString()

	_, err := r.db.ExecContext(ctx, insertExpense,
		e.ID, e.Amount.String(), e.Category, e.Date.String(), e.Description)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	r.logger.DebugContext(ctx, "Expense saved to SQLite", log.NewFields().WithExpense(e).ToSlice()...)
	return e, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		var (
			e      core.Expense
			amount string
			date   string
		)
		if err := rows.Scan(&e.ID, &amount, &e.Category, &date, &e.Description); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("expense %s: amount %q: %w", e.ID, amount, err)
		}
		e.Date = core.Date(date)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	res, err := r.db.ExecContext(ctx, updateExpense,
		e.Amount.String(), e.Category, e.Date.String(), e.Description, e.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", e.ID, err)
	}
	if err := expectOneRow(res); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteExpense, id)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	return expectOneRow(res)
}

// Count returns the number of stored records.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countExpenses).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}
