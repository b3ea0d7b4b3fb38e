package google

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

// Sheet layout: row 1 is the header, one expense per row after it.
var header = []any{"ID", "Date", "Amount", "Category", "Description"}

const (
	colID = iota
	colDate
	colAmount
	colCategory
	colDescription
	numCols
)

// quoteSheet returns an A1 range prefix for name, quoted when needed.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func a1(sheet, rng string) string {
	return quoteSheet(sheet) + "!" + rng
}

func rowRange(sheet string, row int) string {
	return a1(sheet, fmt.Sprintf("A%d:E%d", row, row))
}

func expenseToRow(e core.Expense) []any {
	return []any{e.ID, e.Date.String(), e.Amount.String(), e.Category, e.Description}
}

// rowToExpense decodes one data row. Amounts may come back with a decimal
// comma when the sheet locale uses one.
func rowToExpense(row []any) (core.Expense, error) {
	cols := toStrings(row)
	if len(cols) < colCategory+1 {
		return core.Expense{}, fmt.Errorf("expected %d columns, got %d", numCols, len(cols))
	}
	id := safeGet(cols, colID)
	if id == "" {
		return core.Expense{}, fmt.Errorf("missing id")
	}
	date, err := core.ParseDate(safeGet(cols, colDate))
	if err != nil {
		return core.Expense{}, fmt.Errorf("date %q: %w", safeGet(cols, colDate), err)
	}
	amount, err := parseAmount(safeGet(cols, colAmount))
	if err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{
		ID:          id,
		Date:        date,
		Amount:      amount,
		Category:    safeGet(cols, colCategory),
		Description: safeGet(cols, colDescription),
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if d, err := core.ParseAmount(s); err == nil {
		return d, nil
	}
	// Formatted numbers such as "1,234.50" or "$12.00".
	cleaned := strings.NewReplacer("$", "", "€", "", " ", "").Replace(s)
	if strings.Contains(cleaned, ".") {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}
	return core.ParseAmount(cleaned)
}

// findRow returns the 1-based sheet row holding id, or 0. column is the
// A column as returned by the API, header included.
func findRow(column [][]any, id string) int {
	for i, row := range column {
		if i == 0 || len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// isHeader reports whether row looks like the header row.
func isHeader(row []any) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(fmt.Sprint(row[0])), "id")
}
