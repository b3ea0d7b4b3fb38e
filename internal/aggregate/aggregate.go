// Package aggregate derives display views from a collection of expenses:
// totals, per-category totals, the set of known categories and filtered
// subsets.
//
// Every function is a pure function of its arguments. Inputs are never
// modified and every result is freshly allocated, so callers may share the
// same input slice across goroutines.
package aggregate

import (
	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

// Total returns the exact sum of all amounts. An empty input sums to zero.
func Total(records []core.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total
}

// CategoryTotals sums amounts per category. Entries appear in the order in
// which each category first occurs in records.
func CategoryTotals(records []core.Expense) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0)
	index := make(map[string]int)
	for _, r := range records {
		i, ok := index[r.Category]
		if !ok {
			index[r.Category] = len(out)
			out = append(out, core.CategoryAmount{Name: r.Category, Amount: r.Amount})
			continue
		}
		out[i].Amount = out[i].Amount.Add(r.Amount)
	}
	return out
}

// DistinctCategories returns each category once, in first-occurrence order.
func DistinctCategories(records []core.Expense) []string {
	out := make([]string, 0)
	seen := make(map[string]struct{})
	for _, r := range records {
		if _, ok := seen[r.Category]; ok {
			continue
		}
		seen[r.Category] = struct{}{}
		out = append(out, r.Category)
	}
	return out
}

// Summarize computes the total and per-category totals in one call.
func Summarize(records []core.Expense) core.Summary {
	return core.Summary{
		Total:      Total(records),
		ByCategory: CategoryTotals(records),
		Count:      len(records),
	}
}
