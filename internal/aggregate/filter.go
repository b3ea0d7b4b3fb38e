package aggregate

import (
	"fmt"
	"strings"

	"gastos/internal/core"
)

// DateRange bounds expenses by calendar day, both ends inclusive. An empty
// bound is absent and always satisfied.
type DateRange struct {
	Start core.Date `json:"start,omitempty"`
	End   core.Date `json:"end,omitempty"`
}

// NewDateRange builds a range from raw user input. Blank values are
// absent bounds; anything else must parse as a date. Start after End is
// accepted and simply matches nothing.
func NewDateRange(start, end string) (DateRange, error) {
	var r DateRange
	if s := strings.TrimSpace(start); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			return DateRange{}, fmt.Errorf("start %q: %w", s, err)
		}
		r.Start = d
	}
	if s := strings.TrimSpace(end); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			return DateRange{}, fmt.Errorf("end %q: %w", s, err)
		}
		r.End = d
	}
	return r, nil
}

// Contains compares d lexically against the bounds, which for canonical
// dates is calendar order.
func (r DateRange) Contains(d core.Date) bool {
	if r.Start != "" && d < r.Start {
		return false
	}
	if r.End != "" && d > r.End {
		return false
	}
	return true
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.Start == "" && r.End == ""
}

// Criteria is the complete set of filter constraints. The zero value
// matches every record.
type Criteria struct {
	Category string    `json:"category,omitempty"`
	Range    DateRange `json:"range"`
}

// Matches reports whether e satisfies all constraints.
func (c Criteria) Matches(e core.Expense) bool {
	if c.Category != "" && e.Category != c.Category {
		return false
	}
	return c.Range.Contains(e.Date)
}

// Apply is Filter with the receiver's constraints.
func (c Criteria) Apply(records []core.Expense) []core.Expense {
	return Filter(records, c.Category, c.Range)
}

// IsZero reports whether the criteria match every record.
func (c Criteria) IsZero() bool {
	return c.Category == "" && c.Range.IsZero()
}

// Filter returns the records matching category (exact, case-sensitive; empty
// means any) and r, preserving their relative order.
func Filter(records []core.Expense, category string, r DateRange) []core.Expense {
	c := Criteria{Category: category, Range: r}
	out := make([]core.Expense, 0, len(records))
	for _, e := range records {
		if c.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}
