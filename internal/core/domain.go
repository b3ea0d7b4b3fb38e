package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar date representation.
const DateLayout = "2006-01-02"

// MaxDescriptionLength bounds the optional free-text description, in
// characters.
const MaxDescriptionLength = 200

type (
	// Date is a calendar day in canonical YYYY-MM-DD form. Canonical dates
	// compare lexically in calendar order.
	Date string

	Expense struct {
		ID          string          `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Date        Date            `json:"date"`
		Description string          `json:"description,omitempty"`
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyCategory      = errors.New("empty category")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

// accepted input layouts, tried in order; all are truncated to the day.
var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
}

// NewDate creates a Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date(time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Format(DateLayout))
}

// ParseDate normalizes s into a canonical Date. Timestamps keep only their
// calendar day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date(t.Format(DateLayout)), nil
		}
	}
	return "", ErrInvalidDate
}

// Validate reports whether d is a canonical calendar date.
func (d Date) Validate() error {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return ErrInvalidDate
	}
	if t.Format(DateLayout) != string(d) {
		return ErrInvalidDate
	}
	return nil
}

// IsEmpty returns true for the absent date
func (d Date) IsEmpty() bool {
	return d == ""
}

func (d Date) String() string {
	return string(d)
}

// Time returns the date at midnight UTC. The zero time is returned for
// non-canonical dates.
func (d Date) Time() time.Time {
	t, _ := time.Parse(DateLayout, string(d))
	return t
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}
