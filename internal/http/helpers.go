package http

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"gastos/internal/coordinator"
	"gastos/internal/core"
	"gastos/internal/services"
	"gastos/internal/store"
	"gastos/internal/store/remote"
)

// sanitizeInput removes control characters (except tab, newline and
// carriage return) and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// wantsJSON reports whether the caller is an API client rather than htmx.
func wantsJSON(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return false
	}
	for _, accept := range strings.Split(r.Header.Get("Accept"), ",") {
		if mt, _, err := mime.ParseMediaType(strings.TrimSpace(accept)); err == nil && mt == "application/json" {
			return true
		}
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

// classifyError maps a mutation error to a status code and a message safe
// to show the user.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest, "Malformed request"
	case errors.Is(err, services.ErrMissingID):
		return http.StatusBadRequest, "Expense id is required"
	case errors.Is(err, store.ErrIDAssigned):
		return http.StatusBadRequest, "A new expense must not carry an id"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Expense not found"
	case errors.Is(err, core.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "Amount must be a non-negative number"
	case errors.Is(err, core.ErrInvalidDate):
		return http.StatusUnprocessableEntity, "Date must be a valid YYYY-MM-DD date"
	case errors.Is(err, core.ErrEmptyCategory):
		return http.StatusUnprocessableEntity, "Category is required"
	case errors.Is(err, core.ErrDescriptionTooLong):
		return http.StatusUnprocessableEntity, "Description is too long (max 200 characters)"
	case errors.Is(err, coordinator.ErrDuplicateID), errors.Is(err, coordinator.ErrIDChanged):
		return http.StatusBadGateway, "The record store returned an inconsistent record"
	case errors.Is(err, remote.ErrUnresolvedCreate):
		return http.StatusBadGateway, "The expense may have been saved but could not be identified, reload to check"
	default:
		return http.StatusBadGateway, "The record store is unavailable, nothing was changed"
	}
}

func errNotFound(id string) error {
	return fmt.Errorf("%w: %q", store.ErrNotFound, id)
}

type errorBody struct {
	Error string `json:"error"`
}

// categoryRow is one bar of the per-category chart.
type categoryRow struct {
	Name   string
	Amount string
	Width  int
}

// barWidths scales category totals to percentages of the largest one.
// Non-zero totals get at least 2% so they stay visible.
func barWidths(totals []core.CategoryAmount, currency string) []categoryRow {
	top := decimal.Zero
	for _, c := range totals {
		if c.Amount.GreaterThan(top) {
			top = c.Amount
		}
	}
	rows := make([]categoryRow, 0, len(totals))
	hundred := decimal.NewFromInt(100)
	for _, c := range totals {
		width := 0
		if top.IsPositive() && c.Amount.IsPositive() {
			width = int(c.Amount.Mul(hundred).Div(top).Round(0).IntPart())
			if width < 2 {
				width = 2
			}
		}
		rows = append(rows, categoryRow{Name: c.Name, Amount: core.FormatAmount(c.Amount, currency), Width: width})
	}
	return rows
}
