package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

// wireID is an id as the service sends it: a JSON number or a string.
// Numeric ids are sent back as numbers.
type wireID string

func (id *wireID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = wireID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = wireID(n.String())
	return nil
}

func (id wireID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id wireID) numeric() bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type wireExpense struct {
	ID          wireID      `json:"id,omitempty"`
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Date        string      `json:"date"`
	Description string      `json:"description,omitempty"`
}

func fromCore(e core.Expense) wireExpense {
	return wireExpense{
		ID:          wireID(e.ID),
		Amount:      json.Number(e.Amount.String()),
		Category:    e.Category,
		Date:        e.Date.String(),
		Description: e.Description,
	}
}

// toCore converts and validates a wire record. Timestamps in the date
// field are reduced to their calendar day.
func (w wireExpense) toCore() (core.Expense, error) {
	amount, err := decimal.NewFromString(w.Amount.String())
	if err != nil {
		return core.Expense{}, fmt.Errorf("amount %q: %w", w.Amount, core.ErrInvalidAmount)
	}
	date, err := core.ParseDate(w.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("date %q: %w", w.Date, err)
	}
	e := core.Expense{
		ID:          string(w.ID),
		Amount:      amount,
		Category:    w.Category,
		Date:        date,
		Description: w.Description,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

var errNotObject = errors.New("response is not a JSON object")

// decodeRecord accepts a bare record or one wrapped as {"expense": {...}}.
// An empty body, a JSON string such as "Expense added successfully" or
// plain text is an acknowledgement without a record: it decodes to nil.
func decodeRecord(body []byte) (*wireExpense, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	switch body[0] {
	case '{':
	case '"':
		var ack string
		if err := json.Unmarshal(body, &ack); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return nil, nil
	case '[':
		return nil, errNotObject
	default:
		if json.Valid(body) {
			return nil, errNotObject
		}
		return nil, nil
	}
	var wrapped struct {
		Expense *wireExpense `json:"expense"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if wrapped.Expense != nil {
		return wrapped.Expense, nil
	}
	var w wireExpense
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &w, nil
}

// sameContent reports whether a and b differ at most in their ids.
func sameContent(a, b core.Expense) bool {
	return a.Amount.Equal(b.Amount) &&
		a.Category == b.Category &&
		a.Date == b.Date &&
		a.Description == b.Description
}

// newestOf picks the created record among candidates with identical
// content. With numeric ids the highest one wins; otherwise there must be
// exactly one candidate.
func newestOf(candidates []core.Expense) (core.Expense, bool) {
	if len(candidates) == 1 {
		return candidates[0], true
	}
	var best core.Expense
	var bestID decimal.Decimal
	for i, e := range candidates {
		if !wireID(e.ID).numeric() {
			return core.Expense{}, false
		}
		id := decimal.RequireFromString(e.ID)
		if i == 0 || id.GreaterThan(bestID) {
			best, bestID = e, id
		}
	}
	return best, len(candidates) > 0
}

// decodeList accepts {"expenses": [...]} or a bare array.
func decodeList(body []byte) ([]wireExpense, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty response")
	}
	if body[0] == '[' {
		var ws []wireExpense
		if err := json.Unmarshal(body, &ws); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return ws, nil
	}
	var env struct {
		Expenses []wireExpense `json:"expenses"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return env.Expenses, nil
}
