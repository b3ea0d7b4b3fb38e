// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Bodies may be form-encoded (what htmx sends) or JSON (API clients), and
// handlers read fields the same way from either.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gastos/internal/core"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// errMalformedBody is returned for bodies that are neither valid JSON nor a
// valid form.
var errMalformedBody = errors.New("malformed request body")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	query       url.Values
	jsonData    map[string]any
	scalar      string
	hasScalar   bool
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
		query:       r.URL.Query(),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data. A JSON body may
// also be a bare number or string, read back with Scalar.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		p.err = fmt.Errorf("%w: %v", errMalformedBody, p.err)
		return p.err
	}

	body := bytes.TrimSpace(p.body)
	if len(body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.looksLikeJSON(body) {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			p.err = fmt.Errorf("%w: %v", errMalformedBody, err)
			return p.err
		}
		switch val := v.(type) {
		case map[string]any:
			p.jsonData = val
		case json.Number, string:
			p.scalar, p.hasScalar = stringValue(val), true
			p.jsonData = map[string]any{}
		default:
			p.err = fmt.Errorf("%w: unexpected JSON %T", errMalformedBody, v)
		}
		return p.err
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		p.err = fmt.Errorf("%w: %v", errMalformedBody, err)
		return p.err
	}
	p.formData = form
	return nil
}

func (p *RequestBodyParser) looksLikeJSON(body []byte) bool {
	if strings.HasPrefix(p.contentType, "application/json") {
		return true
	}
	switch body[0] {
	case '{', '[', '"':
		return true
	}
	return false
}

// Has reports whether key was sent in the body or the query string.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		if _, ok := p.jsonData[key]; ok {
			return true
		}
	}
	if p.formData != nil {
		if _, ok := p.formData[key]; ok {
			return true
		}
	}
	_, ok := p.query[key]
	return ok
}

// Get returns a sanitized value from the body, falling back to the query
// string.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		if vals, ok := p.formData[key]; ok && len(vals) > 0 {
			return sanitizeInput(vals[0])
		}
	}
	return sanitizeInput(p.query.Get(key))
}

// Scalar returns a bare JSON number or string body.
func (p *RequestBodyParser) Scalar() (string, bool) {
	return sanitizeInput(p.scalar), p.hasScalar
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to its string form. Numbers
// keep their literal text so ids and amounts are not rounded.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// expenseFields is the user-editable part of an expense as received.
type expenseFields struct {
	amount, category, date, description             string
	hasAmount, hasCategory, hasDate, hasDescription bool
}

func readExpenseFields(p *RequestBodyParser) expenseFields {
	return expenseFields{
		amount:         p.Get("amount"),
		category:       p.Get("category"),
		date:           p.Get("date"),
		description:    p.Get("description"),
		hasAmount:      p.Has("amount"),
		hasCategory:    p.Has("category"),
		hasDate:        p.Has("date"),
		hasDescription: p.Has("description"),
	}
}

// apply overwrites the fields of base that were sent. Sent values are
// parsed and the result validated, so the error is always a core
// validation error.
func (f expenseFields) apply(base core.Expense) (core.Expense, error) {
	e := base
	if f.hasAmount {
		amount, err := core.ParseAmount(f.amount)
		if err != nil {
			return core.Expense{}, err
		}
		e.Amount = amount
	}
	if f.hasDate {
		d, err := core.ParseDate(f.date)
		if err != nil {
			return core.Expense{}, err
		}
		e.Date = d
	}
	if f.hasCategory {
		e.Category = f.category
	}
	if f.hasDescription {
		e.Description = f.description
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// draft builds a new record; every required field must be present.
func (f expenseFields) draft() (core.Expense, error) {
	if !f.hasAmount {
		return core.Expense{}, core.ErrInvalidAmount
	}
	if !f.hasDate {
		return core.Expense{}, core.ErrInvalidDate
	}
	if !f.hasCategory {
		return core.Expense{}, core.ErrEmptyCategory
	}
	return f.apply(core.Expense{})
}
