package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gastos/internal/coordinator"
	"gastos/internal/core"
	"gastos/internal/services"
	"gastos/internal/store/memory"
	"gastos/internal/store/remote"
)

// flakyStore fails every mutation while down is set.
type flakyStore struct {
	*memory.Store
	down bool
}

var errUnreachable = errors.New("dial tcp: connection refused")

func (f *flakyStore) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	if f.down {
		return core.Expense{}, errUnreachable
	}
	return f.Store.Create(ctx, e)
}

func (f *flakyStore) Update(ctx context.Context, e core.Expense) (core.Expense, error) {
	if f.down {
		return core.Expense{}, errUnreachable
	}
	return f.Store.Update(ctx, e)
}

func (f *flakyStore) Delete(ctx context.Context, id string) error {
	if f.down {
		return errUnreachable
	}
	return f.Store.Delete(ctx, id)
}

func seed() []core.Expense {
	return []core.Expense{
		{ID: "1", Amount: decimal.NewFromInt(300), Category: "Food", Date: "2024-01-10", Description: "groceries"},
		{ID: "2", Amount: decimal.RequireFromString("45.5"), Category: "Transport", Date: "2024-02-05"},
	}
}

func newTestServer(t *testing.T, opts Options) (*Server, *coordinator.Coordinator, *flakyStore) {
	t.Helper()
	st := &flakyStore{Store: memory.New(seed()...)}
	coord := coordinator.New(services.NewExpenseService(st, nil))
	require.NoError(t, coord.Load(context.Background()))
	return NewServer(":0", coord, opts), coord, st
}

func do(srv *Server, method, target, contentType, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

const formType = "application/x-www-form-urlencoded"

func triggers(t *testing.T, rr *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	raw := rr.Header().Get("HX-Trigger")
	require.NotEmpty(t, raw, "missing HX-Trigger")
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func notification(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	raw, ok := triggers(t, rr)[EventShowNotification]
	require.True(t, ok, "missing show-notification trigger")
	var n map[string]any
	require.NoError(t, json.Unmarshal(raw, &n))
	return n
}

func TestIndexAndHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{CurrencySymbol: "€"})

	rr := do(srv, http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "<title>Gastos</title>")
	assert.Contains(t, body, "€345.50")
	assert.Contains(t, body, "€300.00")
	assert.Contains(t, body, "Transport")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodGet, "/nope", "", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(srv, http.MethodPost, "/", formType, "a=b").Code)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(srv, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}

	rr = do(srv, http.MethodGet, "/static/app.js", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Cache-Control"), "max-age=3600")
}

func TestReadyBeforeLoad(t *testing.T) {
	coord := coordinator.New(memory.New())
	srv := NewServer(":0", coord, Options{})

	rr := do(srv, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "not_ready")
}

func TestViewPartial(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{})

	rr := do(srv, http.MethodGet, "/ui/view", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "<html")
	assert.Contains(t, rr.Body.String(), `id="expense-1"`)
	assert.Contains(t, rr.Body.String(), "groceries")
}

func TestCreateExpense(t *testing.T) {
	srv, coord, _ := newTestServer(t, Options{})

	t.Run("wrong method", func(t *testing.T) {
		rr := do(srv, http.MethodGet, "/expenses", "", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
		assert.Equal(t, "POST", rr.Header().Get("Allow"))
	})

	t.Run("form", func(t *testing.T) {
		rr := do(srv, http.MethodPost, "/expenses", formType, "amount=12,50&category=Food&date=2024-03-01&description=lunch")
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		trig := triggers(t, rr)
		assert.Contains(t, trig, EventExpenseCreated)
		assert.Contains(t, trig, EventFormReset)
		assert.Equal(t, "success", notification(t, rr)["type"])
		assert.Contains(t, rr.Body.String(), "$12.50")
		assert.Equal(t, 3, coord.View().Summary.Count)
	})

	t.Run("json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/expenses",
			strings.NewReader(`{"amount": 7, "category": "Books", "date": "2024-03-02"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var got core.Expense
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, "Books", got.Category)
		assert.True(t, got.Amount.Equal(decimal.NewFromInt(7)))
		assert.Contains(t, coord.View().Categories, "Books")
	})

	tests := []struct {
		name        string
		contentType string
		body        string
		want        int
	}{
		{"bad amount", formType, "amount=abc&category=Food&date=2024-03-01", http.StatusUnprocessableEntity},
		{"negative amount", formType, "amount=-5&category=Food&date=2024-03-01", http.StatusUnprocessableEntity},
		{"missing category", formType, "amount=5&date=2024-03-01", http.StatusUnprocessableEntity},
		{"blank category", formType, "amount=5&category=%20&date=2024-03-01", http.StatusUnprocessableEntity},
		{"bad date", formType, "amount=5&category=Food&date=2024-02-30", http.StatusUnprocessableEntity},
		{"long description", formType, "amount=5&category=Food&date=2024-03-01&description=" + strings.Repeat("x", 201), http.StatusUnprocessableEntity},
		{"json exponent amount", "application/json", `{"amount": 1e2, "category": "Food", "date": "2024-03-01"}`, http.StatusCreated},
		{"id supplied", formType, "id=9&amount=5&category=Food&date=2024-03-01", http.StatusCreated},
		{"malformed json", "application/json", `{"amount":`, http.StatusBadRequest},
		{"json array", "application/json", `[1, 2]`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := coord.View().Summary.Count
			rr := do(srv, http.MethodPost, "/expenses", tt.contentType, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			if tt.want >= 400 {
				assert.Equal(t, "error", notification(t, rr)["type"])
				assert.Equal(t, before, coord.View().Summary.Count)
			}
		})
	}
}

func TestUpdateExpense(t *testing.T) {
	srv, coord, _ := newTestServer(t, Options{})

	rr := do(srv, http.MethodPost, "/expenses/update", formType, "id=1&amount=320")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, triggers(t, rr), EventExpenseUpdated)

	got, ok := coord.Get("1")
	require.True(t, ok)
	assert.Equal(t, "320", got.Amount.String())
	assert.Equal(t, "Food", got.Category, "fields not sent are kept")
	assert.Equal(t, "groceries", got.Description)

	req := httptest.NewRequest(http.MethodPut, "/expenses/update",
		strings.NewReader(`{"id": 2, "category": "Travel", "description": ""}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got, _ = coord.Get("2")
	assert.Equal(t, "Travel", got.Category)
	assert.Equal(t, core.Date("2024-02-05"), got.Date)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing id", "amount=5", http.StatusBadRequest},
		{"unknown id", "id=404&amount=5", http.StatusNotFound},
		{"bad date", "id=1&date=yesterday", http.StatusUnprocessableEntity},
		{"blank category", "id=1&category=", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(srv, http.MethodPost, "/expenses/update", formType, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}

	assert.Equal(t, http.StatusMethodNotAllowed, do(srv, http.MethodGet, "/expenses/update", "", "").Code)
	got, _ = coord.Get("1")
	assert.Equal(t, "320", got.Amount.String(), "rejected edits leave the record alone")
}

func TestDeleteExpense(t *testing.T) {
	srv, coord, _ := newTestServer(t, Options{})

	rr := do(srv, http.MethodPost, "/expenses/delete", "application/json", `1`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, triggers(t, rr), EventExpenseDeleted)
	_, ok := coord.Get("1")
	assert.False(t, ok)

	rr = do(srv, http.MethodPost, "/expenses/delete", formType, "id=1")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(srv, http.MethodDelete, "/expenses/delete?id=2", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, coord.View().Summary.Count)

	assert.Equal(t, http.StatusBadRequest, do(srv, http.MethodPost, "/expenses/delete", formType, "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(srv, http.MethodGet, "/expenses/delete", "", "").Code)
}

func TestStoreFailureLeavesViewUnchanged(t *testing.T) {
	srv, coord, st := newTestServer(t, Options{})
	st.down = true
	before := coord.View()

	cases := []struct{ method, target, body string }{
		{http.MethodPost, "/expenses", "amount=1&category=Food&date=2024-03-01"},
		{http.MethodPost, "/expenses/update", "id=1&amount=1"},
		{http.MethodPost, "/expenses/delete", "id=1"},
	}
	for _, c := range cases {
		rr := do(srv, c.method, c.target, formType, c.body)
		assert.Equal(t, http.StatusBadGateway, rr.Code, c.target)
		n := notification(t, rr)
		assert.Equal(t, "error", n["type"])
		assert.NotContains(t, n["message"], "connection refused")
	}

	assert.Equal(t, before, coord.View())
}

func TestFilterAndAPIView(t *testing.T) {
	srv, coord, _ := newTestServer(t, Options{})

	rr := do(srv, http.MethodPost, "/filter", formType, "category=Food")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, triggers(t, rr), EventViewRefresh)
	v := coord.View()
	assert.Equal(t, "Food", v.Criteria.Category)
	assert.Equal(t, "300", v.Summary.Total.String())
	assert.Equal(t, []string{"Food", "Transport"}, v.Categories, "categories come from the whole collection")

	rr = do(srv, http.MethodPost, "/filter", formType, "start=2024-13-01")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "Food", coord.View().Criteria.Category, "a rejected filter keeps the old one")

	rr = do(srv, http.MethodPost, "/filter", formType, "reset=1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, coord.View().Criteria.IsZero())

	rr = do(srv, http.MethodGet, "/api/view?start=2024-02-01&end=2024-02-28", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Expenses     []core.Expense `json:"expenses"`
		TotalDisplay string         `json:"total_display"`
		Loaded       bool           `json:"loaded"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Expenses, 1)
	assert.Equal(t, "2", body.Expenses[0].ID)
	assert.Equal(t, "$45.50", body.TotalDisplay)
	assert.True(t, body.Loaded)

	rr = do(srv, http.MethodGet, "/api/view?end=nope", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(srv, http.MethodGet, "/filter", "", "").Code)
}

func TestRateLimitedMutations(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{RateLimitPerMinute: 1})
	defer srv.Shutdown(context.Background())

	rr := do(srv, http.MethodPost, "/expenses/delete", formType, "id=1")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(srv, http.MethodPost, "/expenses/delete", formType, "id=2")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Equal(t, "error", notification(t, rr)["type"])

	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/api/view", "", "").Code, "reads are not limited")
}

func TestClassifyUnresolvedCreate(t *testing.T) {
	status, msg := classifyError(fmt.Errorf("create expense: %w", remote.ErrUnresolvedCreate))
	assert.Equal(t, http.StatusBadGateway, status)
	assert.NotContains(t, msg, "nothing was changed")
}
