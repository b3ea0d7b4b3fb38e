package trace

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gastos/internal/log"
)

var requestIDPattern = regexp.MustCompile(`^req_[0-9a-f]{16}$`)

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	assert.Regexp(t, requestIDPattern, a)
	assert.NotEqual(t, a, b)
}

func newJSONLogger(buf *bytes.Buffer) *log.Logger {
	return log.New(log.Config{Level: slog.LevelDebug, Format: "json", Component: log.ComponentTrace, Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(newJSONLogger(&buf), func(*http.Request) string { return "203.0.113.7" })

	var seenID string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		log.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/expenses?x=1", nil))

	assert.Regexp(t, requestIDPattern, seenID)
	assert.Equal(t, seenID, rec.Header().Get(RequestIDHeader))
	assert.EqualValues(t, 1, m.TotalRequests())

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "HTTP request started", lines[0]["msg"])
	assert.Equal(t, seenID, lines[1][log.FieldRequestID], "handler logger carries the request id")
	end := lines[2]
	assert.Equal(t, "HTTP request completed", end["msg"])
	assert.Equal(t, "WARN", end["level"])
	assert.EqualValues(t, 422, end[log.FieldStatusCode])
	assert.Equal(t, "203.0.113.7", end[log.FieldClientIP])
	assert.Equal(t, false, end[log.FieldSuccess])
}

func TestMiddlewareLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		m := NewMiddleware(newJSONLogger(&buf), nil)
		h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.WriteHeader(http.StatusTeapot)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		lines := decodeLines(t, &buf)
		last := lines[len(lines)-1]
		assert.Equal(t, tt.level, last["level"], "status %d", tt.status)
		assert.EqualValues(t, tt.status, last[log.FieldStatusCode], "first status wins")
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	assert.Empty(t, GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
