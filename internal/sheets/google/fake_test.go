package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets serves the subset of the Sheets v4 REST API used by Client
// over a single tab held in memory.
type fakeSheets struct {
	mu      sync.Mutex
	title   string
	sheetID int64
	rows    [][]string
	calls   []string
}

func newFakeClient(t *testing.T, rows ...[]string) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{title: DefaultSheetName, rows: rows}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	c, err := NewWithService(svc, "sid", "")
	require.NoError(t, err)
	return c, fake
}

func (f *fakeSheets) snapshot() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.rows))
	for i, r := range f.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const prefix = "/v4/spreadsheets/sid"
	path := r.URL.Path
	f.calls = append(f.calls, r.Method+" "+strings.TrimPrefix(path, prefix))

	switch {
	case path == prefix && r.Method == http.MethodGet:
		writeJSON(w, map[string]any{
			"spreadsheetId": "sid",
			"sheets": []any{map[string]any{
				"properties": map[string]any{"sheetId": f.sheetID, "title": f.title},
			}},
		})
	case path == prefix+":batchUpdate":
		var req gsheet.BatchUpdateSpreadsheetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, rq := range req.Requests {
			d := rq.DeleteDimension
			if d == nil || d.Range.SheetId != f.sheetID {
				http.Error(w, "unsupported request", http.StatusBadRequest)
				return
			}
			f.rows = append(f.rows[:d.Range.StartIndex], f.rows[d.Range.EndIndex:]...)
		}
		writeJSON(w, map[string]any{})
	case strings.HasPrefix(path, prefix+"/values/"):
		f.serveValues(w, r, strings.TrimPrefix(path, prefix+"/values/"))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSheets) serveValues(w http.ResponseWriter, r *http.Request, rng string) {
	action := ""
	for _, a := range []string{":append", ":clear"} {
		if strings.HasSuffix(rng, a) {
			action = a
			rng = strings.TrimSuffix(rng, a)
		}
	}
	sheet, cells, ok := strings.Cut(rng, "!")
	if !ok || sheet != quoteSheet(f.title) {
		http.Error(w, "bad range "+rng, http.StatusBadRequest)
		return
	}
	start, end, onlyA := parseCells(cells)

	switch {
	case action == ":clear":
		if start-1 < len(f.rows) {
			f.rows = f.rows[:start-1]
		}
		writeJSON(w, map[string]any{})
	case action == ":append":
		vr := decodeValues(r)
		f.rows = append(f.rows, vr...)
		writeJSON(w, map[string]any{})
	case r.Method == http.MethodPut:
		vr := decodeValues(r)
		for i, row := range vr {
			idx := start - 1 + i
			for len(f.rows) <= idx {
				f.rows = append(f.rows, nil)
			}
			f.rows[idx] = row
		}
		writeJSON(w, map[string]any{})
	case r.Method == http.MethodGet:
		values := make([][]string, 0)
		for i := start - 1; i < len(f.rows) && (end == 0 || i < end); i++ {
			row := f.rows[i]
			if onlyA && len(row) > 1 {
				row = row[:1]
			}
			values = append(values, row)
		}
		writeJSON(w, map[string]any{"range": rng, "values": values})
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

// parseCells understands "A2:E", "A1:E1", "A:A" and "A:E".
func parseCells(cells string) (start, end int, onlyA bool) {
	from, to, _ := strings.Cut(cells, ":")
	start = 1
	if n, err := strconv.Atoi(strings.TrimLeft(from, "ABCDE")); err == nil {
		start = n
	}
	if n, err := strconv.Atoi(strings.TrimLeft(to, "ABCDE")); err == nil {
		end = n
	}
	return start, end, strings.HasPrefix(to, "A")
}

func decodeValues(r *http.Request) [][]string {
	var vr struct {
		Values [][]any `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
		return nil
	}
	out := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		for _, v := range row {
			out[i] = append(out[i], fmt.Sprint(v))
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
