package http

import (
	"bytes"
	"net/http"
	"time"

	"gastos/internal/aggregate"
	"gastos/internal/coordinator"
	"gastos/internal/core"
	"gastos/internal/log"
)

type expenseRow struct {
	ID          string
	Date        string
	Amount      string
	RawAmount   string
	Category    string
	Description string
}

// pageData is what index.html and its "view" block render.
type pageData struct {
	Today      string
	Total      string
	Count      int
	ByCategory []categoryRow
	Expenses   []expenseRow
	Categories []string
	Criteria   aggregate.Criteria
	Filtered   bool
	Loaded     bool
}

// viewResponse is the JSON form of the view.
type viewResponse struct {
	coordinator.View
	TotalDisplay string `json:"total_display"`
	Currency     string `json:"currency"`
}

func (s *Server) pageData(v coordinator.View) pageData {
	rows := make([]expenseRow, 0, len(v.Expenses))
	for _, e := range v.Expenses {
		rows = append(rows, expenseRow{
			ID:          e.ID,
			Date:        e.Date.String(),
			Amount:      core.FormatAmount(e.Amount, s.currency),
			RawAmount:   e.Amount.String(),
			Category:    e.Category,
			Description: e.Description,
		})
	}
	return pageData{
		Today:      time.Now().Format(core.DateLayout),
		Total:      core.FormatAmount(v.Summary.Total, s.currency),
		Count:      v.Summary.Count,
		ByCategory: barWidths(v.Summary.ByCategory, s.currency),
		Expenses:   rows,
		Categories: v.Categories,
		Criteria:   v.Criteria,
		Filtered:   !v.Criteria.IsZero(),
		Loaded:     v.Loaded,
	}
}

func (s *Server) viewResponse(v coordinator.View) viewResponse {
	return viewResponse{
		View:         v,
		TotalDisplay: core.FormatAmount(v.Summary.Total, s.currency),
		Currency:     s.currency,
	}
}

// requestLogger returns the request-scoped logger set by the trace
// middleware.
func (s *Server) requestLogger(r *http.Request) *log.Logger {
	if l, ok := r.Context().Value(log.LoggerContextKey).(*log.Logger); ok {
		return l.WithComponent(log.ComponentHTTP)
	}
	return s.logger
}

// render executes a template into a buffer so a failure can still produce
// a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		s.requestLogger(r).ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.requestLogger(r).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRender,
			"template", name)
		http.Error(w, "rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}
	s.render(w, r, "index.html", s.pageData(s.coord.View()))
}

// handleViewPartial renders the summary, filter form and list; the page
// reloads it after every mutation or filter change.
func (s *Server) handleViewPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	s.render(w, r, "view", s.pageData(s.coord.View()))
}

// handleAPIView returns the view as JSON. Any of category, start, end or
// reset in the query sets the criteria first.
func (s *Server) handleAPIView(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	q := r.URL.Query()
	if q.Has("category") || q.Has("start") || q.Has("end") || q.Has("reset") {
		if err := s.applyCriteria(q.Get("reset"), q.Get("category"), q.Get("start"), q.Get("end")); err != nil {
			status, msg := classifyError(err)
			NewHTMXResponse().Status(status).BodyJSON(errorBody{Error: msg}).Write(w)
			return
		}
	}
	NewHTMXResponse().BodyJSON(s.viewResponse(s.coord.View())).Write(w)
}

// handleFilter sets or clears the filter criteria from a form or JSON body.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err, log.OpFilter)
		return
	}

	if err := s.applyCriteria(p.Get("reset"), p.Get("category"), p.Get("start"), p.Get("end")); err != nil {
		s.writeError(w, r, err, log.OpFilter)
		return
	}

	v := s.coord.View()
	s.requestLogger(r).DebugContext(r.Context(), "Filter applied",
		log.FieldCategory, v.Criteria.Category,
		"start", v.Criteria.Range.Start,
		"end", v.Criteria.Range.End,
		log.FieldCount, v.Summary.Count)

	resp := NewHTMXResponse().TriggerViewRefresh()
	if wantsJSON(r) {
		resp.BodyJSON(s.viewResponse(v))
	}
	resp.Write(w)
}

func (s *Server) applyCriteria(reset, category, start, end string) error {
	if reset == "1" || reset == "true" {
		s.coord.ClearCriteria()
		return nil
	}
	rng, err := aggregate.NewDateRange(start, end)
	if err != nil {
		return err
	}
	s.coord.SetCriteria(aggregate.Criteria{Category: sanitizeInput(category), Range: rng})
	return nil
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewHTMXResponse().BodyJSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports ready once templates are parsed and the collection
// has been loaded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	code := http.StatusOK
	checks := map[string]string{"templates": "ok", "collection": "ok"}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	if !s.coord.Loaded() {
		checks["collection"] = "not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	NewHTMXResponse().Status(code).BodyJSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}
