package http

import (
	"html/template"
	"net/http"

	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/services"
)

// handleCreateExpense creates an expense from amount, category, date and an
// optional description.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}

	draft, err := readExpenseFields(p).draft()
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}

	created, err := s.coord.Add(r.Context(), draft)
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}
	s.access(r).LogExpense(r.Context(), log.OpCreate, created)

	msg := "Expense added: " + created.Category + " " + core.FormatAmount(created.Amount, s.currency)
	resp := NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerExpenseCreated(created.ID).
		TriggerFormReset()
	s.writeMutation(w, r, resp, created, msg)
}

// handleUpdateExpense edits the fields that were sent and keeps the rest.
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPost, http.MethodPut); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err, log.OpUpdate)
		return
	}

	id := p.Get("id")
	if id == "" {
		s.writeError(w, r, services.ErrMissingID, log.OpUpdate)
		return
	}
	current, ok := s.coord.Get(id)
	if !ok {
		s.writeError(w, r, errNotFound(id), log.OpUpdate)
		return
	}

	edited, err := readExpenseFields(p).apply(current)
	if err != nil {
		s.writeError(w, r, err, log.OpUpdate)
		return
	}

	updated, err := s.coord.Edit(r.Context(), edited)
	if err != nil {
		s.writeError(w, r, err, log.OpUpdate)
		return
	}
	s.access(r).LogExpense(r.Context(), log.OpUpdate, updated)

	resp := NewHTMXResponse().TriggerExpenseUpdated(updated.ID)
	s.writeMutation(w, r, resp, updated, "Expense updated")
}

// handleDeleteExpense removes the expense named by the id field, a bare
// JSON body or the id query parameter.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPost, http.MethodDelete); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err, log.OpDelete)
		return
	}

	id := p.Get("id")
	if scalar, ok := p.Scalar(); ok && id == "" {
		id = scalar
	}
	if id == "" {
		s.writeError(w, r, services.ErrMissingID, log.OpDelete)
		return
	}

	if err := s.coord.Remove(r.Context(), id); err != nil {
		s.writeError(w, r, err, log.OpDelete)
		return
	}
	s.requestLogger(r).InfoContext(r.Context(), "Expense delete succeeded",
		log.FieldExpenseID, id,
		log.FieldOperation, log.OpDelete)

	resp := NewHTMXResponse().
		TriggerExpenseDeleted(id).
		TriggerSuccessNotification("Expense deleted")
	if wantsJSON(r) {
		resp.BodyJSON(map[string]string{"id": id, "status": "deleted"})
	}
	resp.Write(w)
}

func (s *Server) writeMutation(w http.ResponseWriter, r *http.Request, resp *HTMXResponseBuilder, e core.Expense, msg string) {
	resp.TriggerSuccessNotification(msg)
	if wantsJSON(r) {
		resp.BodyJSON(e).Write(w)
		return
	}
	resp.BodyHTML(`<div class="success">` + template.HTMLEscapeString(msg) + `</div>`).
		Write(w)
}

// writeError reports a failed request. Store failures are logged at error
// level; rejected input only at debug.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status, msg := classifyError(err)
	if status >= http.StatusInternalServerError {
		s.access(r).LogError(r.Context(), "Expense "+op+" failed", err, op, nil)
	} else {
		s.requestLogger(r).DebugContext(r.Context(), "Request rejected",
			log.FieldError, err,
			log.FieldOperation, op,
			log.FieldStatusCode, status)
	}

	if wantsJSON(r) {
		NewHTMXResponse().Status(status).TriggerErrorNotification(msg).BodyJSON(errorBody{Error: msg}).Write(w)
		return
	}
	ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
}

func (s *Server) access(r *http.Request) *log.StructuredLogger {
	return log.NewStructuredLogger(s.requestLogger(r))
}
