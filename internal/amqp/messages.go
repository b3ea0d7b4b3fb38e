package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gastos/internal/core"
)

// EventType names what happened to an expense.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// ExpenseEvent is published after every successful mutation. Created and
// updated events carry the full record; deleted events only the id.
type ExpenseEvent struct {
	Type      EventType     `json:"type"`
	ID        string        `json:"id"`
	Expense   *core.Expense `json:"expense,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

var ErrInvalidEvent = errors.New("invalid expense event")

func NewCreatedEvent(e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{Type: EventCreated, ID: e.ID, Expense: &e, Timestamp: time.Now().UTC()}
}

func NewUpdatedEvent(e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{Type: EventUpdated, ID: e.ID, Expense: &e, Timestamp: time.Now().UTC()}
}

func NewDeletedEvent(id string) *ExpenseEvent {
	return &ExpenseEvent{Type: EventDeleted, ID: id, Timestamp: time.Now().UTC()}
}

// Validate checks the event is self-consistent.
func (m *ExpenseEvent) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	switch m.Type {
	case EventCreated, EventUpdated:
		if m.Expense == nil {
			return fmt.Errorf("%w: %s event without expense", ErrInvalidEvent, m.Type)
		}
		if m.Expense.ID != m.ID {
			return fmt.Errorf("%w: id %q does not match expense id %q", ErrInvalidEvent, m.ID, m.Expense.ID)
		}
	case EventDeleted:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, m.Type)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes and validates an event.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
