package amqp

import (
	"encoding/json"
	"time"

	"jizhang/internal/core"

	"github.com/google/uuid"
)

// Routing keys of published events.
const (
	EventEntryCreated  = "entry.created"
	EventBudgetUpdated = "budget.updated"
)

// EntryPayload is the wire form of an expense entry. Amount keeps two
// decimals as a string so no precision is lost.
type EntryPayload struct {
	Date     string `json:"date"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Note     string `json:"note,omitempty"`
}

// Event is published after a successful write to the workbook.
type Event struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	OccurredAt time.Time     `json:"occurred_at"`
	Entry      *EntryPayload `json:"entry,omitempty"`
	Budget     *int          `json:"monthly_budget,omitempty"`
}

// NewEntryCreated builds the event for an appended entry.
func NewEntryCreated(e core.Entry) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       EventEntryCreated,
		OccurredAt: time.Now().UTC(),
		Entry: &EntryPayload{
			Date:     e.Date.String(),
			Category: e.Category.String(),
			Amount:   e.Amount.StringFixed(2),
			Note:     e.Note,
		},
	}
}

// NewBudgetUpdated builds the event for a budget change.
func NewBudgetUpdated(v int) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       EventBudgetUpdated,
		OccurredAt: time.Now().UTC(),
		Budget:     &v,
	}
}

// ToJSON converts the message to JSON bytes
func (m *Event) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventFromJSON decodes an event.
func EventFromJSON(data []byte) (*Event, error) {
	var msg Event
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
