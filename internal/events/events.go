// Package events announces expense changes to other systems.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
)

// Type names an expense lifecycle event. It doubles as the routing key.
type Type string

const (
	ExpenseCreated Type = "expense.created"
	ExpenseUpdated Type = "expense.updated"
	ExpenseDeleted Type = "expense.deleted"
)

// Event is a single expense change.
type Event struct {
	Type       Type
	ExpenseID  int64
	Expense    *models.Expense // nil for deletions
	OccurredAt time.Time
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type debtorPayload struct {
	Debtor string `json:"debtor"`
	Amount string `json:"amount"`
}

type expensePayload struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Amount      string          `json:"amount"`
	Payer       string          `json:"payer"`
	Debtors     []debtorPayload `json:"debtors"`
	CreatedAt   time.Time       `json:"created_at"`
}

type message struct {
	Type       Type            `json:"type"`
	ExpenseID  int64           `json:"expense_id"`
	Expense    *expensePayload `json:"expense,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Marshal encodes the event body. Money is written as fixed two-place strings.
func (e Event) Marshal() ([]byte, error) {
	msg := message{
		Type:       e.Type,
		ExpenseID:  e.ExpenseID,
		OccurredAt: e.OccurredAt.UTC(),
	}
	if e.Expense != nil {
		p := &expensePayload{
			ID:          e.Expense.ID,
			Description: e.Expense.Description,
			Amount:      e.Expense.Amount.StringFixed(calculator.CentPlaces),
			Payer:       e.Expense.Payer,
			Debtors:     make([]debtorPayload, len(e.Expense.Debtors)),
			CreatedAt:   e.Expense.CreatedAt.UTC(),
		}
		for i, d := range e.Expense.Debtors {
			p.Debtors[i] = debtorPayload{Debtor: d.Debtor, Amount: d.Amount.StringFixed(calculator.CentPlaces)}
		}
		msg.Expense = p
	}
	return json.Marshal(msg)
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of what was published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
