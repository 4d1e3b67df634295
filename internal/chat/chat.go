// Package chat turns group chat commands into expense operations and renders
// the replies sent back to the group.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/render"
)

// Message is one incoming chat message.
type Message struct {
	// Sender is the participant who wrote the message. They pay for /new.
	Sender string `json:"sender"`
	Body   string `json:"body"`
	// Participants are the members of the group the message was sent to.
	Participants []string `json:"participants"`
}

// Ledger is the subset of the expense service the bot needs.
type Ledger interface {
	Create(ctx context.Context, amount decimal.Decimal, description, payer string, debtors []string) (*models.Expense, error)
	Update(ctx context.Context, id int64, patch models.ExpensePatch) (*models.Expense, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]models.Expense, error)
	Report(ctx context.Context) (*calculator.Report, error)
}

// HelpText lists the available commands.
const HelpText = `*Available commands:*
  /new - Record a new expense split among the group
  /expenses - List all expenses
  /delete - Delete an expense
  /update - Update an expense
  /report - Show who owes whom
  /help - Show this help message

*Syntax:*
  /new [amount] [description]
  /expenses
  /delete [id]
  /update [id] [amount] [description]
  /report`

// Bot dispatches commands to a Ledger.
type Bot struct {
	ledger   Ledger
	handlers map[string]func(context.Context, Message, []string) string
}

// NewBot creates a Bot. Portuguese aliases are accepted for every command.
func NewBot(l Ledger) *Bot {
	b := &Bot{ledger: l}
	b.handlers = map[string]func(context.Context, Message, []string) string{
		"/new":       b.handleCreate,
		"/nova":      b.handleCreate,
		"/expenses":  b.handleList,
		"/despesas":  b.handleList,
		"/delete":    b.handleDelete,
		"/deleta":    b.handleDelete,
		"/update":    b.handleUpdate,
		"/atualiza":  b.handleUpdate,
		"/report":    b.handleReport,
		"/relatorio": b.handleReport,
		"/help":      b.handleHelp,
		"/ajuda":     b.handleHelp,
	}
	return b
}

// Handle runs the command in msg and returns the reply. ok is false when the
// message is not a known command and should be ignored.
func (b *Bot) Handle(ctx context.Context, msg Message) (reply string, ok bool) {
	fields := strings.Fields(msg.Body)
	if len(fields) == 0 {
		return "", false
	}
	handler, found := b.handlers[strings.ToLower(fields[0])]
	if !found {
		return "", false
	}
	return handler(ctx, msg, fields[1:]), true
}

func (b *Bot) handleCreate(ctx context.Context, msg Message, args []string) string {
	if len(args) == 0 {
		return "Usage: /new [amount] [description]"
	}
	amount, err := parseAmount(args[0])
	if err != nil {
		return "The expense amount must be a number."
	}
	description := strings.ToUpper(strings.Join(args[1:], " "))

	expense, err := b.ledger.Create(ctx, amount, description, msg.Sender, msg.Participants)
	if err != nil {
		return errorReply(err, "Failed to record expense.")
	}
	return "Expense recorded!\n" + render.Expense(*expense)
}

func (b *Bot) handleList(ctx context.Context, _ Message, _ []string) string {
	expenses, err := b.ledger.List(ctx)
	if err != nil {
		return errorReply(err, "Failed to list expenses.")
	}
	return render.Expenses(expenses)
}

func (b *Bot) handleDelete(ctx context.Context, _ Message, args []string) string {
	if len(args) == 0 {
		return "Usage: /delete [id]"
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "The expense id must be a number."
	}

	if err := b.ledger.Delete(ctx, id); err != nil {
		return errorReply(err, "Failed to delete expense.")
	}
	return "Expense deleted!"
}

func (b *Bot) handleUpdate(ctx context.Context, _ Message, args []string) string {
	if len(args) < 2 {
		return "Usage: /update [id] [amount] [description]"
	}
	id, idErr := strconv.ParseInt(args[0], 10, 64)
	amount, amountErr := parseAmount(args[1])
	if idErr != nil || amountErr != nil {
		return "The expense id and amount must be numbers."
	}

	patch := models.ExpensePatch{Amount: &amount}
	if len(args) > 2 {
		description := strings.ToUpper(strings.Join(args[2:], " "))
		patch.Description = &description
	}

	expense, err := b.ledger.Update(ctx, id, patch)
	if err != nil {
		return errorReply(err, "Failed to update expense.")
	}
	return "Expense updated!\n" + render.Expense(*expense)
}

func (b *Bot) handleReport(ctx context.Context, _ Message, _ []string) string {
	report, err := b.ledger.Report(ctx)
	if err != nil {
		return errorReply(err, "Failed to build report.")
	}
	return report.Render()
}

func (b *Bot) handleHelp(context.Context, Message, []string) string {
	return HelpText
}

// parseAmount accepts a decimal point or a decimal comma.
func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
}

// errorReply shows caller mistakes verbatim and hides internal failures.
func errorReply(err error, fallback string) string {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return "Expense not found."
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, ledger.ErrInconsistentSplit):
		return fmt.Sprintf("Invalid expense: %v", err)
	default:
		slog.Error("chat command failed", "error", err)
		return fallback
	}
}
