package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/render"
	"github.com/mmynk/splitledger/pkg/api"
)

// ExpenseHandler implements the Connect ExpenseService on top of ExpenseService.
type ExpenseHandler struct {
	svc *ExpenseService
}

var _ api.ExpenseServiceHandler = (*ExpenseHandler)(nil)

// NewExpenseHandler creates the RPC adapter for svc.
func NewExpenseHandler(svc *ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{svc: svc}
}

// CreateExpense splits the amount equally and persists the expense.
func (h *ExpenseHandler) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.ExpenseResponse], error) {
	amount, err := parseAmount(req.Msg.Amount)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	expense, err := h.svc.Create(ctx, amount, req.Msg.Description, req.Msg.Payer, req.Msg.Debtors)
	if err != nil {
		slog.Error("CreateExpense failed", "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(expenseResponse(expense)), nil
}

// GetExpense retrieves an expense by ID.
func (h *ExpenseHandler) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.ExpenseResponse], error) {
	expense, err := h.svc.Get(ctx, req.Msg.ExpenseID)
	if err != nil {
		slog.Error("GetExpense failed", "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(expenseResponse(expense)), nil
}

// UpdateExpense applies a partial update.
func (h *ExpenseHandler) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.ExpenseResponse], error) {
	patch, err := toPatch(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	expense, err := h.svc.Update(ctx, req.Msg.ExpenseID, patch)
	if err != nil {
		slog.Error("UpdateExpense failed", "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(expenseResponse(expense)), nil
}

// DeleteExpense removes an expense.
func (h *ExpenseHandler) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[emptypb.Empty], error) {
	if err := h.svc.Delete(ctx, req.Msg.ExpenseID); err != nil {
		slog.Error("DeleteExpense failed", "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&emptypb.Empty{}), nil
}

// ListExpenses returns every expense and the combined summary text.
func (h *ExpenseHandler) ListExpenses(ctx context.Context, _ *connect.Request[emptypb.Empty]) (*connect.Response[api.ListExpensesResponse], error) {
	expenses, err := h.svc.List(ctx)
	if err != nil {
		slog.Error("ListExpenses failed", "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*api.Expense, len(expenses))
	for i := range expenses {
		out[i] = toAPIExpense(&expenses[i])
	}

	return connect.NewResponse(&api.ListExpensesResponse{
		Expenses: out,
		Summary:  render.Expenses(expenses),
	}), nil
}

// GetReport returns the balance report.
func (h *ExpenseHandler) GetReport(ctx context.Context, _ *connect.Request[emptypb.Empty]) (*connect.Response[api.ReportResponse], error) {
	report, err := h.svc.Report(ctx)
	if err != nil {
		slog.Error("GetReport failed", "error", err)
		return nil, toConnectError(err)
	}

	balances := make([]*api.MemberBalance, len(report.Members))
	for i, m := range report.Members {
		owes := make([]api.DebtEdge, len(m.Owes))
		for j, edge := range m.Owes {
			owes[j] = api.DebtEdge{To: edge.To, Amount: money(edge.Amount)}
		}
		balances[i] = &api.MemberBalance{
			MemberName: m.MemberName,
			Owes:       owes,
			TotalPaid:  money(m.TotalPaid),
			TotalOwed:  money(m.TotalOwed),
			NetBalance: money(m.NetBalance),
		}
	}

	return connect.NewResponse(&api.ReportResponse{
		ExpenseCount: report.ExpenseCount,
		Balances:     balances,
		Text:         report.Render(),
	}), nil
}

// toConnectError maps engine and storage errors to Connect codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, ledger.ErrInconsistentSplit):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ledger.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q is not a number", ledger.ErrValidation, s)
	}
	return d, nil
}

func toPatch(req *api.UpdateExpenseRequest) (models.ExpensePatch, error) {
	patch := models.ExpensePatch{Description: req.Description}
	if req.Amount != nil {
		amount, err := parseAmount(*req.Amount)
		if err != nil {
			return patch, err
		}
		patch.Amount = &amount
	}
	if req.Debtors != nil {
		patch.Debtors = make([]models.DebtorShare, len(req.Debtors))
		for i, d := range req.Debtors {
			amount, err := parseAmount(d.Amount)
			if err != nil {
				return patch, err
			}
			patch.Debtors[i] = models.DebtorShare{Debtor: d.Debtor, Amount: amount}
		}
	}
	return patch, nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(calculator.CentPlaces)
}

func toAPIExpense(e *models.Expense) *api.Expense {
	debtors := make([]api.DebtorShare, len(e.Debtors))
	for i, d := range e.Debtors {
		debtors[i] = api.DebtorShare{Debtor: d.Debtor, Amount: money(d.Amount)}
	}
	return &api.Expense{
		ID:          e.ID,
		Description: e.Description,
		Amount:      money(e.Amount),
		Payer:       e.Payer,
		Debtors:     debtors,
		CreatedAt:   e.CreatedAt.Unix(),
	}
}

func expenseResponse(e *models.Expense) *api.ExpenseResponse {
	return &api.ExpenseResponse{
		Expense: toAPIExpense(e),
		Summary: render.Expense(*e),
	}
}
