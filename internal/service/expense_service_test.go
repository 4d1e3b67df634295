package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
	"github.com/mmynk/splitledger/pkg/api"
)

func strPtr(s string) *string { return &s }

// setupTestService creates an ExpenseService over a fresh SQLite database.
func setupTestService(t *testing.T) (*ExpenseService, *events.Recorder) {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	recorder := &events.Recorder{}
	return NewExpenseService(store, WithPublisher(recorder)), recorder
}

// setupTestServer serves the ExpenseService over Connect and returns a client for it.
func setupTestServer(t *testing.T) (*api.ExpenseServiceClient, *events.Recorder) {
	t.Helper()

	svc, recorder := setupTestService(t)
	path, handler := api.NewExpenseServiceHandler(NewExpenseHandler(svc))

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return api.NewExpenseServiceClient(http.DefaultClient, server.URL), recorder
}

func createDinner(t *testing.T, client *api.ExpenseServiceClient) *api.Expense {
	t.Helper()
	resp, err := client.CreateExpense(context.Background(), connect.NewRequest(&api.CreateExpenseRequest{
		Amount:      "100",
		Description: "dinner",
		Payer:       "alice",
		Debtors:     []string{"alice", "bob", "carol"},
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	return resp.Msg.Expense
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	connectErr, ok := err.(*connect.Error)
	if !ok {
		t.Fatalf("expected connect.Error, got %T", err)
	}
	if connectErr.Code() != want {
		t.Errorf("expected %v, got %v (%s)", want, connectErr.Code(), connectErr.Message())
	}
}

func assertDebtors(t *testing.T, got []api.DebtorShare, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d debtors, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		if s := got[i].Debtor + ":" + got[i].Amount; s != w {
			t.Errorf("debtor %d: got %s, want %s", i, s, w)
		}
	}
}

func TestCreateExpense_And_GetExpense(t *testing.T) {
	client, recorder := setupTestServer(t)

	created := createDinner(t, client)
	if created.ID == 0 {
		t.Fatal("expected expense ID to be generated")
	}
	if created.Amount != "100.00" {
		t.Errorf("expected amount 100.00, got %s", created.Amount)
	}
	assertDebtors(t, created.Debtors, "alice:33.34", "bob:33.33", "carol:33.33")

	getResp, err := client.GetExpense(context.Background(), connect.NewRequest(&api.GetExpenseRequest{
		ExpenseID: created.ID,
	}))
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}

	got := getResp.Msg.Expense
	if got.Description != "dinner" {
		t.Errorf("expected description stored as given, got %q", got.Description)
	}
	if got.Payer != "alice" {
		t.Errorf("expected payer alice, got %s", got.Payer)
	}
	if got.CreatedAt == 0 {
		t.Error("expected created_at to be set")
	}
	assertDebtors(t, got.Debtors, "alice:33.34", "bob:33.33", "carol:33.33")

	if !strings.HasPrefix(getResp.Msg.Summary, "*DINNER*\n") {
		t.Errorf("unexpected summary: %q", getResp.Msg.Summary)
	}

	published := recorder.Events()
	if len(published) != 1 || published[0].Type != events.ExpenseCreated || published[0].ExpenseID != created.ID {
		t.Errorf("expected one created event, got %+v", published)
	}
}

func TestCreateExpense_Validation(t *testing.T) {
	client, recorder := setupTestServer(t)

	tests := []struct {
		name string
		req  *api.CreateExpenseRequest
	}{
		{
			name: "no debtors",
			req:  &api.CreateExpenseRequest{Amount: "10", Payer: "alice"},
		},
		{
			name: "zero amount",
			req:  &api.CreateExpenseRequest{Amount: "0", Payer: "alice", Debtors: []string{"bob"}},
		},
		{
			name: "negative amount",
			req:  &api.CreateExpenseRequest{Amount: "-5", Payer: "alice", Debtors: []string{"bob"}},
		},
		{
			name: "amount not a number",
			req:  &api.CreateExpenseRequest{Amount: "ten", Payer: "alice", Debtors: []string{"bob"}},
		},
		{
			name: "missing payer",
			req:  &api.CreateExpenseRequest{Amount: "10", Debtors: []string{"bob"}},
		},
		{
			name: "amount at the storage limit",
			req:  &api.CreateExpenseRequest{Amount: "1000000000000", Payer: "alice", Debtors: []string{"bob"}},
		},
		{
			name: "amount beyond int64 cents",
			req:  &api.CreateExpenseRequest{Amount: "1e17", Payer: "alice", Debtors: []string{"bob", "carol"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.CreateExpense(context.Background(), connect.NewRequest(tt.req))
			assertCode(t, err, connect.CodeInvalidArgument)
		})
	}

	if n := len(recorder.Events()); n != 0 {
		t.Errorf("expected no events for rejected writes, got %d", n)
	}
}

func TestGetExpense_NotFound(t *testing.T) {
	client, _ := setupTestServer(t)

	_, err := client.GetExpense(context.Background(), connect.NewRequest(&api.GetExpenseRequest{
		ExpenseID: 404,
	}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestUpdateExpense(t *testing.T) {
	tests := []struct {
		name         string
		req          func(id int64) *api.UpdateExpenseRequest
		wantCode     connect.Code
		wantAmount   string
		wantDesc     string
		wantDebtors  []string
		validateFunc func(t *testing.T, e *api.Expense)
	}{
		{
			name: "amount only re-splits over existing debtors",
			req: func(id int64) *api.UpdateExpenseRequest {
				return &api.UpdateExpenseRequest{ExpenseID: id, Amount: strPtr("10")}
			},
			wantAmount:  "10.00",
			wantDesc:    "dinner",
			wantDebtors: []string{"alice:3.34", "bob:3.33", "carol:3.33"},
		},
		{
			name: "amount and debtors replace shares",
			req: func(id int64) *api.UpdateExpenseRequest {
				return &api.UpdateExpenseRequest{
					ExpenseID: id,
					Amount:    strPtr("90"),
					Debtors: []api.DebtorShare{
						{Debtor: "bob", Amount: "60"},
						{Debtor: "dave", Amount: "30"},
					},
				}
			},
			wantAmount:  "90.00",
			wantDesc:    "dinner",
			wantDebtors: []string{"bob:60.00", "dave:30.00"},
		},
		{
			name: "description only keeps shares",
			req: func(id int64) *api.UpdateExpenseRequest {
				return &api.UpdateExpenseRequest{ExpenseID: id, Description: strPtr("team dinner")}
			},
			wantAmount:  "100.00",
			wantDesc:    "team dinner",
			wantDebtors: []string{"alice:33.34", "bob:33.33", "carol:33.33"},
		},
		{
			name: "shares not adding up",
			req: func(id int64) *api.UpdateExpenseRequest {
				return &api.UpdateExpenseRequest{
					ExpenseID: id,
					Amount:    strPtr("90"),
					Debtors:   []api.DebtorShare{{Debtor: "bob", Amount: "50"}},
				}
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "debtors without amount",
			req: func(id int64) *api.UpdateExpenseRequest {
				return &api.UpdateExpenseRequest{
					ExpenseID: id,
					Debtors:   []api.DebtorShare{{Debtor: "bob", Amount: "100"}},
				}
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "explicitly empty debtors",
			req: func(id int64) *api.UpdateExpenseRequest {
				return &api.UpdateExpenseRequest{ExpenseID: id, Amount: strPtr("10"), Debtors: []api.DebtorShare{}}
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "zero amount",
			req: func(id int64) *api.UpdateExpenseRequest {
				return &api.UpdateExpenseRequest{ExpenseID: id, Amount: strPtr("0")}
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "amount beyond the storage limit",
			req: func(id int64) *api.UpdateExpenseRequest {
				return &api.UpdateExpenseRequest{ExpenseID: id, Amount: strPtr("1e17")}
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "sub-cent shares",
			req: func(id int64) *api.UpdateExpenseRequest {
				return &api.UpdateExpenseRequest{
					ExpenseID: id,
					Amount:    strPtr("0.01"),
					Debtors: []api.DebtorShare{
						{Debtor: "bob", Amount: "0.005"},
						{Debtor: "carol", Amount: "0.005"},
					},
				}
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "unknown expense",
			req: func(id int64) *api.UpdateExpenseRequest {
				return &api.UpdateExpenseRequest{ExpenseID: id + 1000, Amount: strPtr("10")}
			},
			wantCode: connect.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := setupTestServer(t)
			created := createDinner(t, client)

			resp, err := client.UpdateExpense(context.Background(), connect.NewRequest(tt.req(created.ID)))
			if tt.wantCode != 0 {
				assertCode(t, err, tt.wantCode)

				// Rejected patches leave the stored expense untouched
				getResp, err := client.GetExpense(context.Background(), connect.NewRequest(&api.GetExpenseRequest{ExpenseID: created.ID}))
				if err != nil {
					t.Fatalf("GetExpense failed: %v", err)
				}
				assertDebtors(t, getResp.Msg.Expense.Debtors, "alice:33.34", "bob:33.33", "carol:33.33")
				return
			}
			if err != nil {
				t.Fatalf("UpdateExpense failed: %v", err)
			}

			got := resp.Msg.Expense
			if got.Amount != tt.wantAmount {
				t.Errorf("expected amount %s, got %s", tt.wantAmount, got.Amount)
			}
			if got.Description != tt.wantDesc {
				t.Errorf("expected description %q, got %q", tt.wantDesc, got.Description)
			}
			assertDebtors(t, got.Debtors, tt.wantDebtors...)

			getResp, err := client.GetExpense(context.Background(), connect.NewRequest(&api.GetExpenseRequest{ExpenseID: created.ID}))
			if err != nil {
				t.Fatalf("GetExpense failed: %v", err)
			}
			assertDebtors(t, getResp.Msg.Expense.Debtors, tt.wantDebtors...)
		})
	}
}

func TestDeleteExpense(t *testing.T) {
	client, recorder := setupTestServer(t)
	created := createDinner(t, client)

	_, err := client.DeleteExpense(context.Background(), connect.NewRequest(&api.DeleteExpenseRequest{
		ExpenseID: created.ID,
	}))
	if err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}

	_, err = client.GetExpense(context.Background(), connect.NewRequest(&api.GetExpenseRequest{
		ExpenseID: created.ID,
	}))
	assertCode(t, err, connect.CodeNotFound)

	published := recorder.Events()
	last := published[len(published)-1]
	if last.Type != events.ExpenseDeleted || last.Expense != nil {
		t.Errorf("expected deleted event without expense, got %+v", last)
	}
}

func TestDeleteExpense_NotFound(t *testing.T) {
	client, _ := setupTestServer(t)

	_, err := client.DeleteExpense(context.Background(), connect.NewRequest(&api.DeleteExpenseRequest{
		ExpenseID: 12345,
	}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestListExpenses(t *testing.T) {
	client, _ := setupTestServer(t)

	resp, err := client.ListExpenses(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(resp.Msg.Expenses) != 0 {
		t.Errorf("expected no expenses, got %d", len(resp.Msg.Expenses))
	}
	if resp.Msg.Summary != "No expenses recorded." {
		t.Errorf("unexpected empty summary: %q", resp.Msg.Summary)
	}

	first := createDinner(t, client)
	second := createDinner(t, client)

	resp, err = client.ListExpenses(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(resp.Msg.Expenses) != 2 {
		t.Fatalf("expected 2 expenses, got %d", len(resp.Msg.Expenses))
	}
	if resp.Msg.Expenses[0].ID != first.ID || resp.Msg.Expenses[1].ID != second.ID {
		t.Errorf("expected expenses in creation order")
	}
	if strings.Count(resp.Msg.Summary, "*DINNER*") != 2 {
		t.Errorf("expected two blocks in summary, got %q", resp.Msg.Summary)
	}
}

func TestGetReport(t *testing.T) {
	client, _ := setupTestServer(t)

	resp, err := client.GetReport(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if resp.Msg.Text != "No expenses recorded." {
		t.Errorf("unexpected empty report: %q", resp.Msg.Text)
	}

	createDinner(t, client)
	_, err = client.CreateExpense(context.Background(), connect.NewRequest(&api.CreateExpenseRequest{
		Amount:  "30",
		Payer:   "bob",
		Debtors: []string{"alice"},
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	resp, err = client.GetReport(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}

	if resp.Msg.ExpenseCount != 2 {
		t.Errorf("expected 2 expenses, got %d", resp.Msg.ExpenseCount)
	}
	if len(resp.Msg.Balances) != 3 {
		t.Fatalf("expected 3 members, got %d", len(resp.Msg.Balances))
	}

	alice := resp.Msg.Balances[0]
	if alice.MemberName != "alice" {
		t.Fatalf("expected alice first, got %s", alice.MemberName)
	}
	// alice owes herself 33.34 and bob 30.00; debts are not netted
	if len(alice.Owes) != 2 || alice.Owes[1].To != "bob" || alice.Owes[1].Amount != "30.00" {
		t.Errorf("unexpected alice debts: %+v", alice.Owes)
	}
	if alice.TotalPaid != "100.00" || alice.TotalOwed != "63.34" || alice.NetBalance != "36.66" {
		t.Errorf("unexpected alice totals: %+v", alice)
	}

	bob := resp.Msg.Balances[1]
	if bob.TotalPaid != "30.00" || bob.TotalOwed != "33.33" || bob.NetBalance != "-3.33" {
		t.Errorf("unexpected bob totals: %+v", bob)
	}

	if !strings.HasPrefix(resp.Msg.Text, "Expense report:\n\n*alice*\n") {
		t.Errorf("unexpected report text: %q", resp.Msg.Text)
	}
}

func TestExpenseService_ConcurrentUpdatesStayBalanced(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, decimal.RequireFromString("100"), "rent", "alice", []string{"alice", "bob", "carol"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := decimal.NewFromInt(int64(i * 7))
			if _, err := svc.Update(ctx, created.ID, models.ExpensePatch{Amount: &amount}); err != nil {
				t.Errorf("Update %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := ledger.CheckBalanced(*got); err != nil {
		t.Errorf("stored expense is not balanced: %v", err)
	}
	if len(got.Debtors) != 3 {
		t.Errorf("expected debtors preserved, got %+v", got.Debtors)
	}
}

func TestExpenseService_ReportStaysBalancedDuringUpdates(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, decimal.RequireFromString("30"), "rent", "alice", []string{"alice", "bob", "carol"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		amounts := []decimal.Decimal{decimal.NewFromInt(60), decimal.NewFromInt(30)}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			amount := amounts[i%2]
			if _, err := svc.Update(ctx, created.ID, models.ExpensePatch{Amount: &amount}); err != nil {
				t.Errorf("Update failed: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 100; i++ {
		report, err := svc.Report(ctx)
		if err != nil {
			t.Errorf("Report failed: %v", err)
			break
		}
		net := decimal.Zero
		for _, m := range report.Members {
			net = net.Add(m.NetBalance)
		}
		if !net.IsZero() {
			t.Errorf("net balances add up to %s, want 0", net)
		}
	}

	close(stop)
	wg.Wait()
}

func TestExpenseService_NotFoundIsLedgerError(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.Get(context.Background(), 77)
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ledger.ErrNotFound, got %v", err)
	}
	if err := svc.Delete(context.Background(), 77); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ledger.ErrNotFound, got %v", err)
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.Event) error { return errors.New("broker down") }
func (failingPublisher) Close() error                                { return nil }

func TestExpenseService_PublishFailureDoesNotFailWrite(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	svc := NewExpenseService(store, WithPublisher(failingPublisher{}))
	created, err := svc.Create(context.Background(), decimal.NewFromInt(5), "coffee", "bob", []string{"bob"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Get(context.Background(), created.ID); err != nil {
		t.Errorf("expected expense to be stored, got %v", err)
	}
}
