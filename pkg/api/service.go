package api

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
)

// ServiceName is the fully-qualified name of the expense service.
const ServiceName = "splitledger.v1.ExpenseService"

const (
	CreateExpenseProcedure = "/" + ServiceName + "/CreateExpense"
	GetExpenseProcedure    = "/" + ServiceName + "/GetExpense"
	UpdateExpenseProcedure = "/" + ServiceName + "/UpdateExpense"
	DeleteExpenseProcedure = "/" + ServiceName + "/DeleteExpense"
	ListExpensesProcedure  = "/" + ServiceName + "/ListExpenses"
	GetReportProcedure     = "/" + ServiceName + "/GetReport"
)

// ExpenseServiceHandler is implemented by the server.
type ExpenseServiceHandler interface {
	CreateExpense(context.Context, *connect.Request[CreateExpenseRequest]) (*connect.Response[ExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[GetExpenseRequest]) (*connect.Response[ExpenseResponse], error)
	UpdateExpense(context.Context, *connect.Request[UpdateExpenseRequest]) (*connect.Response[ExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[DeleteExpenseRequest]) (*connect.Response[emptypb.Empty], error)
	ListExpenses(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[ListExpensesResponse], error)
	GetReport(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[ReportResponse], error)
}

// NewExpenseServiceHandler builds an HTTP handler serving every procedure of
// svc. The returned path is the prefix to mount it on.
func NewExpenseServiceHandler(svc ExpenseServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec())}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CreateExpenseProcedure, connect.NewUnaryHandler(CreateExpenseProcedure, svc.CreateExpense, opts...))
	mux.Handle(GetExpenseProcedure, connect.NewUnaryHandler(GetExpenseProcedure, svc.GetExpense, opts...))
	mux.Handle(UpdateExpenseProcedure, connect.NewUnaryHandler(UpdateExpenseProcedure, svc.UpdateExpense, opts...))
	mux.Handle(DeleteExpenseProcedure, connect.NewUnaryHandler(DeleteExpenseProcedure, svc.DeleteExpense, opts...))
	mux.Handle(ListExpensesProcedure, connect.NewUnaryHandler(ListExpensesProcedure, svc.ListExpenses, opts...))
	mux.Handle(GetReportProcedure, connect.NewUnaryHandler(GetReportProcedure, svc.GetReport, opts...))

	return "/" + ServiceName + "/", mux
}

// ExpenseServiceClient calls a remote ExpenseService.
type ExpenseServiceClient struct {
	createExpense *connect.Client[CreateExpenseRequest, ExpenseResponse]
	getExpense    *connect.Client[GetExpenseRequest, ExpenseResponse]
	updateExpense *connect.Client[UpdateExpenseRequest, ExpenseResponse]
	deleteExpense *connect.Client[DeleteExpenseRequest, emptypb.Empty]
	listExpenses  *connect.Client[emptypb.Empty, ListExpensesResponse]
	getReport     *connect.Client[emptypb.Empty, ReportResponse]
}

// NewExpenseServiceClient creates a client for the service at baseURL.
func NewExpenseServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ExpenseServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec())}, opts...)
	return &ExpenseServiceClient{
		createExpense: connect.NewClient[CreateExpenseRequest, ExpenseResponse](httpClient, baseURL+CreateExpenseProcedure, opts...),
		getExpense:    connect.NewClient[GetExpenseRequest, ExpenseResponse](httpClient, baseURL+GetExpenseProcedure, opts...),
		updateExpense: connect.NewClient[UpdateExpenseRequest, ExpenseResponse](httpClient, baseURL+UpdateExpenseProcedure, opts...),
		deleteExpense: connect.NewClient[DeleteExpenseRequest, emptypb.Empty](httpClient, baseURL+DeleteExpenseProcedure, opts...),
		listExpenses:  connect.NewClient[emptypb.Empty, ListExpensesResponse](httpClient, baseURL+ListExpensesProcedure, opts...),
		getReport:     connect.NewClient[emptypb.Empty, ReportResponse](httpClient, baseURL+GetReportProcedure, opts...),
	}
}

func (c *ExpenseServiceClient) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) GetExpense(ctx context.Context, req *connect.Request[GetExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	return c.getExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) UpdateExpense(ctx context.Context, req *connect.Request[UpdateExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	return c.updateExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[emptypb.Empty], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ListExpenses(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) GetReport(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[ReportResponse], error) {
	return c.getReport.CallUnary(ctx, req)
}
