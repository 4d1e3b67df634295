package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
	"github.com/mmynk/splitledger/pkg/api"
)

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("db gone") }

func setupRouter(t *testing.T, jwt *auth.JWTManager) (*httptest.Server, *sqlite.SQLiteStore) {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "router.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	server := httptest.NewServer(NewRouter(Deps{
		Service:  service.NewExpenseService(store),
		JWT:      jwt,
		Registry: prometheus.NewRegistry(),
		Health:   store,
	}))
	t.Cleanup(server.Close)
	return server, store
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	server, _ := setupRouter(t, nil)

	code, body := get(t, server.URL+"/healthz")
	if code != http.StatusOK || !strings.Contains(body, `"ok"`) {
		t.Errorf("healthz: got %d %s", code, body)
	}

	client := api.NewExpenseServiceClient(http.DefaultClient, server.URL)
	if _, err := client.ListExpenses(context.Background(), connect.NewRequest(&emptypb.Empty{})); err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}

	code, body = get(t, server.URL+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("metrics: got %d", code)
	}
	if !strings.Contains(body, "splitledger_rpc_requests_total") || !strings.Contains(body, api.ListExpensesProcedure) {
		t.Errorf("expected RPC counter in metrics output")
	}
}

func TestRouter_HealthUnavailable(t *testing.T) {
	rec := httptest.NewRecorder()
	healthHandler(downPinger{})(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestRouter_RequestIDHeader(t *testing.T) {
	server, _ := setupRouter(t, nil)

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id response header")
	}
}

func TestRouter_ChatWebhook(t *testing.T) {
	server, _ := setupRouter(t, nil)

	body := `{"sender":"ana","body":"/new 20 lunch","participants":["ana","leo"]}`
	resp, err := http.Post(server.URL+"/chat/messages", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	reply, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, reply)
	}
	if !strings.Contains(string(reply), "*LUNCH*") {
		t.Errorf("unexpected reply: %s", reply)
	}
}

func TestRouter_AuthRequired(t *testing.T) {
	jwtManager := auth.NewJWTManager("router-secret", time.Hour)
	server, _ := setupRouter(t, jwtManager)
	client := api.NewExpenseServiceClient(http.DefaultClient, server.URL)

	t.Run("RPC without token", func(t *testing.T) {
		_, err := client.ListExpenses(context.Background(), connect.NewRequest(&emptypb.Empty{}))
		if connect.CodeOf(err) != connect.CodeUnauthenticated {
			t.Errorf("expected CodeUnauthenticated, got %v", err)
		}
	})

	t.Run("RPC with token", func(t *testing.T) {
		token, err := jwtManager.Generate("test-suite")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		req := connect.NewRequest(&emptypb.Empty{})
		req.Header().Set("Authorization", "Bearer "+token)
		if _, err := client.ListExpenses(context.Background(), req); err != nil {
			t.Errorf("ListExpenses failed: %v", err)
		}
	})

	t.Run("webhook without token", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/chat/messages", "application/json", strings.NewReader(`{"body":"/help"}`))
		if err != nil {
			t.Fatalf("POST failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
	})

	t.Run("health stays open", func(t *testing.T) {
		code, _ := get(t, server.URL+"/healthz")
		if code != http.StatusOK {
			t.Errorf("expected 200, got %d", code)
		}
	})
}
