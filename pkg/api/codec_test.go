package api

import (
	"encoding/json"
	"testing"

	"google.golang.org/protobuf/types/known/emptypb"
)

func TestCodec(t *testing.T) {
	codec := Codec()
	if codec.Name() != "json" {
		t.Fatalf("expected codec name json, got %s", codec.Name())
	}

	t.Run("plain struct round trip", func(t *testing.T) {
		in := &CreateExpenseRequest{Amount: "10.50", Description: "taxi", Payer: "alice", Debtors: []string{"bob"}}
		data, err := codec.Marshal(in)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		out := &CreateExpenseRequest{}
		if err := codec.Unmarshal(data, out); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if out.Amount != "10.50" || out.Payer != "alice" || len(out.Debtors) != 1 {
			t.Errorf("round trip mismatch: %+v", out)
		}
	})

	t.Run("proto empty message", func(t *testing.T) {
		data, err := codec.Marshal(&emptypb.Empty{})
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if string(data) != "{}" {
			t.Errorf("expected {}, got %s", data)
		}
		if err := codec.Unmarshal(nil, &emptypb.Empty{}); err != nil {
			t.Errorf("Unmarshal of empty body failed: %v", err)
		}
	})

	t.Run("empty body decodes to zero struct", func(t *testing.T) {
		out := &GetExpenseRequest{}
		if err := codec.Unmarshal(nil, out); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if out.ExpenseID != 0 {
			t.Errorf("expected zero id, got %d", out.ExpenseID)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if err := codec.Unmarshal([]byte("{"), &GetExpenseRequest{}); err == nil {
			t.Error("expected error for truncated JSON")
		}
	})
}

func TestUpdateExpenseRequestDebtorPresence(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantNil   bool
		wantCount int
	}{
		{name: "absent", body: `{"expense_id":1}`, wantNil: true},
		{name: "null", body: `{"expense_id":1,"debtors":null}`, wantNil: true},
		{name: "empty", body: `{"expense_id":1,"debtors":[]}`, wantNil: false, wantCount: 0},
		{name: "two", body: `{"expense_id":1,"debtors":[{"debtor":"a","amount":"1"},{"debtor":"b","amount":"2"}]}`, wantCount: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req UpdateExpenseRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if (req.Debtors == nil) != tt.wantNil {
				t.Errorf("Debtors nil = %v, want %v", req.Debtors == nil, tt.wantNil)
			}
			if len(req.Debtors) != tt.wantCount {
				t.Errorf("len(Debtors) = %d, want %d", len(req.Debtors), tt.wantCount)
			}
		})
	}
}
