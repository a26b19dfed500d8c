package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
)

func TestAuditStoreLog(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO audit_logs") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 5 || args[1] != "voucher.consume" || args[3] != "v-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			if actor, ok := args[0].(*string); !ok || *actor != "company-1" {
				t.Fatalf("unexpected actor: %#v", args[0])
			}
			if args[4] != `{"code":"RSG-1"}` {
				t.Fatalf("unexpected data: %#v", args[4])
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewAuditStore(stubDB{})
	err := store.Log(ctx, execer, "company-1", "voucher.consume", "voucher", "v-1", map[string]any{"code": "RSG-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuditStoreLogSystemActor(t *testing.T) {
	execer := stubExecer{
		execFn: func(_ context.Context, _ string, args ...any) (sql.Result, error) {
			if actor, ok := args[0].(*string); !ok || actor != nil {
				t.Fatalf("expected nil actor, got %#v", args[0])
			}
			if args[4] != `{}` {
				t.Fatalf("unexpected data: %#v", args[4])
			}
			return stubResult{rows: 1}, nil
		},
	}
	if err := NewAuditStore(stubDB{}).Log(context.Background(), execer, "", "sweep", "payment_token", "-", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuditStoreList(t *testing.T) {
	store := NewAuditStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM audit_logs") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 3 || args[0] != "voucher" || args[1] != 10 || args[2] != 0 {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]AuditEntry) = []AuditEntry{{ID: "log-1"}}
			return nil
		},
	})
	rows, err := store.List(context.Background(), "voucher", 10, 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("unexpected result: %#v %v", rows, err)
	}
}
