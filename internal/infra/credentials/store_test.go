package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubExecutor struct {
	token string
	err   error
	exec  struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestKieAPIKey(t *testing.T) {
	store := NewStore(&stubExecutor{token: " abc123 "})
	key, err := store.KieAPIKey(context.Background())
	if err != nil {
		t.Fatalf("KieAPIKey error: %v", err)
	}
	if key != "abc123" {
		t.Fatalf("expected abc123, got %q", key)
	}
}

func TestKieAPIKey_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	key, err := store.KieAPIKey(context.Background())
	if err != nil {
		t.Fatalf("KieAPIKey error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestSetKieAPIKey(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.SetKieAPIKey(context.Background(), "secret", map[string]any{"note": "ops"}); err != nil {
		t.Fatalf("SetKieAPIKey error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[0].(string); !ok || v != ProviderKie {
		t.Fatalf("expected provider %q, got %v", ProviderKie, exec.exec.args[0])
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
	raw, ok := exec.exec.args[2].(json.RawMessage)
	if !ok || string(raw) != `{"note":"ops"}` {
		t.Fatalf("properties = %T %s", exec.exec.args[2], exec.exec.args[2])
	}
}

func TestSetKieAPIKeyEmpty(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.SetKieAPIKey(context.Background(), " ", nil); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestEnsureSchema(t *testing.T) {
	exec := &stubExecutor{}
	if err := NewStore(exec).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema error: %v", err)
	}
	if !strings.Contains(exec.exec.query, "create table if not exists service_credentials") {
		t.Fatalf("unexpected schema query %q", exec.exec.query)
	}
}

func TestResolveKieAPIKey(t *testing.T) {
	store := NewStore(&stubExecutor{token: "from-db"})
	key, err := ResolveKieAPIKey(context.Background(), " from-env ", store)
	if err != nil || key != "from-env" {
		t.Fatalf("configured key = %q, %v; want from-env", key, err)
	}
	key, err = ResolveKieAPIKey(context.Background(), "", store)
	if err != nil || key != "from-db" {
		t.Fatalf("stored key = %q, %v; want from-db", key, err)
	}
	key, err = ResolveKieAPIKey(context.Background(), "", nil)
	if err != nil || key != "" {
		t.Fatalf("no store = %q, %v; want empty", key, err)
	}
}
