package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"reporter/pkg/logx"
)

func openLedger(t *testing.T, name string) Ledger {
	t.Helper()
	l, err := Open(Config{Path: filepath.Join(t.TempDir(), name)}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", name, err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func testClaimOnce(t *testing.T, l Ledger) {
	t.Helper()
	ctx := context.Background()
	// fixed instants well in the past; expiry follows now, not the wall clock
	now := time.Date(2020, 1, 2, 2, 0, 0, 0, time.UTC)
	until := now.Add(time.Hour)
	key := "tasks.yaml|daily|202001020200"

	ok, err := l.Claim(ctx, key, now, until)
	if err != nil || !ok {
		t.Fatalf("first claim = %v, %v", ok, err)
	}
	ok, err = l.Claim(ctx, key, now.Add(30*time.Second), until)
	if err != nil || ok {
		t.Fatalf("second claim = %v, %v", ok, err)
	}
	if ok, _ := l.Claim(ctx, key, until, until.Add(time.Hour)); ok {
		t.Fatal("mark must hold through until")
	}
	if ok, _ := l.Claim(ctx, key, until.Add(time.Millisecond), until.Add(time.Hour)); !ok {
		t.Fatal("expired mark should be reclaimable")
	}
	if ok, _ := l.Claim(ctx, "other", now, until); !ok {
		t.Fatal("unrelated key claimed")
	}
}

func TestFileLedgerClaim(t *testing.T) {
	t.Parallel()
	testClaimOnce(t, openLedger(t, "ledger.json"))
}

func TestSQLiteLedgerClaim(t *testing.T) {
	t.Parallel()
	testClaimOnce(t, openLedger(t, "ledger.db"))
}

func TestFileLedgerSurvivesReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ledger.json")
	ctx := context.Background()

	l, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now := time.Date(2020, 1, 2, 2, 0, 0, 0, time.UTC)
	if ok, err := l.Claim(ctx, "k", now, now.Add(time.Hour)); !ok || err != nil {
		t.Fatalf("claim = %v, %v", ok, err)
	}
	_ = l.Close()
	if _, err := l.Claim(ctx, "k2", now, now); !errors.Is(err, ErrClosed) {
		t.Fatalf("claim after close = %v", err)
	}

	l, err = Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()
	if ok, _ := l.Claim(ctx, "k", now.Add(time.Minute), now.Add(time.Hour)); ok {
		t.Fatal("mark lost across reopen")
	}
}

func TestOpenDisabledAndDriverFor(t *testing.T) {
	t.Parallel()
	if l, err := Open(Config{}, logx.Nop()); l != nil || err != nil {
		t.Fatalf("empty config = %v, %v", l, err)
	}
	if l, err := Open(Config{Driver: "none", Path: "x.db"}, logx.Nop()); l != nil || err != nil {
		t.Fatalf("none = %v, %v", l, err)
	}
	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected unknown driver error")
	}
	tests := map[string]string{"a.db": "sqlite", "a.SQLITE": "sqlite", "a.json": "file", "ledger": "file"}
	for in, want := range tests {
		if got := DriverFor(in); got != want {
			t.Fatalf("DriverFor(%q) = %q, want %q", in, got, want)
		}
	}
}
