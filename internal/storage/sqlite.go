package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"reporter/pkg/logx"
)

//go:embed migrations.sql
var migrations string

type sqliteLedger struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Ledger, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; ticks from several processes serialize on busy_timeout.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	l := &sqliteLedger{db: db, log: log, pruneEvery: 200}
	if _, err := db.ExecContext(context.Background(), migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return l, nil
}

func (l *sqliteLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *sqliteLedger) Claim(ctx context.Context, key string, now, until time.Time) (bool, error) {
	if l == nil || l.db == nil {
		return false, ErrClosed
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true, nil
	}
	nowMs := now.UnixMilli()
	// Insert, or take over an expired mark; an unexpired one leaves zero rows affected.
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO fire_marks(key, until) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET until = excluded.until WHERE fire_marks.until < ?`,
		key, until.UnixMilli(), nowMs,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if l.opCount.Add(1)%l.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		if _, err := l.db.ExecContext(pctx, `DELETE FROM fire_marks WHERE until < ?`, nowMs); err != nil {
			l.log.Debug("ledger.prune_failed", logx.Err(err))
		}
		cancel()
	}
	return n > 0, nil
}
