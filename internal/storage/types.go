package storage

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Ledger records which fire keys have been claimed.
type Ledger interface {
	// Claim marks key as fired until the given time. It reports false when
	// key is already marked and the mark has not expired as of now.
	Claim(ctx context.Context, key string, now, until time.Time) (bool, error)
	Close() error
}

// Config configures a Ledger.
//
// Driver values:
//   - "file": snapshot + journal next to Path
//   - "sqlite": SQLite database at Path
//   - "": chosen from Path's extension (".db", ".sqlite", ".sqlite3" mean sqlite)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means 5s
}
