package storage

import (
	"errors"
	"path/filepath"
	"strings"

	"reporter/pkg/logx"
)

// Open initializes the configured ledger. It returns (nil, nil) when Path is
// empty or Driver is "none".
func Open(cfg Config, log logx.Logger) (Ledger, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "none" || strings.TrimSpace(cfg.Path) == "" {
		return nil, nil
	}
	if driver == "" {
		driver = DriverFor(cfg.Path)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// DriverFor picks a driver from a file extension.
func DriverFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	default:
		return "file"
	}
}
