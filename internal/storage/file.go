package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"reporter/pkg/logx"
)

// fileLedger keeps marks in memory, backed by:
//   - <prefix>.marks.snapshot.json (compacted state)
//   - <prefix>.marks.journal.jsonl (append-only since the last compaction)
//
// It serializes callers within one process only.
type fileLedger struct {
	log logx.Logger

	mu           sync.Mutex
	snapshotPath string
	journal      *os.File
	marks        map[string]int64 // unix milli
	writes       int
	compactEvery int
}

type markRecord struct {
	Key   string `json:"key"`
	Until int64  `json:"until"`
}

func openFile(cfg Config, log logx.Logger) (Ledger, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("ledger path is required for file driver")
	}
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".marks.snapshot.json"
	journalPath := prefix + ".marks.journal.jsonl"

	marks := map[string]int64{}
	if err := loadSnapshot(snapPath, marks); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("ledger.snapshot_unreadable", logx.String("path", snapPath), logx.Err(err))
	}
	if err := replayJournal(journalPath, marks); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("ledger.journal_unreadable", logx.String("path", journalPath), logx.Err(err))
	}
	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileLedger{
		log:          log,
		snapshotPath: snapPath,
		journal:      jf,
		marks:        marks,
		compactEvery: 500,
	}, nil
}

func (l *fileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.journal == nil {
		return nil
	}
	err := l.journal.Close()
	l.journal = nil
	return err
}

func (l *fileLedger) Claim(ctx context.Context, key string, now, until time.Time) (bool, error) {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.journal == nil {
		return false, ErrClosed
	}
	if ms, ok := l.marks[key]; ok && ms >= now.UnixMilli() {
		return false, nil
	}
	ms := until.UnixMilli()
	if err := json.NewEncoder(l.journal).Encode(markRecord{Key: key, Until: ms}); err != nil {
		return false, err
	}
	l.marks[key] = ms
	l.writes++
	if l.writes%l.compactEvery == 0 {
		if err := l.compactLocked(now); err != nil {
			l.log.Debug("ledger.compact_failed", logx.Err(err))
		}
	}
	return true, nil
}

func (l *fileLedger) compactLocked(now time.Time) error {
	pruneExpired(l.marks, now)

	tmp := l.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(l.marks); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, l.snapshotPath); err != nil {
		return err
	}
	if err := l.journal.Truncate(0); err != nil {
		return err
	}
	_, err = l.journal.Seek(0, 2)
	return err
}

func loadSnapshot(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]int64
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayJournal(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r markRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.Key == "" {
			continue
		}
		out[r.Key] = r.Until
	}
	return sc.Err()
}

func pruneExpired(m map[string]int64, now time.Time) {
	ms := now.UnixMilli()
	for k, v := range m {
		if v < ms {
			delete(m, k)
		}
	}
}
