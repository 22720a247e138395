package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"reporter/internal/config"
	"reporter/internal/task/due"
	"reporter/pkg/logx"
)

const watchDebounce = 250 * time.Millisecond

// FileCheck is the outcome of validating one task file.
type FileCheck struct {
	Path     string
	Tasks    int
	Problems []error
}

func (c FileCheck) OK() bool { return len(c.Problems) == 0 }

// CheckFile loads path as a single source, validates every agent and parses
// every enabled schedule. Nothing is executed.
func (r *Runtime) CheckFile(ctx context.Context, path string) FileCheck {
	fc := FileCheck{Path: path}
	f, err := config.LoadFile(path)
	if err != nil {
		fc.Problems = append(fc.Problems, err)
		return fc
	}
	fc.Tasks = len(f.Tasks)
	for _, def := range f.Tasks {
		if !def.Enabled || def.Schedule == "" {
			continue
		}
		if _, err := due.Parse(def.Schedule); err != nil {
			fc.Problems = append(fc.Problems, &due.CronParseError{Source: path, TaskID: def.ID, Spec: def.Schedule, Err: err})
		}
	}

	sch := r.Runner().NewScheduler(path)
	if err := sch.Load(ctx); err != nil {
		fc.Problems = append(fc.Problems, err)
		return fc
	}
	for _, lf := range sch.Failures() {
		fc.Problems = append(fc.Problems, fmt.Errorf("task %s: %w", lf.TaskID, lf.Err))
	}
	if ok, errs := sch.ValidateAll(); !ok {
		for _, id := range slices.Sorted(maps.Keys(errs)) {
			fc.Problems = append(fc.Problems, fmt.Errorf("task %s: %w", id, errs[id]))
		}
	}
	return fc
}

// watchConfig validates task files in dir as they change until ctx ends.
// Events are debounced per file.
func watchConfig(ctx context.Context, dir string, patterns []string, log logx.Logger, check func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Info("config.watching", logx.String("dir", dir))

	var (
		mu     sync.Mutex
		timers = map[string]*time.Timer{}
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()
	debounce := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[path]; ok {
			t.Stop()
		}
		timers[path] = time.AfterFunc(watchDebounce, func() {
			if ctx.Err() != nil {
				return
			}
			check(path)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("config watcher closed")
			}
			if !config.IsTaskFile(ev.Name, patterns) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce(filepath.Clean(ev.Name))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("config watcher closed")
			}
			log.Warn("config.watch_error", logx.Err(err))
		}
	}
}
