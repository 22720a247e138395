// Package due selects, for a given minute, the scheduled tasks that should
// fire across every task file in a directory, and runs them.
package due

import (
	"context"
	"time"

	"reporter/internal/config"
	"reporter/pkg/logx"
)

// Task is one selected task.
type Task struct {
	Def config.TaskDefinition
	// Source is the file the task was read from.
	Source string
	// Minute is the fire minute that selected it.
	Minute time.Time
}

// Key identifies a task across sources.
func (t Task) Key() string { return t.Source + "|" + t.Def.ID }

// Selection is the outcome of one scan.
type Selection struct {
	Minute time.Time
	Files  []string
	Due    []Task
	// Problems are per-file and per-task issues that were skipped.
	Problems []error
}

// Selector finds due tasks in Dir. The zero Location means time.Local.
type Selector struct {
	Dir      string
	Patterns []string
	Location *time.Location
	Log      logx.Logger
}

// Select scans the task files at now. Only a failure to list Dir is returned
// as an error; unreadable files, bad schedules and duplicate ids are logged,
// recorded in Problems and skipped.
func (s *Selector) Select(ctx context.Context, now time.Time) (Selection, error) {
	log := s.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "due"))

	sel := Selection{Minute: Minute(now, s.Location)}
	files, err := config.Discover(s.Dir, s.Patterns)
	if err != nil {
		return sel, err
	}
	sel.Files = files

	seen := map[string]struct{}{}
	for _, path := range files {
		if ctx != nil && ctx.Err() != nil {
			return sel, ctx.Err()
		}
		f, err := config.LoadFile(path)
		if err != nil {
			log.Warn("due.source_skipped", logx.String("source", path), logx.Err(err))
			sel.Problems = append(sel.Problems, err)
			continue
		}
		for _, def := range f.Tasks {
			if def.ID == "" {
				continue
			}
			// the first definition of an id owns it, as in Scheduler.Load
			key := path + "|" + def.ID
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if !def.Enabled || def.Schedule == "" {
				continue
			}
			sched, err := Parse(def.Schedule)
			if err != nil {
				perr := &CronParseError{Source: path, TaskID: def.ID, Spec: def.Schedule, Err: err}
				log.Warn("due.bad_schedule", logx.Err(perr))
				sel.Problems = append(sel.Problems, perr)
				continue
			}
			if !Matches(sched, sel.Minute) {
				continue
			}
			sel.Due = append(sel.Due, Task{Def: def, Source: path, Minute: sel.Minute})
			log.Debug("due.selected", logx.String("source", path), logx.String("task", def.ID), logx.String("schedule", def.Schedule))
		}
	}
	log.Info("due.scanned",
		logx.Time("minute", sel.Minute),
		logx.Int("files", len(files)),
		logx.Int("due", len(sel.Due)),
		logx.Int("problems", len(sel.Problems)),
	)
	return sel, nil
}
