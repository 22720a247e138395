package due

import (
	"context"
	"fmt"
	"time"

	"reporter/internal/agent"
	"reporter/internal/storage"
	"reporter/internal/task/scheduler"
	"reporter/pkg/logx"
)

// markTTL is how long a fire mark outlives its minute.
const markTTL = 2 * time.Hour

// SchedulerFactory builds a fresh scheduler for one source.
type SchedulerFactory func(source string) *scheduler.Scheduler

// TaskResult is the result of one due task.
type TaskResult struct {
	Source string
	TaskID string
	Result agent.Result
}

// Report summarizes one Run.
type Report struct {
	Minute  time.Time
	Summary scheduler.Summary
	Results []TaskResult
	// Skipped counts tasks whose minute was already claimed.
	Skipped  int
	Problems []error
}

func (r Report) OK() bool { return r.Summary.Failed == 0 }

// Runner selects due tasks and executes them, one scheduler per source.
type Runner struct {
	Selector *Selector
	// NewScheduler must not share a Scheduler across calls.
	NewScheduler SchedulerFactory
	// Ledger is optional. When set, a task fires at most once per minute
	// across processes sharing it.
	Ledger storage.Ledger
	// OnLoadError is called when a source that had due tasks fails to load.
	OnLoadError func(ctx context.Context, source string, err error)
	Log         logx.Logger
}

// Run executes every task due at now. Sources run in scan order and tasks
// within a source in definition order.
func (r *Runner) Run(ctx context.Context, now time.Time) (Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	log := r.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "due.runner"))

	sel, err := r.Selector.Select(ctx, now)
	if err != nil {
		return Report{Minute: sel.Minute}, err
	}
	rep := Report{Minute: sel.Minute, Problems: sel.Problems}

	var order []string
	groups := map[string][]Task{}
	for _, t := range sel.Due {
		if !r.claim(ctx, log, t) {
			rep.Skipped++
			continue
		}
		if _, ok := groups[t.Source]; !ok {
			order = append(order, t.Source)
		}
		groups[t.Source] = append(groups[t.Source], t)
	}

	for _, src := range order {
		tasks := groups[src]
		sch := r.NewScheduler(src)
		if err := sch.Load(ctx); err != nil {
			lerr := fmt.Errorf("load %s: %w", src, err)
			log.Error("due.load_failed", logx.String("source", src), logx.Err(err))
			if r.OnLoadError != nil {
				r.OnLoadError(ctx, src, lerr)
			}
			for _, t := range tasks {
				rep.add(src, t.Def.ID, agent.Failed(t.Def.ID, lerr))
			}
			continue
		}
		for _, t := range tasks {
			rep.add(src, t.Def.ID, sch.ExecuteByID(ctx, t.Def.ID))
		}
	}

	log.Info("due.finished",
		logx.Time("minute", rep.Minute),
		logx.Int("total", rep.Summary.Total),
		logx.Int("succeeded", rep.Summary.Succeeded),
		logx.Int("failed", rep.Summary.Failed),
		logx.Int("skipped", rep.Skipped),
	)
	return rep, nil
}

func (r *Runner) claim(ctx context.Context, log logx.Logger, t Task) bool {
	if r.Ledger == nil {
		return true
	}
	key := t.Key() + "|" + t.Minute.UTC().Format("200601021504")
	ok, err := r.Ledger.Claim(ctx, key, t.Minute, t.Minute.Add(markTTL))
	if err != nil {
		// an unavailable ledger must not stop the tick
		log.Warn("due.ledger_failed", logx.String("key", key), logx.Err(err))
		return true
	}
	if !ok {
		log.Info("due.already_fired", logx.String("source", t.Source), logx.String("task", t.Def.ID))
	}
	return ok
}

func (r *Report) add(src, id string, res agent.Result) {
	r.Results = append(r.Results, TaskResult{Source: src, TaskID: id, Result: res})
	r.Summary.Total++
	if res.Success {
		r.Summary.Succeeded++
	} else {
		r.Summary.Failed++
	}
}
