// Package engine executes batches of independent tasks, either on a bounded
// worker pool or one after another with a fixed gap.
package engine

import (
	"context"
	"sync"
	"time"

	"reporter/pkg/logx"
)

// Pool is stateless between batches and safe for concurrent use.
type Pool struct {
	cfg Config
	log logx.Logger
}

func New(cfg Config, log logx.Logger) *Pool {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pool{cfg: cfg.withDefaults(), log: log.With(logx.String("comp", "engine"))}
}

func (p *Pool) Workers() int { return p.cfg.Workers }

func (p *Pool) Gap() time.Duration { return p.cfg.Gap }

// Run executes tasks with at most Workers in flight and waits for all of
// them. Tasks that could not start before ctx ended report ErrNotStarted.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	out := make([]Outcome, len(tasks))
	if len(tasks) == 0 {
		return out
	}

	sem := newSemaphore(p.cfg.Workers)
	var wg sync.WaitGroup
	for i := range tasks {
		if !sem.acquire(ctx) {
			for j := i; j < len(tasks); j++ {
				out[j] = Outcome{Name: tasks[j].Name, Err: notStarted(ctx.Err())}
			}
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.release()
			// each goroutine owns out[i]
			out[i] = p.execOne(ctx, tasks[i])
		}(i)
	}
	wg.Wait()
	return out
}

// RunSerial executes tasks in order, pausing Gap between consecutive tasks.
func (p *Pool) RunSerial(ctx context.Context, tasks []Task) []Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	out := make([]Outcome, len(tasks))
	for i := range tasks {
		if i > 0 && !p.pause(ctx) {
			for j := i; j < len(tasks); j++ {
				out[j] = Outcome{Name: tasks[j].Name, Err: notStarted(ctx.Err())}
			}
			return out
		}
		if err := ctx.Err(); err != nil {
			out[i] = Outcome{Name: tasks[i].Name, Err: notStarted(err)}
			continue
		}
		out[i] = p.execOne(ctx, tasks[i])
	}
	return out
}

func (p *Pool) pause(ctx context.Context) bool {
	if p.cfg.Gap <= 0 {
		return ctx.Err() == nil
	}
	tmr := time.NewTimer(p.cfg.Gap)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-tmr.C:
		return true
	}
}
