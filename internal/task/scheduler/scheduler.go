package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reporter/internal/agent"
	"reporter/internal/config"
	"reporter/internal/task/engine"
	"reporter/pkg/logx"
)

// Scheduler owns the agents of one configuration source. Agents are built
// by Load and discarded with the Scheduler.
type Scheduler struct {
	opts     Options
	registry *agent.Registry
	pool     *engine.Pool
	log      logx.Logger

	mu       sync.RWMutex
	agents   []agent.Agent
	byID     map[string]agent.Agent
	failures []LoadFailure
}

func New(opts Options) *Scheduler {
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	reg := opts.Registry
	if reg == nil {
		reg = agent.NewRegistry()
	}
	gap := opts.Gap
	if gap == 0 {
		gap = engine.DefaultGap
	}
	if opts.Source == "" {
		opts.Source = config.DefaultConfigPath
	}
	log = log.With(logx.String("comp", "scheduler"))
	return &Scheduler{
		opts:     opts,
		registry: reg,
		pool: engine.New(engine.Config{
			Workers:        opts.Workers,
			Gap:            gap,
			DefaultTimeout: opts.TaskTimeout,
		}, log),
		log:  log,
		byID: map[string]agent.Agent{},
	}
}

func (s *Scheduler) Source() string { return s.opts.Source }

// Agents returns the loaded agents in definition order.
func (s *Scheduler) Agents() []agent.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]agent.Agent(nil), s.agents...)
}

// List returns the Info of every loaded agent.
func (s *Scheduler) List() []agent.Info {
	agents := s.Agents()
	out := make([]agent.Info, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.Info())
	}
	return out
}

// Failures returns the tasks skipped by the last Load.
func (s *Scheduler) Failures() []LoadFailure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]LoadFailure(nil), s.failures...)
}

// ValidateAll re-validates every loaded agent. It does not change state.
func (s *Scheduler) ValidateAll() (bool, map[string]error) {
	errs := map[string]error{}
	for _, a := range s.Agents() {
		if err := a.Validate(); err != nil {
			errs[a.Info().ID] = err
		}
	}
	return len(errs) == 0, errs
}

// ExecuteByID runs one agent. Unknown and disabled agents yield a failed
// result without touching any collaborator.
func (s *Scheduler) ExecuteByID(ctx context.Context, id string) agent.Result {
	s.mu.RLock()
	a, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return agent.Failed(id, fmt.Errorf("%w: %s", agent.ErrNotFound, id))
	}
	if !a.Info().Enabled {
		return agent.Failed(id, fmt.Errorf("%w: %s", agent.ErrDisabled, id))
	}
	res := s.run(ctx, []agent.Agent{a}, true)
	return res[0]
}

// ExecuteAll runs every enabled agent, keyed by agent id.
func (s *Scheduler) ExecuteAll(ctx context.Context, parallel bool) map[string]agent.Result {
	var enabled []agent.Agent
	for _, a := range s.Agents() {
		if a.Info().Enabled {
			enabled = append(enabled, a)
		}
	}
	mode := "serial"
	if parallel {
		mode = "parallel"
	}
	s.log.Info("batch.started", logx.Int("agents", len(enabled)), logx.String("mode", mode))
	start := time.Now()

	results := s.run(ctx, enabled, parallel)
	out := make(map[string]agent.Result, len(results))
	for _, r := range results {
		out[r.AgentID] = r
	}

	sum := Summarize(out)
	s.log.Info("batch.finished",
		logx.Int("total", sum.Total),
		logx.Int("succeeded", sum.Succeeded),
		logx.Int("failed", sum.Failed),
		logx.Duration("took", time.Since(start)),
	)
	return out
}

// run executes agents and returns one result per agent, in order.
func (s *Scheduler) run(ctx context.Context, agents []agent.Agent, parallel bool) []agent.Result {
	results := make([]agent.Result, len(agents))
	tasks := make([]engine.Task, len(agents))
	for i, a := range agents {
		i, a := i, a
		tasks[i] = engine.Task{
			Name: a.Info().ID,
			Run: func(ctx context.Context) error {
				results[i] = a.Execute(ctx)
				if !results[i].Success {
					return errors.New(results[i].Error)
				}
				return nil
			},
		}
	}

	var outcomes []engine.Outcome
	if parallel {
		outcomes = s.pool.Run(ctx, tasks)
	} else {
		outcomes = s.pool.RunSerial(ctx, tasks)
	}

	for i, o := range outcomes {
		id := agents[i].Info().ID
		// Run never got to record a result: panic, or never started.
		if results[i].AgentID == "" && o.Err != nil {
			results[i] = agent.Failed(id, o.Err)
			results[i].Query = agents[i].Info().Query
			results[i].Duration = o.Duration
		}
		if results[i].AgentID == "" {
			results[i].AgentID = id
		}
	}
	return results
}
