package scheduler

import (
	"time"

	"reporter/internal/agent"
	"reporter/internal/config"
	"reporter/pkg/logx"
)

// Options configures a Scheduler.
type Options struct {
	// Source is the configuration file to load.
	Source string
	// Fallbacks are tried in order when Source does not exist. The first
	// existing, non-empty one is copied to Source and loaded.
	Fallbacks []string

	Registry *agent.Registry
	Deps     agent.Deps
	// Defaults is the built-in layer under each source's global block.
	Defaults config.Values

	// Workers is the parallel width (default 3).
	Workers int
	// Gap is the pause between agents in serial mode (default 2s).
	Gap time.Duration
	// TaskTimeout bounds one agent execution. 0 means no bound beyond the
	// providers' own timeouts.
	TaskTimeout time.Duration

	Log logx.Logger
}

// LoadFailure is a task that could not be turned into an agent.
type LoadFailure struct {
	TaskID string
	Err    error
}

// Summary folds a batch of results.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

func (s Summary) OK() bool { return s.Failed == 0 }

// Summarize counts results.
func Summarize(results map[string]agent.Result) Summary {
	var s Summary
	for _, r := range results {
		s.Total++
		if r.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
