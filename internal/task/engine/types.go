package engine

import (
	"context"
	"time"
)

const (
	DefaultWorkers = 3
	DefaultGap     = 2 * time.Second
)

// Config controls a Pool.
type Config struct {
	// Workers is the parallel width. 0 means DefaultWorkers.
	Workers int
	// Gap is the pause between tasks in serial mode. Negative means no pause;
	// 0 means DefaultGap.
	Gap time.Duration
	// DefaultTimeout applies when Task.Timeout is 0. 0 disables it.
	DefaultTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Gap == 0 {
		c.Gap = DefaultGap
	}
	if c.Gap < 0 {
		c.Gap = 0
	}
	return c
}

// Task is a unit of work executed by the pool.
type Task struct {
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Outcome is the record of one task. Outcomes are returned in task order
// regardless of completion order.
type Outcome struct {
	Name     string
	Started  time.Time
	Duration time.Duration
	Err      error
}
