package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"reporter/internal/agent"
	"reporter/internal/config"
	"reporter/pkg/logx"
)

// Load reads Options.Source and constructs its agents, replacing any
// previously loaded set. Only an unreadable or unparsable source is an
// error; a missing source with no usable fallback yields zero agents.
func (s *Scheduler) Load(ctx context.Context) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	f, err := s.readSource()
	if err != nil {
		return err
	}

	agents := make([]agent.Agent, 0, len(f.Tasks))
	byID := make(map[string]agent.Agent, len(f.Tasks))
	seen := make(map[string]struct{}, len(f.Tasks))
	var failures []LoadFailure

	for i, def := range f.Tasks {
		id := def.ID
		if id == "" {
			id = fmt.Sprintf("#%d", i+1)
		}
		if _, dup := seen[def.ID]; dup && def.ID != "" {
			err := fmt.Errorf("duplicate task id %q", def.ID)
			failures = append(failures, LoadFailure{TaskID: id, Err: err})
			s.log.Warn("task.duplicate_skipped", logx.String("task", id))
			continue
		}
		seen[def.ID] = struct{}{}

		cfg := agent.MergeWithDefaults(s.opts.Defaults, f.Global, def.Fields)
		a, err := s.registry.Create(cfg, s.opts.Deps)
		if err != nil {
			failures = append(failures, LoadFailure{TaskID: id, Err: err})
			s.log.Warn("task.load_failed", logx.String("task", id), logx.Err(err))
			continue
		}
		info := a.Info()
		agents = append(agents, a)
		byID[info.ID] = a
		s.log.Debug("task.loaded", logx.String("task", info.ID), logx.String("type", info.Type), logx.Bool("enabled", info.Enabled))
	}

	s.mu.Lock()
	s.agents = agents
	s.byID = byID
	s.failures = failures
	s.mu.Unlock()

	s.log.Info("config.loaded",
		logx.String("source", f.Path),
		logx.Int("agents", len(agents)),
		logx.Int("failed", len(failures)),
	)
	return nil
}

func (s *Scheduler) readSource() (*config.File, error) {
	src := s.opts.Source
	f, err := config.LoadFile(src)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", src, err)
	}

	fb, ok, err := s.materializeFallback()
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log.Warn("config.missing", logx.String("source", src))
		return &config.File{Path: src, Global: config.Values{}}, nil
	}
	s.log.Info("config.fallback_copied", logx.String("from", fb), logx.String("to", src))
	f, err = config.LoadFile(src)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", src, err)
	}
	return f, nil
}

func (s *Scheduler) materializeFallback() (string, bool, error) {
	for _, fb := range s.opts.Fallbacks {
		b, err := os.ReadFile(fb)
		if err != nil || len(bytes.TrimSpace(b)) == 0 {
			continue
		}
		if dir := filepath.Dir(s.opts.Source); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", false, fmt.Errorf("create %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(s.opts.Source, b, 0o644); err != nil {
			return "", false, fmt.Errorf("copy %s to %s: %w", fb, s.opts.Source, err)
		}
		return fb, true, nil
	}
	return "", false, nil
}
