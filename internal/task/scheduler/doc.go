// Package scheduler turns one configuration source into a set of agents and
// runs them.
//
// A Scheduler goes through three phases:
//   - Load: read the source, merge each task with the global block and
//     construct its agent; per-task failures are logged and skipped
//   - Validate: re-check every constructed agent without side effects
//   - Execute: run one agent by id, or every enabled agent on the worker
//     pool (parallel) or one after another with a gap (serial)
package scheduler
