package due

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Standard five-field cron (minute hour dom month dow) plus @hourly-style
// descriptors. Seconds are not accepted.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var errInterval = errors.New("@every intervals are not supported; use a five-field cron expression")

// CronParseError reports a task whose schedule cannot be parsed.
type CronParseError struct {
	Source string
	TaskID string
	Spec   string
	Err    error
}

func (e *CronParseError) Error() string {
	return fmt.Sprintf("%s: task %q: invalid schedule %q: %v", e.Source, e.TaskID, e.Spec, e.Err)
}

func (e *CronParseError) Unwrap() error { return e.Err }

// Parse parses a schedule expression.
func Parse(spec string) (cron.Schedule, error) {
	s := strings.TrimSpace(spec)
	if s == "" {
		return nil, errors.New("empty schedule")
	}
	if strings.HasPrefix(strings.ToLower(s), "@every") {
		return nil, errInterval
	}
	return parser.Parse(s)
}

// Minute returns t in loc truncated to the start of its minute.
func Minute(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

// Matches reports whether sched fires exactly at minute m (the start of a
// minute, as returned by Minute).
func Matches(sched cron.Schedule, m time.Time) bool {
	return sched.Next(m.Add(-time.Second)).Equal(m)
}

// IsDue reports whether spec fires during the minute containing now, in loc.
func IsDue(spec string, now time.Time, loc *time.Location) (bool, error) {
	sched, err := Parse(spec)
	if err != nil {
		return false, err
	}
	return Matches(sched, Minute(now, loc)), nil
}

// Upcoming returns the next n fire times of spec after now.
func Upcoming(spec string, now time.Time, loc *time.Location, n int) ([]time.Time, error) {
	sched, err := Parse(spec)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	out := make([]time.Time, 0, n)
	t := now.In(loc)
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out, nil
}
