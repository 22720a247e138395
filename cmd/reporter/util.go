package main

import (
	"fmt"
	"time"

	"reporter/internal/app"
	"reporter/internal/config"
	"reporter/internal/task/due"
)

func discover(rt *app.Runtime) ([]string, error) {
	return config.Discover(rt.Env().ConfigDir, nil)
}

func parseAt(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at %q: want \"2006-01-02 15:04\" or RFC 3339", s)
	}
	return t, nil
}

type upcomingRow struct {
	Source   string
	TaskID   string
	Schedule string
	Times    []time.Time
}

// upcoming lists the next n fire times of every scheduled task in files.
// Unreadable files and bad schedules are left to the selection's problems.
func upcoming(files []string, now time.Time, loc *time.Location, n int) []upcomingRow {
	var rows []upcomingRow
	for _, path := range files {
		f, err := config.LoadFile(path)
		if err != nil {
			continue
		}
		seen := map[string]struct{}{}
		for _, def := range f.Tasks {
			if _, dup := seen[def.ID]; dup || def.ID == "" {
				continue
			}
			seen[def.ID] = struct{}{}
			if !def.Enabled || def.Schedule == "" {
				continue
			}
			times, err := due.Upcoming(def.Schedule, now, loc, n)
			if err != nil {
				continue
			}
			rows = append(rows, upcomingRow{Source: path, TaskID: def.ID, Schedule: def.Schedule, Times: times})
		}
	}
	return rows
}
