package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"reporter/internal/agent"
	"reporter/internal/app"
	"reporter/internal/task/due"
	"reporter/internal/task/scheduler"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	offStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))

	idColumn = lipgloss.NewStyle().Width(24)
)

func status(ok bool) string {
	if ok {
		return okStyle.Render("ok")
	}
	return failStyle.Render("failed")
}

func renderAgents(w io.Writer, source string, infos []agent.Info, failures []scheduler.LoadFailure) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Agents in %s (%d)", source, len(infos))))
	for _, in := range infos {
		state := okStyle.Render("enabled")
		if !in.Enabled {
			state = offStyle.Render("disabled")
		}
		fmt.Fprintf(w, "%s %s %s\n", idColumn.Render(in.ID), state, in.Name)
		fmt.Fprintf(w, "  %s %s (%s)\n", labelStyle.Render("type:"), in.Type, in.Variant)
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("query:"), in.Query)
		if in.Schedule != "" {
			fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("schedule:"), in.Schedule)
		}
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("notify:"), in.Endpoint)
	}
	renderFailures(w, failures)
}

func renderFailures(w io.Writer, failures []scheduler.LoadFailure) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%d task(s) not loaded:", len(failures))))
	for _, f := range failures {
		fmt.Fprintf(w, "  %s %v\n", idColumn.Render(f.TaskID), f.Err)
	}
}

func renderResult(w io.Writer, r agent.Result) {
	line := fmt.Sprintf("%s %s %s", idColumn.Render(r.AgentID), status(r.Success), labelStyle.Render(r.Duration.Round(time.Millisecond).String()))
	if !r.Success && r.Error != "" {
		line += " " + r.Error
	}
	fmt.Fprintln(w, line)
}

func renderResults(w io.Writer, results map[string]agent.Result) {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		renderResult(w, results[id])
	}
	renderSummary(w, scheduler.Summarize(results))
}

func renderSummary(w io.Writer, s scheduler.Summary) {
	msg := fmt.Sprintf("total %d, succeeded %d, failed %d", s.Total, s.Succeeded, s.Failed)
	if s.OK() {
		fmt.Fprintln(w, okStyle.Render(msg))
		return
	}
	fmt.Fprintln(w, failStyle.Render(msg))
}

func renderTypes(w io.Writer, types map[string]string) {
	fmt.Fprintln(w, titleStyle.Render("Agent types"))
	tags := make([]string, 0, len(types))
	for t := range types {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	for _, t := range tags {
		fmt.Fprintf(w, "  • %s -> %s\n", t, types[t])
	}
}

func renderChecks(w io.Writer, checks []app.FileCheck) {
	for _, c := range checks {
		fmt.Fprintf(w, "%s %s %s\n", status(c.OK()), c.Path, labelStyle.Render(fmt.Sprintf("%d task(s)", c.Tasks)))
		for _, p := range c.Problems {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
}

func renderSelection(w io.Writer, sel due.Selection) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Due at %s (%d file(s) scanned)", sel.Minute.Format("2006-01-02 15:04 MST"), len(sel.Files))))
	if len(sel.Due) == 0 {
		fmt.Fprintln(w, offStyle.Render("  nothing due"))
	}
	for _, t := range sel.Due {
		fmt.Fprintf(w, "  %s %s %s\n", idColumn.Render(t.Def.ID), t.Def.Schedule, labelStyle.Render(t.Source))
	}
	renderProblems(w, sel.Problems)
}

func renderUpcoming(w io.Writer, rows []upcomingRow) {
	fmt.Fprintln(w, titleStyle.Render("Upcoming"))
	if len(rows) == 0 {
		fmt.Fprintln(w, offStyle.Render("  no scheduled tasks"))
	}
	for _, r := range rows {
		times := make([]string, 0, len(r.Times))
		for _, t := range r.Times {
			times = append(times, t.Format("2006-01-02 15:04"))
		}
		fmt.Fprintf(w, "  %s %s %s\n", idColumn.Render(r.TaskID), strings.Join(times, ", "), labelStyle.Render(r.Schedule))
	}
}

func renderReport(w io.Writer, rep due.Report) {
	fmt.Fprintln(w, titleStyle.Render("Tick "+rep.Minute.Format("2006-01-02 15:04 MST")))
	for _, tr := range rep.Results {
		renderResult(w, tr.Result)
	}
	if rep.Skipped > 0 {
		fmt.Fprintln(w, offStyle.Render(fmt.Sprintf("  %d already fired", rep.Skipped)))
	}
	renderProblems(w, rep.Problems)
	renderSummary(w, rep.Summary)
}

func renderProblems(w io.Writer, problems []error) {
	for _, p := range problems {
		fmt.Fprintln(w, warnStyle.Render("  ! "+strings.TrimSpace(p.Error())))
	}
}
