package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reporter/internal/agent"
	"reporter/internal/task/scheduler"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTypesCommand(t *testing.T) {
	out, err := execute(t, "types", "--log-level", "error")
	if err != nil {
		t.Fatalf("types: %v", err)
	}
	for _, tag := range []string{"financial", "financial_news", "news"} {
		if !strings.Contains(out, tag+" -> FinancialAgent") {
			t.Fatalf("missing %q in:\n%s", tag, out)
		}
	}
}

func TestValidateFailsWithoutProviders(t *testing.T) {
	t.Setenv("BOCHAAI_API_KEY", "")
	t.Setenv("DEEPSEEK_API_KEY", "")
	dir := t.TempDir()
	p := filepath.Join(dir, "tasks.yaml")
	body := "global:\n  slack_webhook_url: https://hooks.slack.com/services/T/B/X\ntasks:\n  - id: one\n    query: q\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "validate", "--config", p, "--log-level", "error")
	if !errors.Is(err, errFailed) {
		t.Fatalf("err = %v, want errFailed\n%s", err, out)
	}
	if !strings.Contains(out, p) {
		t.Fatalf("output does not name the file:\n%s", out)
	}
}

func TestDueCommandAt(t *testing.T) {
	dir := t.TempDir()
	body := "tasks:\n  - id: nightly\n    query: q\n    schedule: \"0 2 * * *\"\n"
	if err := os.WriteFile(filepath.Join(dir, "tasks.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "due", "--config-dir", dir, "--tz", "UTC", "--at", "2026-01-05 02:00", "--log-level", "error")
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if !strings.Contains(out, "nightly") {
		t.Fatalf("nightly not due:\n%s", out)
	}

	out, err = execute(t, "due", "--config-dir", dir, "--tz", "UTC", "--at", "2026-01-05 02:01", "--log-level", "error")
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if !strings.Contains(out, "nothing due") {
		t.Fatalf("expected nothing due:\n%s", out)
	}
}

func TestDueCommandNext(t *testing.T) {
	dir := t.TempDir()
	body := "tasks:\n  - id: nightly\n    query: q\n    schedule: \"0 2 * * *\"\n  - id: manual\n    query: q\n"
	if err := os.WriteFile(filepath.Join(dir, "tasks.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "due", "--config-dir", dir, "--tz", "UTC", "--at", "2026-01-05 03:00", "--next", "2", "--log-level", "error")
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if !strings.Contains(out, "2026-01-06 02:00, 2026-01-07 02:00") {
		t.Fatalf("missing upcoming times:\n%s", out)
	}
	if strings.Contains(out, "manual") {
		t.Fatalf("unscheduled task listed:\n%s", out)
	}
}

func TestParseAt(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+8", 8*3600)
	got, err := parseAt("2026-01-05 10:30", loc)
	if err != nil || got.Location() != loc || got.Hour() != 10 {
		t.Fatalf("parseAt local = %v, %v", got, err)
	}
	if _, err := parseAt("2026-01-05T10:30:00Z", loc); err != nil {
		t.Fatalf("parseAt RFC3339: %v", err)
	}
	if _, err := parseAt("tomorrow", loc); err == nil {
		t.Fatal("expected error")
	}
}

func TestRenderResults(t *testing.T) {
	t.Parallel()
	var b bytes.Buffer
	renderResults(&b, map[string]agent.Result{
		"b": {AgentID: "b", Success: false, Error: "search failed"},
		"a": {AgentID: "a", Success: true},
	})
	out := b.String()
	if strings.Index(out, "a ") > strings.Index(out, "b ") {
		t.Fatalf("results not sorted:\n%s", out)
	}
	if !strings.Contains(out, "search failed") || !strings.Contains(out, "total 2, succeeded 1, failed 1") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	b.Reset()
	renderSummary(&b, scheduler.Summary{Total: 2, Succeeded: 2})
	if !strings.Contains(b.String(), "total 2, succeeded 2, failed 0") {
		t.Fatalf("summary = %q", b.String())
	}
}
