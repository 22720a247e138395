package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"reporter/internal/config"
	"reporter/internal/notify"
)

func TestMergeTaskWins(t *testing.T) {
	t.Parallel()
	global := config.Values{"count": 50.0, "type": "financial"}
	task := config.Values{"id": "t1", "query": "q", "count": 10.0}

	got := Merge(global, task)
	if n, _ := got.Int("count"); n != 10 {
		t.Fatalf("count = %d, want 10", n)
	}
	if got.String("type") != "financial" {
		t.Fatalf("type = %q", got.String("type"))
	}
	if g, _ := global.Int("count"); g != 50 {
		t.Fatal("Merge must not mutate global")
	}
}

func TestMergeTypeFallback(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		global, task config.Values
		want         string
	}{
		{"baseline", nil, config.Values{"id": "a"}, BaselineType},
		{"agent_type", config.Values{"agent_type": "news"}, config.Values{"id": "a"}, "news"},
		{"task type", config.Values{"agent_type": "news"}, config.Values{"type": "custom"}, "custom"},
		{"nil falls through", config.Values{"type": "news"}, config.Values{"type": nil}, "news"},
	}
	for _, tt := range tests {
		if got := Merge(tt.global, tt.task).String("type"); got != tt.want {
			t.Fatalf("%s: type = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestMergeWithDefaultsLayering(t *testing.T) {
	t.Parallel()
	defaults := config.Values{"slack_webhook_url": "https://hooks.slack.com/env"}
	got := MergeWithDefaults(defaults, config.Values{}, config.Values{"id": "x"})
	if got.String("slack_webhook_url") != "https://hooks.slack.com/env" {
		t.Fatalf("default not applied: %v", got)
	}
	got = MergeWithDefaults(defaults, config.Values{"slack_webhook_url": "https://hooks.slack.com/global"}, nil)
	if got.String("slack_webhook_url") != "https://hooks.slack.com/global" {
		t.Fatalf("global should override default: %v", got)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	want := []string{"financial", "financial_news", "news"}
	if got := r.Types(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Types = %v", got)
	}
	if r.Describe()["news"] != "FinancialAgent" {
		t.Fatalf("Describe = %v", r.Describe())
	}

	cfg := baseConfig()
	cfg["type"] = "bogus"
	_, err := r.Create(cfg, newHarness().deps())
	var ute *UnknownAgentTypeError
	if !errors.As(err, &ute) || ute.Type != "bogus" || len(ute.Available) != 3 {
		t.Fatalf("err = %v", err)
	}

	cfg["type"] = " News "
	a, err := r.Create(cfg, newHarness().deps())
	if err != nil {
		t.Fatalf("Create alias: %v", err)
	}
	if a.Info().Variant != "FinancialAgent" {
		t.Fatalf("variant = %q", a.Info().Variant)
	}
}

func TestRegisterWithoutConstructor(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register("Bare", Variant{})
	if r.Describe()["bare"] != "bare" {
		t.Fatalf("Describe = %v", r.Describe())
	}

	cfg := baseConfig()
	cfg["type"] = "bare"
	_, err := r.Create(cfg, newHarness().deps())
	var ute *UnknownAgentTypeError
	if err == nil || errors.As(err, &ute) || !strings.Contains(err.Error(), "no constructor") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewFinancialValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		edit  func(Config)
		deps  func(*Deps)
		field string
	}{
		{"missing id", func(c Config) { delete(c, "id") }, nil, "id"},
		{"missing query", func(c Config) { c["query"] = "  " }, nil, "query"},
		{"missing webhook", func(c Config) { delete(c, "slack_webhook_url") }, nil, "slack_webhook_url"},
		{"bad webhook prefix", func(c Config) { c["slack_webhook_url"] = "http://example.com/x" }, nil, "slack_webhook_url"},
		{"bad freshness", func(c Config) { c["freshness"] = "hour" }, nil, "freshness"},
		{"count zero", func(c Config) { c["count"] = 0.0 }, nil, "count"},
		{"count too large", func(c Config) { c["count"] = 101.0 }, nil, "count"},
		{"count not a number", func(c Config) { c["count"] = "lots" }, nil, "count"},
		{"unknown notifier", func(c Config) { c["notifier"] = "pager" }, nil, "notifier"},
		{"telegram without chat", func(c Config) { c["notifier"] = "telegram" }, nil, "telegram_chat_id"},
		{"no search", nil, func(d *Deps) { d.Search = nil }, "search"},
		{"no analysis", nil, func(d *Deps) { d.Analyze = nil }, "analysis"},
	}
	for _, tt := range tests {
		cfg := baseConfig()
		if tt.edit != nil {
			tt.edit(cfg)
		}
		h := newHarness()
		d := h.deps()
		if tt.deps != nil {
			tt.deps(&d)
		}
		_, err := NewFinancial(cfg, d)
		var ce *ConfigurationError
		if !errors.As(err, &ce) {
			t.Fatalf("%s: err = %v, want ConfigurationError", tt.name, err)
		}
		if ce.Field != tt.field {
			t.Fatalf("%s: field = %q, want %q", tt.name, ce.Field, tt.field)
		}
	}
}

func TestNewFinancialDefaultsAndEnv(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	cfg["slack_webhook_url"] = "${HOOK}"
	h := newHarness()
	d := h.deps()
	d.LookupEnv = func(k string) (string, bool) {
		if k == "HOOK" {
			return "https://hooks.slack.com/services/resolved/webhook/value/that/is/long", true
		}
		return "", false
	}
	a, err := NewFinancial(cfg, d)
	if err != nil {
		t.Fatalf("NewFinancial: %v", err)
	}
	if h.spec.Kind != notify.KindSlack || !strings.HasSuffix(h.spec.Endpoint, "/long") {
		t.Fatalf("sink spec = %+v", h.spec)
	}
	info := a.Info()
	if !strings.HasSuffix(info.Endpoint, "...") || len(info.Endpoint) != 53 {
		t.Fatalf("endpoint = %q", info.Endpoint)
	}
	if !info.Enabled || info.Name != "Task one" {
		t.Fatalf("info = %+v", info)
	}

	a.Execute(context.Background())
	if h.search.last.Freshness != DefaultFreshness || h.search.last.Count != DefaultCount {
		t.Fatalf("search request = %+v", h.search.last)
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate after Execute: %v", err)
	}
}

func TestCustomWebhookPrefix(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	cfg["slack_webhook_url"] = "http://127.0.0.1:9999/hook"
	d := newHarness().deps()
	d.WebhookPrefix = "http://127.0.0.1"
	if _, err := NewFinancial(cfg, d); err != nil {
		t.Fatalf("NewFinancial: %v", err)
	}
}

func TestExecuteSuccess(t *testing.T) {
	t.Parallel()
	h := newHarness()
	a, err := NewFinancial(baseConfig(), h.deps())
	if err != nil {
		t.Fatalf("NewFinancial: %v", err)
	}
	res := a.Execute(context.Background())
	if !res.Success || res.Error != "" {
		t.Fatalf("result = %+v", res)
	}
	if res.Content != "Summary\n• point" {
		t.Fatalf("content = %q", res.Content)
	}
	if h.sink.title != "Task one" || h.sink.content != res.Content {
		t.Fatalf("sink got %q / %q", h.sink.title, h.sink.content)
	}
	if !strings.Contains(h.analyze.lastUser, `query "markets"`) {
		t.Fatalf("default prompt not used: %q", h.analyze.lastUser)
	}
	if res.AgentID != "t1" || res.Query != "markets" {
		t.Fatalf("result ids = %+v", res)
	}
}

func TestExecuteStepFailures(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.search.err = errors.New("timeout")
	a, _ := NewFinancial(baseConfig(), h.deps())
	res := a.Execute(context.Background())
	var ext *ExternalCallError
	if res.Success || !errors.As(res.Err, &ext) || ext.Step != StepSearch {
		t.Fatalf("search failure result = %+v", res)
	}
	if !strings.HasPrefix(res.Error, "search failed") {
		t.Fatalf("error = %q", res.Error)
	}
	if h.analyze.calls.Load() != 0 || h.sink.calls.Load() != 0 {
		t.Fatal("later steps must not run after search failure")
	}

	h = newHarness()
	h.search.docs = nil
	a, _ = NewFinancial(baseConfig(), h.deps())
	if res := a.Execute(context.Background()); res.Success || !strings.HasPrefix(res.Error, "search failed") {
		t.Fatalf("empty search result = %+v", res)
	}

	h = newHarness()
	h.analyze.err = errors.New("503")
	a, _ = NewFinancial(baseConfig(), h.deps())
	if res := a.Execute(context.Background()); res.Success || !strings.HasPrefix(res.Error, "analysis failed") {
		t.Fatalf("analysis failure result = %+v", res)
	}
	if h.sink.calls.Load() != 0 {
		t.Fatal("sink must not run after analysis failure")
	}

	h = newHarness()
	h.sink.ok = false
	a, _ = NewFinancial(baseConfig(), h.deps())
	res = a.Execute(context.Background())
	if res.Success || res.Error != "notification failed" {
		t.Fatalf("notification failure result = %+v", res)
	}
	if res.Content == "" {
		t.Fatal("content should be kept when only notification fails")
	}
}

func TestRerankFiltering(t *testing.T) {
	t.Parallel()
	docs := []string{"a", "b", "c", "d", "e", "f"}
	tests := []struct {
		name   string
		rr     *fakeRerank
		expect []string
	}{
		{"threshold", &fakeRerank{scored: []Scored{{"a", 0.9}, {"b", 0.5}, {"c", 0.7}}}, []string{"a", "c"}},
		{"fallback first five", &fakeRerank{scored: []Scored{{"f", 0.1}, {"e", 0.1}, {"d", 0.1}, {"c", 0.1}, {"b", 0.1}, {"a", 0.1}}}, []string{"a", "b", "c", "d", "e"}},
		{"error keeps originals", &fakeRerank{err: errors.New("down")}, docs},
	}
	for _, tt := range tests {
		h := newHarness()
		h.search.docs = docs
		d := h.deps()
		d.Rerank = tt.rr
		a, err := NewFinancial(baseConfig(), d)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		a.Execute(context.Background())
		want := "Search results:\n" + strings.Join(tt.expect, " ")
		if !strings.HasSuffix(h.analyze.lastUser, want) {
			t.Fatalf("%s: user prompt = %q", tt.name, h.analyze.lastUser)
		}
	}
}

func TestCustomPrompt(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	cfg["analysis_prompt"] = "Summarize briefly."
	h := newHarness()
	a, _ := NewFinancial(cfg, h.deps())
	a.Execute(context.Background())
	if !strings.HasPrefix(h.analyze.lastUser, "Summarize briefly.\n\nSearch results:\n") {
		t.Fatalf("user prompt = %q", h.analyze.lastUser)
	}
}

func TestCleanMarkdown(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"## Title\n**bold** and *it*", "Title\nbold and it"},
		{"- one\n* two\n+ three", "• one\n• two\n• three"},
		{"see [docs](https://x.y) and `code`", "see docs and code"},
		{"> quoted\n\n\n\nnext", "quoted\n\nnext"},
		{"```\nblock\n```", "block"},
		{"above\n---\nbelow", "above\n\nbelow"},
		{"### ## nested", "nested"},
	}
	for _, tt := range tests {
		if got := CleanMarkdown(tt.in); got != tt.want {
			t.Fatalf("CleanMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanMarkdownIdempotent(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"",
		"plain text",
		"### ## #### deep",
		"**__*_mixed_*__**",
		"- - - item",
		"***",
		"a_b_c_d snake_case",
		"> > nested quote\n- [link](u) `x`\n\n\n\n* **b**",
		"  - indented\n\t+ tab",
	}
	for _, in := range inputs {
		once := CleanMarkdown(in)
		if twice := CleanMarkdown(once); twice != once {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
