package agent

import (
	"context"
	"sync/atomic"

	"reporter/internal/notify"
)

type fakeSearch struct {
	docs  []string
	err   error
	calls atomic.Int32
	last  SearchRequest
}

func (f *fakeSearch) Search(_ context.Context, req SearchRequest) ([]string, error) {
	f.calls.Add(1)
	f.last = req
	return f.docs, f.err
}

type fakeRerank struct {
	scored []Scored
	err    error
}

func (f *fakeRerank) Rerank(context.Context, string, []string) ([]Scored, error) {
	return f.scored, f.err
}

type fakeAnalyze struct {
	out      string
	err      error
	calls    atomic.Int32
	lastUser string
}

func (f *fakeAnalyze) Analyze(_ context.Context, _, user string) (string, error) {
	f.calls.Add(1)
	f.lastUser = user
	return f.out, f.err
}

type fakeSink struct {
	ok      bool
	calls   atomic.Int32
	content string
	title   string
}

func (f *fakeSink) Notify(_ context.Context, content, title string) bool {
	f.calls.Add(1)
	f.content, f.title = content, title
	return f.ok
}

type harness struct {
	search  *fakeSearch
	analyze *fakeAnalyze
	sink    *fakeSink
	spec    notify.Spec
}

func newHarness() *harness {
	return &harness{
		search:  &fakeSearch{docs: []string{"doc one is long enough", "doc two is long enough"}},
		analyze: &fakeAnalyze{out: "**Summary**\n- point"},
		sink:    &fakeSink{ok: true},
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Search:  h.search,
		Analyze: h.analyze,
		NewSink: func(spec notify.Spec) (notify.Sink, error) {
			h.spec = spec
			return h.sink, nil
		},
	}
}

func baseConfig() Config {
	return Config{
		"id":                "t1",
		"name":              "Task one",
		"type":              "financial",
		"query":             "markets",
		"slack_webhook_url": "https://hooks.slack.com/services/T/B/X",
	}
}
