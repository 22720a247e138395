// Package agent defines the unit of work the scheduler runs: an agent that
// searches, analyzes the results and reports them through a notification sink.
package agent

import (
	"context"
	"time"

	"reporter/internal/config"
	"reporter/internal/notify"
	"reporter/pkg/logx"
)

// Config is the effective configuration of one agent: the merge of built-in
// defaults, a source's global block and one task block.
type Config = config.Values

// Agent is constructed once per task definition and holds no state across
// executions. Execute never panics on collaborator failures; it reports them
// in the Result.
type Agent interface {
	Info() Info
	Validate() error
	Execute(ctx context.Context) Result
}

// Info is the listing view of an agent.
type Info struct {
	ID       string
	Name     string
	Type     string
	Variant  string
	Query    string
	Schedule string
	Enabled  bool
	// Endpoint is the notification destination, shortened for display.
	Endpoint string
}

// Result is the outcome of one execution.
type Result struct {
	AgentID  string        `json:"agent_id"`
	Success  bool          `json:"success"`
	Content  string        `json:"content,omitempty"`
	Error    string        `json:"error,omitempty"`
	Query    string        `json:"query,omitempty"`
	Duration time.Duration `json:"duration"`

	// Err is the typed cause behind Error, for errors.Is/As.
	Err error `json:"-"`
}

// Failed builds an unsuccessful Result from err.
func Failed(id string, err error) Result {
	r := Result{AgentID: id}
	if err != nil {
		r.Error = err.Error()
		r.Err = err
	}
	return r
}

// SearchRequest is one web search.
type SearchRequest struct {
	Query     string
	Freshness string
	Count     int
}

// Scored is a document with its relevance score.
type Scored struct {
	Text  string
	Score float64
}

type Searcher interface {
	Search(ctx context.Context, req SearchRequest) ([]string, error)
}

type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]Scored, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, system, user string) (string, error)
}

// SinkFactory builds a notification sink. Implementations must not touch the
// network.
type SinkFactory func(spec notify.Spec) (notify.Sink, error)

// Deps are the collaborators handed to every constructor.
type Deps struct {
	Search Searcher
	// Rerank is optional; nil skips the rerank step.
	Rerank  Reranker
	Analyze Analyzer
	NewSink SinkFactory

	// WebhookPrefix overrides DefaultWebhookPrefix.
	WebhookPrefix string
	// LookupEnv resolves ${VAR} references. nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)

	Log logx.Logger
}

const DefaultWebhookPrefix = "https://hooks.slack.com/"

func (d Deps) webhookPrefix() string {
	if d.WebhookPrefix != "" {
		return d.WebhookPrefix
	}
	return DefaultWebhookPrefix
}

func (d Deps) sinkFactory() SinkFactory {
	if d.NewSink != nil {
		return d.NewSink
	}
	return func(spec notify.Spec) (notify.Sink, error) {
		return notify.New(spec, notify.Options{Log: d.Log})
	}
}
