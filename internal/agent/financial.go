package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"reporter/internal/config"
	"reporter/internal/notify"
	"reporter/pkg/logx"
)

const (
	DefaultFreshness = "day"
	DefaultCount     = 50
	MaxCount         = 100

	// relevanceThreshold is the minimum rerank score a document needs to
	// reach the analysis step.
	relevanceThreshold = 0.5
	rerankFallbackSize = 5
)

var validFreshness = map[string]bool{"day": true, "week": true, "month": true, "year": true}

const systemPrompt = "You are a professional financial information analyst. You extract the core points from large volumes of information and analyze them in depth."

const defaultPromptTemplate = `Analyze the following search results as a professional financial analyst and provide an in-depth analysis for the query "%s".

Requirements:
1. Use concise, clear language
2. Avoid Markdown formatting; write plain text
3. Keep the structure clear and the reasoning easy to follow
4. Highlight key information and trends
5. Provide practical value for investment decisions

Organize the content as follows:
• Key takeaways
• Market impact
• Key data
• Risks and opportunities
• Investment suggestions`

// Financial searches recent news, asks the analysis provider for a report
// and delivers it.
type Financial struct {
	id        string
	name      string
	tag       string
	query     string
	schedule  string
	enabled   bool
	freshness string
	count     int
	prompt    string
	rerank    bool

	spec notify.Spec
	sink notify.Sink

	search   Searcher
	reranker Reranker
	analyze  Analyzer
	prefix   string
	log      logx.Logger
}

type financialSettings struct {
	Name           string `json:"name"`
	Schedule       string `json:"schedule"`
	Freshness      string `json:"freshness"`
	AnalysisPrompt string `json:"analysis_prompt"`
	Notifier       string `json:"notifier"`
}

// NewFinancial is the Constructor for the financial variant.
func NewFinancial(cfg Config, deps Deps) (Agent, error) {
	id := cfg.String("id")
	var s financialSettings
	if err := cfg.Decode(&s); err != nil {
		return nil, configErr(id, "", "decode: %v", err)
	}

	a := &Financial{
		id:        id,
		name:      strings.TrimSpace(s.Name),
		tag:       cfg.String("type"),
		query:     cfg.String("query"),
		schedule:  strings.TrimSpace(s.Schedule),
		enabled:   cfg.Bool("enabled", true),
		freshness: strings.ToLower(strings.TrimSpace(s.Freshness)),
		count:     DefaultCount,
		prompt:    strings.TrimSpace(s.AnalysisPrompt),
		rerank:    cfg.Bool("rerank", true),
		search:    deps.Search,
		reranker:  deps.Rerank,
		analyze:   deps.Analyze,
		prefix:    deps.webhookPrefix(),
	}
	if a.name == "" {
		a.name = a.id
	}
	if a.freshness == "" {
		a.freshness = DefaultFreshness
	}
	if cfg.Has("count") {
		n, ok := cfg.Int("count")
		if !ok {
			return nil, configErr(id, "count", "must be an integer, got %v", cfg["count"])
		}
		a.count = n
	}

	kind, err := notify.ParseKind(s.Notifier)
	if err != nil {
		return nil, configErr(id, "notifier", "%v", err)
	}
	a.spec = notify.Spec{Kind: kind, UseBlocks: cfg.Bool("use_slack_blocks", false)}
	switch kind {
	case notify.KindTelegram:
		chat, _ := cfg.Int("telegram_chat_id")
		a.spec.ChatID = int64(chat)
	default:
		a.spec.Endpoint = strings.TrimSpace(config.ExpandEnv(cfg.String("slack_webhook_url"), deps.LookupEnv))
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}

	sink, err := deps.sinkFactory()(a.spec)
	if err != nil {
		return nil, configErr(id, "notifier", "%v", err)
	}
	a.sink = sink

	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	a.log = log.With(logx.String("comp", "agent"), logx.String("agent", a.id))
	return a, nil
}

// Validate checks the stored configuration. It has no side effects.
func (a *Financial) Validate() error {
	if a.id == "" {
		return configErr(a.id, "id", "is required")
	}
	if a.query == "" {
		return configErr(a.id, "query", "is required")
	}
	switch a.spec.Kind {
	case notify.KindTelegram:
		if a.spec.ChatID == 0 {
			return configErr(a.id, "telegram_chat_id", "is required for the telegram notifier")
		}
	default:
		if a.spec.Endpoint == "" {
			return configErr(a.id, "slack_webhook_url", "is required")
		}
		if !strings.HasPrefix(a.spec.Endpoint, a.prefix) {
			return configErr(a.id, "slack_webhook_url", "must start with %s", a.prefix)
		}
	}
	if !validFreshness[a.freshness] {
		return configErr(a.id, "freshness", "must be one of day, week, month, year; got %q", a.freshness)
	}
	if a.count < 1 || a.count > MaxCount {
		return configErr(a.id, "count", "must be between 1 and %d, got %d", MaxCount, a.count)
	}
	if a.search == nil {
		return configErr(a.id, "search", "search provider is not configured (BOCHAAI_API_KEY)")
	}
	if a.analyze == nil {
		return configErr(a.id, "analysis", "analysis provider is not configured (DEEPSEEK_API_KEY)")
	}
	return nil
}

func (a *Financial) Info() Info {
	endpoint := a.spec.Endpoint
	if a.spec.Kind == notify.KindTelegram {
		endpoint = fmt.Sprintf("telegram:%d", a.spec.ChatID)
	}
	return Info{
		ID:       a.id,
		Name:     a.name,
		Type:     a.tag,
		Variant:  "FinancialAgent",
		Query:    a.query,
		Schedule: a.schedule,
		Enabled:  a.enabled,
		Endpoint: shorten(endpoint, 50),
	}
}

// Execute runs search, optional rerank, analysis and notification once.
func (a *Financial) Execute(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	res := Result{AgentID: a.id, Query: a.query}
	finish := func(err error) Result {
		res.Duration = time.Since(start)
		if err != nil {
			res.Success = false
			res.Error = err.Error()
			res.Err = err
			a.log.Warn("agent.failed", logx.Err(err), logx.Duration("took", res.Duration))
			return res
		}
		res.Success = true
		a.log.Info("agent.finished", logx.Duration("took", res.Duration), logx.Int("chars", len(res.Content)))
		return res
	}

	a.log.Info("agent.started", logx.String("query", a.query))

	docs, err := a.search.Search(ctx, SearchRequest{Query: a.query, Freshness: a.freshness, Count: a.count})
	if err != nil {
		return finish(&ExternalCallError{Step: StepSearch, Err: err})
	}
	if len(docs) == 0 {
		return finish(&ExternalCallError{Step: StepSearch, Err: errors.New("no usable results")})
	}
	a.log.Debug("agent.search_done", logx.Int("docs", len(docs)))

	if a.rerank && a.reranker != nil {
		docs = a.relevant(ctx, docs)
	}

	prompt := a.prompt
	if prompt == "" {
		prompt = fmt.Sprintf(defaultPromptTemplate, a.query)
	}
	user := prompt + "\n\nSearch results:\n" + strings.Join(docs, " ")
	analysis, err := a.analyze.Analyze(ctx, systemPrompt, user)
	if err != nil {
		return finish(&ExternalCallError{Step: StepAnalysis, Err: err})
	}
	content := CleanMarkdown(analysis)
	if content == "" {
		return finish(&ExternalCallError{Step: StepAnalysis, Err: errors.New("empty response")})
	}
	res.Content = content

	if !a.sink.Notify(ctx, content, a.name) {
		return finish(&ExternalCallError{Step: StepNotification})
	}
	return finish(nil)
}

// relevant keeps documents scoring above relevanceThreshold. When nothing
// passes it keeps the first rerankFallbackSize of docs; when the
// rerank call fails it keeps docs unchanged.
func (a *Financial) relevant(ctx context.Context, docs []string) []string {
	scored, err := a.reranker.Rerank(ctx, a.query, docs)
	if err != nil || len(scored) == 0 {
		a.log.Warn("agent.rerank_failed", logx.Err(err))
		return docs
	}
	out := make([]string, 0, len(scored))
	for _, s := range scored {
		if s.Score > relevanceThreshold {
			out = append(out, s.Text)
		}
	}
	if len(out) == 0 {
		n := rerankFallbackSize
		if n > len(docs) {
			n = len(docs)
		}
		out = append(out, docs[:n]...)
	}
	a.log.Debug("agent.rerank_done", logx.Int("kept", len(out)), logx.Int("docs", len(docs)))
	return out
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
