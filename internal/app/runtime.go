package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reporter/internal/agent"
	"reporter/internal/config"
	"reporter/internal/notify"
	"reporter/internal/provider/llm"
	"reporter/internal/provider/search"
	"reporter/internal/storage"
	"reporter/internal/task/due"
	"reporter/internal/task/scheduler"
	"reporter/pkg/logx"
)

// ExampleConfigName is the file copied into place when the default source is
// missing.
const ExampleConfigName = "tasks.example.yaml"

// Runtime holds the collaborators shared by one-shot commands and the daemon.
type Runtime struct {
	env      config.Env
	loc      *time.Location
	registry *agent.Registry
	deps     agent.Deps
	notify   notify.Options
	ledger   storage.Ledger
	log      logx.Logger
}

// NewRuntime wires providers, sinks and the optional fire ledger from env.
//
// Missing provider keys are not an error here: agents built without a
// searcher or analyzer fail validation with a configuration error instead.
func NewRuntime(env config.Env, log logx.Logger) (*Runtime, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Runtime{
		env:      env,
		loc:      loadLocation(env.Timezone, log),
		registry: agent.NewRegistry(),
		log:      log,
	}
	r.notify = notify.Options{
		TelegramToken: env.TelegramBotToken,
		Log:           log,
	}

	deps := agent.Deps{
		NewSink: func(spec notify.Spec) (notify.Sink, error) {
			return notify.New(spec, r.notify)
		},
		LookupEnv: os.LookupEnv,
		Log:       log,
	}
	if sc, err := search.New(search.Config{
		APIKey:    env.BochaAPIKey,
		SearchURL: env.BochaSearchURL,
		RerankURL: env.BochaRerankURL,
		Log:       log,
	}); err != nil {
		log.Warn("provider.unavailable", logx.String("provider", "search"), logx.Err(err))
	} else {
		deps.Search = sc
		deps.Rerank = sc
	}
	if lc, err := llm.New(llm.Config{
		APIKey:  env.DeepSeekAPIKey,
		BaseURL: env.DeepSeekBaseURL,
		Model:   env.DeepSeekModel,
		Log:     log,
	}); err != nil {
		log.Warn("provider.unavailable", logx.String("provider", "llm"), logx.Err(err))
	} else {
		deps.Analyze = lc
	}
	r.deps = deps

	ledger, err := storage.Open(storage.Config{Path: env.LedgerPath}, log)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	r.ledger = ledger
	return r, nil
}

func loadLocation(name string, log logx.Logger) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Warn("timezone.invalid", logx.String("tz", name), logx.Err(err))
		return time.Local
	}
	return loc
}

func (r *Runtime) Env() config.Env           { return r.env }
func (r *Runtime) Location() *time.Location  { return r.loc }
func (r *Runtime) Registry() *agent.Registry { return r.registry }
func (r *Runtime) Ledger() storage.Ledger    { return r.ledger }
func (r *Runtime) Log() logx.Logger          { return r.log }

// Defaults is the layer under every source's global block.
func (r *Runtime) Defaults() config.Values {
	d := config.Values{}
	if r.env.SlackWebhookURL != "" {
		d["slack_webhook_url"] = r.env.SlackWebhookURL
	}
	return d
}

// Scheduler builds a fresh scheduler for source. The example file next to
// source is offered as a fallback when source is missing.
func (r *Runtime) Scheduler(source string) *scheduler.Scheduler {
	if source == "" {
		source = r.env.ConfigPath
	}
	return scheduler.New(scheduler.Options{
		Source:    source,
		Fallbacks: []string{filepath.Join(filepath.Dir(source), ExampleConfigName)},
		Registry:  r.registry,
		Deps:      r.deps,
		Defaults:  r.Defaults(),
		Gap:       r.env.SerialGap,
		Log:       r.log,
	})
}

func (r *Runtime) Selector() *due.Selector {
	return &due.Selector{
		Dir:      r.env.ConfigDir,
		Location: r.loc,
		Log:      r.log,
	}
}

// Runner builds a due runner over the config directory.
func (r *Runtime) Runner() *due.Runner {
	return &due.Runner{
		Selector: r.Selector(),
		// due sources exist, so no example fallback
		NewScheduler: func(source string) *scheduler.Scheduler {
			return scheduler.New(scheduler.Options{
				Source:   source,
				Registry: r.registry,
				Deps:     r.deps,
				Defaults: r.Defaults(),
				Gap:      r.env.SerialGap,
				Log:      r.log,
			})
		},
		Ledger:      r.ledger,
		OnLoadError: r.ReportLoadError,
		Log:         r.log,
	}
}

// ReportLoadError sends an error report for a source that failed to load.
// The source's own global webhook is preferred when it still parses,
// otherwise SLACK_WEBHOOK_URL.
func (r *Runtime) ReportLoadError(ctx context.Context, source string, err error) {
	hook := r.env.SlackWebhookURL
	if f, ferr := config.LoadFile(source); ferr == nil {
		if h := config.ExpandEnv(f.Global.String("slack_webhook_url"), r.deps.LookupEnv); strings.HasPrefix(h, agent.DefaultWebhookPrefix) {
			hook = h
		}
	}
	if !strings.HasPrefix(hook, agent.DefaultWebhookPrefix) {
		r.log.Warn("report.skipped", logx.String("source", source), logx.String("reason", "no webhook"))
		return
	}
	sink, serr := notify.New(notify.Spec{Kind: notify.KindSlack, Endpoint: hook}, r.notify)
	if serr != nil {
		r.log.Warn("report.skipped", logx.String("source", source), logx.Err(serr))
		return
	}
	msg := fmt.Sprintf("Loading %s failed: %v", filepath.Base(source), err)
	if !notify.ErrorReport(ctx, sink, msg) {
		r.log.Warn("report.failed", logx.String("source", source))
	}
}

func (r *Runtime) Close() error {
	if r.ledger == nil {
		return nil
	}
	return r.ledger.Close()
}
