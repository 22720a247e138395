package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"reporter/internal/app"
	"reporter/internal/config"
	"reporter/pkg/logx"
)

// errFailed signals a non-zero exit after the failure was already printed.
var errFailed = errors.New("failed")

type globalFlags struct {
	config    string
	configDir string
	logLevel  string
	logFile   string
	tz        string
	ledger    string
}

func newRootCommand() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "reporter",
		Short:         "Scheduled search, analysis and notification agents",
		Long:          "reporter runs configured agents that search the web, summarize the results with an LLM and post the summary to Slack or Telegram.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&g.config, "config", "c", "", "task file for run/list/validate (default $REPORTER_CONFIG or config/tasks.yaml)")
	pf.StringVar(&g.configDir, "config-dir", "", "directory scanned by tick/due/serve (default $REPORTER_CONFIG_DIR or config)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&g.logFile, "log-file", "", "also write JSON logs to this file")
	pf.StringVar(&g.tz, "tz", "", "IANA time zone for schedules (default $REPORTER_TIMEZONE or local)")
	pf.StringVar(&g.ledger, "ledger", "", "fire ledger path; .db/.sqlite use sqlite, anything else a journal file")

	root.AddCommand(
		newRunCommand(&g),
		newListCommand(&g),
		newValidateCommand(&g),
		newTypesCommand(&g),
		newTickCommand(&g),
		newDueCommand(&g),
		newServeCommand(&g),
	)
	return root
}

// env overlays the flags on the process environment.
func (g *globalFlags) env() (config.Env, error) {
	env, err := config.EnvFromOS()
	if err != nil {
		return env, err
	}
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&env.ConfigPath, g.config)
	set(&env.ConfigDir, g.configDir)
	set(&env.LogLevel, g.logLevel)
	set(&env.Timezone, g.tz)
	set(&env.LedgerPath, g.ledger)
	return env, nil
}

// session is the per-command runtime. Close releases the ledger and log file.
type session struct {
	rt   *app.Runtime
	sink *logx.Sink
}

func (g *globalFlags) open() (*session, error) {
	env, err := g.env()
	if err != nil {
		return nil, err
	}
	log, sink := logx.New(logx.Config{
		Level:   env.LogLevel,
		Console: true,
		File: logx.FileConfig{
			Enabled: g.logFile != "",
			Path:    g.logFile,
		},
	})
	rt, err := app.NewRuntime(env, log)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	return &session{rt: rt, sink: sink}, nil
}

func (s *session) Close() error {
	return errors.Join(s.rt.Close(), s.sink.Close())
}
