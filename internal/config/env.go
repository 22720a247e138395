package config

import (
	"os"
	"regexp"
	"strings"
	"time"
)

// Env holds process-level settings read from the environment.
//
// Secrets never come from task files; task files may only reference them
// through ${VAR} placeholders.
type Env struct {
	BochaAPIKey    string
	BochaSearchURL string
	BochaRerankURL string

	DeepSeekAPIKey  string
	DeepSeekBaseURL string
	DeepSeekModel   string

	SlackWebhookURL  string
	TelegramBotToken string

	// ConfigPath is the default single source for run/list/validate.
	ConfigPath string
	// ConfigDir is scanned by the due-task selector.
	ConfigDir string
	Timezone  string
	// LedgerPath enables the fire ledger when set (".db"/".sqlite" selects sqlite).
	LedgerPath string
	LogLevel   string

	SerialGap time.Duration
}

const (
	DefaultBochaSearchURL  = "https://api.bochaai.com/v1/web-search"
	DefaultBochaRerankURL  = "https://api.bochaai.com/v1/rerank"
	DefaultDeepSeekBaseURL = "https://api.deepseek.com"
	DefaultDeepSeekModel   = "deepseek-chat"
	DefaultConfigDir       = "config"
	DefaultSerialGap       = 2 * time.Second
)

// DefaultConfigPath is the source used when no --config is given.
var DefaultConfigPath = DefaultConfigDir + string(os.PathSeparator) + "tasks.yaml"

// EnvFromOS reads Env from the process environment, applying defaults.
func EnvFromOS() (Env, error) {
	return envFrom(os.Getenv)
}

func envFrom(get func(string) string) (Env, error) {
	e := Env{
		BochaAPIKey:      strings.TrimSpace(get("BOCHAAI_API_KEY")),
		BochaSearchURL:   orDefault(get("BOCHAAI_SEARCH_URL"), DefaultBochaSearchURL),
		BochaRerankURL:   orDefault(get("BOCHAAI_RERANK_URL"), DefaultBochaRerankURL),
		DeepSeekAPIKey:   strings.TrimSpace(get("DEEPSEEK_API_KEY")),
		DeepSeekBaseURL:  orDefault(get("DEEPSEEK_BASE_URL"), DefaultDeepSeekBaseURL),
		DeepSeekModel:    orDefault(get("DEEPSEEK_MODEL"), DefaultDeepSeekModel),
		SlackWebhookURL:  strings.TrimSpace(get("SLACK_WEBHOOK_URL")),
		TelegramBotToken: strings.TrimSpace(get("TELEGRAM_BOT_TOKEN")),
		ConfigPath:       orDefault(get("REPORTER_CONFIG"), DefaultConfigPath),
		ConfigDir:        orDefault(get("REPORTER_CONFIG_DIR"), DefaultConfigDir),
		Timezone:         strings.TrimSpace(get("REPORTER_TIMEZONE")),
		LedgerPath:       strings.TrimSpace(get("REPORTER_LEDGER")),
		LogLevel:         orDefault(get("REPORTER_LOG_LEVEL"), "info"),
	}
	gap, err := ParseDurationOrDefault("REPORTER_SERIAL_GAP", get("REPORTER_SERIAL_GAP"), DefaultSerialGap)
	if err != nil {
		return Env{}, err
	}
	e.SerialGap = gap
	return e, nil
}

func orDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}

var reEnvRef = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// ExpandEnv resolves a whole-value ${VAR} reference using lookup. Values that
// are not a single reference, and references to unset variables, are
// returned unchanged.
func ExpandEnv(value string, lookup func(string) (string, bool)) string {
	m := reEnvRef.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return value
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(m[1]); ok {
		return v
	}
	return value
}
