// Package notify delivers analysis reports to chat destinations.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reporter/pkg/logx"
)

// Sink delivers one report. The boolean is the delivery acknowledgement;
// failures are logged by the sink, never returned.
type Sink interface {
	Notify(ctx context.Context, content, title string) bool
}

// Kind selects a sink implementation.
type Kind string

const (
	KindSlack    Kind = "slack"
	KindTelegram Kind = "telegram"
)

// Spec describes the sink an agent reports through.
type Spec struct {
	Kind Kind
	// Endpoint is the Slack incoming-webhook URL.
	Endpoint  string
	UseBlocks bool
	// ChatID is the Telegram destination.
	ChatID int64
}

// Options are process-wide settings shared by every sink New builds.
type Options struct {
	HTTPClient    *http.Client
	TelegramToken string
	// RatePerSec bounds deliveries per sink. Zero means 1.
	RatePerSec int
	Log        logx.Logger
}

const DefaultTimeout = 15 * time.Second

var ErrNoTelegramToken = errors.New("notify: TELEGRAM_BOT_TOKEN is not set")

// ParseKind maps a configuration value to a Kind. Empty means Slack.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(KindSlack):
		return KindSlack, nil
	case string(KindTelegram):
		return KindTelegram, nil
	default:
		return "", fmt.Errorf("notify: unknown notifier %q", s)
	}
}

// New builds the sink for spec. It performs no network calls.
func New(spec Spec, opts Options) (Sink, error) {
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := opts.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	lim := rate.NewLimiter(rate.Limit(rps), rps)

	switch spec.Kind {
	case "", KindSlack:
		hc := opts.HTTPClient
		if hc == nil {
			hc = &http.Client{Timeout: DefaultTimeout}
		}
		return &Webhook{
			url:       spec.Endpoint,
			useBlocks: spec.UseBlocks,
			http:      hc,
			limiter:   lim,
			log:       log.With(logx.String("comp", "notify.slack")),
		}, nil
	case KindTelegram:
		return newTelegram(spec.ChatID, opts, lim, log.With(logx.String("comp", "notify.telegram")))
	default:
		return nil, fmt.Errorf("notify: unknown notifier %q", spec.Kind)
	}
}

// ErrorReport sends msg through sink with a fixed title. A nil sink is a no-op.
func ErrorReport(ctx context.Context, sink Sink, msg string) bool {
	if sink == nil {
		return false
	}
	return sink.Notify(ctx, msg, "Error report")
}

func wait(ctx context.Context, lim *rate.Limiter) error {
	if lim == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return lim.Wait(ctx)
}
