package notify

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"reporter/pkg/logx"
)

const telegramTextLimit = 4000

// Telegram sends reports to one chat through the Bot API.
type Telegram struct {
	bot     *tele.Bot
	chat    *tele.Chat
	limiter *rate.Limiter
	log     logx.Logger
}

func newTelegram(chatID int64, opts Options, lim *rate.Limiter, log logx.Logger) (*Telegram, error) {
	if opts.TelegramToken == "" {
		return nil, ErrNoTelegramToken
	}
	if chatID == 0 {
		return nil, fmt.Errorf("notify: telegram chat id is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	// Offline skips the getMe round trip; only Send is used.
	b, err := tele.NewBot(tele.Settings{
		Token:   opts.TelegramToken,
		Client:  hc,
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chat: &tele.Chat{ID: chatID}, limiter: lim, log: log}, nil
}

func (t *Telegram) Notify(ctx context.Context, content, title string) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	text := content
	if title != "" {
		text = title + "\n\n" + content
	}
	for i, chunk := range splitText(text, telegramTextLimit) {
		if err := wait(ctx, t.limiter); err != nil {
			t.log.Warn("notify.canceled", logx.Err(err))
			return false
		}
		if _, err := t.bot.Send(t.chat, chunk, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
			t.log.Warn("notify.failed", logx.Int("chunk", i), logx.Err(err))
			return false
		}
	}
	t.log.Info("notify.sent", logx.String("title", title), logx.Int64("chat_id", t.chat.ID))
	return true
}
