package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"reporter/pkg/logx"
)

const (
	slackSectionLimit = 3000
	slackHeaderLimit  = 150
)

// Webhook posts to a Slack incoming webhook.
type Webhook struct {
	url       string
	useBlocks bool
	http      *http.Client
	limiter   *rate.Limiter
	log       logx.Logger
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks,omitempty"`
}

func (w *Webhook) Notify(ctx context.Context, content, title string) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := wait(ctx, w.limiter); err != nil {
		w.log.Warn("notify.canceled", logx.Err(err))
		return false
	}

	body, err := json.Marshal(w.payload(content, title))
	if err != nil {
		w.log.Error("notify.encode_failed", logx.Err(err))
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.log.Error("notify.request_failed", logx.Err(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		w.log.Warn("notify.failed", logx.Err(err))
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		w.log.Warn("notify.failed",
			logx.Int("status", resp.StatusCode),
			logx.String("body", string(snippet)),
		)
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	w.log.Info("notify.sent", logx.String("title", title), logx.Bool("blocks", w.useBlocks))
	return true
}

func (w *Webhook) payload(content, title string) slackPayload {
	text := fmt.Sprintf("%s：\n%s", title, content)
	if !w.useBlocks {
		return slackPayload{Text: text}
	}

	p := slackPayload{Text: text}
	if title != "" {
		p.Blocks = append(p.Blocks, slackBlock{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: truncateRunes(title, slackHeaderLimit)},
		})
	}
	for _, chunk := range splitText(content, slackSectionLimit) {
		if chunk == "" {
			continue
		}
		p.Blocks = append(p.Blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: chunk},
		})
	}
	return p
}
