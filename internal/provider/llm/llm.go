// Package llm is the analysis provider: a chat-completions client for
// DeepSeek's OpenAI-compatible API.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"reporter/internal/agent"
	"reporter/pkg/logx"
)

const DefaultTimeout = 120 * time.Second

var (
	ErrNoAPIKey      = errors.New("llm: DEEPSEEK_API_KEY is not set")
	ErrEmptyResponse = errors.New("llm: response has no choices")
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// HTTPClient is optional.
	HTTPClient *http.Client
	Log        logx.Logger
}

// Client implements agent.Analyzer.
type Client struct {
	c       openai.Client
	model   string
	timeout time.Duration
	log     logx.Logger
}

var _ agent.Analyzer = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, ErrNoAPIKey
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		// one attempt per execution
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := cfg.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		c:       openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: timeout,
		log:     log.With(logx.String("comp", "llm")),
	}, nil
}

// Analyze sends one system and one user message and returns the first
// choice's content.
func (c *Client) Analyze(ctx context.Context, system, user string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.c.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	c.log.Debug("llm.done",
		logx.String("model", resp.Model),
		logx.Int64("tokens", resp.Usage.TotalTokens),
		logx.Duration("took", time.Since(start)),
	)
	return resp.Choices[0].Message.Content, nil
}
