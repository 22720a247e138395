// Package search is a client for the BochaAI web-search and rerank APIs.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"reporter/internal/agent"
	"reporter/pkg/logx"
)

const (
	DefaultTimeout = 30 * time.Second
	RerankModel    = "gte-rerank"

	// minSnippetLen is the shortest trimmed snippet worth analyzing.
	minSnippetLen = 10
)

var ErrNoAPIKey = errors.New("search: BOCHAAI_API_KEY is not set")

// StatusError is a non-200 response.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

type Config struct {
	APIKey    string
	SearchURL string
	RerankURL string
	// HTTPClient defaults to a client with DefaultTimeout.
	HTTPClient *http.Client
	Log        logx.Logger
}

// Client implements agent.Searcher and agent.Reranker.
type Client struct {
	key       string
	searchURL string
	rerankURL string
	http      *http.Client
	log       logx.Logger
}

var (
	_ agent.Searcher = (*Client)(nil)
	_ agent.Reranker = (*Client)(nil)
)

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	log := cfg.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		key:       strings.TrimSpace(cfg.APIKey),
		searchURL: cfg.SearchURL,
		rerankURL: cfg.RerankURL,
		http:      hc,
		log:       log.With(logx.String("comp", "search")),
	}, nil
}

type searchBody struct {
	Query     string `json:"query"`
	Freshness string `json:"freshness"`
	Count     int    `json:"count"`
}

// Search returns the usable snippets for req, in result order.
func (c *Client) Search(ctx context.Context, req agent.SearchRequest) ([]string, error) {
	raw, err := c.post(ctx, "search", c.searchURL, searchBody{Query: req.Query, Freshness: req.Freshness, Count: req.Count})
	if err != nil {
		return nil, err
	}
	snippets := gjson.GetBytes(raw, "data.webPages.value.#.snippet").Array()
	out := make([]string, 0, len(snippets))
	for _, s := range snippets {
		text := s.String()
		if len([]rune(strings.TrimSpace(text))) > minSnippetLen {
			out = append(out, text)
		}
	}
	c.log.Debug("search.done", logx.Int("results", len(snippets)), logx.Int("usable", len(out)))
	return out, nil
}

type rerankBody struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            int      `json:"top_n"`
	ReturnDocuments bool     `json:"return_documents"`
}

// Rerank scores docs against query, in the provider's ranking order.
func (c *Client) Rerank(ctx context.Context, query string, docs []string) ([]agent.Scored, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	raw, err := c.post(ctx, "rerank", c.rerankURL, rerankBody{
		Model:           RerankModel,
		Query:           query,
		Documents:       docs,
		TopN:            len(docs),
		ReturnDocuments: true,
	})
	if err != nil {
		return nil, err
	}
	results := gjson.GetBytes(raw, "data.results")
	if !results.IsArray() {
		return nil, fmt.Errorf("rerank: response has no data.results")
	}
	var out []agent.Scored
	results.ForEach(func(_, item gjson.Result) bool {
		out = append(out, agent.Scored{
			Text:  item.Get("document.text").String(),
			Score: item.Get("relevance_score").Float(),
		})
		return true
	})
	return out, nil
}

func (c *Client) post(ctx context.Context, op, url string, body any) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(raw)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: snippet}
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%s: invalid JSON response", op)
	}
	return raw, nil
}
