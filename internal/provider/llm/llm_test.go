package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestAnalyze(t *testing.T) {
	t.Parallel()
	var got chatRequest
	var path, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, auth = r.URL.Path, r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"deepseek-chat",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"market is up"}}],
			"usage":{"prompt_tokens":3,"completion_tokens":3,"total_tokens":6}}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", BaseURL: srv.URL, Model: "deepseek-chat", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := c.Analyze(context.Background(), "sys", "usr")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out != "market is up" {
		t.Fatalf("out = %q", out)
	}
	if path != "/chat/completions" || auth != "Bearer k" {
		t.Fatalf("path=%q auth=%q", path, auth)
	}
	if got.Model != "deepseek-chat" || len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "usr" {
		t.Fatalf("request = %+v", got)
	}
}

func TestAnalyzeNoChoices(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer srv.Close()
	c, _ := New(Config{APIKey: "k", BaseURL: srv.URL, Model: "m", HTTPClient: srv.Client()})
	if _, err := c.Analyze(context.Background(), "s", "u"); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("err = %v", err)
	}
}

func TestAnalyzeServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c, _ := New(Config{APIKey: "k", BaseURL: srv.URL, Model: "m", HTTPClient: srv.Client()})
	if _, err := c.Analyze(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err = %v", err)
	}
}
