package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"reporter/internal/agent"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{
		APIKey:     "secret",
		SearchURL:  srv.URL + "/v1/web-search",
		RerankURL:  srv.URL + "/v1/rerank",
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestSearchFiltersShortSnippets(t *testing.T) {
	t.Parallel()
	var got searchBody
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/web-search" || r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		_, _ = w.Write([]byte(`{"data":{"webPages":{"value":[
			{"snippet":"stocks rallied on strong earnings"},
			{"snippet":"  short  "},
			{"name":"no snippet"},
			{"snippet":"bond yields fell for a third day"}
		]}}}`))
	})

	docs, err := c.Search(context.Background(), agent.SearchRequest{Query: "q", Freshness: "week", Count: 7})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) != 2 || docs[0] != "stocks rallied on strong earnings" {
		t.Fatalf("docs = %q", docs)
	}
	if got.Query != "q" || got.Freshness != "week" || got.Count != 7 {
		t.Fatalf("request body = %+v", got)
	}
}

func TestSearchStatusError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"msg":"bad key"}`))
	})
	_, err := c.Search(context.Background(), agent.SearchRequest{Query: "q"})
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v", err)
	}
}

func TestRerank(t *testing.T) {
	t.Parallel()
	var got rerankBody
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		_, _ = w.Write([]byte(`{"data":{"results":[
			{"index":1,"relevance_score":0.91,"document":{"text":"b"}},
			{"index":0,"relevance_score":0.12,"document":{"text":"a"}}
		]}}`))
	})
	scored, err := c.Rerank(context.Background(), "q", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(scored) != 2 || scored[0].Text != "b" || scored[0].Score != 0.91 {
		t.Fatalf("scored = %+v", scored)
	}
	if got.Model != RerankModel || got.TopN != 2 || !got.ReturnDocuments {
		t.Fatalf("request body = %+v", got)
	}
}

func TestRerankMalformed(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	})
	if _, err := c.Rerank(context.Background(), "q", []string{"a"}); err == nil {
		t.Fatal("expected error for missing results")
	}
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{APIKey: " "}); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err = %v", err)
	}
}
