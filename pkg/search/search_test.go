package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"fortec-chat-go/internal/model"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnippetProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "current weather in Tokyo", body["query"])
		_, _ = io.WriteString(w, `{"organic_results":[
			{"title":"Tokyo","link":"https://a.example/1","snippet":"sunny","position":1,"source":"a.example"},
			{"title":"JMA","link":"https://b.example/2","snippet":"rain later","position":2,"source":"b.example"}
		],"search_metadata":{"status":"Success"}}`)
	}))
	defer srv.Close()

	results, err := NewSnippetProvider(srv.URL).Search(context.Background(), "current weather in Tokyo")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "JMA", results[1].Title)
	assert.Equal(t, 2, results[1].Position)
}

func TestSnippetProviderNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	}))
	defer srv.Close()

	_, err := NewSnippetProvider(srv.URL).Search(context.Background(), "q")
	require.EqualError(t, err, "Search API error: 502 - upstream down")
}

func TestSnippetProviderMissingResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	results, err := NewSnippetProvider(srv.URL).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func newTestES(t *testing.T, h http.HandlerFunc) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestElasticsearchProvider(t *testing.T) {
	client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/web_snippets/_search", r.URL.Path)
		_, _ = io.WriteString(w, `{"hits":{"hits":[
			{"_source":{"title":"Go","link":"https://go.dev","snippet":"The Go language","source":"go.dev"}},
			{"_source":{"title":"Tour","link":"https://go.dev/tour","snippet":"A tour of Go","source":"go.dev"}}
		]}}`)
	})

	results, err := NewElasticsearchProvider(client, "web_snippets", 5).Search(context.Background(), "golang")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Position)
	assert.Equal(t, "https://go.dev/tour", results[1].Link)
}

func TestElasticsearchIndexerUsesLinkHashAsID(t *testing.T) {
	var paths []string
	client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	})

	err := NewElasticsearchIndexer(client, "web_snippets").Index(context.Background(), "golang", nil)
	require.NoError(t, err)
	assert.Empty(t, paths)

	err = NewElasticsearchIndexer(client, "web_snippets").Index(context.Background(), "golang", []model.SearchResult{
		{Title: "Go", Link: "https://go.dev", Snippet: "s", Position: 1, Source: "go.dev"},
		{Title: "no link"},
	})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "/web_snippets/_doc/"+DocID("https://go.dev"), paths[0])
}
