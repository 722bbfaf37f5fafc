package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fortec-chat-go/internal/config"
	"fortec-chat-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastSearchConfig() config.SearchConfig {
	return config.SearchConfig{AttemptTimeout: time.Second, MaxRetries: 2}
}

var tokyoResults = []model.SearchResult{
	{Title: "Tokyo Weather", Link: "https://weather.example/tokyo", Snippet: "Sunny, 21°C", Position: 1, Source: "weather.example"},
	{Title: "Tokyo Forecast", Link: "https://forecast.example/tokyo", Snippet: "Clear skies", Position: 2, Source: "forecast.example"},
	{Title: "Japan Meteorological Agency", Link: "https://jma.example", Snippet: "Official forecast", Position: 3, Source: "jma.example"},
}

type recordingIndexer struct {
	mu      sync.Mutex
	done    chan struct{}
	query   string
	results []model.SearchResult
}

func (i *recordingIndexer) Index(_ context.Context, query string, results []model.SearchResult) error {
	i.mu.Lock()
	i.query, i.results = query, results
	i.mu.Unlock()
	close(i.done)
	return nil
}

func TestSearchServiceSucceedsAfterRetries(t *testing.T) {
	provider := &scriptedProvider{script: func(call int) ([]model.SearchResult, error) {
		if call < 3 {
			return nil, errors.New("Search API error: 502 - bad gateway")
		}
		return tokyoResults, nil
	}}
	tracker := &recordingTracker{}
	indexer := &recordingIndexer{done: make(chan struct{})}
	svc := NewSearchService(provider, indexer, tracker, fastSearchConfig())

	outcome := svc.Search(context.Background(), "ada@example.com", "  Tokyo weather ")

	require.False(t, outcome.Failed())
	assert.Equal(t, tokyoResults, outcome.Results)
	assert.Equal(t, "Success", outcome.Metadata.Status)
	assert.Equal(t, 3, provider.calls)
	assert.Equal(t, []string{"Tokyo weather", "Tokyo weather", "Tokyo weather"}, provider.queries)
	assert.Equal(t, []trackedSearch{{"ada@example.com", "Tokyo weather", true}}, tracker.searches)

	select {
	case <-indexer.done:
	case <-time.After(time.Second):
		t.Fatal("results were not indexed")
	}
	indexer.mu.Lock()
	defer indexer.mu.Unlock()
	assert.Equal(t, "Tokyo weather", indexer.query)
	assert.Len(t, indexer.results, 3)
}

func TestSearchServiceReturnsFailureOutcome(t *testing.T) {
	provider := &scriptedProvider{script: func(int) ([]model.SearchResult, error) {
		return nil, errors.New("Search API error: 503 - unavailable")
	}}
	tracker := &recordingTracker{}
	svc := NewSearchService(provider, nil, tracker, fastSearchConfig())

	outcome := svc.Search(context.Background(), "ada@example.com", "tokyo weather")

	assert.True(t, outcome.Failed())
	assert.Equal(t, "Search API error: 503 - unavailable", outcome.Error)
	assert.Equal(t, "Error", outcome.Metadata.Status)
	assert.Equal(t, outcome.Error, outcome.Metadata.ErrorMessage)
	assert.NotNil(t, outcome.Results)
	assert.Empty(t, outcome.Results)
	assert.Equal(t, 3, provider.calls)
	assert.Equal(t, []trackedSearch{{"ada@example.com", "tokyo weather", false}}, tracker.searches)
}

func TestSearchServiceReportsAttemptTimeout(t *testing.T) {
	provider := &scriptedProvider{script: func(int) ([]model.SearchResult, error) {
		return nil, context.DeadlineExceeded
	}}
	cfg := config.SearchConfig{AttemptTimeout: 8 * time.Second}
	svc := NewSearchService(provider, nil, &recordingTracker{}, cfg)

	outcome := svc.Search(context.Background(), "ada@example.com", "tokyo")

	assert.Equal(t, "Search request timed out after 8000ms", outcome.Error)
	assert.Equal(t, 1, provider.calls)
}

func TestSearchServiceRejectsEmptyQuery(t *testing.T) {
	provider := &scriptedProvider{script: func(int) ([]model.SearchResult, error) { return tokyoResults, nil }}
	tracker := &recordingTracker{}
	svc := NewSearchService(provider, nil, tracker, fastSearchConfig())

	outcome := svc.Search(context.Background(), "ada@example.com", "   ")

	assert.Equal(t, "Query is required", outcome.Error)
	assert.Zero(t, provider.calls)
	assert.Empty(t, tracker.searches)
}

func TestSearchServiceStopsWhenCancelled(t *testing.T) {
	provider := &scriptedProvider{script: func(int) ([]model.SearchResult, error) {
		return nil, errors.New("boom")
	}}
	cfg := config.SearchConfig{AttemptTimeout: time.Second, MaxRetries: 2, BackoffBase: time.Hour}
	svc := NewSearchService(provider, nil, &recordingTracker{}, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	outcome := svc.Search(ctx, "ada@example.com", "tokyo")

	assert.True(t, outcome.Failed())
	assert.Equal(t, 1, provider.calls)
}
