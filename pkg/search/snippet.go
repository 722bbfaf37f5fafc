package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"fortec-chat-go/internal/model"
)

type snippetProvider struct {
	url    string
	client *http.Client
}

// NewSnippetProvider 创建调用外部摘要接口（POST {query}）的 Provider。
func NewSnippetProvider(url string) Provider {
	return &snippetProvider{url: url, client: &http.Client{}}
}

type snippetResponse struct {
	OrganicResults []model.SearchResult `json:"organic_results"`
}

// Search 发送一次请求；超时由调用方的 ctx 控制。
func (p *snippetProvider) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("Search API error: %d - %s", resp.StatusCode, string(raw))
	}

	var parsed snippetResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("Search API returned a malformed response: %w", err)
	}
	if parsed.OrganicResults == nil {
		parsed.OrganicResults = []model.SearchResult{}
	}
	return parsed.OrganicResults, nil
}
