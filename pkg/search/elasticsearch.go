package search

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"fortec-chat-go/internal/model"
	"fortec-chat-go/pkg/es"
	"fortec-chat-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"golang.org/x/crypto/blake2b"
)

type esProvider struct {
	client    *elasticsearch.Client
	indexName string
	size      int
}

// NewElasticsearchProvider 在本地摘要索引上做全文检索。
func NewElasticsearchProvider(client *elasticsearch.Client, indexName string, size int) Provider {
	if size <= 0 {
		size = 10
	}
	return &esProvider{client: client, indexName: indexName, size: size}
}

// Search 对 title/snippet/source 做 multi_match，按得分排序。
func (p *esProvider) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "snippet", "source"},
			},
		},
		"size": p.size,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := p.client.Search(
		p.client.Search.WithContext(ctx),
		p.client.Search.WithIndex(p.indexName),
		p.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[ESProvider] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.SnippetDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	results := make([]model.SearchResult, 0, len(esResponse.Hits.Hits))
	for i, hit := range esResponse.Hits.Hits {
		results = append(results, model.SearchResult{
			Title:    hit.Source.Title,
			Link:     hit.Source.Link,
			Snippet:  hit.Source.Snippet,
			Position: i + 1,
			Source:   hit.Source.Source,
		})
	}
	return results, nil
}

type esIndexer struct {
	client    *elasticsearch.Client
	indexName string
}

// NewElasticsearchIndexer 把外部接口检索到的摘要写入本地索引。
func NewElasticsearchIndexer(client *elasticsearch.Client, indexName string) Indexer {
	return &esIndexer{client: client, indexName: indexName}
}

// Index 逐条写入，遇到第一个错误即返回。
func (x *esIndexer) Index(ctx context.Context, query string, results []model.SearchResult) error {
	now := time.Now()
	for _, r := range results {
		if r.Link == "" {
			continue
		}
		doc := model.SnippetDocument{
			DocID:     DocID(r.Link),
			Title:     r.Title,
			Link:      r.Link,
			Snippet:   r.Snippet,
			Source:    r.Source,
			Query:     query,
			IndexedAt: now,
		}
		if err := es.IndexSnippet(ctx, x.client, x.indexName, doc); err != nil {
			return err
		}
	}
	return nil
}

// DocID 由链接派生索引文档 ID。
func DocID(link string) string {
	sum := blake2b.Sum256([]byte(link))
	return hex.EncodeToString(sum[:16])
}
