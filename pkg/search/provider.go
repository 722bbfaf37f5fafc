// Package search 提供网页摘要检索的后端实现。
package search

import (
	"context"

	"fortec-chat-go/internal/model"
)

// Provider 执行一次检索尝试，不做重试。
type Provider interface {
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}

// Indexer 把检索到的摘要缓存起来，供 Elasticsearch Provider 之后使用。
type Indexer interface {
	Index(ctx context.Context, query string, results []model.SearchResult) error
}
