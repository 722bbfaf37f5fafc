package model

import "time"

// SnippetDocument 是缓存在 Elasticsearch 中的一条网页摘要。
type SnippetDocument struct {
	DocID     string    `json:"doc_id"` // 链接的哈希，保证同一链接只存一份
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Snippet   string    `json:"snippet"`
	Source    string    `json:"source"`
	Query     string    `json:"query"` // 第一次检索到该摘要时的查询
	IndexedAt time.Time `json:"indexed_at"`
}
