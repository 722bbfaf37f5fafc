// Package model 包含了应用的数据模型定义。
package model

import "time"

// Message 代表会话日志中的一条消息，创建后不可变。
type Message struct {
	ID            string         `json:"id"`
	Content       string         `json:"content"`
	IsUser        bool           `json:"isUser"`
	Timestamp     time.Time      `json:"timestamp"`
	SearchResults []SearchResult `json:"searchResults,omitempty"`
	SearchQuery   string         `json:"searchQuery,omitempty"`
	ModelID       string         `json:"modelId,omitempty"`
}

// SearchResult 是一次网页搜索返回的单条摘要。
type SearchResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
	Source   string `json:"source"`
}

// SearchMetadata 描述一次搜索调用的结果状态。
type SearchMetadata struct {
	Status       string    `json:"status"`
	ProcessedAt  time.Time `json:"processed_at"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// SearchOutcome 是搜索网关的返回值。Error 非空表示重试耗尽后的失败，此时 Results 为空。
type SearchOutcome struct {
	Results  []SearchResult `json:"organic_results"`
	Metadata SearchMetadata `json:"search_metadata"`
	Error    string         `json:"error,omitempty"`
}

// Failed 判断搜索是否失败。
func (o *SearchOutcome) Failed() bool {
	return o.Error != ""
}

// Turn 是发送给补全后端的一轮对话。
type Turn struct {
	Content string `json:"content"`
	IsUser  bool   `json:"isUser"`
}

// CompletionReply 是补全网关的统一返回值。
type CompletionReply struct {
	Text      string    `json:"text"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}
