// Package tasks 定义了发送到 Kafka 的用量事件。
package tasks

import "time"

// 事件类型。
const (
	UsageKindChat   = "chat"
	UsageKindSearch = "search"
)

// UsageEvent 是一次需要记入用量账本的调用。
type UsageEvent struct {
	EventID    string    `json:"event_id"`
	Kind       string    `json:"kind"`
	Email      string    `json:"email"`
	ModelID    string    `json:"model_id,omitempty"`
	InputText  string    `json:"input_text,omitempty"`
	OutputText string    `json:"output_text,omitempty"`
	Query      string    `json:"query,omitempty"`
	Succeeded  bool      `json:"succeeded"`
	OccurredAt time.Time `json:"occurred_at"`
}
