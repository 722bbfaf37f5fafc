// Package llm 提供了三种补全后端的客户端：OpenAI 兼容的聊天接口、单轮直接生成接口和纯文本生成接口。
package llm

import (
	"context"
)

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// 角色常量与 OpenAI 兼容接口保持一致。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// GenerationParams 控制生成行为，来自模型目录。
type GenerationParams struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ChatClient 发送完整的角色对话，单次尝试。
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, gen GenerationParams) (string, error)
}

// GenerateClient 只发送一段 prompt，单次尝试。
type GenerateClient interface {
	Generate(ctx context.Context, prompt string, gen GenerationParams) (string, error)
}

// TextClient 以 GET 请求发送 prompt，内部带重试。
type TextClient interface {
	Text(ctx context.Context, prompt, model string) (string, error)
}
