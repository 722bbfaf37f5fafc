package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fortec-chat-go/internal/config"

	"github.com/sashabaranov/go-openai"
)

// NoReplyText 是后端没有返回任何选项时的回复。
const NoReplyText = "No response from model"

type openAIChatClient struct {
	client  *openai.Client
	timeout time.Duration
}

// NewChatClient 基于 go-openai 创建 OpenAI 兼容接口（如 Groq）的客户端。
func NewChatClient(cfg config.LLMChatConfig) ChatClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{}
	return &openAIChatClient{
		client:  openai.NewClientWithConfig(clientCfg),
		timeout: cfg.Timeout,
	}
}

// Chat 发送完整对话并返回第一条回复。
func (c *openAIChatClient) Chat(ctx context.Context, messages []Message, gen GenerationParams) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       gen.Model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: float32(gen.Temperature),
		MaxTokens:   gen.MaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return "", errors.New(apiErr.Message)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("Chat API request timed out after %d seconds", int(c.timeout.Seconds()))
		}
		return "", fmt.Errorf("Failed to get response from chat API: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return NoReplyText, nil
	}
	return resp.Choices[0].Message.Content, nil
}
