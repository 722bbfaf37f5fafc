package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"fortec-chat-go/internal/config"
	"fortec-chat-go/pkg/log"
	"fortec-chat-go/pkg/retry"
)

type textClient struct {
	cfg     config.LLMTextConfig
	client  *http.Client
	backoff retry.Backoff
}

// NewTextClient 创建纯文本生成接口的客户端。第 n 次重试前等待 backoff_base·2^(n-1)。
func NewTextClient(cfg config.LLMTextConfig) TextClient {
	return &textClient{
		cfg:     cfg,
		client:  &http.Client{},
		backoff: retry.Exponential(cfg.BackoffBase, -1, 0),
	}
}

// IdentityPrompt 生成带身份声明的 prompt，避免模型冒充其它模型。
func IdentityPrompt(name, alias, query string) string {
	return fmt.Sprintf(`You are an advanced AI assistant. You are %s created by the company that developed the %s model. Please provide a detailed, comprehensive, and helpful response to the following query.

IMPORTANT: Do not identify yourself in every response. Only identify yourself when explicitly asked about your identity or model. Never claim to be based on GPT-4 or any other model architecture you're not based on. Be accurate about your true identity.

User query: %s`, name, alias, query)
}

// Text 以 GET {base}/{prompt}?model={model} 请求文本，每次尝试有独立的超时。
func (c *textClient) Text(ctx context.Context, prompt, model string) (string, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + url.PathEscape(prompt) + "?model=" + url.QueryEscape(model)
	attempts := c.cfg.MaxRetries + 1

	var text string
	err := retry.Do(ctx, c.cfg.MaxRetries, c.backoff, func(attempt int) error {
		var err error
		text, err = c.once(ctx, endpoint)
		if err != nil {
			log.Warnw("[TextClient] 文本生成请求失败", "model", model, "attempt", attempt+1, "of", attempts, "error", err)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("Text generation API request timed out after %d attempts", attempts)
		}
		return "", err
	}
	return text, nil
}

func (c *textClient) once(ctx context.Context, endpoint string) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create text request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := string(body)
		if detail == "" {
			detail = "No error details available"
		}
		return "", fmt.Errorf("Text generation API request failed: Status %d - %s", resp.StatusCode, detail)
	}
	return string(body), nil
}
