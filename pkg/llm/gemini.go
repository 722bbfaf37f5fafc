package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"fortec-chat-go/internal/config"
)

type geminiClient struct {
	cfg    config.LLMGenerateConfig
	client *http.Client
}

// NewGenerateClient 创建 Gemini generateContent 接口的客户端。
func NewGenerateClient(cfg config.LLMGenerateConfig) GenerateClient {
	return &geminiClient{cfg: cfg, client: &http.Client{}}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate 发送单轮 prompt。非 2xx 或无法解析的响应都是硬失败。
func (c *geminiClient) Generate(ctx context.Context, prompt string, gen GenerationParams) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	body := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}
	body.GenerationConfig.Temperature = gen.Temperature
	body.GenerationConfig.MaxOutputTokens = gen.MaxTokens
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	endpoint := c.cfg.BaseURL
	if c.cfg.APIKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.cfg.APIKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("Gemini API request timed out after %d seconds", int(c.cfg.Timeout/time.Second))
		}
		return "", fmt.Errorf("Gemini API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("Gemini API response could not be read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := "No error details available"
		var ge geminiError
		if json.Unmarshal(raw, &ge) == nil && ge.Error.Message != "" {
			detail = ge.Error.Message
		}
		return "", fmt.Errorf("Gemini API request failed: Status %d - %s", resp.StatusCode, detail)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("Gemini API returned a malformed response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("Gemini API returned no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
