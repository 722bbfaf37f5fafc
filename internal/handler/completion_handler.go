// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"time"

	"fortec-chat-go/internal/config"
	"fortec-chat-go/internal/middleware"
	"fortec-chat-go/internal/model"
	"fortec-chat-go/internal/service"
	"fortec-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// isoMillis 与浏览器 Date.toISOString 的格式一致。
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// CompletionHandler 负责 POST /api/chat 和模型目录。
type CompletionHandler struct {
	completionService service.CompletionService
	identityCfg       config.IdentityConfig
}

// NewCompletionHandler 创建一个新的 CompletionHandler 实例。
func NewCompletionHandler(completionService service.CompletionService, identityCfg config.IdentityConfig) *CompletionHandler {
	return &CompletionHandler{completionService: completionService, identityCfg: identityCfg}
}

// ChatRequest 定义了 /api/chat 的请求体结构。
type ChatRequest struct {
	Messages []model.Turn `json:"messages"`
	Model    string       `json:"model"`
}

// Complete 把对话转发给补全网关。
func (h *CompletionHandler) Complete(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[CompletionHandler] 无效的请求体, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidMessages.Error()})
		return
	}

	email := middleware.UserEmail(c)
	reply, err := h.completionService.Complete(c.Request.Context(), email, req.Messages, req.Model)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrInvalidMessages) || errors.Is(err, service.ErrInvalidModel) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	middleware.EnsureAnonymousCookie(c, h.identityCfg)
	c.JSON(http.StatusOK, gin.H{
		"text":      reply.Text,
		"model":     reply.Model,
		"timestamp": formatTimestamp(reply.Timestamp),
	})
}

type modelEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Icon    string `json:"icon"`
	Default bool   `json:"default,omitempty"`
}

// ListModels 返回可选的模型目录。
func (h *CompletionHandler) ListModels(c *gin.Context) {
	catalog := model.Catalog()
	entries := make([]modelEntry, 0, len(catalog))
	for _, m := range catalog {
		entries = append(entries, modelEntry{ID: m.ID, Name: m.Name, Icon: m.Icon, Default: m.ID == model.DefaultModelID})
	}
	c.JSON(http.StatusOK, gin.H{"models": entries})
}
