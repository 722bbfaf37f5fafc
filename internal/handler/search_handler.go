package handler

import (
	"net/http"
	"strings"

	"fortec-chat-go/internal/middleware"
	"fortec-chat-go/internal/service"
	"fortec-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 结构体定义了网页搜索的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// WebSearchRequest 定义了 /api/web-search 的请求体结构。
type WebSearchRequest struct {
	Query string `json:"query"`
}

// WebSearch 是处理网页搜索请求的 Gin 处理函数。重试耗尽时返回 500 和空结果。
func (h *SearchHandler) WebSearch(c *gin.Context) {
	var req WebSearchRequest
	_ = c.ShouldBindJSON(&req)
	if strings.TrimSpace(req.Query) == "" {
		log.Warnf("[SearchHandler] 搜索请求失败: query 为空")
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrEmptySearchQuery.Error()})
		return
	}

	outcome := h.searchService.Search(c.Request.Context(), middleware.UserEmail(c), req.Query)
	if outcome.Failed() {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":           outcome.Error,
			"organic_results": outcome.Results,
			"search_metadata": gin.H{
				"status":        outcome.Metadata.Status,
				"processed_at":  formatTimestamp(outcome.Metadata.ProcessedAt),
				"error_message": outcome.Metadata.ErrorMessage,
			},
		})
		return
	}

	log.Infof("[SearchHandler] 网页搜索成功, query: '%s', 返回 %d 条结果", req.Query, len(outcome.Results))
	c.JSON(http.StatusOK, gin.H{
		"organic_results": outcome.Results,
		"search_metadata": gin.H{
			"status":       outcome.Metadata.Status,
			"processed_at": formatTimestamp(outcome.Metadata.ProcessedAt),
		},
		"timestamp": formatTimestamp(outcome.Metadata.ProcessedAt),
	})
}
