package handler

import (
	"net/http"

	"fortec-chat-go/internal/middleware"
	"fortec-chat-go/internal/service"

	"github.com/gin-gonic/gin"
)

// DashboardHandler 返回已识别用户的用量看板。
type DashboardHandler struct {
	dashboardService service.DashboardService
}

// NewDashboardHandler 创建一个新的 DashboardHandler 实例。
func NewDashboardHandler(dashboardService service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetDashboard 需要 IdentityAuth；带 _nocache 参数时跳过缓存。读取失败时返回全零看板而不是错误。
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	force := c.Request.URL.Query().Has("_nocache")
	view := h.dashboardService.Snapshot(c.Request.Context(), middleware.UserEmail(c), force)
	c.JSON(http.StatusOK, view)
}
