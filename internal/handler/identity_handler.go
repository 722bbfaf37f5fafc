package handler

import (
	"net/http"
	"strings"

	"fortec-chat-go/internal/config"
	"fortec-chat-go/internal/middleware"
	"fortec-chat-go/internal/repository"
	"fortec-chat-go/pkg/identity"
	"fortec-chat-go/pkg/log"
	"fortec-chat-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// IdentityHandler 负责设置 userEmail cookie 并签发看板使用的身份令牌。
type IdentityHandler struct {
	jwtManager  *token.JWTManager
	profiles    repository.UserRepository
	identityCfg config.IdentityConfig
}

// NewIdentityHandler 创建一个新的 IdentityHandler 实例。profiles 为 nil 时不创建用户资料。
func NewIdentityHandler(jwtManager *token.JWTManager, profiles repository.UserRepository, identityCfg config.IdentityConfig) *IdentityHandler {
	return &IdentityHandler{jwtManager: jwtManager, profiles: profiles, identityCfg: identityCfg}
}

// SetCookieRequest 定义了 /api/set-cookie 的请求体结构。
type SetCookieRequest struct {
	Email string `json:"email"`
}

// SetCookie 设置或清除 userEmail cookie。非匿名邮箱会同时得到一个身份令牌。
func (h *IdentityHandler) SetCookie(c *gin.Context) {
	var req SetCookieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[IdentityHandler] 无效的请求体, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	email := identity.Normalize(req.Email)
	if email == "" {
		middleware.SetIdentityCookie(c, h.identityCfg, "", 0)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cookie cleared"})
		return
	}
	if !strings.Contains(email, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email"})
		return
	}

	middleware.SetIdentityCookie(c, h.identityCfg, email, h.identityCfg.CookieMaxAge)
	resp := gin.H{"success": true, "message": "Cookie set"}
	if !identity.IsAnonymous(email) {
		uid := identity.UserID(email)
		tok, err := h.jwtManager.GenerateToken(uid, email)
		if err != nil {
			log.Errorw("[IdentityHandler] 签发身份令牌失败", "uid", uid, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue identity token"})
			return
		}
		// 首次识别时创建资料，看板的 memberSince 从这里开始计算
		if h.profiles != nil {
			if err := h.profiles.Ensure(c.Request.Context(), uid, email); err != nil {
				log.Warnw("[IdentityHandler] 创建用户资料失败", "uid", uid, "error", err)
			}
		}
		resp["uid"] = uid
		resp["token"] = tok
	}
	log.Infow("[IdentityHandler] 已设置身份 cookie", "anonymous", identity.IsAnonymous(email))
	c.JSON(http.StatusOK, resp)
}
