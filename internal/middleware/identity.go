package middleware

import (
	"net/http"
	"strings"
	"time"

	"fortec-chat-go/internal/config"
	"fortec-chat-go/pkg/identity"

	"github.com/gin-gonic/gin"
)

const (
	contextKeyUserEmail = "userEmail"
	contextKeyHasCookie = "hasIdentityCookie"
)

// CookieIdentity 从 userEmail cookie 中解析调用者身份。没有 cookie 时视为匿名。
func CookieIdentity(cfg config.IdentityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := identity.AnonymousEmail
		hasCookie := false
		// c.Cookie 会做 URL 解码，兼容客户端 encodeURIComponent 写入的值
		if v, err := c.Cookie(cfg.CookieName); err == nil {
			hasCookie = true
			if strings.TrimSpace(v) != "" {
				email = identity.Normalize(v)
			}
		}
		c.Set(contextKeyUserEmail, email)
		c.Set(contextKeyHasCookie, hasCookie)
		c.Next()
	}
}

// UserEmail 返回 CookieIdentity 解析出的邮箱，没有经过中间件时返回匿名邮箱。
func UserEmail(c *gin.Context) string {
	if v := c.GetString(contextKeyUserEmail); v != "" {
		return v
	}
	return identity.AnonymousEmail
}

// EnsureAnonymousCookie 在请求没有携带身份 cookie 时写入匿名 cookie。
func EnsureAnonymousCookie(c *gin.Context, cfg config.IdentityConfig) {
	if c.GetBool(contextKeyHasCookie) {
		return
	}
	SetIdentityCookie(c, cfg, identity.AnonymousEmail, cfg.CookieMaxAge)
}

// SetIdentityCookie 写入 userEmail cookie（SameSite=Lax，path=/）。maxAge 为 0 时删除 cookie。
func SetIdentityCookie(c *gin.Context, cfg config.IdentityConfig, email string, maxAge time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	seconds := int(maxAge / time.Second)
	if maxAge <= 0 {
		seconds = -1
	}
	c.SetCookie(cfg.CookieName, email, seconds, "/", "", cfg.SecureCookie, false)
}
