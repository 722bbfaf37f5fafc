// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"fortec-chat-go/pkg/log"
	"fortec-chat-go/pkg/token"

	"github.com/gin-gonic/gin"
)

const (
	contextKeyUID    = "uid"
	contextKeyClaims = "claims"
)

// IdentityAuth 创建一个 Gin 中间件，校验 Authorization: Bearer 身份令牌。
// 校验通过后把 uid 和邮箱存入上下文；缺失或无效时直接返回 401。
func IdentityAuth(jwtManager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized. Missing identity token."})
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			log.Warnw("[IdentityAuth] 身份令牌校验失败", "path", c.Request.URL.Path, "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized. Invalid identity token."})
			return
		}

		c.Set(contextKeyUID, claims.UserID)
		c.Set(contextKeyUserEmail, claims.Email)
		c.Set(contextKeyClaims, claims)
		c.Next()
	}
}

// UserID 返回 IdentityAuth 写入的 uid。
func UserID(c *gin.Context) string {
	return c.GetString(contextKeyUID)
}
