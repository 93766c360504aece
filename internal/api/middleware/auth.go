package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/applysmartuk/statement_server/internal/pkg/jwt"
	"github.com/applysmartuk/statement_server/internal/pkg/response"
)

const (
	AdminIDKey    = "adminID"
	AdminEmailKey = "adminEmail"
)

// AdminAuth 后台 JWT 认证中间件
func AdminAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AuthError(c, "missing authorization header")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			response.AuthError(c, "authorization header must use the Bearer scheme")
			c.Abort()
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err != nil {
			response.AuthError(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(AdminIDKey, claims.AdminID)
		c.Set(AdminEmailKey, claims.Email)
		c.Next()
	}
}

// GetAdminID 从上下文获取管理员 ID
func GetAdminID(c *gin.Context) (string, bool) {
	v, exists := c.Get(AdminIDKey)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// GetAdminEmail 从上下文获取管理员邮箱
func GetAdminEmail(c *gin.Context) string {
	return c.GetString(AdminEmailKey)
}
