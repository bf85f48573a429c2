// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"context"
	"net/http"
	"strings"

	"indi-radio-go/pkg/log"
	"indi-radio-go/pkg/token"

	"github.com/gin-gonic/gin"
)

const (
	ClaimsKey = "claims"
	TokenKey  = "token"
)

// RevocationChecker 判断令牌是否已被注销，由 repository.TokenRepository 实现
type RevocationChecker interface {
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

// AuthMiddleware 校验 Bearer 令牌并把 claims 放入上下文。
// 这里不查询用户表，调用者身份是否仍然存在由各业务自行判断。
func AuthMiddleware(jwtManager *token.JWTManager, revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		if revoked != nil {
			blacklisted, err := revoked.IsBlacklisted(c.Request.Context(), tokenString)
			if err != nil {
				log.Error("检查令牌黑名单失败", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				return
			}
			if blacklisted {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has been revoked"})
				return
			}
		}

		c.Set(ClaimsKey, claims)
		c.Set(TokenKey, tokenString)
		c.Next()
	}
}

// CurrentClaims 取出 AuthMiddleware 放入的 claims
func CurrentClaims(c *gin.Context) (*token.CustomClaims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*token.CustomClaims)
	return claims, ok
}
