// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"indi-radio-go/internal/middleware"
	"indi-radio-go/internal/service"
	"indi-radio-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// respondError 把 service 层错误映射为 HTTP 状态码和 {error} 响应体
func respondError(c *gin.Context, op string, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		body := gin.H{"error": ve.Message}
		if len(ve.Details) > 0 {
			body["errors"] = ve.Details
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, service.ErrClipNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Audio clip not found"})
	case errors.Is(err, service.ErrInvalidReference):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid S3 URL format"})
	case errors.Is(err, service.ErrDuplicateClip):
		c.JSON(http.StatusConflict, gin.H{"error": "An audio clip with this name already exists for the same date, type, channel and region"})
	case errors.Is(err, service.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
	case errors.Is(err, service.ErrSearchUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Catalog search is not enabled"})
	default:
		log.Errorf("[%s] 请求处理失败: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// currentUserID 读取认证中间件放入的调用者 id；缺失时直接返回 401
func currentUserID(c *gin.Context) (uint, bool) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return claims.UserID, true
}

// queryInt 解析整数查询参数，缺失或非法时返回 def
func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func pagination(c *gin.Context) service.Pagination {
	return service.Pagination{
		Page:  queryInt(c, "page", 1),
		Limit: queryInt(c, "limit", 10),
	}
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return uint(id), true
}
