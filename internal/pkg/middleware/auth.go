package middleware

import (
	"net/http"
	"strings"

	"marketplace/internal/pkg/access"
	"marketplace/pkg/response"
	"marketplace/pkg/utils"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// AuthMiddleware JWT认证中间件，解析出调用方身份写入上下文
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Abort(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Authorization header is required")
			return
		}

		// 检查格式 "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Abort(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Invalid authorization header format")
			return
		}

		claims, err := utils.ParseToken(secret, parts[1])
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Invalid or expired token")
			return
		}

		role := access.Role(claims.Role)
		if !role.Valid() {
			response.Abort(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Invalid role in token")
			return
		}

		SetPrincipal(c, access.Principal{
			UserID:     claims.UserID,
			Role:       role,
			MemberID:   claims.MemberID,
			MerchantID: claims.MerchantID,
		})
		c.Next()
	}
}

// SetPrincipal 写入调用方身份
func SetPrincipal(c *gin.Context, p access.Principal) {
	c.Set(principalKey, p)
}

// GetPrincipal 读取调用方身份
func GetPrincipal(c *gin.Context) (access.Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return access.Principal{}, false
	}
	p, ok := v.(access.Principal)
	return p, ok
}

// RequireRule 按角色规则拦截，适用于不依赖具体资源的接口
func RequireRule(rule access.Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Unauthorized")
			return
		}
		if err := access.Check(p, access.Resource{}, rule); err != nil {
			response.Abort(c, http.StatusForbidden, response.ErrNoPermission, "Permission denied")
			return
		}
		c.Next()
	}
}
