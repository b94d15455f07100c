package handler

import (
	"marketplace/internal/pkg/access"
	"marketplace/internal/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册分析路由，仅商家与管理员可访问
func RegisterRoutes(r *gin.RouterGroup, h *AnalyticsHandler) {
	analytics := r.Group("/analytics", middleware.RequireRule(access.Any(access.IsMerchant, access.IsAdmin)))
	{
		analytics.GET("/orders/summary", h.Summary)
		analytics.GET("/orders/timeseries", h.Timeseries)
		analytics.GET("/products/top", h.TopProducts)
		analytics.GET("/customers/top", h.TopCustomers)
	}
}
