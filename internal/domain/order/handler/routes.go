package handler

import (
	"marketplace/internal/pkg/access"
	"marketplace/internal/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册订单路由，r 需已挂载认证中间件
func RegisterRoutes(r *gin.RouterGroup, h *OrderHandler) {
	orders := r.Group("/orders")
	{
		orders.POST("", middleware.RequireRule(access.IsMember), h.Create)
		orders.GET("", h.List)
		orders.GET("/:id", h.Get)
		orders.PATCH("/:id", h.Update)
		orders.DELETE("/:id", middleware.RequireRule(access.IsAdmin), h.Delete)

		orders.POST("/:id/pay", h.Pay)
		orders.POST("/:id/ship", h.Ship)
		orders.POST("/:id/complete", h.Complete)
		orders.POST("/:id/cancel", h.Cancel)
	}
}
