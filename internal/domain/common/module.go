package common

import (
	commonHandler "marketplace/internal/pkg/common"
	"marketplace/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// CommonModule 通用功能模块
type CommonModule struct{}

func init() {
	registry.Register(&CommonModule{})
}

func (m *CommonModule) Name() string {
	return "common"
}

func (m *CommonModule) Priority() int {
	return 100 // 最后初始化
}

func (m *CommonModule) Init(ctx *registry.ModuleContext) error {
	setupRoutes(ctx.Router, commonHandler.NewHealthHandler(ctx.DB, ctx.Redis), ctx)
	return nil
}

// setupRoutes 公开路由，不经过认证
func setupRoutes(r *gin.Engine, h *commonHandler.HealthHandler, ctx *registry.ModuleContext) {
	r.GET("/healthz", h.Healthz)
	if ctx.Metrics != nil {
		r.GET("/metrics", gin.WrapH(ctx.Metrics.Handler()))
	}
}
