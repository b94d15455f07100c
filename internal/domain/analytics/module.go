package analytics

import (
	"marketplace/internal/domain/analytics/handler"
	"marketplace/internal/domain/analytics/repository"
	"marketplace/internal/domain/analytics/service"
	"marketplace/internal/pkg/registry"
)

// AnalyticsModule 销售分析模块
type AnalyticsModule struct{}

func init() {
	registry.Register(&AnalyticsModule{})
}

func (m *AnalyticsModule) Name() string {
	return "analytics"
}

func (m *AnalyticsModule) Priority() int {
	return 30
}

func (m *AnalyticsModule) Init(ctx *registry.ModuleContext) error {
	settings, err := service.SettingsFromConfig(ctx.Config.Analytics)
	if err != nil {
		return err
	}

	var opts []service.Option
	if ctx.Metrics != nil {
		opts = append(opts, service.WithRecorder(ctx.Metrics))
	}
	svc := service.NewAnalyticsService(repository.NewAnalyticsRepository(ctx.DB), settings, opts...)
	if ctx.Cache != nil {
		var recorder service.CacheRecorder
		if ctx.Metrics != nil {
			recorder = ctx.Metrics
		}
		svc = service.NewCachedService(svc, ctx.Cache, ctx.Config.Analytics.CacheTTL, recorder)
	}

	handler.RegisterRoutes(ctx.API, handler.NewAnalyticsHandler(svc))
	return nil
}
