package order

import (
	analyticsService "marketplace/internal/domain/analytics/service"
	catalogRepo "marketplace/internal/domain/catalog/repository"
	"marketplace/internal/domain/order/handler"
	"marketplace/internal/domain/order/repository"
	"marketplace/internal/domain/order/service"
	"marketplace/internal/pkg/registry"
)

// OrderModule 订单模块
type OrderModule struct{}

func init() {
	registry.Register(&OrderModule{})
}

func (m *OrderModule) Name() string {
	return "order"
}

func (m *OrderModule) Priority() int {
	return 20
}

func (m *OrderModule) Init(ctx *registry.ModuleContext) error {
	opts := []service.Option{
		service.WithNumberAttempts(ctx.Config.Order.NumberAttempts),
	}
	if ctx.Metrics != nil {
		opts = append(opts, service.WithRecorder(ctx.Metrics))
	}
	// 订单写入后异步清理相关商家的分析缓存
	if ctx.Worker != nil && ctx.Cache != nil {
		opts = append(opts, service.WithNotifier(analyticsService.NewCacheInvalidator(ctx.Worker, ctx.Cache)))
	}

	orderService := service.NewOrderService(
		repository.NewOrderRepository(ctx.DB),
		catalogRepo.NewProductRepository(ctx.DB),
		opts...,
	)
	handler.RegisterRoutes(ctx.API, handler.NewOrderHandler(orderService))
	return nil
}
