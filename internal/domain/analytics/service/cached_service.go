package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/domain/analytics/model"
	"marketplace/internal/pkg/worker"
	"marketplace/pkg/cache"
	"marketplace/pkg/logger"

	"go.uber.org/zap"
)

const cacheKeyPrefix = "analytics"

// CacheRecorder 缓存命中指标
type CacheRecorder interface {
	RecordCacheOperation(keyPrefix string, hit bool)
}

type nopCacheRecorder struct{}

func (nopCacheRecorder) RecordCacheOperation(string, bool) {}

// CachedService 带缓存的分析服务
// 键格式 analytics:<merchant>:<op>:<params>，订单写入后按商家失效
type CachedService struct {
	next     AnalyticsService
	cache    cache.CacheService
	ttl      time.Duration
	recorder CacheRecorder
}

func NewCachedService(next AnalyticsService, c cache.CacheService, ttl time.Duration, recorder CacheRecorder) *CachedService {
	if recorder == nil {
		recorder = nopCacheRecorder{}
	}
	return &CachedService{next: next, cache: c, ttl: ttl, recorder: recorder}
}

// MerchantPattern 某商家全部分析缓存的匹配模式
func MerchantPattern(merchantID string) string {
	return fmt.Sprintf("%s:%s:*", cacheKeyPrefix, merchantID)
}

func cacheKey(merchantID string, op model.Operation, params string) string {
	return fmt.Sprintf("%s:%s:%s:%s", cacheKeyPrefix, merchantID, op, params)
}

func optionalDate(d *model.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

func (s *CachedService) Summary(ctx context.Context, q model.SummaryQuery) (*model.Summary, error) {
	key := cacheKey(q.MerchantID, model.OpSummary,
		fmt.Sprintf("%s:%s:%s", optionalDate(q.Start), optionalDate(q.End), q.CacheKey()))
	var out model.Summary
	if s.lookup(ctx, key, &out) {
		return &out, nil
	}
	res, err := s.next.Summary(ctx, q)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, res)
	return res, nil
}

func (s *CachedService) Timeseries(ctx context.Context, q model.TimeseriesQuery) ([]model.SeriesPoint, error) {
	key := cacheKey(q.MerchantID, model.OpTimeseries,
		fmt.Sprintf("%s:%s:%s:%s", q.Start, q.End, q.GroupBy, q.CacheKey()))
	var out []model.SeriesPoint
	if s.lookup(ctx, key, &out) {
		return out, nil
	}
	res, err := s.next.Timeseries(ctx, q)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, res)
	return res, nil
}

func (s *CachedService) TopProducts(ctx context.Context, q model.RankingQuery) ([]model.TopProduct, error) {
	key := cacheKey(q.MerchantID, model.OpTopProducts,
		fmt.Sprintf("%s:%s:%d:%s", q.Start, q.End, q.Limit, q.CacheKey()))
	var out []model.TopProduct
	if s.lookup(ctx, key, &out) {
		return out, nil
	}
	res, err := s.next.TopProducts(ctx, q)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, res)
	return res, nil
}

func (s *CachedService) TopCustomers(ctx context.Context, q model.RankingQuery) ([]model.TopCustomer, error) {
	key := cacheKey(q.MerchantID, model.OpTopCustomers,
		fmt.Sprintf("%s:%s:%d:%s", q.Start, q.End, q.Limit, q.CacheKey()))
	var out []model.TopCustomer
	if s.lookup(ctx, key, &out) {
		return out, nil
	}
	res, err := s.next.TopCustomers(ctx, q)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, res)
	return res, nil
}

// lookup 缓存故障按未命中处理
func (s *CachedService) lookup(ctx context.Context, key string, dest any) bool {
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		s.recorder.RecordCacheOperation(cacheKeyPrefix, true)
		return true
	}
	s.recorder.RecordCacheOperation(cacheKeyPrefix, false)
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Log.Warn("analytics cache get failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *CachedService) store(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		logger.Log.Warn("analytics cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Enqueuer 后台任务队列
type Enqueuer interface {
	AddTask(task worker.Task) bool
}

// CacheInvalidator 订单变更后异步清理相关商家的分析缓存
type CacheInvalidator struct {
	queue Enqueuer
	cache cache.CacheService
}

func NewCacheInvalidator(queue Enqueuer, c cache.CacheService) *CacheInvalidator {
	return &CacheInvalidator{queue: queue, cache: c}
}

func (i *CacheInvalidator) OrdersChanged(merchantIDs []string) {
	for _, id := range merchantIDs {
		pattern := MerchantPattern(id)
		task := worker.FuncTask{
			TaskName: "analytics_cache_invalidate",
			Fn: func(ctx context.Context) error {
				return i.cache.InvalidatePattern(ctx, pattern)
			},
		}
		if !i.queue.AddTask(task) {
			logger.Log.Warn("analytics cache invalidation dropped", zap.String("merchant_id", id))
		}
	}
}
