package service

import (
	"context"
	"fmt"
	"time"

	"marketplace/internal/domain/analytics/model"
	"marketplace/internal/domain/analytics/repository"
	orderModel "marketplace/internal/domain/order/model"
	"marketplace/internal/pkg/config"

	"github.com/shopspring/decimal"
)

const (
	// MaxLimit 排行接口返回条数上限
	MaxLimit = 100
	// maxSeriesPoints 时间序列最多返回的点数
	maxSeriesPoints = 3660
)

// AnalyticsService 商家维度的销售分析，只读
type AnalyticsService interface {
	Summary(ctx context.Context, q model.SummaryQuery) (*model.Summary, error)
	Timeseries(ctx context.Context, q model.TimeseriesQuery) ([]model.SeriesPoint, error)
	TopProducts(ctx context.Context, q model.RankingQuery) ([]model.TopProduct, error)
	TopCustomers(ctx context.Context, q model.RankingQuery) ([]model.TopCustomer, error)
}

// Recorder 查询耗时指标
type Recorder interface {
	RecordAnalyticsQuery(operation string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordAnalyticsQuery(string, time.Duration) {}

// Settings 分析服务参数
type Settings struct {
	Location          *time.Location
	TopProductsLimit  int
	TopCustomersLimit int
	// Defaults 未指定 statuses 时各接口使用的状态，空切片表示不过滤
	Defaults map[model.Operation][]orderModel.Status
}

// DefaultSettings UTC 时区，汇总不过滤状态，其余接口只统计已实现的订单
func DefaultSettings() Settings {
	return Settings{
		Location:          time.UTC,
		TopProductsLimit:  10,
		TopCustomersLimit: 5,
		Defaults: map[model.Operation][]orderModel.Status{
			model.OpSummary:      nil,
			model.OpTimeseries:   orderModel.RealizedStatuses,
			model.OpTopProducts:  orderModel.RealizedStatuses,
			model.OpTopCustomers: orderModel.RealizedStatuses,
		},
	}
}

// SettingsFromConfig 由配置构造参数
func SettingsFromConfig(cfg config.AnalyticsConfig) (Settings, error) {
	s := DefaultSettings()
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return s, fmt.Errorf("load analytics timezone: %w", err)
		}
		s.Location = loc
	}
	if cfg.TopProductsLimit > 0 {
		s.TopProductsLimit = cfg.TopProductsLimit
	}
	if cfg.TopCustomersLimit > 0 {
		s.TopCustomersLimit = cfg.TopCustomersLimit
	}
	groups := map[model.Operation][]string{
		model.OpSummary:      cfg.DefaultStatuses.Summary,
		model.OpTimeseries:   cfg.DefaultStatuses.Timeseries,
		model.OpTopProducts:  cfg.DefaultStatuses.TopProducts,
		model.OpTopCustomers: cfg.DefaultStatuses.TopCustomers,
	}
	for op, values := range groups {
		statuses, err := parseStatuses(values)
		if err != nil {
			return s, fmt.Errorf("analytics default statuses for %s: %w", op, err)
		}
		s.Defaults[op] = statuses
	}
	return s, nil
}

func parseStatuses(values []string) ([]orderModel.Status, error) {
	if len(values) == 0 {
		return nil, nil
	}
	statuses := make([]orderModel.Status, 0, len(values))
	for _, v := range values {
		st, err := orderModel.ParseStatus(v)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

type analyticsService struct {
	repo     repository.AnalyticsRepository
	settings Settings
	recorder Recorder
}

type Option func(*analyticsService)

func WithRecorder(r Recorder) Option {
	return func(s *analyticsService) {
		if r != nil {
			s.recorder = r
		}
	}
}

func NewAnalyticsService(repo repository.AnalyticsRepository, settings Settings, opts ...Option) AnalyticsService {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.Defaults == nil {
		settings.Defaults = DefaultSettings().Defaults
	}
	s := &analyticsService{repo: repo, settings: settings, recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *analyticsService) Summary(ctx context.Context, q model.SummaryQuery) (*model.Summary, error) {
	defer s.observe(model.OpSummary, time.Now())

	scope, err := s.scope(model.OpSummary, q.Filter)
	if err != nil {
		return nil, err
	}
	if q.Start != nil && q.End != nil && q.Start.After(q.End.Time) {
		return nil, &model.ValidationError{Field: "start", Message: "start must not be after end"}
	}
	if q.Start != nil {
		from := q.Start.StartIn(s.settings.Location)
		scope.From = &from
	}
	if q.End != nil {
		to := q.End.StartIn(s.settings.Location).AddDate(0, 0, 1)
		scope.To = &to
	}

	count, gmv, err := s.repo.Totals(ctx, scope)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.repo.StatusBreakdown(ctx, scope)
	if err != nil {
		return nil, err
	}
	if breakdown == nil {
		breakdown = []model.StatusCount{}
	}

	gmv = gmv.Round(2)
	aov := decimal.Zero
	if count > 0 {
		aov = gmv.Div(decimal.NewFromInt(count)).Round(2)
	}
	return &model.Summary{
		OrderCount:      count,
		GMV:             gmv,
		AOV:             aov,
		StatusBreakdown: breakdown,
	}, nil
}

func (s *analyticsService) Timeseries(ctx context.Context, q model.TimeseriesQuery) ([]model.SeriesPoint, error) {
	defer s.observe(model.OpTimeseries, time.Now())

	groupBy := q.GroupBy
	if groupBy == "" {
		groupBy = model.GroupByDay
	}
	if !groupBy.Valid() {
		return nil, &model.ValidationError{Field: "group_by", Message: "must be day or month"}
	}
	scope, err := s.rangedScope(model.OpTimeseries, q.Filter, q.Start, q.End)
	if err != nil {
		return nil, err
	}

	buckets := bucketStarts(q.Start, q.End, groupBy)
	if len(buckets) > maxSeriesPoints {
		return nil, &model.ValidationError{Field: "end", Message: fmt.Sprintf("range yields more than %d points", maxSeriesPoints)}
	}
	points := make([]model.SeriesPoint, len(buckets))
	index := make(map[model.Date]int, len(buckets))
	for i, d := range buckets {
		points[i] = model.SeriesPoint{Date: d, GMV: decimal.Zero}
		index[d] = i
	}

	totals, err := s.repo.OrderTotals(ctx, scope)
	if err != nil {
		return nil, err
	}
	for _, t := range totals {
		i, ok := index[bucketOf(t.CreatedAt.In(s.settings.Location), groupBy)]
		if !ok {
			continue
		}
		points[i].OrderCount++
		points[i].GMV = points[i].GMV.Add(t.GMV)
	}
	for i := range points {
		points[i].GMV = points[i].GMV.Round(2)
	}
	return points, nil
}

func (s *analyticsService) TopProducts(ctx context.Context, q model.RankingQuery) ([]model.TopProduct, error) {
	defer s.observe(model.OpTopProducts, time.Now())

	scope, err := s.rangedScope(model.OpTopProducts, q.Filter, q.Start, q.End)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.TopProducts(ctx, scope, clampLimit(q.Limit, s.settings.TopProductsLimit))
	if err != nil {
		return nil, err
	}
	products := make([]model.TopProduct, len(rows))
	for i, row := range rows {
		row.Revenue = row.Revenue.Round(2)
		products[i] = row
	}
	return products, nil
}

func (s *analyticsService) TopCustomers(ctx context.Context, q model.RankingQuery) ([]model.TopCustomer, error) {
	defer s.observe(model.OpTopCustomers, time.Now())

	scope, err := s.rangedScope(model.OpTopCustomers, q.Filter, q.Start, q.End)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.TopCustomers(ctx, scope, clampLimit(q.Limit, s.settings.TopCustomersLimit))
	if err != nil {
		return nil, err
	}
	customers := make([]model.TopCustomer, len(rows))
	for i, row := range rows {
		customers[i] = model.TopCustomer{
			MemberID:      row.MemberID,
			Name:          row.Name,
			TotalGMV:      row.TotalGMV.Round(2),
			OrderCount:    row.OrderCount,
			LastOrderDate: model.DateOf(row.LastOrderAt.In(s.settings.Location)),
		}
	}
	return customers, nil
}

func (s *analyticsService) observe(op model.Operation, start time.Time) {
	s.recorder.RecordAnalyticsQuery(string(op), time.Since(start))
}

// scope 校验商家与状态条件，并套用该接口的默认状态
func (s *analyticsService) scope(op model.Operation, f model.Filter) (repository.Scope, error) {
	if f.MerchantID == "" {
		return repository.Scope{}, &model.ValidationError{Field: "merchant_id", Message: "is required"}
	}
	scope := repository.Scope{MerchantID: f.MerchantID}
	switch {
	case f.AllStatuses:
	case len(f.Statuses) > 0:
		for _, st := range f.Statuses {
			if !st.Valid() {
				return repository.Scope{}, &model.ValidationError{Field: "statuses", Message: fmt.Sprintf("unknown status %q", st)}
			}
		}
		scope.Statuses = f.Statuses
	default:
		scope.Statuses = s.settings.Defaults[op]
	}
	return scope, nil
}

// rangedScope 需要完整日期区间的接口，区间为 [start 零点, end 次日零点)
func (s *analyticsService) rangedScope(op model.Operation, f model.Filter, start, end model.Date) (repository.Scope, error) {
	scope, err := s.scope(op, f)
	if err != nil {
		return scope, err
	}
	if start.IsZero() {
		return scope, &model.ValidationError{Field: "start", Message: "is required"}
	}
	if end.IsZero() {
		return scope, &model.ValidationError{Field: "end", Message: "is required"}
	}
	if start.After(end.Time) {
		return scope, &model.ValidationError{Field: "start", Message: "start must not be after end"}
	}
	from := start.StartIn(s.settings.Location)
	to := end.StartIn(s.settings.Location).AddDate(0, 0, 1)
	scope.From, scope.To = &from, &to
	return scope, nil
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		limit = fallback
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit
}

func bucketOf(t time.Time, g model.GroupBy) model.Date {
	if g == model.GroupByMonth {
		return model.NewDate(t.Year(), t.Month(), 1)
	}
	return model.NewDate(t.Year(), t.Month(), t.Day())
}

// bucketStarts [start, end] 内每个桶的起始日期，升序
func bucketStarts(start, end model.Date, g model.GroupBy) []model.Date {
	months, days := 0, 1
	if g == model.GroupByMonth {
		months, days = 1, 0
	}
	var out []model.Date
	for d := bucketOf(start.Time, g); !d.After(end.Time); d = (model.Date{Time: d.AddDate(0, months, days)}) {
		out = append(out, d)
		if len(out) > maxSeriesPoints {
			break
		}
	}
	return out
}
