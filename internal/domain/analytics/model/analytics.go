package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	orderModel "marketplace/internal/domain/order/model"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// Date 不含时间部分的日期，JSON 格式为 YYYY-MM-DD
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf 取 t 在其所在时区的日期
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// In 返回该日期在 loc 时区的零点
func (d Date) StartIn(loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// GroupBy 时间序列粒度
type GroupBy string

const (
	GroupByDay   GroupBy = "day"
	GroupByMonth GroupBy = "month"
)

func (g GroupBy) Valid() bool {
	return g == GroupByDay || g == GroupByMonth
}

// Operation 分析接口名称，用于默认状态配置、指标与缓存键
type Operation string

const (
	OpSummary      Operation = "summary"
	OpTimeseries   Operation = "timeseries"
	OpTopProducts  Operation = "top_products"
	OpTopCustomers Operation = "top_customers"
)

// Filter 所有分析查询共用的条件
// Statuses 为空且 AllStatuses 为 false 时使用该接口的默认状态
type Filter struct {
	MerchantID  string
	Statuses    []orderModel.Status
	AllStatuses bool
}

// CacheKey 参数的规范化表示
func (f Filter) CacheKey() string {
	if f.AllStatuses {
		return "all"
	}
	parts := make([]string, len(f.Statuses))
	for i, s := range f.Statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

type SummaryQuery struct {
	Filter
	Start *Date
	End   *Date
}

type TimeseriesQuery struct {
	Filter
	Start   Date
	End     Date
	GroupBy GroupBy
}

type RankingQuery struct {
	Filter
	Start Date
	End   Date
	Limit int
}

// StatusCount 按状态统计的订单数
type StatusCount struct {
	Status orderModel.Status `json:"status"`
	Count  int64             `json:"count"`
}

type Summary struct {
	OrderCount      int64           `json:"order_count"`
	GMV             decimal.Decimal `json:"gmv"`
	AOV             decimal.Decimal `json:"aov"`
	StatusBreakdown []StatusCount   `json:"status_breakdown"`
}

type SeriesPoint struct {
	Date       Date            `json:"date"`
	OrderCount int64           `json:"order_count"`
	GMV        decimal.Decimal `json:"gmv"`
}

type TopProduct struct {
	ProductID  string          `json:"product_id"`
	Name       string          `json:"name"`
	Quantity   int64           `json:"quantity"`
	Revenue    decimal.Decimal `json:"revenue"`
	OrderCount int64           `json:"order_count"`
}

type TopCustomer struct {
	MemberID      string          `json:"member_id"`
	Name          string          `json:"name"`
	TotalGMV      decimal.Decimal `json:"total_gmv"`
	OrderCount    int64           `json:"order_count"`
	LastOrderDate Date            `json:"last_order_date"`
}

// ValidationError 查询参数不合法
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
