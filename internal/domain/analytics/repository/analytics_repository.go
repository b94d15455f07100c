package repository

import (
	"context"
	"database/sql/driver"
	"fmt"
	"time"

	"marketplace/internal/domain/analytics/model"
	orderModel "marketplace/internal/domain/order/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const lineAmount = "order_items.price_at_purchase * order_items.quantity"

// Scope 某商家的订单范围，To 为开区间
// 时间以 UTC 比较，sqlite 按文本存储时间
type Scope struct {
	MerchantID string
	From       *time.Time
	To         *time.Time
	Statuses   []orderModel.Status
}

// OrderTotal 单个订单中属于该商家的金额
type OrderTotal struct {
	OrderID   string
	CreatedAt time.Time
	GMV       decimal.Decimal
}

// CustomerRow 客户排行原始行，LastOrderAt 为 UTC 时间
type CustomerRow struct {
	MemberID    string
	Name        string
	TotalGMV    decimal.Decimal
	OrderCount  int64
	LastOrderAt time.Time
}

// AnalyticsRepository 只读聚合查询
type AnalyticsRepository interface {
	Totals(ctx context.Context, s Scope) (orderCount int64, gmv decimal.Decimal, err error)
	StatusBreakdown(ctx context.Context, s Scope) ([]model.StatusCount, error)
	OrderTotals(ctx context.Context, s Scope) ([]OrderTotal, error)
	TopProducts(ctx context.Context, s Scope, limit int) ([]model.TopProduct, error)
	TopCustomers(ctx context.Context, s Scope, limit int) ([]CustomerRow, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

// scoped 商家商品所在的订单明细，已排除软删除订单
func (r *analyticsRepository) scoped(ctx context.Context, s Scope) *gorm.DB {
	q := r.db.WithContext(ctx).Table("order_items").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Joins("JOIN products ON products.id = order_items.product_id").
		Joins("JOIN stores ON stores.id = products.store_id").
		Where("stores.merchant_id = ?", s.MerchantID).
		Where("orders.deleted_at IS NULL")
	if s.From != nil {
		q = q.Where("orders.created_at >= ?", s.From.UTC())
	}
	if s.To != nil {
		q = q.Where("orders.created_at < ?", s.To.UTC())
	}
	if len(s.Statuses) > 0 {
		statuses := make([]string, len(s.Statuses))
		for i, st := range s.Statuses {
			statuses[i] = string(st)
		}
		q = q.Where("orders.status IN ?", statuses)
	}
	return q
}

func (r *analyticsRepository) Totals(ctx context.Context, s Scope) (int64, decimal.Decimal, error) {
	var row struct {
		OrderCount int64
		GMV        decimal.Decimal
	}
	err := r.scoped(ctx, s).
		Select("COUNT(DISTINCT orders.id) AS order_count, COALESCE(SUM(" + lineAmount + "), 0) AS gmv").
		Scan(&row).Error
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("query totals: %w", err)
	}
	return row.OrderCount, row.GMV, nil
}

func (r *analyticsRepository) StatusBreakdown(ctx context.Context, s Scope) ([]model.StatusCount, error) {
	var rows []model.StatusCount
	err := r.scoped(ctx, s).
		Select("orders.status AS status, COUNT(DISTINCT orders.id) AS count").
		Group("orders.status").
		Order("orders.status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query status breakdown: %w", err)
	}
	return rows, nil
}

func (r *analyticsRepository) OrderTotals(ctx context.Context, s Scope) ([]OrderTotal, error) {
	var rows []struct {
		OrderID   string
		CreatedAt dbTime
		GMV       decimal.Decimal
	}
	err := r.scoped(ctx, s).
		Select("orders.id AS order_id, orders.created_at AS created_at, COALESCE(SUM(" + lineAmount + "), 0) AS gmv").
		Group("orders.id, orders.created_at").
		Order("orders.created_at").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query order totals: %w", err)
	}
	totals := make([]OrderTotal, len(rows))
	for i, row := range rows {
		totals[i] = OrderTotal{OrderID: row.OrderID, CreatedAt: row.CreatedAt.Time, GMV: row.GMV}
	}
	return totals, nil
}

func (r *analyticsRepository) TopProducts(ctx context.Context, s Scope, limit int) ([]model.TopProduct, error) {
	var rows []model.TopProduct
	err := r.scoped(ctx, s).
		Select("products.id AS product_id, products.name AS name, " +
			"SUM(order_items.quantity) AS quantity, " +
			"COALESCE(SUM(" + lineAmount + "), 0) AS revenue, " +
			"COUNT(DISTINCT orders.id) AS order_count").
		Group("products.id, products.name").
		Order("quantity DESC, revenue DESC, product_id").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query top products: %w", err)
	}
	return rows, nil
}

func (r *analyticsRepository) TopCustomers(ctx context.Context, s Scope, limit int) ([]CustomerRow, error) {
	var rows []struct {
		MemberID    string
		Name        string
		TotalGMV    decimal.Decimal
		OrderCount  int64
		LastOrderAt dbTime
	}
	err := r.scoped(ctx, s).
		Joins("LEFT JOIN members ON members.id = orders.member_id AND members.deleted_at IS NULL").
		Select("orders.member_id AS member_id, COALESCE(members.name, '') AS name, " +
			"COALESCE(SUM(" + lineAmount + "), 0) AS total_gmv, " +
			"COUNT(DISTINCT orders.id) AS order_count, " +
			"MAX(orders.created_at) AS last_order_at").
		Group("orders.member_id, members.name").
		Order("total_gmv DESC, member_id").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query top customers: %w", err)
	}
	customers := make([]CustomerRow, len(rows))
	for i, row := range rows {
		customers[i] = CustomerRow{
			MemberID:    row.MemberID,
			Name:        row.Name,
			TotalGMV:    row.TotalGMV,
			OrderCount:  row.OrderCount,
			LastOrderAt: row.LastOrderAt.Time,
		}
	}
	return customers, nil
}

// dbTime 兼容聚合结果中的时间列：postgres 返回 time.Time，sqlite 的 MAX() 返回文本
type dbTime struct {
	time.Time
}

var dbTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *dbTime) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into time", value)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range dbTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %q", s)
}

func (t dbTime) Value() (driver.Value, error) {
	return t.Time, nil
}
