package repository

import (
	"context"
	"errors"
	"time"

	"marketplace/internal/domain/order/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ListFilter 订单列表过滤条件，空值表示不过滤
type ListFilter struct {
	MemberID   string
	MerchantID string // 订单中包含该商家店铺的商品
	Statuses   []model.Status
	Start      *time.Time
	End        *time.Time // 不含
}

// OrderRepository 订单仓储
type OrderRepository interface {
	// Transaction 在单个数据库事务中执行 fn，fn 返回错误时整体回滚
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithDB(db *gorm.DB) OrderRepository

	OrderNumberExists(ctx context.Context, number string) (bool, error)
	Create(ctx context.Context, order *model.Order) error
	CreateItems(ctx context.Context, items []model.OrderItem) error
	UpdateTotal(ctx context.Context, id string, total decimal.Decimal) error

	GetByID(ctx context.Context, id string) (*model.Order, error)
	List(ctx context.Context, filter ListFilter, offset, limit int) ([]model.Order, int64, error)
	// MerchantIDs 订单明细商品所属的商家，去重
	MerchantIDs(ctx context.Context, orderID string) ([]string, error)

	// UpdateStatus 仅当订单当前状态仍为 from 时写入 updates，返回是否命中
	UpdateStatus(ctx context.Context, id string, from model.Status, updates map[string]interface{}) (bool, error)
	UpdateFields(ctx context.Context, id string, updates map[string]interface{}) error
	Delete(ctx context.Context, id string) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *orderRepository) WithDB(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	// 软删除的订单仍占用订单号
	err := r.db.WithContext(ctx).Unscoped().Model(&model.Order{}).
		Where("order_number = ?", number).
		Count(&count).Error
	return count > 0, err
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Omit("Items").Create(order).Error
}

func (r *orderRepository) CreateItems(ctx context.Context, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *orderRepository) UpdateTotal(ctx context.Context, id string, total decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", id).
		Update("total_amount", total).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, filter ListFilter, offset, limit int) ([]model.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Order{})
	if filter.MemberID != "" {
		query = query.Where("orders.member_id = ?", filter.MemberID)
	}
	if filter.MerchantID != "" {
		sub := r.db.Table("order_items").
			Select("order_items.order_id").
			Joins("JOIN products ON products.id = order_items.product_id").
			Joins("JOIN stores ON stores.id = products.store_id").
			Where("stores.merchant_id = ?", filter.MerchantID)
		query = query.Where("orders.id IN (?)", sub)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("orders.status IN ?", filter.Statuses)
	}
	if filter.Start != nil {
		query = query.Where("orders.created_at >= ?", *filter.Start)
	}
	if filter.End != nil {
		query = query.Where("orders.created_at < ?", *filter.End)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []model.Order
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no") }).
		Order("orders.created_at DESC").Order("orders.id").
		Offset(offset).Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) MerchantIDs(ctx context.Context, orderID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Table("order_items").
		Joins("JOIN products ON products.id = order_items.product_id").
		Joins("JOIN stores ON stores.id = products.store_id").
		Where("order_items.order_id = ?", orderID).
		Order("stores.merchant_id").
		Distinct().
		Pluck("stores.merchant_id", &ids).Error
	return ids, err
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, from model.Status, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *orderRepository) UpdateFields(ctx context.Context, id string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *orderRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Order{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}
