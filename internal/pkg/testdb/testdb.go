// Package testdb 为仓储与服务测试提供内存 sqlite 数据库
package testdb

import (
	"fmt"
	"testing"
	"time"

	accountModel "marketplace/internal/domain/account/model"
	catalogModel "marketplace/internal/domain/catalog/model"
	orderModel "marketplace/internal/domain/order/model"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open 创建已建表的内存数据库
// 只保留一个连接：事务之间串行执行，效果等同于行锁
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&accountModel.User{},
		&accountModel.Member{},
		&accountModel.Merchant{},
		&catalogModel.Store{},
		&catalogModel.Product{},
		&orderModel.Order{},
		&orderModel.OrderItem{},
	))
	return db
}

// Seed 常用测试数据的构造器
type Seed struct {
	t   testing.TB
	db  *gorm.DB
	seq int
}

func NewSeed(t testing.TB, db *gorm.DB) *Seed {
	return &Seed{t: t, db: db}
}

// Member 创建会员
func (s *Seed) Member(name string) *accountModel.Member {
	s.t.Helper()
	user := &accountModel.User{Username: "member-" + name, Role: "member"}
	require.NoError(s.t, s.db.Create(user).Error)
	m := &accountModel.Member{UserID: user.ID, Name: name}
	require.NoError(s.t, s.db.Create(m).Error)
	return m
}

// Merchant 创建商家及其店铺
func (s *Seed) Merchant(name string) (*accountModel.Merchant, *catalogModel.Store) {
	s.t.Helper()
	user := &accountModel.User{Username: "merchant-" + name, Role: "merchant"}
	require.NoError(s.t, s.db.Create(user).Error)
	m := &accountModel.Merchant{UserID: user.ID}
	require.NoError(s.t, s.db.Create(m).Error)
	store := &catalogModel.Store{MerchantID: m.ID, Name: name}
	require.NoError(s.t, s.db.Create(store).Error)
	return m, store
}

// Product 在店铺下创建商品
func (s *Seed) Product(storeID, name, price string, stock int) *catalogModel.Product {
	s.t.Helper()
	p := &catalogModel.Product{
		StoreID: storeID,
		Name:    name,
		Price:   decimal.RequireFromString(price),
		Stock:   stock,
	}
	require.NoError(s.t, s.db.Create(p).Error)
	return p
}

// Line 订单明细，Price 为空时取商品当前价格
type Line struct {
	Product  *catalogModel.Product
	Quantity int
	Price    string
}

// Order 直接写入一笔指定状态与创建时间的订单，不扣减库存
func (s *Seed) Order(memberID string, status orderModel.Status, createdAt time.Time, lines ...Line) *orderModel.Order {
	s.t.Helper()
	order := &orderModel.Order{
		OrderNumber:   fmt.Sprintf("SEED-%d", createdAt.UnixNano()+int64(s.next())),
		MemberID:      memberID,
		ReceiverName:  "seed",
		ReceiverPhone: "0900000000",
		Address:       "seed address",
		Status:        status,
		PaymentMethod: orderModel.PaymentUnpaid,
	}
	order.CreatedAt = createdAt
	order.UpdatedAt = createdAt
	for i, line := range lines {
		price := line.Product.Price
		if line.Price != "" {
			price = decimal.RequireFromString(line.Price)
		}
		order.Items = append(order.Items, orderModel.OrderItem{
			ProductID:       line.Product.ID,
			LineNo:          i,
			Quantity:        line.Quantity,
			PriceAtPurchase: price,
			CreatedAt:       createdAt,
		})
	}
	order.TotalAmount = order.ItemsTotal()
	require.NoError(s.t, s.db.Create(order).Error)
	return order
}

func (s *Seed) next() int {
	s.seq++
	return s.seq
}
