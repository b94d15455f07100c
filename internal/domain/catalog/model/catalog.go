package model

import (
	baseModel "marketplace/pkg/model"

	"github.com/shopspring/decimal"
)

// Store 店铺，每个商家只有一个店铺
type Store struct {
	baseModel.BaseModel
	MerchantID  string `gorm:"type:varchar(36);uniqueIndex;not null" json:"merchantId"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Address     string `gorm:"size:255" json:"address"`
	Description string `gorm:"type:text" json:"description"`
}

// Product 商品
type Product struct {
	baseModel.BaseModel
	StoreID     string          `gorm:"type:varchar(36);index;not null" json:"storeId"`
	Name        string          `gorm:"size:200;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	Stock       int             `gorm:"not null;default:0" json:"stock"` // 不允许为负
}

// ValidationError 商品数据不合法
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate 价格与库存不能为负
func (p *Product) Validate() error {
	if p.Price.IsNegative() {
		return &ValidationError{Field: "price", Message: "must not be negative"}
	}
	if p.Stock < 0 {
		return &ValidationError{Field: "stock", Message: "must not be negative"}
	}
	return nil
}
