package model

import (
	"time"

	baseModel "marketplace/pkg/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order 订单模型
type Order struct {
	baseModel.BaseModel
	OrderNumber   string          `gorm:"size:32;uniqueIndex;not null" json:"orderNumber"`
	MemberID      string          `gorm:"type:varchar(36);index;not null" json:"memberId"`
	ReceiverName  string          `gorm:"size:100;not null" json:"receiverName"`
	ReceiverPhone string          `gorm:"size:30;not null" json:"receiverPhone"`
	Address       string          `gorm:"size:255;not null" json:"address"`
	Note          string          `gorm:"type:text" json:"note"`
	Status        Status          `gorm:"size:20;index;not null;default:pending" json:"status"`
	PaymentMethod PaymentMethod   `gorm:"size:20;not null;default:unpaid" json:"paymentMethod"`
	TransactionID *string         `gorm:"size:100" json:"transactionId,omitempty"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"totalAmount"`
	Items         []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
}

// OrderItem 订单明细，PriceAtPurchase 为下单时的价格快照
type OrderItem struct {
	ID              string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID         string          `gorm:"type:varchar(36);index;not null" json:"orderId"`
	ProductID       string          `gorm:"type:varchar(36);index;not null" json:"productId"`
	LineNo          int             `gorm:"not null;default:0" json:"lineNo"` // 明细顺序，与下单时一致
	Quantity        int             `gorm:"not null" json:"quantity"`
	PriceAtPurchase decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"priceAtPurchase"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

// Subtotal 小计
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemsTotal 按明细重新计算的总额
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// PaymentMethod 支付方式，仅记录，不对接支付网关
type PaymentMethod string

const (
	PaymentUnpaid     PaymentMethod = "unpaid"
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentLinePay    PaymentMethod = "line_pay"
	PaymentCash       PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentUnpaid, PaymentCreditCard, PaymentLinePay, PaymentCash:
		return true
	}
	return false
}
