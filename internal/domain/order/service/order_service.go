package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	catalogModel "marketplace/internal/domain/catalog/model"
	catalogRepo "marketplace/internal/domain/catalog/repository"
	"marketplace/internal/domain/order/model"
	"marketplace/internal/domain/order/repository"
	"marketplace/pkg/logger"
	"marketplace/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ItemInput 下单明细
type ItemInput struct {
	ProductID string
	Quantity  int
}

// CreateOrderInput 下单参数
type CreateOrderInput struct {
	MemberID      string
	ReceiverName  string
	ReceiverPhone string
	Address       string
	Note          string
	Items         []ItemInput
}

// UpdateOrderInput 修改订单，nil 表示不修改
type UpdateOrderInput struct {
	Status        *model.Status
	PaymentMethod *model.PaymentMethod
	TransactionID *string
	ReceiverName  *string
	ReceiverPhone *string
	Address       *string
	Note          *string
}

// ListOrdersInput 订单列表查询
type ListOrdersInput struct {
	MemberID   string
	MerchantID string
	Statuses   []model.Status
	Start      *time.Time
	End        *time.Time
	utils.Pagination
}

// Recorder 业务指标上报，由 metrics.MetricsCollector 实现
type Recorder interface {
	RecordOrderCreated()
	RecordOrderCreateFailure(reason string)
	RecordOrderTransition(from, to string)
}

// ChangeNotifier 订单变更通知，用于失效分析缓存
type ChangeNotifier interface {
	OrdersChanged(merchantIDs []string)
}

type OrderService interface {
	Create(ctx context.Context, input CreateOrderInput) (*model.Order, error)
	Get(ctx context.Context, id string) (*model.Order, error)
	List(ctx context.Context, input ListOrdersInput) (*utils.PageResult, error)
	Update(ctx context.Context, id string, input UpdateOrderInput) (*model.Order, error)
	Pay(ctx context.Context, id string, method model.PaymentMethod, transactionID *string) (*model.Order, error)
	Ship(ctx context.Context, id string) (*model.Order, error)
	Complete(ctx context.Context, id string) (*model.Order, error)
	Cancel(ctx context.Context, id string) (*model.Order, error)
	// MerchantIDs 订单涉及的商家，供权限判断
	MerchantIDs(ctx context.Context, id string) ([]string, error)
	Delete(ctx context.Context, id string) error
}

type orderService struct {
	orders         repository.OrderRepository
	products       catalogRepo.ProductRepository
	numbers        NumberGenerator
	numberAttempts int
	recorder       Recorder
	notifier       ChangeNotifier
	now            func() time.Time
}

// Option 可选依赖
type Option func(*orderService)

func WithNumberGenerator(g NumberGenerator) Option {
	return func(s *orderService) { s.numbers = g }
}

// WithNumberAttempts 随机订单号的最大尝试次数
func WithNumberAttempts(n int) Option {
	return func(s *orderService) {
		if n > 0 {
			s.numberAttempts = n
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *orderService) { s.recorder = r }
}

func WithNotifier(n ChangeNotifier) Option {
	return func(s *orderService) { s.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *orderService) { s.now = now }
}

func NewOrderService(orders repository.OrderRepository, products catalogRepo.ProductRepository, opts ...Option) OrderService {
	s := &orderService{
		orders:         orders,
		products:       products,
		numbers:        NewNumberGenerator(),
		numberAttempts: 10,
		recorder:       nopRecorder{},
		notifier:       nopNotifier{},
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create 下单：事务内按商品 ID 顺序加锁、校验并扣减库存，写入订单与明细
func (s *orderService) Create(ctx context.Context, input CreateOrderInput) (*model.Order, error) {
	if err := validateCreate(input); err != nil {
		s.recorder.RecordOrderCreateFailure("validation")
		return nil, err
	}

	// 同一商品多行时合并数量，只加锁一次
	need := make(map[string]int, len(input.Items))
	for _, item := range input.Items {
		need[item.ProductID] += item.Quantity
	}
	productIDs := make([]string, 0, len(need))
	for id := range need {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)

	var (
		order       *model.Order
		merchantIDs []string
	)
	err := s.orders.Transaction(ctx, func(tx *gorm.DB) error {
		orders := s.orders.WithDB(tx)
		products := s.products.WithDB(tx)

		number, err := s.nextOrderNumber(ctx, orders)
		if err != nil {
			return err
		}

		order = &model.Order{
			OrderNumber:   number,
			MemberID:      input.MemberID,
			ReceiverName:  input.ReceiverName,
			ReceiverPhone: input.ReceiverPhone,
			Address:       input.Address,
			Note:          input.Note,
			Status:        model.StatusPending,
			PaymentMethod: model.PaymentUnpaid,
			TotalAmount:   decimal.Zero,
		}
		if err := orders.Create(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		locked := make(map[string]*catalogModel.Product, len(productIDs))
		for _, id := range productIDs {
			product, err := lockAndDeduct(ctx, products, id, need[id])
			if err != nil {
				return err
			}
			locked[id] = product
		}

		total := decimal.Zero
		items := make([]model.OrderItem, 0, len(input.Items))
		for i, in := range input.Items {
			item := model.OrderItem{
				OrderID:         order.ID,
				ProductID:       in.ProductID,
				LineNo:          i + 1,
				Quantity:        in.Quantity,
				PriceAtPurchase: locked[in.ProductID].Price,
			}
			total = total.Add(item.Subtotal())
			items = append(items, item)
		}
		if err := orders.CreateItems(ctx, items); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		if err := orders.UpdateTotal(ctx, order.ID, total); err != nil {
			return fmt.Errorf("update order total: %w", err)
		}

		merchantIDs, err = orders.MerchantIDs(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("load order merchants: %w", err)
		}
		return nil
	})
	if err != nil {
		s.recorder.RecordOrderCreateFailure(failureReason(err))
		logger.Log.Warn("create order failed",
			zap.String("member_id", input.MemberID),
			zap.Int("items", len(input.Items)),
			zap.Error(err),
		)
		return nil, err
	}

	s.recorder.RecordOrderCreated()
	s.notifier.OrdersChanged(merchantIDs)
	logger.Log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("member_id", order.MemberID),
	)

	return s.orders.GetByID(ctx, order.ID)
}

func lockAndDeduct(ctx context.Context, products catalogRepo.ProductRepository, id string, quantity int) (*catalogModel.Product, error) {
	product, err := products.LockForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, catalogRepo.ErrProductNotFound) {
			return nil, &model.NotFoundError{Resource: "product", ID: id}
		}
		return nil, fmt.Errorf("lock product %s: %w", id, err)
	}
	if product.Stock < quantity {
		return nil, &model.InsufficientStockError{ProductID: id, ProductName: product.Name, Remaining: product.Stock}
	}
	if err := products.DecreaseStock(ctx, id, quantity); err != nil {
		if errors.Is(err, catalogRepo.ErrInsufficientStock) {
			return nil, &model.InsufficientStockError{ProductID: id, ProductName: product.Name, Remaining: product.Stock}
		}
		return nil, fmt.Errorf("decrease stock %s: %w", id, err)
	}
	return product, nil
}

func validateCreate(input CreateOrderInput) error {
	if input.MemberID == "" {
		return &model.ValidationError{Field: "member_id", Message: "member is required"}
	}
	if len(input.Items) == 0 {
		return &model.ValidationError{Field: "items", Message: "order must contain at least one item"}
	}
	for i, item := range input.Items {
		if item.ProductID == "" {
			return &model.ValidationError{Field: fmt.Sprintf("items[%d].product_id", i), Message: "product is required"}
		}
		if item.Quantity <= 0 {
			return &model.ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "quantity must be positive"}
		}
	}
	required := []struct{ field, value string }{
		{"receiver_name", input.ReceiverName},
		{"receiver_phone", input.ReceiverPhone},
		{"address", input.Address},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &model.ValidationError{Field: r.field, Message: "is required"}
		}
	}
	return nil
}

// nextOrderNumber 随机生成订单号，碰撞时重试，超过次数后使用单调计数器兜底
func (s *orderService) nextOrderNumber(ctx context.Context, orders repository.OrderRepository) (string, error) {
	now := s.now()
	for i := 0; i < s.numberAttempts; i++ {
		number := s.numbers.Random(now)
		exists, err := orders.OrderNumberExists(ctx, number)
		if err != nil {
			return "", fmt.Errorf("check order number: %w", err)
		}
		if !exists {
			return number, nil
		}
	}

	number := s.numbers.Fallback(now)
	exists, err := orders.OrderNumberExists(ctx, number)
	if err != nil {
		return "", fmt.Errorf("check order number: %w", err)
	}
	if exists {
		return "", fmt.Errorf("could not allocate a unique order number after %d attempts", s.numberAttempts+1)
	}
	logger.Log.Warn("order number fallback used", zap.String("order_number", number))
	return number, nil
}

func failureReason(err error) string {
	var (
		vErr     *model.ValidationError
		stockErr *model.InsufficientStockError
	)
	switch {
	case errors.As(err, &vErr):
		return "validation"
	case errors.As(err, &stockErr):
		return "out_of_stock"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

func (s *orderService) Get(ctx context.Context, id string) (*model.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *orderService) List(ctx context.Context, input ListOrdersInput) (*utils.PageResult, error) {
	if input.Start != nil && input.End != nil && input.Start.After(*input.End) {
		return nil, &model.ValidationError{Field: "start", Message: "start must not be after end"}
	}
	offset, limit := input.Pagination.GetPageOffset()
	orders, total, err := s.orders.List(ctx, repository.ListFilter{
		MemberID:   input.MemberID,
		MerchantID: input.MerchantID,
		Statuses:   input.Statuses,
		Start:      input.Start,
		End:        input.End,
	}, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	result := utils.NewPageResult(orders, total, input.Pagination)
	return &result, nil
}

func (s *orderService) MerchantIDs(ctx context.Context, id string) ([]string, error) {
	return s.orders.MerchantIDs(ctx, id)
}

// 状态更新时 CAS 冲突的最大重试次数
const maxTransitionAttempts = 3

// Update 修改收货信息，或推进订单状态
func (s *orderService) Update(ctx context.Context, id string, input UpdateOrderInput) (*model.Order, error) {
	if input.PaymentMethod != nil && !input.PaymentMethod.Valid() {
		return nil, &model.ValidationError{Field: "payment_method", Message: fmt.Sprintf("unknown payment method %q", *input.PaymentMethod)}
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, &model.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", *input.Status)}
	}

	// 支付信息只随 paid 状态变更写入
	if input.Status == nil || *input.Status != model.StatusPaid {
		if input.PaymentMethod != nil {
			return nil, &model.ValidationError{Field: "payment_method", Message: "can only be set when status is paid"}
		}
		if input.TransactionID != nil {
			return nil, &model.ValidationError{Field: "transaction_id", Message: "can only be set when status is paid"}
		}
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := fieldUpdates(input)
	if input.Status == nil {
		if len(fields) == 0 {
			return order, nil
		}
		if err := s.orders.UpdateFields(ctx, id, fields); err != nil {
			return nil, fmt.Errorf("update order: %w", err)
		}
		return s.orders.GetByID(ctx, id)
	}

	to := *input.Status
	from := order.Status
	for attempt := 1; ; attempt++ {
		if !from.CanTransitionTo(to) {
			return nil, &model.IllegalTransitionError{From: from, To: to}
		}

		updates := make(map[string]interface{}, len(fields)+3)
		for k, v := range fields {
			updates[k] = v
		}
		updates["status"] = to
		if to == model.StatusPaid {
			method := model.PaymentUnpaid
			if input.PaymentMethod != nil {
				method = *input.PaymentMethod
			}
			updates["payment_method"] = method
			updates["paid_at"] = s.now()
			if input.TransactionID != nil {
				updates["transaction_id"] = *input.TransactionID
			}
		}

		ok, err := s.orders.UpdateStatus(ctx, id, from, updates)
		if err != nil {
			return nil, fmt.Errorf("update order status: %w", err)
		}
		if ok {
			break
		}

		// 状态已被并发修改，按最新状态重新校验
		current, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if attempt >= maxTransitionAttempts {
			return nil, &model.IllegalTransitionError{From: current.Status, To: to}
		}
		from = current.Status
	}

	s.recorder.RecordOrderTransition(string(from), string(to))
	logger.Log.Info("order status changed",
		zap.String("order_id", id),
		zap.String("order_number", order.OrderNumber),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	if merchantIDs, err := s.orders.MerchantIDs(ctx, id); err != nil {
		logger.Log.Warn("load order merchants failed", zap.String("order_id", id), zap.Error(err))
	} else {
		s.notifier.OrdersChanged(merchantIDs)
	}

	return s.orders.GetByID(ctx, id)
}

// fieldUpdates 与状态无关的字段，任何状态下都可以修改
func fieldUpdates(input UpdateOrderInput) map[string]interface{} {
	fields := make(map[string]interface{})
	if input.ReceiverName != nil {
		fields["receiver_name"] = *input.ReceiverName
	}
	if input.ReceiverPhone != nil {
		fields["receiver_phone"] = *input.ReceiverPhone
	}
	if input.Address != nil {
		fields["address"] = *input.Address
	}
	if input.Note != nil {
		fields["note"] = *input.Note
	}
	return fields
}

func (s *orderService) Pay(ctx context.Context, id string, method model.PaymentMethod, transactionID *string) (*model.Order, error) {
	status := model.StatusPaid
	input := UpdateOrderInput{Status: &status, TransactionID: transactionID}
	if method != "" {
		input.PaymentMethod = &method
	}
	return s.Update(ctx, id, input)
}

func (s *orderService) Ship(ctx context.Context, id string) (*model.Order, error) {
	return s.transition(ctx, id, model.StatusShipped)
}

func (s *orderService) Complete(ctx context.Context, id string) (*model.Order, error) {
	return s.transition(ctx, id, model.StatusCompleted)
}

func (s *orderService) Cancel(ctx context.Context, id string) (*model.Order, error) {
	return s.transition(ctx, id, model.StatusCanceled)
}

func (s *orderService) transition(ctx context.Context, id string, to model.Status) (*model.Order, error) {
	return s.Update(ctx, id, UpdateOrderInput{Status: &to})
}

// Delete 管理员软删除订单
func (s *orderService) Delete(ctx context.Context, id string) error {
	merchantIDs, err := s.orders.MerchantIDs(ctx, id)
	if err != nil {
		return fmt.Errorf("load order merchants: %w", err)
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return err
	}
	s.notifier.OrdersChanged(merchantIDs)
	logger.Log.Info("order deleted", zap.String("order_id", id))
	return nil
}

type nopRecorder struct{}

func (nopRecorder) RecordOrderCreated()                  {}
func (nopRecorder) RecordOrderCreateFailure(string)      {}
func (nopRecorder) RecordOrderTransition(string, string) {}

type nopNotifier struct{}

func (nopNotifier) OrdersChanged([]string) {}
