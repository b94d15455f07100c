package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	catalogModel "marketplace/internal/domain/catalog/model"
	catalogRepo "marketplace/internal/domain/catalog/repository"
	"marketplace/internal/domain/order/model"
	"marketplace/internal/domain/order/repository"
	"marketplace/internal/pkg/testdb"
	"marketplace/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeNotifier struct {
	mu    sync.Mutex
	calls [][]string
}

func (n *fakeNotifier) OrdersChanged(ids []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, ids)
}

type fakeRecorder struct {
	mu          sync.Mutex
	created     int
	failures    map[string]int
	transitions map[string]int
}

func (r *fakeRecorder) RecordOrderCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
}

func (r *fakeRecorder) RecordOrderCreateFailure(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures == nil {
		r.failures = map[string]int{}
	}
	r.failures[reason]++
}

func (r *fakeRecorder) RecordOrderTransition(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transitions == nil {
		r.transitions = map[string]int{}
	}
	r.transitions[from+"->"+to]++
}

type fixture struct {
	db       *gorm.DB
	seed     *testdb.Seed
	svc      OrderService
	products catalogRepo.ProductRepository
	notifier *fakeNotifier
	recorder *fakeRecorder
	memberID string
	store    *catalogModel.Store
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	db := testdb.Open(t)
	seed := testdb.NewSeed(t, db)
	member := seed.Member("Alice")
	_, store := seed.Merchant("Tea House")

	f := &fixture{
		db:       db,
		seed:     seed,
		products: catalogRepo.NewProductRepository(db),
		notifier: &fakeNotifier{},
		recorder: &fakeRecorder{},
		memberID: member.ID,
		store:    store,
	}
	opts = append([]Option{WithNotifier(f.notifier), WithRecorder(f.recorder)}, opts...)
	f.svc = NewOrderService(repository.NewOrderRepository(db), f.products, opts...)
	return f
}

func (f *fixture) input(items ...ItemInput) CreateOrderInput {
	return CreateOrderInput{
		MemberID:      f.memberID,
		ReceiverName:  "Alice",
		ReceiverPhone: "0912345678",
		Address:       "1 Main St",
		Items:         items,
	}
}

func (f *fixture) stock(t *testing.T, productID string) int {
	p, err := f.products.GetByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) orderCount(t *testing.T) int64 {
	var n int64
	require.NoError(t, f.db.Model(&model.Order{}).Count(&n).Error)
	return n
}

func (f *fixture) create(t *testing.T, items ...ItemInput) *model.Order {
	order, err := f.svc.Create(context.Background(), f.input(items...))
	require.NoError(t, err)
	return order
}

func statusPtr(s model.Status) *model.Status { return &s }

func strPtr(s string) *string { return &s }

func TestCreateOrderSnapshotsPriceAndDeductsStock(t *testing.T) {
	f := newFixture(t)
	p := f.seed.Product(f.store.ID, "Oolong", "100.00", 10)

	order := f.create(t, ItemInput{ProductID: p.ID, Quantity: 2})

	assert.True(t, decimal.RequireFromString("200.00").Equal(order.TotalAmount), order.TotalAmount.String())
	assert.Equal(t, model.StatusPending, order.Status)
	assert.Equal(t, model.PaymentUnpaid, order.PaymentMethod)
	assert.Nil(t, order.PaidAt)
	assert.Regexp(t, `^ORD\d{8}-\d{6}$`, order.OrderNumber)
	require.Len(t, order.Items, 1)
	assert.True(t, decimal.RequireFromString("100").Equal(order.Items[0].PriceAtPurchase))
	assert.True(t, order.TotalAmount.Equal(order.ItemsTotal()))
	assert.Equal(t, 8, f.stock(t, p.ID))

	assert.Equal(t, 1, f.recorder.created)
	require.Len(t, f.notifier.calls, 1)
	assert.Equal(t, []string{f.store.MerchantID}, f.notifier.calls[0])
}

func TestCreateOrderPriceSnapshotIsFrozen(t *testing.T) {
	f := newFixture(t)
	p := f.seed.Product(f.store.ID, "Oolong", "100.00", 10)
	order := f.create(t, ItemInput{ProductID: p.ID, Quantity: 1})

	require.NoError(t, f.db.Model(&catalogModel.Product{}).Where("id = ?", p.ID).Update("price", decimal.RequireFromString("150.00")).Error)

	reloaded, err := f.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("100").Equal(reloaded.Items[0].PriceAtPurchase))
	assert.True(t, decimal.RequireFromString("100").Equal(reloaded.TotalAmount))
}

func TestCreateOrderKeepsLineOrderAndMergesQuantities(t *testing.T) {
	f := newFixture(t)
	a := f.seed.Product(f.store.ID, "A", "10.00", 5)
	b := f.seed.Product(f.store.ID, "B", "2.50", 5)

	order := f.create(t,
		ItemInput{ProductID: b.ID, Quantity: 1},
		ItemInput{ProductID: a.ID, Quantity: 2},
		ItemInput{ProductID: b.ID, Quantity: 3},
	)

	require.Len(t, order.Items, 3)
	assert.Equal(t, []string{b.ID, a.ID, b.ID}, []string{order.Items[0].ProductID, order.Items[1].ProductID, order.Items[2].ProductID})
	assert.True(t, decimal.RequireFromString("30.00").Equal(order.TotalAmount), order.TotalAmount.String())
	assert.Equal(t, 3, f.stock(t, a.ID))
	assert.Equal(t, 1, f.stock(t, b.ID))

	// 合并后的数量超过库存
	_, err := f.svc.Create(context.Background(), f.input(
		ItemInput{ProductID: b.ID, Quantity: 1},
		ItemInput{ProductID: b.ID, Quantity: 1},
	))
	var stockErr *model.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 1, stockErr.Remaining)
	assert.Equal(t, 1, f.stock(t, b.ID))
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	f := newFixture(t)
	p := f.seed.Product(f.store.ID, "Matcha", "50.00", 1)

	_, err := f.svc.Create(context.Background(), f.input(ItemInput{ProductID: p.ID, Quantity: 5}))

	var stockErr *model.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, p.ID, stockErr.ProductID)
	assert.Equal(t, "Matcha", stockErr.ProductName)
	assert.Equal(t, 1, stockErr.Remaining)
	assert.Equal(t, 1, f.stock(t, p.ID))
	assert.Equal(t, int64(0), f.orderCount(t))
	assert.Equal(t, 1, f.recorder.failures["out_of_stock"])
	assert.Empty(t, f.notifier.calls)
}

func TestCreateOrderRollsBackAllItems(t *testing.T) {
	f := newFixture(t)
	plenty := f.seed.Product(f.store.ID, "Plenty", "1.00", 100)
	scarce := f.seed.Product(f.store.ID, "Scarce", "1.00", 1)

	_, err := f.svc.Create(context.Background(), f.input(
		ItemInput{ProductID: plenty.ID, Quantity: 10},
		ItemInput{ProductID: scarce.ID, Quantity: 2},
	))

	var stockErr *model.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 100, f.stock(t, plenty.ID))
	assert.Equal(t, 1, f.stock(t, scarce.ID))
	assert.Equal(t, int64(0), f.orderCount(t))

	var items int64
	require.NoError(t, f.db.Model(&model.OrderItem{}).Count(&items).Error)
	assert.Equal(t, int64(0), items)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	p := f.seed.Product(f.store.ID, "Oolong", "1.00", 10)

	noReceiver := f.input(ItemInput{ProductID: p.ID, Quantity: 1})
	noReceiver.ReceiverName = " "

	tests := []struct {
		name  string
		input CreateOrderInput
		field string
	}{
		{"missing receiver", noReceiver, "receiver_name"},
		{"empty items", f.input(), "items"},
		{"zero quantity", f.input(ItemInput{ProductID: p.ID, Quantity: 0}), "items[0].quantity"},
		{"negative quantity", f.input(ItemInput{ProductID: p.ID, Quantity: 1}, ItemInput{ProductID: p.ID, Quantity: -1}), "items[1].quantity"},
		{"missing product", f.input(ItemInput{Quantity: 1}), "items[0].product_id"},
		{"missing member", CreateOrderInput{Items: []ItemInput{{ProductID: p.ID, Quantity: 1}}}, "member_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tt.input)
			var vErr *model.ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	_, err := f.svc.Create(context.Background(), f.input())
	var vErr *model.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "order must contain at least one item", vErr.Message)

	assert.Equal(t, int64(0), f.orderCount(t))
	assert.Equal(t, 10, f.stock(t, p.ID))
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	f := newFixture(t)
	p := f.seed.Product(f.store.ID, "Oolong", "1.00", 10)

	_, err := f.svc.Create(context.Background(), f.input(
		ItemInput{ProductID: p.ID, Quantity: 1},
		ItemInput{ProductID: "does-not-exist", Quantity: 1},
	))
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Contains(t, err.Error(), "does-not-exist")
	assert.Equal(t, 10, f.stock(t, p.ID))
	assert.Equal(t, int64(0), f.orderCount(t))
}

func TestConcurrentCreatesNeverOversell(t *testing.T) {
	f := newFixture(t)
	p := f.seed.Product(f.store.ID, "Limited", "9.90", 10)

	const buyers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		shortage int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), f.input(ItemInput{ProductID: p.ID, Quantity: 1}))
			mu.Lock()
			defer mu.Unlock()
			var stockErr *model.InsufficientStockError
			switch {
			case err == nil:
				ok++
			case errors.As(err, &stockErr):
				shortage++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 10, shortage)
	assert.Equal(t, 0, f.stock(t, p.ID))
	assert.Equal(t, int64(10), f.orderCount(t))
}

type scriptedNumbers struct {
	random   []string
	fallback string
	calls    int
}

func (g *scriptedNumbers) Random(time.Time) string {
	n := g.random[g.calls%len(g.random)]
	g.calls++
	return n
}

func (g *scriptedNumbers) Fallback(time.Time) string { return g.fallback }

func TestOrderNumberRegeneratedOnCollision(t *testing.T) {
	gen := &scriptedNumbers{random: []string{"ORD20240115-111111", "ORD20240115-111111", "ORD20240115-222222"}}
	f := newFixture(t, WithNumberGenerator(gen))
	p := f.seed.Product(f.store.ID, "Oolong", "1.00", 10)

	first := f.create(t, ItemInput{ProductID: p.ID, Quantity: 1})
	second := f.create(t, ItemInput{ProductID: p.ID, Quantity: 1})

	assert.Equal(t, "ORD20240115-111111", first.OrderNumber)
	assert.Equal(t, "ORD20240115-222222", second.OrderNumber)
	assert.Equal(t, 3, gen.calls)
}

func TestOrderNumberFallback(t *testing.T) {
	gen := &scriptedNumbers{random: []string{"ORD20240115-111111"}, fallback: "ORD20240115-XFALLBACK"}
	f := newFixture(t, WithNumberGenerator(gen), WithNumberAttempts(3))
	p := f.seed.Product(f.store.ID, "Oolong", "1.00", 10)

	f.create(t, ItemInput{ProductID: p.ID, Quantity: 1})
	second := f.create(t, ItemInput{ProductID: p.ID, Quantity: 1})
	assert.Equal(t, "ORD20240115-XFALLBACK", second.OrderNumber)

	// 兜底号也被占用
	_, err := f.svc.Create(context.Background(), f.input(ItemInput{ProductID: p.ID, Quantity: 1}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unique order number")
	assert.Equal(t, 8, f.stock(t, p.ID))
}

func TestDefaultNumberGenerator(t *testing.T) {
	g := NewNumberGenerator()
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 50; i++ {
		assert.Regexp(t, `^ORD20240115-[1-9]\d{5}$`, g.Random(now))
	}
	a, b := g.Fallback(now), g.Fallback(now)
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^ORD20240115-X[0-9A-Z]+$`, a)
	assert.LessOrEqual(t, len(a), 32)
}

func TestPaySetsPaymentFields(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return now }))
	p := f.seed.Product(f.store.ID, "Oolong", "1.00", 10)
	order := f.create(t, ItemInput{ProductID: p.ID, Quantity: 1})

	paid, err := f.svc.Pay(context.Background(), order.ID, model.PaymentLinePay, strPtr("tx-123"))
	require.NoError(t, err)

	assert.Equal(t, model.StatusPaid, paid.Status)
	assert.Equal(t, model.PaymentLinePay, paid.PaymentMethod)
	require.NotNil(t, paid.TransactionID)
	assert.Equal(t, "tx-123", *paid.TransactionID)
	require.NotNil(t, paid.PaidAt)
	assert.True(t, now.Equal(*paid.PaidAt))
	assert.Equal(t, 1, f.recorder.transitions["pending->paid"])
	assert.Len(t, f.notifier.calls, 2)
}

func TestPayWithoutMethodDefaultsToUnpaid(t *testing.T) {
	f := newFixture(t)
	p := f.seed.Product(f.store.ID, "Oolong", "1.00", 10)
	order := f.create(t, ItemInput{ProductID: p.ID, Quantity: 1})

	paid, err := f.svc.Update(context.Background(), order.ID, UpdateOrderInput{Status: statusPtr(model.StatusPaid)})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentUnpaid, paid.PaymentMethod)
	assert.NotNil(t, paid.PaidAt)
	assert.Nil(t, paid.TransactionID)
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	p := f.seed.Product(f.store.ID, "Oolong", "1.00", 10)
	order := f.create(t, ItemInput{ProductID: p.ID, Quantity: 1})
	ctx := context.Background()

	_, err := f.svc.Pay(ctx, order.ID, model.PaymentCash, nil)
	require.NoError(t, err)
	_, err = f.svc.Ship(ctx, order.ID)
	require.NoError(t, err)
	done, err := f.svc.Complete(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)

	// completed 不能回到 paid
	_, err = f.svc.Pay(ctx, order.ID, model.PaymentCash, nil)
	var trErr *model.IllegalTransitionError
	require.True(t, errors.As(err, &trErr))
	assert.Equal(t, model.StatusCompleted, trErr.From)
	assert.Equal(t, model.StatusPaid, trErr.To)

	reloaded, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, reloaded.Status)
}

func TestIllegalTransitions(t *testing.T) {
	f := newFixture(t)
	p := f.seed.Product(f.store.ID, "Oolong", "1.00", 10)
	ctx := context.Background()

	order := f.create(t, ItemInput{ProductID: p.ID, Quantity: 1})

	_, err := f.svc.Ship(ctx, order.ID)
	var trErr *model.IllegalTransitionError
	require.True(t, errors.As(err, &trErr))

	// 相同状态也视为非法流转
	_, err = f.svc.Update(ctx, order.ID, UpdateOrderInput{Status: statusPtr(model.StatusPending)})
	require.True(t, errors.As(err, &trErr))
	assert.Equal(t, model.StatusPending, trErr.From)

	canceled, err := f.svc.Cancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, canceled.Status)

	_, err = f.svc.Pay(ctx, order.ID, model.PaymentCash, nil)
	require.True(t, errors.As(err, &trErr))
	assert.Equal(t, model.StatusCanceled, trErr.From)
}

func TestUpdateFieldsAllowedInAnyStatus(t *testing.T) {
	f := newFixture(t)
	p := f.seed.Product(f.store.ID, "Oolong", "1.00", 10)
	ctx := context.Background()
	order := f.create(t, ItemInput{ProductID: p.ID, Quantity: 1})
	_, err := f.svc.Cancel(ctx, order.ID)
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, order.ID, UpdateOrderInput{
		ReceiverName: strPtr("Bob"),
		Address:      strPtr("2 Side St"),
		Note:         strPtr("leave at door"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Bob", updated.ReceiverName)
	assert.Equal(t, "2 Side St", updated.Address)
	assert.Equal(t, "leave at door", updated.Note)
	assert.Equal(t, model.StatusCanceled, updated.Status)
}

func TestUpdateCannotRewritePaymentAfterPaid(t *testing.T) {
	f := newFixture(t)
	p := f.seed.Product(f.store.ID, "Oolong", "1.00", 10)
	ctx := context.Background()
	order := f.create(t, ItemInput{ProductID: p.ID, Quantity: 1})
	_, err := f.svc.Pay(ctx, order.ID, model.PaymentCash, strPtr("tx-1"))
	require.NoError(t, err)

	card := model.PaymentCreditCard
	rewrite := func(t *testing.T) {
		t.Helper()
		var vErr *model.ValidationError
		_, err := f.svc.Update(ctx, order.ID, UpdateOrderInput{PaymentMethod: &card})
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "payment_method", vErr.Field)

		_, err = f.svc.Update(ctx, order.ID, UpdateOrderInput{TransactionID: strPtr("tx-2")})
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "transaction_id", vErr.Field)

		stored, err := f.svc.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentCash, stored.PaymentMethod)
		require.NotNil(t, stored.TransactionID)
		assert.Equal(t, "tx-1", *stored.TransactionID)
	}

	t.Run("paid", rewrite)

	_, err = f.svc.Ship(ctx, order.ID)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, order.ID, UpdateOrderInput{Status: statusPtr(model.StatusCompleted)})
	require.NoError(t, err)
	t.Run("completed", rewrite)

	// 与非 paid 的状态变更一起提交同样被拒绝
	_, err = f.svc.Update(ctx, order.ID, UpdateOrderInput{Status: statusPtr(model.StatusShipped), PaymentMethod: &card})
	var vErr *model.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestUpdateValidationAndNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := model.PaymentMethod("alipay")
	_, err := f.svc.Update(ctx, "any", UpdateOrderInput{PaymentMethod: &bad})
	var vErr *model.ValidationError
	assert.True(t, errors.As(err, &vErr))

	_, err = f.svc.Ship(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

// racingRepository 在 CAS 之前插入一次并发的状态修改
type racingRepository struct {
	repository.OrderRepository
	db    *gorm.DB
	to    model.Status
	fired bool
}

func (r *racingRepository) UpdateStatus(ctx context.Context, id string, from model.Status, updates map[string]interface{}) (bool, error) {
	if !r.fired {
		r.fired = true
		if err := r.db.Model(&model.Order{}).Where("id = ?", id).Update("status", r.to).Error; err != nil {
			return false, err
		}
	}
	return r.OrderRepository.UpdateStatus(ctx, id, from, updates)
}

func TestConcurrentTransitionLoserGetsIllegalTransition(t *testing.T) {
	f := newFixture(t)
	p := f.seed.Product(f.store.ID, "Oolong", "1.00", 10)
	order := f.create(t, ItemInput{ProductID: p.ID, Quantity: 1})

	racing := &racingRepository{OrderRepository: repository.NewOrderRepository(f.db), db: f.db, to: model.StatusCanceled}
	svc := NewOrderService(racing, f.products)

	_, err := svc.Pay(context.Background(), order.ID, model.PaymentCash, nil)
	var trErr *model.IllegalTransitionError
	require.True(t, errors.As(err, &trErr))
	assert.Equal(t, model.StatusCanceled, trErr.From)
	assert.Equal(t, model.StatusPaid, trErr.To)

	reloaded, err := f.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, reloaded.Status)
	assert.Nil(t, reloaded.PaidAt)
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.seed.Product(f.store.ID, "Mine", "1.00", 100)
	_, otherStore := f.seed.Merchant("Other")
	theirs := f.seed.Product(otherStore.ID, "Theirs", "1.00", 100)

	a := f.create(t, ItemInput{ProductID: mine.ID, Quantity: 1})
	f.create(t, ItemInput{ProductID: theirs.ID, Quantity: 1})
	mixed := f.create(t, ItemInput{ProductID: mine.ID, Quantity: 1}, ItemInput{ProductID: theirs.ID, Quantity: 1})
	_, err := f.svc.Pay(ctx, a.ID, model.PaymentCash, nil)
	require.NoError(t, err)

	other := f.seed.Member("Bob")
	_, err = f.svc.Create(ctx, CreateOrderInput{
		MemberID: other.ID, ReceiverName: "Bob", ReceiverPhone: "1", Address: "x",
		Items: []ItemInput{{ProductID: mine.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	page, err := f.svc.List(ctx, ListOrdersInput{MemberID: f.memberID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)

	page, err = f.svc.List(ctx, ListOrdersInput{MerchantID: f.store.MerchantID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)

	page, err = f.svc.List(ctx, ListOrdersInput{MerchantID: f.store.MerchantID, Statuses: []model.Status{model.StatusPaid}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, a.ID, page.List.([]model.Order)[0].ID)

	page, err = f.svc.List(ctx, ListOrdersInput{Pagination: utils.Pagination{Page: 2, Limit: 3}})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	assert.Len(t, page.List.([]model.Order), 1)

	ids, err := f.svc.MerchantIDs(ctx, mixed.ID)
	require.NoError(t, err)
	want := []string{f.store.MerchantID, otherStore.MerchantID}
	sort.Strings(want)
	assert.Equal(t, want, ids)

	now := time.Now()
	past := now.Add(-time.Hour)
	_, err = f.svc.List(ctx, ListOrdersInput{Start: &now, End: &past})
	var vErr *model.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestDeleteOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seed.Product(f.store.ID, "Oolong", "1.00", 10)
	order := f.create(t, ItemInput{ProductID: p.ID, Quantity: 1})

	require.NoError(t, f.svc.Delete(ctx, order.ID))
	_, err := f.svc.Get(ctx, order.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, order.ID), model.ErrNotFound)

	// 软删除后订单号仍被占用
	exists, err := repository.NewOrderRepository(f.db).OrderNumberExists(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []string{f.store.MerchantID}, f.notifier.calls[len(f.notifier.calls)-1])
}
