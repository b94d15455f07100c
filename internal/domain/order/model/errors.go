package model

import (
	"errors"
	"fmt"

	"marketplace/internal/pkg/access"
)

var (
	// ErrNotFound 订单不存在
	ErrNotFound = errors.New("order not found")
	// ErrForbidden 无权操作该订单
	ErrForbidden = access.ErrForbidden
)

// ValidationError 请求参数不合法
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NotFoundError 下单引用的资源不存在，errors.Is(err, ErrNotFound) 成立
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InsufficientStockError 库存不足
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Remaining   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): %d remaining", e.ProductName, e.ProductID, e.Remaining)
}

// IllegalTransitionError 非法的状态流转
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}
