package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"marketplace/internal/domain/order/model"
	"marketplace/internal/domain/order/service"
	"marketplace/internal/pkg/access"
	"marketplace/internal/pkg/middleware"
	"marketplace/pkg/logger"
	"marketplace/pkg/response"
	"marketplace/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

var (
	// 查看：下单会员、订单中有自家商品的商家、管理员
	viewRule = access.Any(access.OwnsOrder, access.MerchantInOrder, access.IsAdmin)
	// 修改收货信息
	editRule = access.Any(access.OwnsOrder, access.IsAdmin)

	// 各目标状态对应的权限
	statusRules = map[model.Status]access.Rule{
		model.StatusPaid:      access.OwnsOrder,
		model.StatusShipped:   access.Any(access.MerchantInOrder, access.IsAdmin),
		model.StatusCompleted: access.Any(access.OwnsOrder, access.IsAdmin),
		model.StatusCanceled:  access.Any(access.OwnsOrder, access.IsAdmin),
	}
)

// OrderHandler 订单处理器
type OrderHandler struct {
	service service.OrderService
}

func NewOrderHandler(service service.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// ItemRequest 下单明细
type ItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderRequest 下单请求
type CreateOrderRequest struct {
	ReceiverName  string        `json:"receiver_name" binding:"required,max=100"`
	ReceiverPhone string        `json:"receiver_phone" binding:"required,max=30"`
	Address       string        `json:"address" binding:"required,max=255"`
	Note          string        `json:"note"`
	Items         []ItemRequest `json:"items"`
}

// UpdateOrderRequest 修改订单请求，字段均可选
type UpdateOrderRequest struct {
	Status        *string `json:"status"`
	PaymentMethod *string `json:"payment_method"`
	TransactionID *string `json:"transaction_id" binding:"omitempty,max=100"`
	ReceiverName  *string `json:"receiver_name" binding:"omitempty,max=100"`
	ReceiverPhone *string `json:"receiver_phone" binding:"omitempty,max=30"`
	Address       *string `json:"address" binding:"omitempty,max=255"`
	Note          *string `json:"note"`
}

// PayRequest 支付请求，只记录支付结果
type PayRequest struct {
	PaymentMethod string  `json:"payment_method"`
	TransactionID *string `json:"transaction_id" binding:"omitempty,max=100"`
}

// Create 下单
// @Summary 创建订单
// @Tags Order
// @Accept json
// @Produce json
// @Param body body CreateOrderRequest true "Order"
// @Success 201 {object} response.Response{data=model.Order}
// @Router /orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	input := service.CreateOrderInput{
		MemberID:      p.MemberID,
		ReceiverName:  req.ReceiverName,
		ReceiverPhone: req.ReceiverPhone,
		Address:       req.Address,
		Note:          req.Note,
		Items:         make([]service.ItemInput, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, service.ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, order)
}

// List 订单列表，会员看自己的，商家看包含自家商品的，管理员看全部
// @Summary 订单列表
// @Tags Order
// @Produce json
// @Param status query string false "comma separated statuses"
// @Param start query string false "YYYY-MM-DD"
// @Param end query string false "YYYY-MM-DD"
// @Router /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)

	var page utils.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	input := service.ListOrdersInput{Pagination: page}

	switch p.Role {
	case access.RoleMember:
		input.MemberID = p.MemberID
	case access.RoleMerchant:
		input.MerchantID = p.MerchantID
	case access.RoleAdmin:
		input.MemberID = c.Query("member_id")
		input.MerchantID = c.Query("merchant_id")
	}

	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, err := model.ParseStatus(part)
			if err != nil {
				h.fail(c, err)
				return
			}
			input.Statuses = append(input.Statuses, status)
		}
	}

	var err error
	if input.Start, err = parseDate(c.Query("start"), "start", 0); err != nil {
		h.fail(c, err)
		return
	}
	// end 为包含当天
	if input.End, err = parseDate(c.Query("end"), "end", 24*time.Hour); err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// Get 订单详情
// @Summary 订单详情
// @Tags Order
// @Produce json
// @Param id path string true "Order ID"
// @Router /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	order, ok := h.authorize(c, viewRule)
	if !ok {
		return
	}
	response.Success(c, order)
}

// Update 修改订单，可同时修改收货信息与状态
// @Summary 修改订单
// @Tags Order
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param body body UpdateOrderRequest true "Changes"
// @Router /orders/{id} [patch]
func (h *OrderHandler) Update(c *gin.Context) {
	var req UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	input := service.UpdateOrderInput{
		TransactionID: req.TransactionID,
		ReceiverName:  req.ReceiverName,
		ReceiverPhone: req.ReceiverPhone,
		Address:       req.Address,
		Note:          req.Note,
	}
	if req.PaymentMethod != nil {
		method := model.PaymentMethod(*req.PaymentMethod)
		input.PaymentMethod = &method
	}

	rules := make([]access.Rule, 0, 2)
	if req.Status != nil {
		status, err := model.ParseStatus(*req.Status)
		if err != nil {
			h.fail(c, err)
			return
		}
		input.Status = &status
		if rule, ok := statusRules[status]; ok {
			rules = append(rules, rule)
		} else {
			rules = append(rules, access.IsAdmin)
		}
	}
	if hasFieldChanges(req) || len(rules) == 0 {
		rules = append(rules, editRule)
	}

	order, ok := h.authorize(c, access.All(rules...))
	if !ok {
		return
	}

	updated, err := h.service.Update(c.Request.Context(), order.ID, input)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, updated)
}

// hasFieldChanges 收货信息修改，支付字段随 paid 流转校验
func hasFieldChanges(req UpdateOrderRequest) bool {
	return req.ReceiverName != nil || req.ReceiverPhone != nil || req.Address != nil || req.Note != nil
}

// Pay 记录付款
// @Summary 付款
// @Tags Order
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param body body PayRequest false "Payment"
// @Router /orders/{id}/pay [post]
func (h *OrderHandler) Pay(c *gin.Context) {
	var req PayRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
			return
		}
	}

	order, ok := h.authorize(c, statusRules[model.StatusPaid])
	if !ok {
		return
	}

	updated, err := h.service.Pay(c.Request.Context(), order.ID, model.PaymentMethod(req.PaymentMethod), req.TransactionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, updated)
}

// Ship 发货
// @Summary 发货
// @Tags Order
// @Param id path string true "Order ID"
// @Router /orders/{id}/ship [post]
func (h *OrderHandler) Ship(c *gin.Context) {
	h.act(c, model.StatusShipped, h.service.Ship)
}

// Complete 确认收货
// @Summary 完成订单
// @Tags Order
// @Param id path string true "Order ID"
// @Router /orders/{id}/complete [post]
func (h *OrderHandler) Complete(c *gin.Context) {
	h.act(c, model.StatusCompleted, h.service.Complete)
}

// Cancel 取消订单
// @Summary 取消订单
// @Tags Order
// @Param id path string true "Order ID"
// @Router /orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *gin.Context) {
	h.act(c, model.StatusCanceled, h.service.Cancel)
}

func (h *OrderHandler) act(c *gin.Context, to model.Status, fn func(ctx context.Context, id string) (*model.Order, error)) {
	order, ok := h.authorize(c, statusRules[to])
	if !ok {
		return
	}
	updated, err := fn(c.Request.Context(), order.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, updated)
}

// Delete 管理员删除订单
// @Summary 删除订单
// @Tags Order
// @Param id path string true "Order ID"
// @Router /orders/{id} [delete]
func (h *OrderHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, nil)
}

// authorize 加载订单并按规则校验，失败时已写入响应
func (h *OrderHandler) authorize(c *gin.Context, rule access.Rule) (*model.Order, bool) {
	p, _ := middleware.GetPrincipal(c)
	ctx := c.Request.Context()

	order, err := h.service.Get(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	merchantIDs, err := h.service.MerchantIDs(ctx, order.ID)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}

	resource := access.Resource{OwnerMemberID: order.MemberID, MerchantIDs: merchantIDs}
	if err := access.Check(p, resource, rule); err != nil {
		h.fail(c, err)
		return nil, false
	}
	return order, true
}

// fail 将领域错误映射为 HTTP 响应
func (h *OrderHandler) fail(c *gin.Context, err error) {
	var (
		vErr     *model.ValidationError
		stockErr *model.InsufficientStockError
		trErr    *model.IllegalTransitionError
	)
	switch {
	case errors.As(err, &vErr):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, vErr.Error())
	case errors.As(err, &stockErr):
		response.Error(c, http.StatusConflict, response.ErrOutOfStock, stockErr.Error())
	case errors.As(err, &trErr):
		response.Error(c, http.StatusConflict, response.ErrIllegalTransition, trErr.Error())
	case errors.Is(err, model.ErrNotFound):
		response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, err.Error())
	case errors.Is(err, model.ErrForbidden):
		response.Error(c, http.StatusForbidden, response.ErrNoPermission, "Permission denied")
	default:
		logger.Log.Error("order request failed",
			zap.String("path", c.FullPath()),
			zap.String("order_id", c.Param("id")),
			zap.Error(err),
		)
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
	}
}

func parseDate(raw, field string, shift time.Duration) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, &model.ValidationError{Field: field, Message: "expected YYYY-MM-DD"}
	}
	t = t.Add(shift)
	return &t, nil
}
