package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"marketplace/internal/domain/analytics/model"
	"marketplace/internal/domain/analytics/service"
	orderModel "marketplace/internal/domain/order/model"
	"marketplace/internal/pkg/access"
	"marketplace/internal/pkg/middleware"
	"marketplace/pkg/logger"
	"marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AnalyticsHandler 商家销售分析接口
// 商家只能查询自己，管理员通过 merchant_id 指定商家
type AnalyticsHandler struct {
	service service.AnalyticsService
}

func NewAnalyticsHandler(service service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// Summary 订单汇总
// @Summary 订单汇总
// @Tags Analytics
// @Produce json
// @Param start query string false "YYYY-MM-DD"
// @Param end query string false "YYYY-MM-DD"
// @Param statuses query string false "comma separated statuses or all"
// @Success 200 {object} response.Response{data=model.Summary}
// @Router /analytics/orders/summary [get]
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	q := model.SummaryQuery{Filter: filter}
	var err error
	if q.Start, err = optionalDate(c, "start"); err != nil {
		h.fail(c, err)
		return
	}
	if q.End, err = optionalDate(c, "end"); err != nil {
		h.fail(c, err)
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, summary)
}

// Timeseries 按日或按月的销售趋势
// @Summary 销售趋势
// @Tags Analytics
// @Produce json
// @Param start query string true "YYYY-MM-DD"
// @Param end query string true "YYYY-MM-DD"
// @Param group_by query string false "day or month"
// @Router /analytics/orders/timeseries [get]
func (h *AnalyticsHandler) Timeseries(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	start, end, err := requiredRange(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	q := model.TimeseriesQuery{
		Filter:  filter,
		Start:   start,
		End:     end,
		GroupBy: model.GroupBy(strings.ToLower(c.DefaultQuery("group_by", string(model.GroupByDay)))),
	}

	points, err := h.service.Timeseries(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, points)
}

// TopProducts 热销商品
// @Summary 热销商品
// @Tags Analytics
// @Produce json
// @Param limit query int false "default 10, max 100"
// @Router /analytics/products/top [get]
func (h *AnalyticsHandler) TopProducts(c *gin.Context) {
	q, ok := h.ranking(c)
	if !ok {
		return
	}
	products, err := h.service.TopProducts(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, products)
}

// TopCustomers 消费最多的会员
// @Summary 会员排行
// @Tags Analytics
// @Produce json
// @Param limit query int false "default 5, max 100"
// @Router /analytics/customers/top [get]
func (h *AnalyticsHandler) TopCustomers(c *gin.Context) {
	q, ok := h.ranking(c)
	if !ok {
		return
	}
	customers, err := h.service.TopCustomers(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, customers)
}

func (h *AnalyticsHandler) ranking(c *gin.Context) (model.RankingQuery, bool) {
	filter, ok := h.filter(c)
	if !ok {
		return model.RankingQuery{}, false
	}
	start, end, err := requiredRange(c)
	if err != nil {
		h.fail(c, err)
		return model.RankingQuery{}, false
	}
	q := model.RankingQuery{Filter: filter, Start: start, End: end}
	if raw := c.Query("limit"); raw != "" {
		if q.Limit, err = strconv.Atoi(raw); err != nil {
			h.fail(c, &model.ValidationError{Field: "limit", Message: "must be an integer"})
			return model.RankingQuery{}, false
		}
	}
	return q, true
}

// filter 解析商家与状态条件
func (h *AnalyticsHandler) filter(c *gin.Context) (model.Filter, bool) {
	p, _ := middleware.GetPrincipal(c)

	var f model.Filter
	switch {
	case access.IsAdmin(p, access.Resource{}):
		f.MerchantID = c.Query("merchant_id")
		if f.MerchantID == "" {
			h.fail(c, &model.ValidationError{Field: "merchant_id", Message: "is required"})
			return f, false
		}
	case access.IsMerchant(p, access.Resource{}):
		if id := c.Query("merchant_id"); id != "" && id != p.MerchantID {
			h.fail(c, access.ErrForbidden)
			return f, false
		}
		f.MerchantID = p.MerchantID
	default:
		h.fail(c, access.ErrForbidden)
		return f, false
	}

	raw := strings.TrimSpace(c.Query("statuses"))
	switch {
	case raw == "":
	case strings.EqualFold(raw, "all"):
		f.AllStatuses = true
	default:
		for _, part := range strings.Split(raw, ",") {
			f.Statuses = append(f.Statuses, orderModel.Status(strings.ToLower(strings.TrimSpace(part))))
		}
	}
	return f, true
}

func optionalDate(c *gin.Context, field string) (*model.Date, error) {
	raw := c.Query(field)
	if raw == "" {
		return nil, nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return nil, &model.ValidationError{Field: field, Message: "expected YYYY-MM-DD"}
	}
	return &d, nil
}

func requiredRange(c *gin.Context) (model.Date, model.Date, error) {
	var dates [2]model.Date
	for i, field := range []string{"start", "end"} {
		d, err := optionalDate(c, field)
		if err != nil {
			return model.Date{}, model.Date{}, err
		}
		if d == nil {
			return model.Date{}, model.Date{}, &model.ValidationError{Field: field, Message: "is required"}
		}
		dates[i] = *d
	}
	return dates[0], dates[1], nil
}

func (h *AnalyticsHandler) fail(c *gin.Context, err error) {
	var vErr *model.ValidationError
	switch {
	case errors.As(err, &vErr):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, vErr.Error())
	case errors.Is(err, access.ErrForbidden):
		response.Error(c, http.StatusForbidden, response.ErrNoPermission, "Permission denied")
	default:
		logger.Log.Error("analytics request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
	}
}
