package handler

import (
	"net/http"
	"time"

	ddapp "github.com/erp/directdebit/internal/application/directdebit"
	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/erp/directdebit/internal/domain/shared"
	"github.com/erp/directdebit/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OrderHandler handles the payment order endpoints
type OrderHandler struct {
	BaseHandler
	orders  *ddapp.OrderService
	confirm *ddapp.ConfirmService
}

// NewOrderHandler creates a new OrderHandler. confirm may be nil when
// delayed processing is disabled.
func NewOrderHandler(orders *ddapp.OrderService, confirm *ddapp.ConfirmService) *OrderHandler {
	return &OrderHandler{orders: orders, confirm: confirm}
}

// ListOrdersQuery holds the filters of the payment order list
type ListOrdersQuery struct {
	dto.ListRequest
	State     string `form:"state" binding:"omitempty,oneof=draft open done cancel"`
	ToProcess *bool  `form:"to_process"`
}

// SplitOrderRequest sets the number of lines kept per order. Zero uses the
// configured split count.
type SplitOrderRequest struct {
	SplitCount int `json:"split_count" binding:"min=0"`
}

// MarkOrdersRequest selects the orders to process and when
type MarkOrdersRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids" binding:"required,min=1"`
	ETA      *time.Time  `json:"eta"`
}

// UnmarkOrdersRequest selects the orders whose processing is called off
type UnmarkOrdersRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids" binding:"required,min=1"`
}

// Create godoc
// @ID           createPaymentOrder
// @Summary      Create a payment order
// @Description  Create a draft order. Every line refers to a mandate of the same company.
// @Tags         payment-orders
// @Accept       json
// @Produce      json
// @Param        request body ddapp.CreateOrderInput true "Payment order"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /direct-debit/orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	var req ddapp.CreateOrderInput
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := h.orders.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// Get godoc
// @ID           getPaymentOrder
// @Summary      Get a payment order with its lines
// @Tags         payment-orders
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.ErrorResponse
// @Router       /direct-debit/orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := h.ParamID(c, "payment order")
	if !ok {
		return
	}

	order, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// List godoc
// @ID           listPaymentOrders
// @Summary      List the payment orders of a company
// @Tags         payment-orders
// @Produce      json
// @Param        company_id query string true "Company ID"
// @Param        state query string false "State"
// @Param        to_process query bool false "Marked for processing"
// @Success      200 {object} dto.Response
// @Router       /direct-debit/orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	var q ListOrdersQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.ApplyDefaults()

	filter := directdebit.OrderFilter{
		Filter: shared.Filter{
			Page:     q.Page,
			PageSize: q.PageSize,
			OrderBy:  q.OrderBy,
			OrderDir: q.OrderDir,
			Search:   q.Search,
		},
		ToProcess: q.ToProcess,
	}
	if q.State != "" {
		state := directdebit.OrderState(q.State)
		filter.State = &state
	}

	page, err := h.orders.List(c.Request.Context(), uuid.MustParse(q.CompanyID), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Confirm godoc
// @ID           confirmPaymentOrder
// @Summary      Open a draft order for export
// @Tags         payment-orders
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200 {object} dto.Response
// @Failure      422 {object} dto.ErrorResponse
// @Router       /direct-debit/orders/{id}/confirm [post]
func (h *OrderHandler) Confirm(c *gin.Context) {
	id, ok := h.ParamID(c, "payment order")
	if !ok {
		return
	}
	order, err := h.orders.Confirm(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Cancel godoc
// @ID           cancelPaymentOrder
// @Summary      Cancel a payment order that was not sent
// @Tags         payment-orders
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200 {object} dto.Response
// @Failure      422 {object} dto.ErrorResponse
// @Router       /direct-debit/orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := h.ParamID(c, "payment order")
	if !ok {
		return
	}
	order, err := h.orders.Cancel(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Split godoc
// @ID           splitPaymentOrder
// @Summary      Split a large payment order
// @Description  Keep the first split_count lines and move every further chunk into a new order.
// @Tags         payment-orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        request body SplitOrderRequest false "Split size"
// @Success      200 {object} dto.Response
// @Router       /direct-debit/orders/{id}/split [post]
func (h *OrderHandler) Split(c *gin.Context) {
	id, ok := h.ParamID(c, "payment order")
	if !ok {
		return
	}
	var req SplitOrderRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	orders, err := h.orders.Split(c.Request.Context(), id, req.SplitCount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, orders)
}

// Mark godoc
// @ID           markPaymentOrders
// @Summary      Schedule payment orders for processing
// @Description  Flag the orders and schedule one job per order at eta, or now when eta is empty.
// @Tags         payment-orders
// @Accept       json
// @Produce      json
// @Param        request body MarkOrdersRequest true "Orders"
// @Success      202 {object} dto.Response
// @Failure      503 {object} dto.ErrorResponse
// @Router       /direct-debit/orders/mark [post]
func (h *OrderHandler) Mark(c *gin.Context) {
	if !h.processingEnabled(c) {
		return
	}
	var req MarkOrdersRequest
	if !h.BindJSON(c, &req) {
		return
	}
	eta := time.Now()
	if req.ETA != nil {
		eta = *req.ETA
	}

	jobs, err := h.confirm.MarkForProcessing(c.Request.Context(), req.OrderIDs, eta)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(jobs))
}

// Unmark godoc
// @ID           unmarkPaymentOrders
// @Summary      Call off the processing of payment orders
// @Description  Clear the flag and cancel every job that did not start yet.
// @Tags         payment-orders
// @Accept       json
// @Produce      json
// @Param        request body UnmarkOrdersRequest true "Orders"
// @Success      200 {object} dto.Response
// @Router       /direct-debit/orders/unmark [post]
func (h *OrderHandler) Unmark(c *gin.Context) {
	if !h.processingEnabled(c) {
		return
	}
	var req UnmarkOrdersRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cancelled, err := h.confirm.UnmarkForProcessing(c.Request.Context(), req.OrderIDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"cancelled_jobs": cancelled})
}

func (h *OrderHandler) processingEnabled(c *gin.Context) bool {
	if h.confirm == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeBusinessRule, "Delayed processing of payment orders is disabled")
		return false
	}
	return true
}
