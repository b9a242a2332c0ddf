package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/glambeauty/order-service/internal/auth"
	"github.com/glambeauty/order-service/internal/model"
	"github.com/glambeauty/order-service/internal/order"
	"github.com/glambeauty/order-service/internal/order/dto"
	"github.com/glambeauty/order-service/internal/platform/web"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handler struct {
	uc     order.UseCase
	logger *zap.Logger
}

func NewHandler(uc order.UseCase, logger *zap.Logger) *Handler {
	return &Handler{uc: uc, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/orders")
	orders.POST("", h.create)
	orders.GET("", h.list)
	orders.GET("/stats", h.stats)
	orders.GET("/low-stock-impact", h.lowStockImpact)
	orders.GET("/:id", h.get)
	orders.POST("/:id/confirm", h.confirm)
	orders.POST("/:id/allocate", h.allocate)
	orders.GET("/:id/allocation", h.allocationStatus)
	orders.POST("/:id/cancel", h.cancel)
	orders.PATCH("/:id/status", h.updateStatus)
	orders.PATCH("/:id/payment", h.updatePayment)
	orders.POST("/:id/items/:itemId/fulfill", h.fulfillItem)
}

type createOrderItemRequest struct {
	ProductID      string           `json:"product_id" binding:"required"`
	Quantity       int              `json:"quantity" binding:"required"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	RequestedColor *string          `json:"requested_color"`
	RequestedShade *string          `json:"requested_shade"`
	RequestedSize  *string          `json:"requested_size"`
}

type createOrderRequest struct {
	CustomerID     string                   `json:"customer_id" binding:"required"`
	Items          []createOrderItemRequest `json:"items" binding:"required"`
	DiscountAmount decimal.Decimal          `json:"discount_amount"`
	TaxAmount      decimal.Decimal          `json:"tax_amount"`
	ShippingCost   decimal.Decimal          `json:"shipping_cost"`
	CustomerNotes  string                   `json:"customer_notes"`
}

func (h *Handler) create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	input := &dto.CreateOrderInput{
		OwnerID:        auth.GetOwnerID(ctx),
		UserID:         auth.GetUserID(ctx),
		CustomerID:     req.CustomerID,
		DiscountAmount: req.DiscountAmount,
		TaxAmount:      req.TaxAmount,
		ShippingCost:   req.ShippingCost,
		CustomerNotes:  req.CustomerNotes,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, dto.CreateOrderItemInput{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			RequestedColor: item.RequestedColor,
			RequestedShade: item.RequestedShade,
			RequestedSize:  item.RequestedSize,
		})
	}

	o, err := h.uc.Create(ctx, input)
	if err != nil {
		web.Error(c, err)
		return
	}
	web.Created(c, o)
}

func (h *Handler) list(c *gin.Context) {
	ctx := c.Request.Context()
	filters := &dto.OrderFilters{
		OwnerID:       auth.GetOwnerID(ctx),
		CustomerID:    c.Query("customer_id"),
		Status:        model.OrderStatus(c.Query("status")),
		PaymentStatus: model.PaymentStatus(c.Query("payment_status")),
		Search:        c.Query("search"),
		Page:          queryInt(c, "page", 1),
		PageSize:      queryInt(c, "page_size", 20),
	}

	orders, total, err := h.uc.List(ctx, filters)
	if err != nil {
		web.Internal(c, err)
		return
	}
	web.Paginated(c, orders, web.Meta{Page: filters.Page, PageSize: filters.PageSize, Total: total})
}

func (h *Handler) get(c *gin.Context) {
	ctx := c.Request.Context()
	o, err := h.uc.GetByID(ctx, auth.GetOwnerID(ctx), c.Param("id"))
	if err != nil {
		web.Error(c, err)
		return
	}
	web.OK(c, o)
}

func (h *Handler) confirm(c *gin.Context) {
	ctx := c.Request.Context()
	o, reductions, err := h.uc.Confirm(ctx, auth.GetOwnerID(ctx), auth.GetUserID(ctx), c.Param("id"))
	if err != nil {
		web.Error(c, err)
		return
	}
	web.OK(c, gin.H{"order": o, "stock_reductions": reductions})
}

func (h *Handler) allocate(c *gin.Context) {
	ctx := c.Request.Context()
	o, reductions, err := h.uc.Allocate(ctx, auth.GetOwnerID(ctx), auth.GetUserID(ctx), c.Param("id"))
	if err != nil {
		web.Error(c, err)
		return
	}
	web.OK(c, gin.H{"order": o, "stock_reductions": reductions})
}

func (h *Handler) allocationStatus(c *gin.Context) {
	ctx := c.Request.Context()
	status, err := h.uc.GetAllocationStatus(ctx, auth.GetOwnerID(ctx), c.Param("id"))
	if err != nil {
		web.Error(c, err)
		return
	}
	web.OK(c, status)
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancel(c *gin.Context) {
	var req cancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		web.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	o, err := h.uc.Cancel(ctx, &dto.CancelOrderInput{
		OwnerID: auth.GetOwnerID(ctx),
		UserID:  auth.GetUserID(ctx),
		OrderID: c.Param("id"),
		Reason:  req.Reason,
	})
	if err != nil {
		web.Error(c, err)
		return
	}
	web.OK(c, o)
}

type updateStatusRequest struct {
	Status         string `json:"status" binding:"required"`
	TrackingNumber string `json:"tracking_number"`
	CourierService string `json:"courier_service"`
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	o, err := h.uc.UpdateStatus(ctx, &dto.UpdateStatusInput{
		OwnerID:        auth.GetOwnerID(ctx),
		UserID:         auth.GetUserID(ctx),
		OrderID:        c.Param("id"),
		Status:         model.OrderStatus(req.Status),
		TrackingNumber: req.TrackingNumber,
		CourierService: req.CourierService,
	})
	if err != nil {
		web.Error(c, err)
		return
	}
	web.OK(c, o)
}

type updatePaymentRequest struct {
	PaymentStatus    string           `json:"payment_status"`
	AmountPaid       *decimal.Decimal `json:"amount_paid"`
	PaymentReference string           `json:"payment_reference"`
}

func (h *Handler) updatePayment(c *gin.Context) {
	var req updatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	o, err := h.uc.UpdatePayment(ctx, &dto.UpdatePaymentInput{
		OwnerID:          auth.GetOwnerID(ctx),
		OrderID:          c.Param("id"),
		PaymentStatus:    model.PaymentStatus(req.PaymentStatus),
		AmountPaid:       req.AmountPaid,
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		web.Error(c, err)
		return
	}
	web.OK(c, o)
}

type fulfillItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

func (h *Handler) fulfillItem(c *gin.Context) {
	var req fulfillItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	item, err := h.uc.FulfillItem(ctx, &dto.FulfillItemInput{
		OwnerID:  auth.GetOwnerID(ctx),
		UserID:   auth.GetUserID(ctx),
		OrderID:  c.Param("id"),
		ItemID:   c.Param("itemId"),
		Quantity: req.Quantity,
	})
	if err != nil {
		web.Error(c, err)
		return
	}
	web.OK(c, item)
}

func (h *Handler) lowStockImpact(c *gin.Context) {
	ctx := c.Request.Context()
	impacts, err := h.uc.LowStockImpact(ctx, auth.GetOwnerID(ctx))
	if err != nil {
		web.Internal(c, err)
		return
	}
	web.OK(c, impacts)
}

func (h *Handler) stats(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.uc.Stats(ctx, auth.GetOwnerID(ctx), queryInt(c, "days", 30))
	if err != nil {
		web.Internal(c, err)
		return
	}
	web.OK(c, stats)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
