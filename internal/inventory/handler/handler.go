package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/glambeauty/order-service/internal/auth"
	"github.com/glambeauty/order-service/internal/inventory"
	"github.com/glambeauty/order-service/internal/inventory/dto"
	"github.com/glambeauty/order-service/internal/platform/web"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handler struct {
	uc     inventory.UseCase
	logger *zap.Logger
}

func NewHandler(uc inventory.UseCase, logger *zap.Logger) *Handler {
	return &Handler{uc: uc, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	items := rg.Group("/inventory")
	items.POST("", h.createItem)
	items.GET("", h.listItems)
	items.GET("/low-stock", h.lowStock)
	items.GET("/out-of-stock", h.outOfStock)
	items.GET("/reorder-suggestions", h.reorderSuggestions)
	items.GET("/stats", h.stats)
	items.GET("/:id", h.getItem)
	items.PUT("/:id", h.updateItem)
	items.DELETE("/:id", h.deleteItem)
	items.PATCH("/:id/stock", h.adjustStock)
	items.POST("/:id/movements", h.recordMovement)
	items.GET("/:id/movements", h.listMovements)
}

type createItemRequest struct {
	ProductID       string          `json:"product_id" binding:"required"`
	Location        *string         `json:"location"`
	Color           *string         `json:"color"`
	Shade           *string         `json:"shade"`
	Size            *string         `json:"size"`
	Batch           *string         `json:"batch_number"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	InitialStock    int             `json:"initial_stock"`
	MinimumStock    int             `json:"minimum_stock"`
	MaximumStock    int             `json:"maximum_stock"`
	ReorderPoint    int             `json:"reorder_point"`
	ReorderQuantity int             `json:"reorder_quantity"`
}

func (h *Handler) createItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	item, err := h.uc.Create(ctx, &dto.CreateItemInput{
		OwnerID:         auth.GetOwnerID(ctx),
		UserID:          auth.GetUserID(ctx),
		ProductID:       req.ProductID,
		Location:        req.Location,
		Color:           req.Color,
		Shade:           req.Shade,
		Size:            req.Size,
		Batch:           req.Batch,
		CostPrice:       req.CostPrice,
		SellingPrice:    req.SellingPrice,
		InitialStock:    req.InitialStock,
		MinimumStock:    req.MinimumStock,
		MaximumStock:    req.MaximumStock,
		ReorderPoint:    req.ReorderPoint,
		ReorderQuantity: req.ReorderQuantity,
	})
	if err != nil {
		web.Error(c, err)
		return
	}
	web.Created(c, item)
}

func (h *Handler) listItems(c *gin.Context) {
	ctx := c.Request.Context()
	filters := &dto.ItemFilters{
		OwnerID:      auth.GetOwnerID(ctx),
		ProductID:    c.Query("product_id"),
		LowStock:     c.Query("low_stock") == "true",
		OutOfStock:   c.Query("out_of_stock") == "true",
		NeedsReorder: c.Query("needs_reorder") == "true",
		Search:       c.Query("search"),
		Page:         queryInt(c, "page", 1),
		PageSize:     queryInt(c, "page_size", 20),
	}
	if raw := c.Query("is_active"); raw != "" {
		active := raw == "true"
		filters.IsActive = &active
	}

	items, total, err := h.uc.List(ctx, filters)
	if err != nil {
		web.Internal(c, err)
		return
	}
	web.Paginated(c, items, web.Meta{Page: filters.Page, PageSize: filters.PageSize, Total: total})
}

func (h *Handler) getItem(c *gin.Context) {
	ctx := c.Request.Context()
	item, err := h.uc.GetByID(ctx, auth.GetOwnerID(ctx), c.Param("id"))
	if err != nil {
		web.Error(c, err)
		return
	}
	web.OK(c, item)
}

type updateItemRequest struct {
	Location        *string          `json:"location"`
	Color           *string          `json:"color"`
	Shade           *string          `json:"shade"`
	Size            *string          `json:"size"`
	Batch           *string          `json:"batch_number"`
	CostPrice       *decimal.Decimal `json:"cost_price"`
	SellingPrice    *decimal.Decimal `json:"selling_price"`
	MinimumStock    *int             `json:"minimum_stock"`
	MaximumStock    *int             `json:"maximum_stock"`
	ReorderPoint    *int             `json:"reorder_point"`
	ReorderQuantity *int             `json:"reorder_quantity"`
	IsActive        *bool            `json:"is_active"`
}

func (h *Handler) updateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	item, err := h.uc.Update(ctx, &dto.UpdateItemInput{
		OwnerID:         auth.GetOwnerID(ctx),
		ItemID:          c.Param("id"),
		Location:        req.Location,
		Color:           req.Color,
		Shade:           req.Shade,
		Size:            req.Size,
		Batch:           req.Batch,
		CostPrice:       req.CostPrice,
		SellingPrice:    req.SellingPrice,
		MinimumStock:    req.MinimumStock,
		MaximumStock:    req.MaximumStock,
		ReorderPoint:    req.ReorderPoint,
		ReorderQuantity: req.ReorderQuantity,
		IsActive:        req.IsActive,
	})
	if err != nil {
		web.Error(c, err)
		return
	}
	web.OK(c, item)
}

func (h *Handler) deleteItem(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.uc.Delete(ctx, auth.GetOwnerID(ctx), c.Param("id")); err != nil {
		web.Error(c, err)
		return
	}
	web.OK(c, gin.H{"deleted": true})
}

type adjustStockRequest struct {
	NewQuantity *int   `json:"new_quantity" binding:"required"`
	Reason      string `json:"reason"`
}

func (h *Handler) adjustStock(c *gin.Context) {
	var req adjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	item, err := h.uc.AdjustStock(ctx, &dto.AdjustStockInput{
		OwnerID:     auth.GetOwnerID(ctx),
		UserID:      auth.GetUserID(ctx),
		ItemID:      c.Param("id"),
		NewQuantity: *req.NewQuantity,
		Reason:      req.Reason,
	})
	if err != nil {
		web.Error(c, err)
		return
	}
	web.OK(c, item)
}

type recordMovementRequest struct {
	MovementType  string           `json:"movement_type" binding:"required"`
	Quantity      int              `json:"quantity" binding:"required"`
	Reason        string           `json:"reason"`
	ReferenceType string           `json:"reference_type"`
	ReferenceID   string           `json:"reference_id"`
	UnitCost      *decimal.Decimal `json:"unit_cost"`
}

func (h *Handler) recordMovement(c *gin.Context) {
	var req recordMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	movement, err := h.uc.RecordMovement(ctx, &dto.RecordMovementInput{
		OwnerID:       auth.GetOwnerID(ctx),
		UserID:        auth.GetUserID(ctx),
		ItemID:        c.Param("id"),
		MovementType:  req.MovementType,
		Quantity:      req.Quantity,
		Reason:        req.Reason,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		UnitCost:      req.UnitCost,
	})
	if err != nil {
		web.Error(c, err)
		return
	}
	web.Created(c, movement)
}

func (h *Handler) listMovements(c *gin.Context) {
	ctx := c.Request.Context()
	filters := &dto.MovementFilters{
		OwnerID:         auth.GetOwnerID(ctx),
		InventoryItemID: c.Param("id"),
		MovementType:    c.Query("movement_type"),
		Page:            queryInt(c, "page", 1),
		PageSize:        queryInt(c, "page_size", 20),
	}

	movements, total, err := h.uc.ListMovements(ctx, filters)
	if err != nil {
		web.Internal(c, err)
		return
	}
	web.Paginated(c, movements, web.Meta{Page: filters.Page, PageSize: filters.PageSize, Total: total})
}

func (h *Handler) lowStock(c *gin.Context) {
	ctx := c.Request.Context()
	items, err := h.uc.LowStock(ctx, auth.GetOwnerID(ctx))
	if err != nil {
		web.Internal(c, err)
		return
	}
	web.OK(c, items)
}

func (h *Handler) outOfStock(c *gin.Context) {
	ctx := c.Request.Context()
	items, err := h.uc.OutOfStock(ctx, auth.GetOwnerID(ctx))
	if err != nil {
		web.Internal(c, err)
		return
	}
	web.OK(c, items)
}

func (h *Handler) reorderSuggestions(c *gin.Context) {
	ctx := c.Request.Context()
	items, err := h.uc.ReorderSuggestions(ctx, auth.GetOwnerID(ctx))
	if err != nil {
		web.Internal(c, err)
		return
	}
	web.OK(c, items)
}

func (h *Handler) stats(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.uc.Stats(ctx, auth.GetOwnerID(ctx))
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
