package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/glambeauty/order-service/internal/auth"
	"github.com/glambeauty/order-service/internal/platform/web"
	"github.com/glambeauty/order-service/internal/product"
	"github.com/glambeauty/order-service/internal/product/dto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handler struct {
	uc     product.UseCase
	logger *zap.Logger
}

func NewHandler(uc product.UseCase, logger *zap.Logger) *Handler {
	return &Handler{uc: uc, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	products := rg.Group("/products")
	products.POST("", h.create)
	products.GET("", h.list)
	products.GET("/search", h.search)
	products.GET("/:id", h.get)
}

type createProductRequest struct {
	SKU         string          `json:"sku" binding:"required"`
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Brand       string          `json:"brand"`
	BasePrice   decimal.Decimal `json:"base_price"`
}

func (h *Handler) create(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	p, err := h.uc.Create(ctx, &dto.CreateProductInput{
		OwnerID:     auth.GetOwnerID(ctx),
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		Brand:       req.Brand,
		BasePrice:   req.BasePrice,
	})
	if err != nil {
		web.Error(c, err)
		return
	}
	web.Created(c, p)
}

func (h *Handler) list(c *gin.Context) {
	ctx := c.Request.Context()
	filters := &dto.ProductFilters{
		OwnerID:  auth.GetOwnerID(ctx),
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	if raw := c.Query("is_active"); raw != "" {
		active := raw == "true"
		filters.IsActive = &active
	}

	products, total, err := h.uc.List(ctx, filters)
	if err != nil {
		web.Internal(c, err)
		return
	}
	web.Paginated(c, products, web.Meta{Page: filters.Page, PageSize: filters.PageSize, Total: total})
}

func (h *Handler) get(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.uc.GetByID(ctx, auth.GetOwnerID(ctx), c.Param("id"))
	if err != nil {
		web.Error(c, err)
		return
	}
	web.OK(c, p)
}

func (h *Handler) search(c *gin.Context) {
	ctx := c.Request.Context()
	results, err := h.uc.Search(ctx, auth.GetOwnerID(ctx), c.Query("q"), queryInt(c, "size", 20))
	if err != nil {
		web.Internal(c, err)
		return
	}
	web.OK(c, results)
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
