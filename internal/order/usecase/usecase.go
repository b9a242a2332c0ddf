package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glambeauty/order-service/internal/apperrors"
	"github.com/glambeauty/order-service/internal/inventory"
	"github.com/glambeauty/order-service/internal/model"
	"github.com/glambeauty/order-service/internal/order"
	"github.com/glambeauty/order-service/internal/order/dto"
	"github.com/glambeauty/order-service/internal/platform/cache"
	"github.com/glambeauty/order-service/internal/product"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type orderUseCase struct {
	repo      order.Repository
	inventory inventory.Repository
	products  product.Repository
	cache     *cache.RedisClient
	publisher order.EventPublisher
	logger    *zap.Logger
}

func NewOrderUseCase(
	repo order.Repository,
	inventoryRepo inventory.Repository,
	productRepo product.Repository,
	redisCache *cache.RedisClient,
	publisher order.EventPublisher,
	logger *zap.Logger,
) order.UseCase {
	return &orderUseCase{
		repo:      repo,
		inventory: inventoryRepo,
		products:  productRepo,
		cache:     redisCache,
		publisher: publisher,
		logger:    logger,
	}
}

// newOrderNumber builds a human-readable, sortable order number like
// GB-20260828-3F9A1C2B.
func newOrderNumber() string {
	fragment := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("GB-%s-%s", time.Now().Format("20060102"), fragment)
}

func (uc *orderUseCase) Create(ctx context.Context, input *dto.CreateOrderInput) (*model.Order, error) {
	if input.CustomerID == "" {
		return nil, fmt.Errorf("customer_id is required")
	}
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("order needs at least one item")
	}

	productIDs := make([]string, 0, len(input.Items))
	for _, in := range input.Items {
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("quantity must be positive for product %s", in.ProductID)
		}
		productIDs = append(productIDs, in.ProductID)
	}

	catalog, err := uc.products.FindByIDs(ctx, input.OwnerID, productIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Product, len(catalog))
	for i := range catalog {
		byID[catalog[i].ID] = &catalog[i]
	}

	now := time.Now()
	o := &model.Order{
		BaseModel: model.BaseModel{
			ID:        uuid.New().String(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		OrderNumber:    newOrderNumber(),
		CustomerID:     input.CustomerID,
		OwnerID:        input.OwnerID,
		Status:         model.OrderPending,
		PaymentStatus:  model.PaymentPending,
		DiscountAmount: input.DiscountAmount,
		TaxAmount:      input.TaxAmount,
		ShippingCost:   input.ShippingCost,
		AmountPaid:     decimal.Zero,
	}
	if input.CustomerNotes != "" {
		notes := input.CustomerNotes
		o.CustomerNotes = &notes
	}

	subtotal := decimal.Zero
	for _, in := range input.Items {
		p, ok := byID[in.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", in.ProductID, apperrors.ErrNotFound)
		}

		unitPrice := p.BasePrice
		if in.UnitPrice != nil {
			unitPrice = *in.UnitPrice
		}
		totalPrice := unitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
		subtotal = subtotal.Add(totalPrice)

		o.Items = append(o.Items, model.OrderItem{
			ID:                 uuid.New().String(),
			OrderID:            o.ID,
			ProductID:          p.ID,
			Quantity:           in.Quantity,
			UnitPrice:          unitPrice,
			TotalPrice:         totalPrice,
			RequestedColor:     in.RequestedColor,
			RequestedShade:     in.RequestedShade,
			RequestedSize:      in.RequestedSize,
			ProductName:        p.Name,
			ProductSKU:         p.SKU,
			ProductDescription: p.Description,
			CreatedAt:          now,
		})
	}

	o.Subtotal = subtotal
	o.TotalAmount = subtotal.Add(o.TaxAmount).Add(o.ShippingCost).Sub(o.DiscountAmount)

	if err := uc.repo.Create(ctx, o); err != nil {
		return nil, err
	}

	uc.logger.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("owner_id", o.OwnerID),
		zap.Int("items", len(o.Items)))
	return o, nil
}

func (uc *orderUseCase) GetByID(ctx context.Context, ownerID, id string) (*model.Order, error) {
	o, err := uc.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperrors.ErrNotFound
	}
	return o, nil
}

func (uc *orderUseCase) List(ctx context.Context, filters *dto.OrderFilters) ([]model.Order, int, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 100 {
		filters.PageSize = 20
	}
	return uc.repo.FindAll(ctx, filters)
}

func (uc *orderUseCase) Cancel(ctx context.Context, input *dto.CancelOrderInput) (*model.Order, error) {
	o, err := uc.GetByID(ctx, input.OwnerID, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !o.CanBeCancelled() {
		return nil, fmt.Errorf("order %s cannot be cancelled from %s: %w",
			o.OrderNumber, o.Status, apperrors.ErrInvalidTransition)
	}

	reason := "Order cancelled: " + o.OrderNumber
	if input.Reason != "" {
		reason += " - " + input.Reason
	}

	o.Status = model.OrderCancelled
	o.UpdatedAt = time.Now()
	if input.Reason != "" {
		note := "Cancelled: " + input.Reason
		if o.InternalNotes != nil && *o.InternalNotes != "" {
			note = *o.InternalNotes + "\n" + note
		}
		o.InternalNotes = &note
	}

	// The repo rebuilds the restores from the order's own "out" ledger
	// rows inside the cancel transaction, so every variant that sourced
	// this order gets its exact quantity back, takes committed after our
	// read included.
	restores, err := uc.repo.CancelWithRestore(ctx, o, reason, input.UserID)
	if err != nil {
		return nil, err
	}

	for i := range o.Items {
		o.Items[i].AllocatedQuantity = 0
		o.Items[i].FulfilledQuantity = 0
	}

	uc.logger.Info("order cancelled",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.Int("restored_variants", len(restores)))
	return o, nil
}

func (uc *orderUseCase) UpdateStatus(ctx context.Context, input *dto.UpdateStatusInput) (*model.Order, error) {
	switch input.Status {
	case model.OrderProcessing, model.OrderPacked, model.OrderShipped,
		model.OrderDelivered, model.OrderReturned:
	default:
		return nil, fmt.Errorf("status %s is not reachable through this endpoint: %w",
			input.Status, apperrors.ErrInvalidTransition)
	}

	o, err := uc.GetByID(ctx, input.OwnerID, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(o.Status, input.Status) {
		return nil, fmt.Errorf("cannot move order %s from %s to %s: %w",
			o.OrderNumber, o.Status, input.Status, apperrors.ErrInvalidTransition)
	}

	now := time.Now()
	switch input.Status {
	case model.OrderShipped:
		if !o.CanBeShipped() {
			return nil, fmt.Errorf("order %s is not payable-and-ready to ship: %w",
				o.OrderNumber, apperrors.ErrInvalidTransition)
		}
		o.ShippedAt = &now
		if input.TrackingNumber != "" {
			tracking := input.TrackingNumber
			o.TrackingNumber = &tracking
		}
		if input.CourierService != "" {
			courier := input.CourierService
			o.CourierService = &courier
		}
	case model.OrderDelivered:
		o.DeliveredAt = &now
	}

	o.Status = input.Status
	o.UpdatedAt = now

	if err := uc.repo.UpdateStatus(ctx, o); err != nil {
		return nil, err
	}

	uc.logger.Info("order status updated",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("status", string(o.Status)))
	return o, nil
}

func (uc *orderUseCase) FulfillItem(ctx context.Context, input *dto.FulfillItemInput) (*model.OrderItem, error) {
	o, err := uc.GetByID(ctx, input.OwnerID, input.OrderID)
	if err != nil {
		return nil, err
	}

	switch o.Status {
	case model.OrderConfirmed, model.OrderProcessing, model.OrderPacked, model.OrderShipped:
	default:
		return nil, fmt.Errorf("order %s in %s cannot fulfill items: %w",
			o.OrderNumber, o.Status, apperrors.ErrInvalidTransition)
	}

	var item *model.OrderItem
	for i := range o.Items {
		if o.Items[i].ID == input.ItemID {
			item = &o.Items[i]
			break
		}
	}
	if item == nil {
		return nil, fmt.Errorf("order item %s: %w", input.ItemID, apperrors.ErrNotFound)
	}

	if input.Quantity <= 0 || input.Quantity > item.PendingFulfillment() {
		return nil, fmt.Errorf("fulfill quantity %d exceeds pending %d: %w",
			input.Quantity, item.PendingFulfillment(), apperrors.ErrInvalidTransition)
	}

	now := time.Now()
	item.FulfilledQuantity += input.Quantity
	if item.FulfilledQuantity >= item.Quantity {
		item.FulfilledAt = &now
	}

	// Fully fulfilled orders auto-advance to SHIPPED in the same
	// transaction as the last item's counter; the explicit-ship payment
	// gate does not apply here because fulfillment is the warehouse
	// saying the goods already left.
	var advance *model.Order
	switch o.Status {
	case model.OrderConfirmed, model.OrderProcessing, model.OrderPacked:
		if o.IsFullyFulfilled() {
			o.Status = model.OrderShipped
			o.ShippedAt = &now
			o.UpdatedAt = now
			advance = o
		}
	}

	if err := uc.repo.FulfillItem(ctx, item, advance); err != nil {
		return nil, err
	}

	uc.logger.Info("order item fulfilled",
		zap.String("order_id", o.ID),
		zap.String("order_item_id", item.ID),
		zap.Int("quantity", input.Quantity),
		zap.Bool("order_shipped", advance != nil))
	return item, nil
}

func (uc *orderUseCase) UpdatePayment(ctx context.Context, input *dto.UpdatePaymentInput) (*model.Order, error) {
	o, err := uc.GetByID(ctx, input.OwnerID, input.OrderID)
	if err != nil {
		return nil, err
	}

	if input.AmountPaid != nil {
		o.AmountPaid = *input.AmountPaid
	}

	if input.PaymentStatus != "" {
		switch input.PaymentStatus {
		case model.PaymentPending, model.PaymentPartial, model.PaymentPaid,
			model.PaymentRefunded, model.PaymentCancelled:
			o.PaymentStatus = input.PaymentStatus
		default:
			return nil, fmt.Errorf("unknown payment status %s", input.PaymentStatus)
		}
	} else if input.AmountPaid != nil {
		// Derive the status from the running total.
		switch {
		case o.IsPaid():
			o.PaymentStatus = model.PaymentPaid
		case o.AmountPaid.IsPositive():
			o.PaymentStatus = model.PaymentPartial
		default:
			o.PaymentStatus = model.PaymentPending
		}
	}

	if input.PaymentReference != "" {
		ref := input.PaymentReference
		o.PaymentReference = &ref
	}
	o.UpdatedAt = time.Now()

	if err := uc.repo.UpdatePayment(ctx, o); err != nil {
		return nil, err
	}

	uc.logger.Info("order payment updated",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("payment_status", string(o.PaymentStatus)),
		zap.String("amount_paid", o.AmountPaid.String()))
	return o, nil
}

func (uc *orderUseCase) GetAllocationStatus(ctx context.Context, ownerID, orderID string) (*dto.AllocationStatus, error) {
	o, err := uc.GetByID(ctx, ownerID, orderID)
	if err != nil {
		return nil, err
	}

	status := &dto.AllocationStatus{
		OrderID:             o.ID,
		OrderNumber:         o.OrderNumber,
		Status:              o.Status,
		AllocationComplete:  o.IsFullyAllocated(),
		FulfillmentComplete: o.IsFullyFulfilled(),
	}
	for i := range o.Items {
		it := &o.Items[i]
		status.Items = append(status.Items, dto.ItemAllocationStatus{
			OrderItemID:        it.ID,
			ProductName:        it.ProductName,
			ProductSKU:         it.ProductSKU,
			InventoryItemID:    it.InventoryItemID,
			Quantity:           it.Quantity,
			Allocated:          it.AllocatedQuantity,
			Fulfilled:          it.FulfilledQuantity,
			PendingAllocation:  it.PendingAllocation(),
			PendingFulfillment: it.PendingFulfillment(),
		})
	}
	return status, nil
}

func (uc *orderUseCase) LowStockImpact(ctx context.Context, ownerID string) ([]dto.LowStockImpact, error) {
	return uc.repo.PendingLowStockImpact(ctx, ownerID)
}

func (uc *orderUseCase) Stats(ctx context.Context, ownerID string, days int) (*dto.OrderStats, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	stats, err := uc.repo.Stats(ctx, ownerID, since)
	if err != nil {
		return nil, err
	}
	stats.PeriodDays = days

	if stats.TotalOrders > 0 {
		stats.AverageOrderValue = stats.TotalRevenue.
			Div(decimal.NewFromInt(int64(stats.TotalOrders))).Round(2)
	}
	return stats, nil
}
