package order

import (
	"context"

	"github.com/glambeauty/order-service/internal/model"
	"github.com/glambeauty/order-service/internal/order/dto"
)

type UseCase interface {
	Create(ctx context.Context, input *dto.CreateOrderInput) (*model.Order, error)
	GetByID(ctx context.Context, ownerID, id string) (*model.Order, error)
	List(ctx context.Context, filters *dto.OrderFilters) ([]model.Order, int, error)

	// Allocate matches outstanding demand to inventory variants. Partial
	// allocation is a valid outcome; the order advances to CONFIRMED only
	// when every item is fully covered.
	Allocate(ctx context.Context, ownerID, userID, orderID string) (*model.Order, []dto.StockReduction, error)

	// Confirm is Allocate exposed as the order-taking workflow step; the
	// reductions report exactly which variants lost stock.
	Confirm(ctx context.Context, ownerID, userID, orderID string) (*model.Order, []dto.StockReduction, error)

	Cancel(ctx context.Context, input *dto.CancelOrderInput) (*model.Order, error)
	UpdateStatus(ctx context.Context, input *dto.UpdateStatusInput) (*model.Order, error)
	FulfillItem(ctx context.Context, input *dto.FulfillItemInput) (*model.OrderItem, error)
	UpdatePayment(ctx context.Context, input *dto.UpdatePaymentInput) (*model.Order, error)

	GetAllocationStatus(ctx context.Context, ownerID, orderID string) (*dto.AllocationStatus, error)
	LowStockImpact(ctx context.Context, ownerID string) ([]dto.LowStockImpact, error)
	Stats(ctx context.Context, ownerID string, days int) (*dto.OrderStats, error)
}

// EventPublisher is the outbound broker surface; order confirmation
// events go through it.
type EventPublisher interface {
	Publish(ctx context.Context, key, value []byte) error
}
