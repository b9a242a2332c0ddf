package inventory

import (
	"context"

	"github.com/glambeauty/order-service/internal/inventory/dto"
	"github.com/glambeauty/order-service/internal/model"
)

type Repository interface {
	// Items
	Create(ctx context.Context, item *model.InventoryItem, initial *model.StockMovement) error
	GetByID(ctx context.Context, ownerID, id string) (*model.InventoryItem, error)
	FindAll(ctx context.Context, filters *dto.ItemFilters) ([]model.InventoryItem, int, error)
	UpdateDetails(ctx context.Context, item *model.InventoryItem) error

	// Allocation candidates: active, not discontinued, in-stock variants
	// of one product, oldest first.
	FindAllocatable(ctx context.Context, ownerID, productID string) ([]model.InventoryItem, error)

	// Deletion
	HasOrderReferences(ctx context.Context, itemID string) (bool, error)
	Deactivate(ctx context.Context, ownerID, id string) error
	PurgeWithMovements(ctx context.Context, ownerID, id string) error

	// Stock + ledger, one transaction per call. The write is guarded on
	// the previous stock the movement records; a concurrent commit in
	// between surfaces as ErrConflict.
	AdjustStockWithMovement(ctx context.Context, item *model.InventoryItem, movement *model.StockMovement) error

	// Ledger queries
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)

	Stats(ctx context.Context, ownerID string) (*dto.InventoryStats, error)
}
