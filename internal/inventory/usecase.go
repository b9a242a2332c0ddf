package inventory

import (
	"context"

	"github.com/glambeauty/order-service/internal/inventory/dto"
	"github.com/glambeauty/order-service/internal/model"
)

type UseCase interface {
	Create(ctx context.Context, input *dto.CreateItemInput) (*model.InventoryItem, error)
	GetByID(ctx context.Context, ownerID, id string) (*model.InventoryItem, error)
	List(ctx context.Context, filters *dto.ItemFilters) ([]model.InventoryItem, int, error)
	Update(ctx context.Context, input *dto.UpdateItemInput) (*model.InventoryItem, error)

	// Delete dispatches to Deactivate when the item is referenced by any
	// order item, otherwise to Purge.
	Delete(ctx context.Context, ownerID, id string) error
	Deactivate(ctx context.Context, ownerID, id string) error
	Purge(ctx context.Context, ownerID, id string) error

	AdjustStock(ctx context.Context, input *dto.AdjustStockInput) (*model.InventoryItem, error)
	RecordMovement(ctx context.Context, input *dto.RecordMovementInput) (*model.StockMovement, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)

	LowStock(ctx context.Context, ownerID string) ([]model.InventoryItem, error)
	OutOfStock(ctx context.Context, ownerID string) ([]model.InventoryItem, error)
	ReorderSuggestions(ctx context.Context, ownerID string) ([]model.InventoryItem, error)
	Stats(ctx context.Context, ownerID string) (*dto.InventoryStats, error)
}
