package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glambeauty/order-service/internal/apperrors"
	"github.com/glambeauty/order-service/internal/inventory"
	"github.com/glambeauty/order-service/internal/inventory/dto"
	"github.com/glambeauty/order-service/internal/model"
	"github.com/glambeauty/order-service/internal/platform/cache"
	"github.com/glambeauty/order-service/internal/product"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// stockWriteRetries bounds re-reads when the guarded stock write loses
// to a concurrent allocation or cancellation.
const stockWriteRetries = 3

type inventoryUseCase struct {
	repo     inventory.Repository
	products product.Repository
	cache    *cache.RedisClient
	logger   *zap.Logger
}

func NewInventoryUseCase(repo inventory.Repository, products product.Repository, cache *cache.RedisClient, log *zap.Logger) inventory.UseCase {
	return &inventoryUseCase{
		repo:     repo,
		products: products,
		cache:    cache,
		logger:   log,
	}
}

func (uc *inventoryUseCase) Create(ctx context.Context, input *dto.CreateItemInput) (*model.InventoryItem, error) {
	// The referenced catalog product must exist and belong to the
	// acting owner.
	p, err := uc.products.FindByID(ctx, input.OwnerID, input.ProductID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("product %s: %w", input.ProductID, apperrors.ErrNotFound)
	}

	if input.InitialStock < 0 {
		return nil, fmt.Errorf("initial stock must not be negative: %w", apperrors.ErrInsufficientStock)
	}

	now := time.Now()
	item := &model.InventoryItem{
		BaseModel:       model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		ProductID:       input.ProductID,
		OwnerID:         input.OwnerID,
		Location:        input.Location,
		Color:           input.Color,
		Shade:           input.Shade,
		Size:            input.Size,
		Batch:           input.Batch,
		CostPrice:       input.CostPrice,
		SellingPrice:    input.SellingPrice,
		CurrentStock:    input.InitialStock,
		MinimumStock:    input.MinimumStock,
		MaximumStock:    input.MaximumStock,
		ReorderPoint:    input.ReorderPoint,
		ReorderQuantity: input.ReorderQuantity,
		IsActive:        true,
	}
	if input.InitialStock > 0 {
		item.LastRestockedAt = &now
	}

	var initial *model.StockMovement
	if input.InitialStock > 0 {
		unitCost := input.CostPrice
		refType := model.ReferenceRestock
		var actor *string
		if input.UserID != "" {
			actor = &input.UserID
		}
		initial = &model.StockMovement{
			ID:              uuid.New().String(),
			InventoryItemID: item.ID,
			MovementType:    model.MovementIn,
			Quantity:        input.InitialStock,
			PreviousStock:   0,
			NewStock:        input.InitialStock,
			ReferenceType:   &refType,
			Reason:          "Initial stock",
			UnitCost:        &unitCost,
			ActorID:         actor,
			CreatedAt:       now,
		}
	}

	if err := uc.repo.Create(ctx, item, initial); err != nil {
		return nil, err
	}

	return uc.repo.GetByID(ctx, input.OwnerID, item.ID)
}

func (uc *inventoryUseCase) GetByID(ctx context.Context, ownerID, id string) (*model.InventoryItem, error) {
	item, err := uc.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperrors.ErrNotFound
	}
	return item, nil
}

func (uc *inventoryUseCase) List(ctx context.Context, filters *dto.ItemFilters) ([]model.InventoryItem, int, error) {
	return uc.repo.FindAll(ctx, filters)
}

// Update edits item details; stock is untouchable here so every stock
// change keeps going through the ledger.
func (uc *inventoryUseCase) Update(ctx context.Context, input *dto.UpdateItemInput) (*model.InventoryItem, error) {
	item, err := uc.repo.GetByID(ctx, input.OwnerID, input.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperrors.ErrNotFound
	}

	if input.Location != nil {
		item.Location = input.Location
	}
	if input.Color != nil {
		item.Color = input.Color
	}
	if input.Shade != nil {
		item.Shade = input.Shade
	}
	if input.Size != nil {
		item.Size = input.Size
	}
	if input.Batch != nil {
		item.Batch = input.Batch
	}
	if input.CostPrice != nil {
		item.CostPrice = *input.CostPrice
	}
	if input.SellingPrice != nil {
		item.SellingPrice = *input.SellingPrice
	}
	if input.MinimumStock != nil {
		item.MinimumStock = *input.MinimumStock
	}
	if input.MaximumStock != nil {
		item.MaximumStock = *input.MaximumStock
	}
	if input.ReorderPoint != nil {
		item.ReorderPoint = *input.ReorderPoint
	}
	if input.ReorderQuantity != nil {
		item.ReorderQuantity = *input.ReorderQuantity
	}
	if input.IsActive != nil {
		item.IsActive = *input.IsActive
	}
	item.UpdatedAt = time.Now()

	if err := uc.repo.UpdateDetails(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Delete keeps referential and audit integrity: an item that any order
// item has ever pointed at is only deactivated; an unreferenced item is
// physically removed together with its ledger rows.
func (uc *inventoryUseCase) Delete(ctx context.Context, ownerID, id string) error {
	referenced, err := uc.repo.HasOrderReferences(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return uc.Deactivate(ctx, ownerID, id)
	}
	return uc.Purge(ctx, ownerID, id)
}

func (uc *inventoryUseCase) Deactivate(ctx context.Context, ownerID, id string) error {
	return uc.repo.Deactivate(ctx, ownerID, id)
}

func (uc *inventoryUseCase) Purge(ctx context.Context, ownerID, id string) error {
	return uc.repo.PurgeWithMovements(ctx, ownerID, id)
}

func (uc *inventoryUseCase) AdjustStock(ctx context.Context, input *dto.AdjustStockInput) (*model.InventoryItem, error) {
	if input.NewQuantity < 0 {
		return nil, fmt.Errorf("stock cannot go below zero: %w", apperrors.ErrInsufficientStock)
	}

	unlock, err := uc.lockItem(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// An allocation or cancellation can commit between our read and the
	// guarded write; on a miss, recompute from a fresh read.
	for attempt := 0; attempt < stockWriteRetries; attempt++ {
		item, err := uc.repo.GetByID(ctx, input.OwnerID, input.ItemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, apperrors.ErrNotFound
		}

		now := time.Now()
		previous := item.CurrentStock
		delta := input.NewQuantity - previous

		item.CurrentStock = input.NewQuantity
		item.UpdatedAt = now
		if delta > 0 {
			item.LastRestockedAt = &now
		}

		movementType := model.MovementAdjustment
		if delta > 0 {
			movementType = model.MovementIn
		} else if delta < 0 {
			movementType = model.MovementOut
		}

		quantity := delta
		if quantity < 0 {
			quantity = -quantity
		}

		refType := model.ReferenceAdjustment
		var actor *string
		if input.UserID != "" {
			actor = &input.UserID
		}
		reason := input.Reason
		if reason == "" {
			reason = "Stock adjustment"
		}

		movement := &model.StockMovement{
			ID:              uuid.New().String(),
			InventoryItemID: item.ID,
			MovementType:    movementType,
			Quantity:        quantity,
			PreviousStock:   previous,
			NewStock:        item.CurrentStock,
			ReferenceType:   &refType,
			Reason:          reason,
			ActorID:         actor,
			CreatedAt:       now,
		}

		err = uc.repo.AdjustStockWithMovement(ctx, item, movement)
		if errors.Is(err, apperrors.ErrConflict) {
			uc.logger.Warn("stock adjustment lost a concurrent write, re-reading",
				zap.String("item_id", input.ItemID), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}
		return item, nil
	}

	return nil, fmt.Errorf("adjust stock for item %s: %w", input.ItemID, apperrors.ErrConflict)
}

func (uc *inventoryUseCase) RecordMovement(ctx context.Context, input *dto.RecordMovementInput) (*model.StockMovement, error) {
	switch input.MovementType {
	case model.MovementIn, model.MovementOut, model.MovementReturn:
	default:
		return nil, fmt.Errorf("movement type %q: %w", input.MovementType, apperrors.ErrInvalidTransition)
	}
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("movement quantity must be positive: %w", apperrors.ErrInvalidTransition)
	}

	unlock, err := uc.lockItem(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for attempt := 0; attempt < stockWriteRetries; attempt++ {
		item, err := uc.repo.GetByID(ctx, input.OwnerID, input.ItemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, apperrors.ErrNotFound
		}

		now := time.Now()
		previous := item.CurrentStock
		newStock := previous
		switch input.MovementType {
		case model.MovementOut:
			newStock -= input.Quantity
		default: // "in" and "return" both add stock back
			newStock += input.Quantity
		}
		if newStock < 0 {
			return nil, fmt.Errorf("stock %d, requested %d: %w", previous, input.Quantity, apperrors.ErrInsufficientStock)
		}

		item.CurrentStock = newStock
		item.UpdatedAt = now
		if newStock > previous {
			item.LastRestockedAt = &now
		}

		var refType, refID *string
		if input.ReferenceType != "" {
			refType = &input.ReferenceType
		}
		if input.ReferenceID != "" {
			refID = &input.ReferenceID
		}
		var actor *string
		if input.UserID != "" {
			actor = &input.UserID
		}

		movement := &model.StockMovement{
			ID:              uuid.New().String(),
			InventoryItemID: item.ID,
			MovementType:    input.MovementType,
			Quantity:        input.Quantity,
			PreviousStock:   previous,
			NewStock:        newStock,
			ReferenceType:   refType,
			ReferenceID:     refID,
			Reason:          input.Reason,
			UnitCost:        input.UnitCost,
			ActorID:         actor,
			CreatedAt:       now,
		}

		err = uc.repo.AdjustStockWithMovement(ctx, item, movement)
		if errors.Is(err, apperrors.ErrConflict) {
			uc.logger.Warn("movement lost a concurrent write, re-reading",
				zap.String("item_id", input.ItemID), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}
		return movement, nil
	}

	return nil, fmt.Errorf("record movement for item %s: %w", input.ItemID, apperrors.ErrConflict)
}

func (uc *inventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error) {
	return uc.repo.ListMovements(ctx, filters)
}

func (uc *inventoryUseCase) LowStock(ctx context.Context, ownerID string) ([]model.InventoryItem, error) {
	return uc.thresholdQuery(ctx, ownerID, &dto.ItemFilters{LowStock: true})
}

func (uc *inventoryUseCase) OutOfStock(ctx context.Context, ownerID string) ([]model.InventoryItem, error) {
	return uc.thresholdQuery(ctx, ownerID, &dto.ItemFilters{OutOfStock: true})
}

func (uc *inventoryUseCase) ReorderSuggestions(ctx context.Context, ownerID string) ([]model.InventoryItem, error) {
	return uc.thresholdQuery(ctx, ownerID, &dto.ItemFilters{NeedsReorder: true})
}

func (uc *inventoryUseCase) thresholdQuery(ctx context.Context, ownerID string, f *dto.ItemFilters) ([]model.InventoryItem, error) {
	active := true
	f.OwnerID = ownerID
	f.IsActive = &active
	items, _, err := uc.repo.FindAll(ctx, f)
	return items, err
}

func (uc *inventoryUseCase) Stats(ctx context.Context, ownerID string) (*dto.InventoryStats, error) {
	return uc.repo.Stats(ctx, ownerID)
}

// lockItem serializes stock mutation per item across processes. The
// conditional SQL update is the hard guarantee; the lock keeps
// concurrent writers from burning retries against each other.
func (uc *inventoryUseCase) lockItem(ctx context.Context, itemID string) (func(), error) {
	if uc.cache == nil {
		return func() {}, nil
	}

	lockKey := "lock:stock:item:" + itemID
	lockValue := uuid.New().String()

	acquired := false
	for i := 0; i < 3; i++ {
		ok, err := uc.cache.AcquireLock(ctx, lockKey, lockValue, 5*time.Second)
		if err != nil {
			uc.logger.Error("failed to acquire stock lock", zap.Error(err))
		}
		if ok {
			acquired = true
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !acquired {
		return nil, apperrors.ErrLocked
	}

	return func() {
		if err := uc.cache.ReleaseLock(context.Background(), lockKey, lockValue); err != nil {
			uc.logger.Error("failed to release stock lock", zap.Error(err))
		}
	}, nil
}
