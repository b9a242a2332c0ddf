package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glambeauty/order-service/internal/apperrors"
	"github.com/glambeauty/order-service/internal/model"
	"github.com/glambeauty/order-service/internal/order/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	productLockRetries = 3
	productLockSleep   = 100 * time.Millisecond
	productLockTTL     = 5 * time.Second
)

// Allocate walks the order's outstanding demand and takes stock from
// eligible variants, preference matches first, then oldest first. Each
// take is its own conditional transaction, so running Allocate twice
// never double-books: already-covered items have no pending demand.
func (uc *orderUseCase) Allocate(ctx context.Context, ownerID, userID, orderID string) (*model.Order, []dto.StockReduction, error) {
	o, err := uc.GetByID(ctx, ownerID, orderID)
	if err != nil {
		return nil, nil, err
	}
	if o.Status != model.OrderPending {
		return nil, nil, fmt.Errorf("order %s in %s cannot be allocated: %w",
			o.OrderNumber, o.Status, apperrors.ErrInvalidTransition)
	}

	reductions := []dto.StockReduction{}
	for i := range o.Items {
		item := &o.Items[i]
		if item.PendingAllocation() <= 0 {
			continue
		}
		itemReductions, err := uc.allocateItem(ctx, o, item, userID)
		if err != nil {
			return nil, nil, err
		}
		reductions = append(reductions, itemReductions...)
	}

	// Re-read: the takes committed individually and a concurrent
	// allocator may have covered items we skipped.
	o, err = uc.GetByID(ctx, ownerID, orderID)
	if err != nil {
		return nil, nil, err
	}

	if o.Status == model.OrderPending && o.IsFullyAllocated() {
		now := time.Now()
		o.Status = model.OrderConfirmed
		o.ConfirmedAt = &now
		o.UpdatedAt = now
		if err := uc.repo.UpdateStatus(ctx, o); err != nil {
			return nil, nil, err
		}
		uc.publishConfirmed(ctx, o)
	}

	uc.logger.Info("order allocation pass finished",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("status", string(o.Status)),
		zap.Int("takes", len(reductions)),
		zap.Bool("fully_allocated", o.IsFullyAllocated()))
	return o, reductions, nil
}

// Confirm is the order-taking entry point; the work is Allocate's.
func (uc *orderUseCase) Confirm(ctx context.Context, ownerID, userID, orderID string) (*model.Order, []dto.StockReduction, error) {
	return uc.Allocate(ctx, ownerID, userID, orderID)
}

func (uc *orderUseCase) allocateItem(ctx context.Context, o *model.Order, item *model.OrderItem, userID string) ([]dto.StockReduction, error) {
	unlock, err := uc.lockProduct(ctx, o.OwnerID, item.ProductID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	candidates, err := uc.inventory.FindAllocatable(ctx, o.OwnerID, item.ProductID)
	if err != nil {
		return nil, err
	}
	candidates = rankCandidates(candidates, item)

	reductions := []dto.StockReduction{}
	remaining := item.PendingAllocation()
	for i := range candidates {
		if remaining <= 0 {
			break
		}
		cand := &candidates[i]

		take := min(remaining, cand.CurrentStock)
		if take <= 0 {
			continue
		}

		red, err := uc.takeFrom(ctx, o, item, cand, take, userID)
		if errors.Is(err, apperrors.ErrConflict) {
			// Someone else covered this item's demand between our read
			// and the take; stop, the final re-read settles it.
			uc.logger.Warn("allocation counter conflict, stopping item",
				zap.String("order_item_id", item.ID))
			break
		}
		if err != nil {
			return nil, err
		}
		if red == nil {
			// The conditional decrement missed: the variant drained
			// under us. Retry once against its fresh stock, then move
			// to the next candidate.
			fresh, err := uc.inventory.GetByID(ctx, o.OwnerID, cand.ID)
			if err != nil {
				return nil, err
			}
			if fresh == nil || fresh.CurrentStock <= 0 {
				continue
			}
			take = min(remaining, fresh.CurrentStock)
			red, err = uc.takeFrom(ctx, o, item, cand, take, userID)
			if err != nil || red == nil {
				if errors.Is(err, apperrors.ErrConflict) {
					break
				}
				if err != nil {
					return nil, err
				}
				continue
			}
		}

		red.ProductName = cand.ProductName
		red.ProductSKU = cand.ProductSKU
		reductions = append(reductions, *red)
		remaining -= red.Quantity
		item.AllocatedQuantity += red.Quantity
	}

	return reductions, nil
}

func (uc *orderUseCase) takeFrom(ctx context.Context, o *model.Order, item *model.OrderItem, cand *model.InventoryItem, take int, userID string) (*dto.StockReduction, error) {
	return uc.repo.AllocateItemStock(ctx, &dto.ItemAllocation{
		OwnerID:         o.OwnerID,
		UserID:          userID,
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		OrderItemID:     item.ID,
		InventoryItemID: cand.ID,
		Quantity:        take,
	})
}

// rankCandidates puts variants matching every requested attribute ahead
// of the rest, keeping the oldest-first order inside each group.
func rankCandidates(candidates []model.InventoryItem, item *model.OrderItem) []model.InventoryItem {
	if item.RequestedColor == nil && item.RequestedShade == nil && item.RequestedSize == nil {
		return candidates
	}
	matched := make([]model.InventoryItem, 0, len(candidates))
	rest := make([]model.InventoryItem, 0, len(candidates))
	for _, cand := range candidates {
		if matchesPreferences(&cand, item) {
			matched = append(matched, cand)
		} else {
			rest = append(rest, cand)
		}
	}
	return append(matched, rest...)
}

func matchesPreferences(cand *model.InventoryItem, item *model.OrderItem) bool {
	return attrMatches(item.RequestedColor, cand.Color) &&
		attrMatches(item.RequestedShade, cand.Shade) &&
		attrMatches(item.RequestedSize, cand.Size)
}

func attrMatches(requested, actual *string) bool {
	if requested == nil {
		return true
	}
	return actual != nil && strings.EqualFold(*requested, *actual)
}

// lockProduct serializes allocation per product variant family. With no
// cache configured allocation still works; the conditional decrement
// keeps stock non-negative either way.
func (uc *orderUseCase) lockProduct(ctx context.Context, ownerID, productID string) (func(), error) {
	if uc.cache == nil {
		return func() {}, nil
	}

	key := fmt.Sprintf("lock:stock:product:%s:%s", ownerID, productID)
	value := uuid.New().String()

	for attempt := 0; attempt < productLockRetries; attempt++ {
		ok, err := uc.cache.AcquireLock(ctx, key, value, productLockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire product lock: %w", err)
		}
		if ok {
			return func() {
				if err := uc.cache.ReleaseLock(context.Background(), key, value); err != nil {
					uc.logger.Warn("release product lock failed",
						zap.String("key", key), zap.Error(err))
				}
			}, nil
		}
		time.Sleep(productLockSleep)
	}
	return nil, apperrors.ErrLocked
}

type eventEnvelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type orderConfirmedPayload struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	OwnerID     string          `json:"owner_id"`
	CustomerID  string          `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ConfirmedAt *time.Time      `json:"confirmed_at"`
}

// publishConfirmed emits OrderConfirmed to the broker; a broker outage
// never fails the confirmation itself.
func (uc *orderUseCase) publishConfirmed(ctx context.Context, o *model.Order) {
	if uc.publisher == nil {
		return
	}

	payload, err := json.Marshal(orderConfirmedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		OwnerID:     o.OwnerID,
		CustomerID:  o.CustomerID,
		TotalAmount: o.TotalAmount,
		ConfirmedAt: o.ConfirmedAt,
	})
	if err != nil {
		uc.logger.Error("marshal OrderConfirmed payload", zap.Error(err))
		return
	}
	value, err := json.Marshal(eventEnvelope{
		EventID:   uuid.New().String(),
		EventType: "OrderConfirmed",
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		uc.logger.Error("marshal OrderConfirmed envelope", zap.Error(err))
		return
	}

	if err := uc.publisher.Publish(ctx, []byte(o.ID), value); err != nil {
		uc.logger.Error("publish OrderConfirmed",
			zap.String("order_id", o.ID), zap.Error(err))
	}
}
