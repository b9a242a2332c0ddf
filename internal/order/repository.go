package order

import (
	"context"
	"time"

	"github.com/glambeauty/order-service/internal/model"
	"github.com/glambeauty/order-service/internal/order/dto"
)

type Repository interface {
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, ownerID, id string) (*model.Order, error)
	FindAll(ctx context.Context, filters *dto.OrderFilters) ([]model.Order, int, error)

	UpdateStatus(ctx context.Context, o *model.Order) error
	UpdatePayment(ctx context.Context, o *model.Order) error

	// AllocateItemStock takes stock from one variant for one order item.
	// The take re-checks the order is still PENDING inside its own
	// transaction and returns ErrConflict otherwise. The decrement is
	// conditional on sufficient stock; a nil result with nil error means
	// the take missed and the caller should move on.
	AllocateItemStock(ctx context.Context, alloc *dto.ItemAllocation) (*dto.StockReduction, error)

	// CancelWithRestore flips the order to CANCELLED and puts back every
	// quantity the order's "out" ledger rows took, with matching "in"
	// rows, atomically. The restore set is derived inside the same
	// transaction and returned.
	CancelWithRestore(ctx context.Context, o *model.Order, reason, actorID string) ([]dto.StockRestore, error)

	// FulfillItem persists the item's counters; when o is non-nil the
	// order's auto-advance to SHIPPED commits in the same transaction.
	FulfillItem(ctx context.Context, item *model.OrderItem, o *model.Order) error

	PendingLowStockImpact(ctx context.Context, ownerID string) ([]dto.LowStockImpact, error)
	Stats(ctx context.Context, ownerID string, since time.Time) (*dto.OrderStats, error)
}
