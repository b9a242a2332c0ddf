package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock movement types. Quantity on a movement row is always the
// absolute size of the change; the type carries the direction.
const (
	MovementIn         = "in"
	MovementOut        = "out"
	MovementAdjustment = "adjustment"
	MovementReturn     = "return"
)

// Movement reference types, linking a ledger row back to whatever
// caused it.
const (
	ReferenceOrder        = "order"
	ReferenceCancellation = "cancellation"
	ReferenceRestock      = "restock"
	ReferenceAdjustment   = "adjustment"
	ReferenceReturn       = "return"
)

// InventoryItem is a physical, sellable variant (color/shade/size/batch)
// of a catalog product.
type InventoryItem struct {
	BaseModel
	ProductID       string          `db:"product_id" json:"product_id"`
	OwnerID         string          `db:"owner_id" json:"owner_id"`
	Location        *string         `db:"location" json:"location"`
	Color           *string         `db:"color" json:"color"`
	Shade           *string         `db:"shade" json:"shade"`
	Size            *string         `db:"size" json:"size"`
	Batch           *string         `db:"batch" json:"batch"`
	CostPrice       decimal.Decimal `db:"cost_price" json:"cost_price"`
	SellingPrice    decimal.Decimal `db:"selling_price" json:"selling_price"`
	CurrentStock    int             `db:"current_stock" json:"current_stock"`
	MinimumStock    int             `db:"minimum_stock" json:"minimum_stock"`
	MaximumStock    int             `db:"maximum_stock" json:"maximum_stock"`
	ReorderPoint    int             `db:"reorder_point" json:"reorder_point"`
	ReorderQuantity int             `db:"reorder_quantity" json:"reorder_quantity"`
	IsActive        bool            `db:"is_active" json:"is_active"`
	IsDiscontinued  bool            `db:"is_discontinued" json:"is_discontinued"`
	LastRestockedAt *time.Time      `db:"last_restocked_at" json:"last_restocked_at"`

	// Read-time join of the owning product's catalog fields.
	ProductName string `db:"product_name" json:"product_name"`
	ProductSKU  string `db:"product_sku" json:"product_sku"`
}

func (i *InventoryItem) IsLowStock() bool {
	return i.CurrentStock <= i.MinimumStock
}

func (i *InventoryItem) IsOutOfStock() bool {
	return i.CurrentStock <= 0
}

func (i *InventoryItem) NeedsReorder() bool {
	return i.CurrentStock <= i.ReorderPoint
}

// StockValue is the cost of the stock currently on hand.
func (i *InventoryItem) StockValue() decimal.Decimal {
	return i.CostPrice.Mul(decimal.NewFromInt(int64(i.CurrentStock)))
}

// StockMovement is one immutable row of the inventory ledger. Rows are
// appended inside the same transaction as the stock change they record,
// so replaying an item's movements reconstructs its current stock.
type StockMovement struct {
	ID              string           `db:"id" json:"id"`
	InventoryItemID string           `db:"inventory_item_id" json:"inventory_item_id"`
	MovementType    string           `db:"movement_type" json:"movement_type"`
	Quantity        int              `db:"quantity" json:"quantity"`
	PreviousStock   int              `db:"previous_stock" json:"previous_stock"`
	NewStock        int              `db:"new_stock" json:"new_stock"`
	ReferenceType   *string          `db:"reference_type" json:"reference_type"`
	ReferenceID     *string          `db:"reference_id" json:"reference_id"`
	Reason          string           `db:"reason" json:"reason"`
	UnitCost        *decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	ActorID         *string          `db:"actor_id" json:"actor_id"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
}

// SignedQuantity maps the movement back onto the stock delta it caused.
func (m *StockMovement) SignedQuantity() int {
	switch m.MovementType {
	case MovementOut:
		return -m.Quantity
	case MovementAdjustment:
		return m.NewStock - m.PreviousStock
	default:
		return m.Quantity
	}
}
