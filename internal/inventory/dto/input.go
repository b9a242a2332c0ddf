package dto

import "github.com/shopspring/decimal"

type CreateItemInput struct {
	OwnerID         string
	UserID          string
	ProductID       string
	Location        *string
	Color           *string
	Shade           *string
	Size            *string
	Batch           *string
	CostPrice       decimal.Decimal
	SellingPrice    decimal.Decimal
	InitialStock    int
	MinimumStock    int
	MaximumStock    int
	ReorderPoint    int
	ReorderQuantity int
}

// UpdateItemInput carries a partial details update; nil fields keep
// their current value. Stock is not touchable here, only through
// AdjustStock/RecordMovement so every change lands in the ledger.
type UpdateItemInput struct {
	OwnerID         string
	ItemID          string
	Location        *string
	Color           *string
	Shade           *string
	Size            *string
	Batch           *string
	CostPrice       *decimal.Decimal
	SellingPrice    *decimal.Decimal
	MinimumStock    *int
	MaximumStock    *int
	ReorderPoint    *int
	ReorderQuantity *int
	IsActive        *bool
}

type AdjustStockInput struct {
	OwnerID     string
	UserID      string
	ItemID      string
	NewQuantity int
	Reason      string
}

type RecordMovementInput struct {
	OwnerID       string
	UserID        string
	ItemID        string
	MovementType  string // "in", "out", "return"
	Quantity      int
	Reason        string
	ReferenceType string
	ReferenceID   string
	UnitCost      *decimal.Decimal
}
