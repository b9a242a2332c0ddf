package dto

import "github.com/shopspring/decimal"

type ItemFilters struct {
	OwnerID      string
	ProductID    string
	LowStock     bool // current_stock <= minimum_stock
	OutOfStock   bool // current_stock <= 0
	NeedsReorder bool // current_stock <= reorder_point
	IsActive     *bool
	Search       string
	Page         int
	PageSize     int
}

type MovementFilters struct {
	OwnerID         string
	InventoryItemID string
	MovementType    string
	Page            int
	PageSize        int
}

type InventoryStats struct {
	TotalItems      int             `json:"total_items"`
	ActiveItems     int             `json:"active_items"`
	LowStockItems   int             `json:"low_stock_items"`
	OutOfStockItems int             `json:"out_of_stock_items"`
	TotalStockValue decimal.Decimal `json:"total_stock_value"`
}
