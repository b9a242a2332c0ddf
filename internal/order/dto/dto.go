package dto

import (
	"github.com/glambeauty/order-service/internal/model"
	"github.com/shopspring/decimal"
)

type OrderFilters struct {
	OwnerID       string
	CustomerID    string
	Status        model.OrderStatus
	PaymentStatus model.PaymentStatus
	Search        string // matches order_number
	Page          int
	PageSize      int
}

// ItemAllocation is one conditional stock take: decrement the variant,
// append the ledger row, bump the order item's counter, all in one
// transaction.
type ItemAllocation struct {
	OwnerID         string
	UserID          string
	OrderID         string
	OrderNumber     string
	OrderItemID     string
	InventoryItemID string
	Quantity        int
}

// StockReduction reports one successful allocation take, identifying
// the concrete variant actually drawn from.
type StockReduction struct {
	InventoryItemID string `json:"inventory_item_id"`
	ProductName     string `json:"product_name"`
	ProductSKU      string `json:"product_sku"`
	Quantity        int    `json:"quantity"`
	PreviousStock   int    `json:"previous_stock"`
	NewStock        int    `json:"new_stock"`
}

// StockRestore is one increment applied while cancelling, derived from
// the order's "out" ledger rows so spilled allocations return to the
// exact variants they came from.
type StockRestore struct {
	InventoryItemID string `db:"inventory_item_id"`
	Quantity        int    `db:"quantity"`
}

type ItemAllocationStatus struct {
	OrderItemID        string  `json:"order_item_id"`
	ProductName        string  `json:"product_name"`
	ProductSKU         string  `json:"product_sku"`
	InventoryItemID    *string `json:"inventory_item_id"`
	Quantity           int     `json:"quantity"`
	Allocated          int     `json:"allocated"`
	Fulfilled          int     `json:"fulfilled"`
	PendingAllocation  int     `json:"pending_allocation"`
	PendingFulfillment int     `json:"pending_fulfillment"`
}

type AllocationStatus struct {
	OrderID             string                 `json:"order_id"`
	OrderNumber         string                 `json:"order_number"`
	Status              model.OrderStatus      `json:"status"`
	Items               []ItemAllocationStatus `json:"items"`
	AllocationComplete  bool                   `json:"allocation_complete"`
	FulfillmentComplete bool                   `json:"fulfillment_complete"`
}

type OrderStats struct {
	PeriodDays        int             `json:"period_days"`
	TotalOrders       int             `json:"total_orders"`
	PendingOrders     int             `json:"pending_orders"`
	ConfirmedOrders   int             `json:"confirmed_orders"`
	ShippedOrders     int             `json:"shipped_orders"`
	DeliveredOrders   int             `json:"delivered_orders"`
	CancelledOrders   int             `json:"cancelled_orders"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	PendingRevenue    decimal.Decimal `json:"pending_revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

type LowStockImpactItem struct {
	ProductName     string `json:"product_name"`
	ProductSKU      string `json:"product_sku"`
	AvailableStock  int    `json:"available_stock"`
	MinimumStock    int    `json:"minimum_stock"`
	OrderedQuantity int    `json:"ordered_quantity"`
	CanFulfill      bool   `json:"can_fulfill"`
}

type LowStockImpact struct {
	OrderID     string               `json:"order_id"`
	OrderNumber string               `json:"order_number"`
	CustomerID  string               `json:"customer_id"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	Items       []LowStockImpactItem `json:"low_stock_items"`
}
