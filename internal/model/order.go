package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderPacked     OrderStatus = "packed"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderReturned   OrderStatus = "returned"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPartial   PaymentStatus = "partial"
	PaymentPaid      PaymentStatus = "paid"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentCancelled PaymentStatus = "cancelled"
)

// orderTransitions is the only source of truth for lifecycle edges.
// CANCELLED is reachable until the order ships; RETURNED only after
// delivery. DELIVERED, CANCELLED and RETURNED are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderPacked, OrderShipped, OrderCancelled},
	OrderProcessing: {OrderPacked, OrderShipped, OrderCancelled},
	OrderPacked:     {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {OrderReturned},
}

// CanTransition reports whether the lifecycle edge from -> to exists.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Order is the aggregate root on the demand side.
type Order struct {
	BaseModel
	OrderNumber      string          `db:"order_number" json:"order_number"`
	CustomerID       string          `db:"customer_id" json:"customer_id"`
	OwnerID          string          `db:"owner_id" json:"owner_id"`
	Status           OrderStatus     `db:"status" json:"status"`
	PaymentStatus    PaymentStatus   `db:"payment_status" json:"payment_status"`
	Subtotal         decimal.Decimal `db:"subtotal" json:"subtotal"`
	DiscountAmount   decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	TaxAmount        decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	ShippingCost     decimal.Decimal `db:"shipping_cost" json:"shipping_cost"`
	TotalAmount      decimal.Decimal `db:"total_amount" json:"total_amount"`
	AmountPaid       decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	PaymentReference *string         `db:"payment_reference" json:"payment_reference"`
	TrackingNumber   *string         `db:"tracking_number" json:"tracking_number"`
	CourierService   *string         `db:"courier_service" json:"courier_service"`
	CustomerNotes    *string         `db:"customer_notes" json:"customer_notes"`
	InternalNotes    *string         `db:"internal_notes" json:"internal_notes"`
	ConfirmedAt      *time.Time      `db:"confirmed_at" json:"confirmed_at"`
	ShippedAt        *time.Time      `db:"shipped_at" json:"shipped_at"`
	DeliveredAt      *time.Time      `db:"delivered_at" json:"delivered_at"`
	Items            []OrderItem     `db:"-" json:"items"`
}

func (o *Order) IsPaid() bool {
	return o.AmountPaid.GreaterThanOrEqual(o.TotalAmount)
}

// OutstandingAmount is what the customer still owes, never negative.
func (o *Order) OutstandingAmount() decimal.Decimal {
	out := o.TotalAmount.Sub(o.AmountPaid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// CanBeShipped gates shipping on both lifecycle and payment state.
func (o *Order) CanBeShipped() bool {
	switch o.Status {
	case OrderConfirmed, OrderProcessing, OrderPacked:
	default:
		return false
	}
	return o.PaymentStatus == PaymentPaid || o.PaymentStatus == PaymentPartial
}

func (o *Order) CanBeCancelled() bool {
	return CanTransition(o.Status, OrderCancelled)
}

// IsFullyAllocated reports whether every item's demand is covered.
func (o *Order) IsFullyAllocated() bool {
	for i := range o.Items {
		if o.Items[i].AllocatedQuantity < o.Items[i].Quantity {
			return false
		}
	}
	return true
}

// IsFullyFulfilled reports whether every item has shipped in full.
func (o *Order) IsFullyFulfilled() bool {
	for i := range o.Items {
		if o.Items[i].FulfilledQuantity < o.Items[i].Quantity {
			return false
		}
	}
	return true
}

// OrderItem is a single demand line. The product name/SKU/description
// snapshot is captured at creation time so later catalog edits never
// rewrite historical orders. InventoryItemID is the primary sourcing
// variant, set on first allocation.
type OrderItem struct {
	ID                 string          `db:"id" json:"id"`
	OrderID            string          `db:"order_id" json:"order_id"`
	ProductID          string          `db:"product_id" json:"product_id"`
	InventoryItemID    *string         `db:"inventory_item_id" json:"inventory_item_id"`
	Quantity           int             `db:"quantity" json:"quantity"`
	UnitPrice          decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalPrice         decimal.Decimal `db:"total_price" json:"total_price"`
	AllocatedQuantity  int             `db:"allocated_quantity" json:"allocated_quantity"`
	FulfilledQuantity  int             `db:"fulfilled_quantity" json:"fulfilled_quantity"`
	RequestedColor     *string         `db:"requested_color" json:"requested_color"`
	RequestedShade     *string         `db:"requested_shade" json:"requested_shade"`
	RequestedSize      *string         `db:"requested_size" json:"requested_size"`
	ProductName        string          `db:"product_name" json:"product_name"`
	ProductSKU         string          `db:"product_sku" json:"product_sku"`
	ProductDescription *string         `db:"product_description" json:"product_description"`
	AllocatedAt        *time.Time      `db:"allocated_at" json:"allocated_at"`
	FulfilledAt        *time.Time      `db:"fulfilled_at" json:"fulfilled_at"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
}

// PendingAllocation is the demand not yet backed by stock.
func (it *OrderItem) PendingAllocation() int {
	return it.Quantity - it.AllocatedQuantity
}

// PendingFulfillment is allocated stock not yet shipped.
func (it *OrderItem) PendingFulfillment() int {
	return it.AllocatedQuantity - it.FulfilledQuantity
}
