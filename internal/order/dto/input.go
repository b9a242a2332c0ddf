package dto

import (
	"github.com/glambeauty/order-service/internal/model"
	"github.com/shopspring/decimal"
)

type CreateOrderInput struct {
	OwnerID        string
	UserID         string
	CustomerID     string
	Items          []CreateOrderItemInput
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingCost   decimal.Decimal
	CustomerNotes  string
}

type CreateOrderItemInput struct {
	ProductID      string
	Quantity       int
	UnitPrice      *decimal.Decimal // nil means the product's base price
	RequestedColor *string
	RequestedShade *string
	RequestedSize  *string
}

type CancelOrderInput struct {
	OwnerID string
	UserID  string
	OrderID string
	Reason  string
}

type UpdateStatusInput struct {
	OwnerID        string
	UserID         string
	OrderID        string
	Status         model.OrderStatus
	TrackingNumber string
	CourierService string
}

type FulfillItemInput struct {
	OwnerID  string
	UserID   string
	OrderID  string
	ItemID   string
	Quantity int
}

type UpdatePaymentInput struct {
	OwnerID          string
	OrderID          string
	PaymentStatus    model.PaymentStatus
	AmountPaid       *decimal.Decimal
	PaymentReference string
}
