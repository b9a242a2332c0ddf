package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to OrderStatus }{
		{OrderPending, OrderConfirmed},
		{OrderPending, OrderCancelled},
		{OrderConfirmed, OrderProcessing},
		{OrderConfirmed, OrderShipped},
		{OrderConfirmed, OrderCancelled},
		{OrderProcessing, OrderPacked},
		{OrderPacked, OrderShipped},
		{OrderPacked, OrderCancelled},
		{OrderShipped, OrderDelivered},
		{OrderDelivered, OrderReturned},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	forbidden := []struct{ from, to OrderStatus }{
		{OrderPending, OrderShipped},
		{OrderPending, OrderDelivered},
		{OrderShipped, OrderCancelled},
		{OrderShipped, OrderReturned},
		{OrderDelivered, OrderCancelled},
		{OrderCancelled, OrderPending},
		{OrderCancelled, OrderConfirmed},
		{OrderReturned, OrderPending},
		{OrderConfirmed, OrderReturned},
	}
	for _, tc := range forbidden {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be forbidden", tc.from, tc.to)
		}
	}
}

func TestCanBeShippedRequiresPayment(t *testing.T) {
	o := &Order{Status: OrderConfirmed, PaymentStatus: PaymentPending}
	if o.CanBeShipped() {
		t.Fatal("unpaid confirmed order must not be shippable")
	}

	o.PaymentStatus = PaymentPartial
	if !o.CanBeShipped() {
		t.Fatal("partially paid confirmed order must be shippable")
	}

	o.PaymentStatus = PaymentPaid
	o.Status = OrderPending
	if o.CanBeShipped() {
		t.Fatal("pending order must not be shippable even when paid")
	}

	o.Status = OrderPacked
	if !o.CanBeShipped() {
		t.Fatal("paid packed order must be shippable")
	}
}

func TestOutstandingAmountNeverNegative(t *testing.T) {
	o := &Order{
		TotalAmount: decimal.NewFromInt(100),
		AmountPaid:  decimal.NewFromInt(150),
	}
	if !o.OutstandingAmount().IsZero() {
		t.Fatalf("overpaid order outstanding = %s, want 0", o.OutstandingAmount())
	}
	if !o.IsPaid() {
		t.Fatal("overpaid order must report paid")
	}

	o.AmountPaid = decimal.NewFromInt(40)
	if got := o.OutstandingAmount(); !got.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("outstanding = %s, want 60", got)
	}
}

func TestAllocationAndFulfillmentCompleteness(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{Quantity: 3, AllocatedQuantity: 3, FulfilledQuantity: 3},
		{Quantity: 5, AllocatedQuantity: 2, FulfilledQuantity: 0},
	}}
	if o.IsFullyAllocated() {
		t.Fatal("order with pending demand reported fully allocated")
	}
	if o.IsFullyFulfilled() {
		t.Fatal("order with pending fulfillment reported fully fulfilled")
	}

	o.Items[1].AllocatedQuantity = 5
	if !o.IsFullyAllocated() {
		t.Fatal("covered order not reported fully allocated")
	}

	o.Items[1].FulfilledQuantity = 5
	if !o.IsFullyFulfilled() {
		t.Fatal("shipped-in-full order not reported fully fulfilled")
	}

	item := &o.Items[1]
	if item.PendingAllocation() != 0 || item.PendingFulfillment() != 0 {
		t.Fatalf("pending = %d/%d, want 0/0", item.PendingAllocation(), item.PendingFulfillment())
	}
}
