package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/glambeauty/order-service/internal/apperrors"
	"github.com/glambeauty/order-service/internal/inventory"
	inventorydto "github.com/glambeauty/order-service/internal/inventory/dto"
	"github.com/glambeauty/order-service/internal/model"
	"github.com/glambeauty/order-service/internal/order"
	"github.com/glambeauty/order-service/internal/order/dto"
	"github.com/glambeauty/order-service/internal/product"
	productdto "github.com/glambeauty/order-service/internal/product/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// memState is shared in-memory storage backing the repository fakes, so
// an allocation through the order repo is visible to the inventory repo
// the same way a shared database makes it.
type memState struct {
	products  map[string]*model.Product
	items     map[string]*model.InventoryItem
	movements []model.StockMovement
	orders    map[string]*model.Order
}

func newMemState() *memState {
	return &memState{
		products: map[string]*model.Product{},
		items:    map[string]*model.InventoryItem{},
		orders:   map[string]*model.Order{},
	}
}

func copyOrder(o *model.Order) *model.Order {
	dup := *o
	dup.Items = make([]model.OrderItem, len(o.Items))
	copy(dup.Items, o.Items)
	return &dup
}

type fakeOrderRepo struct {
	s *memState

	// beforeAllocate runs at the top of AllocateItemStock, standing in
	// for work another writer commits between the caller's order read
	// and the take's own transaction.
	beforeAllocate func()
}

func (r *fakeOrderRepo) Create(_ context.Context, o *model.Order) error {
	r.s.orders[o.ID] = copyOrder(o)
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, ownerID, id string) (*model.Order, error) {
	o, ok := r.s.orders[id]
	if !ok || o.OwnerID != ownerID {
		return nil, nil
	}
	return copyOrder(o), nil
}

func (r *fakeOrderRepo) FindAll(_ context.Context, f *dto.OrderFilters) ([]model.Order, int, error) {
	var out []model.Order
	for _, o := range r.s.orders {
		if o.OwnerID != f.OwnerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *copyOrder(o))
	}
	return out, len(out), nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, o *model.Order) error {
	stored, ok := r.s.orders[o.ID]
	if !ok || stored.OwnerID != o.OwnerID {
		return apperrors.ErrNotFound
	}
	stored.Status = o.Status
	stored.TrackingNumber = o.TrackingNumber
	stored.CourierService = o.CourierService
	stored.ConfirmedAt = o.ConfirmedAt
	stored.ShippedAt = o.ShippedAt
	stored.DeliveredAt = o.DeliveredAt
	stored.UpdatedAt = o.UpdatedAt
	return nil
}

func (r *fakeOrderRepo) UpdatePayment(_ context.Context, o *model.Order) error {
	stored, ok := r.s.orders[o.ID]
	if !ok || stored.OwnerID != o.OwnerID {
		return apperrors.ErrNotFound
	}
	stored.PaymentStatus = o.PaymentStatus
	stored.AmountPaid = o.AmountPaid
	stored.PaymentReference = o.PaymentReference
	stored.UpdatedAt = o.UpdatedAt
	return nil
}

func (r *fakeOrderRepo) AllocateItemStock(_ context.Context, a *dto.ItemAllocation) (*dto.StockReduction, error) {
	if r.beforeAllocate != nil {
		r.beforeAllocate()
	}

	o, ok := r.s.orders[a.OrderID]
	if !ok || o.OwnerID != a.OwnerID {
		return nil, apperrors.ErrNotFound
	}
	if o.Status != model.OrderPending {
		return nil, apperrors.ErrConflict
	}

	item, ok := r.s.items[a.InventoryItemID]
	if !ok || item.OwnerID != a.OwnerID || item.CurrentStock < a.Quantity {
		return nil, nil
	}

	var oi *model.OrderItem
	for i := range o.Items {
		if o.Items[i].ID == a.OrderItemID {
			oi = &o.Items[i]
			break
		}
	}
	if oi == nil || oi.AllocatedQuantity+a.Quantity > oi.Quantity {
		return nil, apperrors.ErrConflict
	}

	previous := item.CurrentStock
	item.CurrentStock -= a.Quantity

	refType := model.ReferenceOrder
	refID := a.OrderID
	r.s.movements = append(r.s.movements, model.StockMovement{
		ID:              uuid.New().String(),
		InventoryItemID: a.InventoryItemID,
		MovementType:    model.MovementOut,
		Quantity:        a.Quantity,
		PreviousStock:   previous,
		NewStock:        item.CurrentStock,
		ReferenceType:   &refType,
		ReferenceID:     &refID,
		Reason:          "Order allocation: " + a.OrderNumber,
		CreatedAt:       time.Now(),
	})

	oi.AllocatedQuantity += a.Quantity
	if oi.InventoryItemID == nil {
		id := a.InventoryItemID
		oi.InventoryItemID = &id
	}
	if oi.AllocatedAt == nil {
		now := time.Now()
		oi.AllocatedAt = &now
	}

	return &dto.StockReduction{
		InventoryItemID: a.InventoryItemID,
		Quantity:        a.Quantity,
		PreviousStock:   previous,
		NewStock:        item.CurrentStock,
	}, nil
}

func (r *fakeOrderRepo) CancelWithRestore(_ context.Context, o *model.Order, reason, actorID string) ([]dto.StockRestore, error) {
	stored, ok := r.s.orders[o.ID]
	if !ok || stored.OwnerID != o.OwnerID {
		return nil, apperrors.ErrNotFound
	}
	switch stored.Status {
	case model.OrderPending, model.OrderConfirmed, model.OrderProcessing, model.OrderPacked:
	default:
		return nil, apperrors.ErrInvalidTransition
	}

	stored.Status = model.OrderCancelled
	stored.InternalNotes = o.InternalNotes
	stored.UpdatedAt = o.UpdatedAt

	// Like the SQL path, the restore set comes from the ledger inside
	// the cancel itself, never from the caller's earlier reads.
	totals := map[string]int{}
	var ordered []string
	for _, m := range r.s.movements {
		if m.MovementType != model.MovementOut ||
			m.ReferenceType == nil || *m.ReferenceType != model.ReferenceOrder ||
			m.ReferenceID == nil || *m.ReferenceID != o.ID {
			continue
		}
		if _, seen := totals[m.InventoryItemID]; !seen {
			ordered = append(ordered, m.InventoryItemID)
		}
		totals[m.InventoryItemID] += m.Quantity
	}
	restores := make([]dto.StockRestore, 0, len(ordered))
	for _, itemID := range ordered {
		restores = append(restores, dto.StockRestore{InventoryItemID: itemID, Quantity: totals[itemID]})
	}

	refType := model.ReferenceCancellation
	for _, restore := range restores {
		item := r.s.items[restore.InventoryItemID]
		previous := item.CurrentStock
		item.CurrentStock += restore.Quantity

		refID := o.ID
		r.s.movements = append(r.s.movements, model.StockMovement{
			ID:              uuid.New().String(),
			InventoryItemID: restore.InventoryItemID,
			MovementType:    model.MovementIn,
			Quantity:        restore.Quantity,
			PreviousStock:   previous,
			NewStock:        item.CurrentStock,
			ReferenceType:   &refType,
			ReferenceID:     &refID,
			Reason:          reason,
			CreatedAt:       time.Now(),
		})
	}

	for i := range stored.Items {
		stored.Items[i].AllocatedQuantity = 0
		stored.Items[i].FulfilledQuantity = 0
	}
	return restores, nil
}

func (r *fakeOrderRepo) FulfillItem(_ context.Context, item *model.OrderItem, o *model.Order) error {
	stored, ok := r.s.orders[item.OrderID]
	if !ok {
		return apperrors.ErrNotFound
	}
	for i := range stored.Items {
		if stored.Items[i].ID != item.ID {
			continue
		}
		if item.FulfilledQuantity > stored.Items[i].AllocatedQuantity {
			return apperrors.ErrInvalidTransition
		}
		stored.Items[i].FulfilledQuantity = item.FulfilledQuantity
		stored.Items[i].FulfilledAt = item.FulfilledAt
	}
	if o != nil {
		stored.Status = o.Status
		stored.ShippedAt = o.ShippedAt
		stored.UpdatedAt = o.UpdatedAt
	}
	return nil
}

func (r *fakeOrderRepo) PendingLowStockImpact(_ context.Context, _ string) ([]dto.LowStockImpact, error) {
	return nil, nil
}

func (r *fakeOrderRepo) Stats(_ context.Context, ownerID string, since time.Time) (*dto.OrderStats, error) {
	stats := &dto.OrderStats{}
	for _, o := range r.s.orders {
		if o.OwnerID != ownerID || o.CreatedAt.Before(since) {
			continue
		}
		stats.TotalOrders++
		switch o.Status {
		case model.OrderPending:
			stats.PendingOrders++
		case model.OrderConfirmed:
			stats.ConfirmedOrders++
		case model.OrderShipped:
			stats.ShippedOrders++
		case model.OrderDelivered:
			stats.DeliveredOrders++
		case model.OrderCancelled:
			stats.CancelledOrders++
		}
		switch o.PaymentStatus {
		case model.PaymentPaid, model.PaymentPartial:
			stats.TotalRevenue = stats.TotalRevenue.Add(o.AmountPaid)
		case model.PaymentPending:
			stats.PendingRevenue = stats.PendingRevenue.Add(o.TotalAmount)
		}
	}
	return stats, nil
}

type fakeInventoryRepo struct {
	s *memState
}

func (r *fakeInventoryRepo) Create(_ context.Context, item *model.InventoryItem, initial *model.StockMovement) error {
	dup := *item
	r.s.items[item.ID] = &dup
	if initial != nil {
		r.s.movements = append(r.s.movements, *initial)
	}
	return nil
}

func (r *fakeInventoryRepo) GetByID(_ context.Context, ownerID, id string) (*model.InventoryItem, error) {
	item, ok := r.s.items[id]
	if !ok || item.OwnerID != ownerID {
		return nil, nil
	}
	dup := *item
	return &dup, nil
}

func (r *fakeInventoryRepo) FindAll(_ context.Context, _ *inventorydto.ItemFilters) ([]model.InventoryItem, int, error) {
	return nil, 0, nil
}

func (r *fakeInventoryRepo) UpdateDetails(_ context.Context, _ *model.InventoryItem) error {
	return nil
}

func (r *fakeInventoryRepo) FindAllocatable(_ context.Context, ownerID, productID string) ([]model.InventoryItem, error) {
	var out []model.InventoryItem
	for _, item := range r.s.items {
		if item.OwnerID != ownerID || item.ProductID != productID {
			continue
		}
		if !item.IsActive || item.IsDiscontinued || item.CurrentStock <= 0 {
			continue
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeInventoryRepo) HasOrderReferences(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (r *fakeInventoryRepo) Deactivate(_ context.Context, _, _ string) error { return nil }

func (r *fakeInventoryRepo) PurgeWithMovements(_ context.Context, _, _ string) error { return nil }

func (r *fakeInventoryRepo) AdjustStockWithMovement(_ context.Context, item *model.InventoryItem, movement *model.StockMovement) error {
	stored, ok := r.s.items[item.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if stored.CurrentStock != movement.PreviousStock {
		return apperrors.ErrConflict
	}
	*stored = *item
	r.s.movements = append(r.s.movements, *movement)
	return nil
}

func (r *fakeInventoryRepo) ListMovements(_ context.Context, _ *inventorydto.MovementFilters) ([]model.StockMovement, int, error) {
	return r.s.movements, len(r.s.movements), nil
}

func (r *fakeInventoryRepo) Stats(_ context.Context, _ string) (*inventorydto.InventoryStats, error) {
	return &inventorydto.InventoryStats{}, nil
}

type fakeProductRepo struct {
	s *memState
}

func (r *fakeProductRepo) Create(_ context.Context, p *model.Product) error {
	dup := *p
	r.s.products[p.ID] = &dup
	return nil
}

func (r *fakeProductRepo) FindByID(_ context.Context, ownerID, id string) (*model.Product, error) {
	p, ok := r.s.products[id]
	if !ok || p.OwnerID != ownerID {
		return nil, nil
	}
	dup := *p
	return &dup, nil
}

func (r *fakeProductRepo) FindByIDs(_ context.Context, ownerID string, ids []string) ([]model.Product, error) {
	var out []model.Product
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok && p.OwnerID == ownerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) FindAll(_ context.Context, _ *productdto.ProductFilters) ([]model.Product, int, error) {
	return nil, 0, nil
}

func (r *fakeProductRepo) IsSKUUnique(_ context.Context, _, _ string) (bool, error) {
	return true, nil
}

type capturePublisher struct {
	events [][]byte
}

func (p *capturePublisher) Publish(_ context.Context, _, value []byte) error {
	p.events = append(p.events, value)
	return nil
}

var (
	_ order.Repository     = (*fakeOrderRepo)(nil)
	_ inventory.Repository = (*fakeInventoryRepo)(nil)
	_ product.Repository   = (*fakeProductRepo)(nil)
)

const (
	testOwner = "owner-1"
	testUser  = "user-1"
)

type testEnv struct {
	s         *memState
	orders    *fakeOrderRepo
	uc        order.UseCase
	publisher *capturePublisher
}

func newTestEnv() *testEnv {
	s := newMemState()
	orders := &fakeOrderRepo{s: s}
	publisher := &capturePublisher{}
	uc := NewOrderUseCase(
		orders,
		&fakeInventoryRepo{s: s},
		&fakeProductRepo{s: s},
		nil,
		publisher,
		zap.NewNop(),
	)
	return &testEnv{s: s, orders: orders, uc: uc, publisher: publisher}
}

func (e *testEnv) addProduct(id, name, sku string, price string) {
	e.s.products[id] = &model.Product{
		BaseModel: model.BaseModel{ID: id},
		OwnerID:   testOwner,
		SKU:       sku,
		Name:      name,
		BasePrice: decimal.RequireFromString(price),
		IsActive:  true,
	}
}

func (e *testEnv) addItem(id, productID string, stock int, createdAt time.Time, mutate func(*model.InventoryItem)) {
	item := &model.InventoryItem{
		BaseModel:    model.BaseModel{ID: id, CreatedAt: createdAt, UpdatedAt: createdAt},
		ProductID:    productID,
		OwnerID:      testOwner,
		CurrentStock: stock,
		IsActive:     true,
		ProductName:  "Velvet Matte Lipstick",
		ProductSKU:   "LIP-001",
	}
	if mutate != nil {
		mutate(item)
	}
	e.s.items[id] = item
}

func (e *testEnv) createOrder(t *testing.T, items ...dto.CreateOrderItemInput) *model.Order {
	t.Helper()
	o, err := e.uc.Create(context.Background(), &dto.CreateOrderInput{
		OwnerID:    testOwner,
		UserID:     testUser,
		CustomerID: "customer-1",
		Items:      items,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func ptr(s string) *string { return &s }

func TestCreateOrderComputesTotalsAndSnapshots(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")
	env.addProduct("prod-2", "Hydra Serum", "SER-001", "40.00")

	custom := decimal.RequireFromString("22.50")
	o, err := env.uc.Create(context.Background(), &dto.CreateOrderInput{
		OwnerID:      testOwner,
		UserID:       testUser,
		CustomerID:   "customer-1",
		TaxAmount:    decimal.RequireFromString("5.00"),
		ShippingCost: decimal.RequireFromString("10.00"),
		Items: []dto.CreateOrderItemInput{
			{ProductID: "prod-1", Quantity: 2, UnitPrice: &custom},
			{ProductID: "prod-2", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if !strings.HasPrefix(o.OrderNumber, "GB-") || len(o.OrderNumber) != 20 {
		t.Fatalf("order number %q not in GB-YYYYMMDD-XXXXXXXX form", o.OrderNumber)
	}
	if o.Status != model.OrderPending || o.PaymentStatus != model.PaymentPending {
		t.Fatalf("new order status = %s/%s, want pending/pending", o.Status, o.PaymentStatus)
	}

	// 2 * 22.50 + 1 * 40.00 = 85.00; + tax 5 + shipping 10 = 100.00
	if !o.Subtotal.Equal(decimal.RequireFromString("85.00")) {
		t.Fatalf("subtotal = %s, want 85.00", o.Subtotal)
	}
	if !o.TotalAmount.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("total = %s, want 100.00", o.TotalAmount)
	}

	if o.Items[0].ProductName != "Velvet Matte Lipstick" || o.Items[0].ProductSKU != "LIP-001" {
		t.Fatalf("item snapshot not captured: %+v", o.Items[0])
	}
	if !o.Items[1].UnitPrice.Equal(decimal.RequireFromString("40.00")) {
		t.Fatalf("default unit price = %s, want base price 40.00", o.Items[1].UnitPrice)
	}
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	env := newTestEnv()
	_, err := env.uc.Create(context.Background(), &dto.CreateOrderInput{
		OwnerID:    testOwner,
		CustomerID: "customer-1",
		Items:      []dto.CreateOrderItemInput{{ProductID: "missing", Quantity: 1}},
	})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAllocateFullCoverageConfirmsOrder(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")
	env.addItem("item-1", "prod-1", 10, time.Now(), nil)

	o := env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 3})

	allocated, reductions, err := env.uc.Allocate(context.Background(), testOwner, testUser, o.ID)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if allocated.Status != model.OrderConfirmed {
		t.Fatalf("status = %s, want confirmed", allocated.Status)
	}
	if allocated.ConfirmedAt == nil {
		t.Fatal("confirmed_at not stamped")
	}
	if len(reductions) != 1 {
		t.Fatalf("reductions = %d, want 1", len(reductions))
	}
	if reductions[0].PreviousStock != 10 || reductions[0].NewStock != 7 {
		t.Fatalf("reduction = %d -> %d, want 10 -> 7", reductions[0].PreviousStock, reductions[0].NewStock)
	}
	if env.s.items["item-1"].CurrentStock != 7 {
		t.Fatalf("stock = %d, want 7", env.s.items["item-1"].CurrentStock)
	}
	if got := allocated.Items[0].AllocatedQuantity; got != 3 {
		t.Fatalf("allocated quantity = %d, want 3", got)
	}
	if allocated.Items[0].InventoryItemID == nil || *allocated.Items[0].InventoryItemID != "item-1" {
		t.Fatal("primary sourcing variant not recorded")
	}

	outs := 0
	for _, m := range env.s.movements {
		if m.MovementType == model.MovementOut && m.ReferenceID != nil && *m.ReferenceID == o.ID {
			outs++
			if m.PreviousStock != 10 || m.NewStock != 7 || m.Quantity != 3 {
				t.Fatalf("ledger row %d -> %d qty %d, want 10 -> 7 qty 3", m.PreviousStock, m.NewStock, m.Quantity)
			}
		}
	}
	if outs != 1 {
		t.Fatalf("out ledger rows = %d, want 1", outs)
	}

	if len(env.publisher.events) != 1 {
		t.Fatalf("published events = %d, want 1", len(env.publisher.events))
	}
	if !strings.Contains(string(env.publisher.events[0]), "OrderConfirmed") {
		t.Fatalf("event payload %s does not carry OrderConfirmed", env.publisher.events[0])
	}
}

func TestAllocatePartialLeavesOrderPending(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")
	env.addItem("item-1", "prod-1", 10, time.Now(), nil)

	o := env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 15})

	allocated, reductions, err := env.uc.Allocate(context.Background(), testOwner, testUser, o.ID)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if allocated.Status != model.OrderPending {
		t.Fatalf("status = %s, want pending after partial allocation", allocated.Status)
	}
	if env.s.items["item-1"].CurrentStock != 0 {
		t.Fatalf("stock = %d, want 0", env.s.items["item-1"].CurrentStock)
	}
	if got := allocated.Items[0].AllocatedQuantity; got != 10 {
		t.Fatalf("allocated = %d, want 10", got)
	}
	if len(reductions) != 1 || reductions[0].Quantity != 10 {
		t.Fatalf("reductions = %+v, want one take of 10", reductions)
	}
	if len(env.publisher.events) != 0 {
		t.Fatal("partially allocated order must not publish OrderConfirmed")
	}

	status, err := env.uc.GetAllocationStatus(context.Background(), testOwner, o.ID)
	if err != nil {
		t.Fatalf("allocation status: %v", err)
	}
	if status.AllocationComplete {
		t.Fatal("allocation reported complete")
	}
	if status.Items[0].PendingAllocation != 5 {
		t.Fatalf("pending allocation = %d, want 5", status.Items[0].PendingAllocation)
	}
}

func TestAllocateIsIdempotent(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")
	env.addItem("item-1", "prod-1", 10, time.Now(), nil)

	o := env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 15})

	if _, _, err := env.uc.Allocate(context.Background(), testOwner, testUser, o.ID); err != nil {
		t.Fatalf("first allocate: %v", err)
	}
	ledgerRows := len(env.s.movements)

	allocated, reductions, err := env.uc.Allocate(context.Background(), testOwner, testUser, o.ID)
	if err != nil {
		t.Fatalf("second allocate: %v", err)
	}
	if len(reductions) != 0 {
		t.Fatalf("second pass reductions = %d, want 0", len(reductions))
	}
	if len(env.s.movements) != ledgerRows {
		t.Fatalf("second pass appended ledger rows: %d -> %d", ledgerRows, len(env.s.movements))
	}
	if allocated.Items[0].AllocatedQuantity != 10 {
		t.Fatalf("allocated = %d, want unchanged 10", allocated.Items[0].AllocatedQuantity)
	}
}

func TestAllocatePrefersMatchingVariant(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")

	base := time.Now()
	env.addItem("item-blue", "prod-1", 10, base, func(i *model.InventoryItem) {
		i.Color = ptr("Blue")
	})
	env.addItem("item-red", "prod-1", 10, base.Add(time.Hour), func(i *model.InventoryItem) {
		i.Color = ptr("Red")
	})

	o := env.createOrder(t, dto.CreateOrderItemInput{
		ProductID:      "prod-1",
		Quantity:       4,
		RequestedColor: ptr("red"),
	})

	_, reductions, err := env.uc.Allocate(context.Background(), testOwner, testUser, o.ID)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if len(reductions) != 1 || reductions[0].InventoryItemID != "item-red" {
		t.Fatalf("reductions = %+v, want single take from item-red", reductions)
	}
	if env.s.items["item-blue"].CurrentStock != 10 {
		t.Fatal("non-matching variant touched despite a matching one having stock")
	}
}

func TestAllocateFallsBackWhenPreferenceExhausted(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")

	base := time.Now()
	env.addItem("item-blue", "prod-1", 10, base, func(i *model.InventoryItem) {
		i.Color = ptr("Blue")
	})
	env.addItem("item-red", "prod-1", 2, base.Add(time.Hour), func(i *model.InventoryItem) {
		i.Color = ptr("Red")
	})

	o := env.createOrder(t, dto.CreateOrderItemInput{
		ProductID:      "prod-1",
		Quantity:       5,
		RequestedColor: ptr("Red"),
	})

	allocated, reductions, err := env.uc.Allocate(context.Background(), testOwner, testUser, o.ID)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if len(reductions) != 2 {
		t.Fatalf("reductions = %d, want 2 (preference first, then fallback)", len(reductions))
	}
	if reductions[0].InventoryItemID != "item-red" || reductions[0].Quantity != 2 {
		t.Fatalf("first take = %+v, want 2 from item-red", reductions[0])
	}
	if reductions[1].InventoryItemID != "item-blue" || reductions[1].Quantity != 3 {
		t.Fatalf("second take = %+v, want 3 from item-blue", reductions[1])
	}
	if allocated.Status != model.OrderConfirmed {
		t.Fatalf("status = %s, want confirmed", allocated.Status)
	}
}

func TestAllocateSpillsOldestVariantFirst(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")

	base := time.Now()
	env.addItem("item-old", "prod-1", 4, base, nil)
	env.addItem("item-new", "prod-1", 10, base.Add(time.Hour), nil)

	o := env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 6})

	_, reductions, err := env.uc.Allocate(context.Background(), testOwner, testUser, o.ID)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if len(reductions) != 2 {
		t.Fatalf("reductions = %d, want 2", len(reductions))
	}
	if reductions[0].InventoryItemID != "item-old" || reductions[0].Quantity != 4 {
		t.Fatalf("first take = %+v, want drain of item-old", reductions[0])
	}
	if reductions[1].InventoryItemID != "item-new" || reductions[1].Quantity != 2 {
		t.Fatalf("second take = %+v, want 2 from item-new", reductions[1])
	}
}

func TestAllocateRequiresPendingOrder(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")
	env.addItem("item-1", "prod-1", 10, time.Now(), nil)

	o := env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 3})
	if _, _, err := env.uc.Allocate(context.Background(), testOwner, testUser, o.ID); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	// Now confirmed; a direct re-allocation attempt is a lifecycle error.
	_, _, err := env.uc.Allocate(context.Background(), testOwner, testUser, o.ID)
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestCancelRestoresStockWithLedgerPair(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")
	env.addItem("item-1", "prod-1", 10, time.Now(), nil)

	o := env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 3})
	if _, _, err := env.uc.Allocate(context.Background(), testOwner, testUser, o.ID); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if env.s.items["item-1"].CurrentStock != 7 {
		t.Fatalf("stock after allocation = %d, want 7", env.s.items["item-1"].CurrentStock)
	}

	cancelled, err := env.uc.Cancel(context.Background(), &dto.CancelOrderInput{
		OwnerID: testOwner,
		UserID:  testUser,
		OrderID: o.ID,
		Reason:  "customer changed mind",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if cancelled.Status != model.OrderCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}
	if env.s.items["item-1"].CurrentStock != 10 {
		t.Fatalf("stock after cancel = %d, want 10", env.s.items["item-1"].CurrentStock)
	}
	if cancelled.Items[0].AllocatedQuantity != 0 {
		t.Fatalf("allocated after cancel = %d, want 0", cancelled.Items[0].AllocatedQuantity)
	}

	var outQty, inQty int
	for _, m := range env.s.movements {
		if m.ReferenceID == nil || *m.ReferenceID != o.ID {
			continue
		}
		switch m.MovementType {
		case model.MovementOut:
			outQty += m.Quantity
		case model.MovementIn:
			inQty += m.Quantity
		}
	}
	if outQty != 3 || inQty != 3 {
		t.Fatalf("ledger pair = out %d / in %d, want 3/3", outQty, inQty)
	}
}

func TestCancelRestoresEverySourcingVariant(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")

	base := time.Now()
	env.addItem("item-old", "prod-1", 4, base, nil)
	env.addItem("item-new", "prod-1", 10, base.Add(time.Hour), nil)

	o := env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 6})
	if _, _, err := env.uc.Allocate(context.Background(), testOwner, testUser, o.ID); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if _, err := env.uc.Cancel(context.Background(), &dto.CancelOrderInput{
		OwnerID: testOwner,
		OrderID: o.ID,
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if env.s.items["item-old"].CurrentStock != 4 {
		t.Fatalf("item-old stock = %d, want 4", env.s.items["item-old"].CurrentStock)
	}
	if env.s.items["item-new"].CurrentStock != 10 {
		t.Fatalf("item-new stock = %d, want 10", env.s.items["item-new"].CurrentStock)
	}
}

func TestCancelShippedOrderRejected(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")

	o := env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 1})
	env.s.orders[o.ID].Status = model.OrderShipped

	_, err := env.uc.Cancel(context.Background(), &dto.CancelOrderInput{
		OwnerID: testOwner,
		OrderID: o.ID,
	})
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestAllocateBacksOffWhenOrderCancelledUnderneath(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")
	env.addItem("item-1", "prod-1", 10, time.Now(), nil)

	o := env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 3})

	// A full cancel lands between Allocate's order read and the take.
	env.orders.beforeAllocate = func() {
		env.orders.beforeAllocate = nil
		if _, err := env.uc.Cancel(context.Background(), &dto.CancelOrderInput{
			OwnerID: testOwner,
			OrderID: o.ID,
		}); err != nil {
			t.Fatalf("cancel: %v", err)
		}
	}

	allocated, reductions, err := env.uc.Allocate(context.Background(), testOwner, testUser, o.ID)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if allocated.Status != model.OrderCancelled {
		t.Fatalf("status = %s, want cancelled", allocated.Status)
	}
	if len(reductions) != 0 {
		t.Fatalf("reductions = %d, want none against a cancelled order", len(reductions))
	}
	if env.s.items["item-1"].CurrentStock != 10 {
		t.Fatalf("stock = %d, want untouched 10", env.s.items["item-1"].CurrentStock)
	}
	if got := env.s.orders[o.ID].Items[0].AllocatedQuantity; got != 0 {
		t.Fatalf("allocated = %d, want 0 on a cancelled order", got)
	}
	for _, m := range env.s.movements {
		if m.ReferenceID != nil && *m.ReferenceID == o.ID {
			t.Fatalf("cancelled order left a ledger row: %+v", m)
		}
	}
}

func TestFulfillRejectsMoreThanAllocated(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")
	env.addItem("item-1", "prod-1", 10, time.Now(), nil)

	o := env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 5})
	env.s.orders[o.ID].Status = model.OrderConfirmed
	env.s.orders[o.ID].Items[0].AllocatedQuantity = 3

	_, err := env.uc.FulfillItem(context.Background(), &dto.FulfillItemInput{
		OwnerID:  testOwner,
		OrderID:  o.ID,
		ItemID:   o.Items[0].ID,
		Quantity: 5,
	})
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if got := env.s.orders[o.ID].Items[0].FulfilledQuantity; got != 0 {
		t.Fatalf("fulfilled mutated to %d on rejected request", got)
	}
}

func TestFulfillAutoAdvancesToShipped(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")
	env.addItem("item-1", "prod-1", 10, time.Now(), nil)

	o := env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 3})
	if _, _, err := env.uc.Allocate(context.Background(), testOwner, testUser, o.ID); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	item, err := env.uc.FulfillItem(context.Background(), &dto.FulfillItemInput{
		OwnerID:  testOwner,
		OrderID:  o.ID,
		ItemID:   o.Items[0].ID,
		Quantity: 3,
	})
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if item.FulfilledQuantity != 3 || item.FulfilledAt == nil {
		t.Fatalf("item fulfillment not recorded: %+v", item)
	}

	stored := env.s.orders[o.ID]
	if stored.Status != model.OrderShipped {
		t.Fatalf("status = %s, want auto-advance to shipped", stored.Status)
	}
	if stored.ShippedAt == nil {
		t.Fatal("shipped_at not stamped on auto-advance")
	}
}

func TestFulfillPartialKeepsOrderStatus(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")
	env.addItem("item-1", "prod-1", 10, time.Now(), nil)

	o := env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 3})
	if _, _, err := env.uc.Allocate(context.Background(), testOwner, testUser, o.ID); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if _, err := env.uc.FulfillItem(context.Background(), &dto.FulfillItemInput{
		OwnerID:  testOwner,
		OrderID:  o.ID,
		ItemID:   o.Items[0].ID,
		Quantity: 2,
	}); err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	stored := env.s.orders[o.ID]
	if stored.Status != model.OrderConfirmed {
		t.Fatalf("status = %s, want confirmed after partial fulfillment", stored.Status)
	}
	if stored.Items[0].FulfilledQuantity != 2 {
		t.Fatalf("fulfilled = %d, want 2", stored.Items[0].FulfilledQuantity)
	}
}

func TestUpdateStatusShippingRequiresPayment(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")
	env.addItem("item-1", "prod-1", 10, time.Now(), nil)

	o := env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 3})
	if _, _, err := env.uc.Allocate(context.Background(), testOwner, testUser, o.ID); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	_, err := env.uc.UpdateStatus(context.Background(), &dto.UpdateStatusInput{
		OwnerID: testOwner,
		OrderID: o.ID,
		Status:  model.OrderShipped,
	})
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition for unpaid order", err)
	}

	paid := decimal.RequireFromString("75.00")
	if _, err := env.uc.UpdatePayment(context.Background(), &dto.UpdatePaymentInput{
		OwnerID:    testOwner,
		OrderID:    o.ID,
		AmountPaid: &paid,
	}); err != nil {
		t.Fatalf("update payment: %v", err)
	}

	shipped, err := env.uc.UpdateStatus(context.Background(), &dto.UpdateStatusInput{
		OwnerID:        testOwner,
		OrderID:        o.ID,
		Status:         model.OrderShipped,
		TrackingNumber: "TRK-9",
		CourierService: "JNE",
	})
	if err != nil {
		t.Fatalf("ship: %v", err)
	}
	if shipped.ShippedAt == nil || shipped.TrackingNumber == nil || *shipped.TrackingNumber != "TRK-9" {
		t.Fatalf("shipping fields not recorded: %+v", shipped)
	}
}

func TestUpdateStatusRejectsIllegalEdge(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")

	o := env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 1})

	_, err := env.uc.UpdateStatus(context.Background(), &dto.UpdateStatusInput{
		OwnerID: testOwner,
		OrderID: o.ID,
		Status:  model.OrderDelivered,
	})
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition for pending -> delivered", err)
	}
}

func TestUpdatePaymentDerivesStatusFromAmount(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")

	o := env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 2})

	partial := decimal.RequireFromString("20.00")
	updated, err := env.uc.UpdatePayment(context.Background(), &dto.UpdatePaymentInput{
		OwnerID:    testOwner,
		OrderID:    o.ID,
		AmountPaid: &partial,
	})
	if err != nil {
		t.Fatalf("update payment: %v", err)
	}
	if updated.PaymentStatus != model.PaymentPartial {
		t.Fatalf("payment status = %s, want partial", updated.PaymentStatus)
	}

	full := decimal.RequireFromString("50.00")
	updated, err = env.uc.UpdatePayment(context.Background(), &dto.UpdatePaymentInput{
		OwnerID:          testOwner,
		OrderID:          o.ID,
		AmountPaid:       &full,
		PaymentReference: "TXN-42",
	})
	if err != nil {
		t.Fatalf("update payment: %v", err)
	}
	if updated.PaymentStatus != model.PaymentPaid {
		t.Fatalf("payment status = %s, want paid", updated.PaymentStatus)
	}
	if updated.PaymentReference == nil || *updated.PaymentReference != "TXN-42" {
		t.Fatal("payment reference not recorded")
	}
}

func TestStatsAveragesOverAllOrders(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")

	o1 := env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 4}) // 100.00
	env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 2})       // 50.00

	paid := decimal.RequireFromString("100.00")
	if _, err := env.uc.UpdatePayment(context.Background(), &dto.UpdatePaymentInput{
		OwnerID:    testOwner,
		OrderID:    o1.ID,
		AmountPaid: &paid,
	}); err != nil {
		t.Fatalf("pay: %v", err)
	}

	stats, err := env.uc.Stats(context.Background(), testOwner, 30)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalOrders != 2 {
		t.Fatalf("total orders = %d, want 2", stats.TotalOrders)
	}
	if !stats.TotalRevenue.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("revenue = %s, want 100.00", stats.TotalRevenue)
	}
	if !stats.PendingRevenue.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("pending revenue = %s, want 50.00", stats.PendingRevenue)
	}
	// Averaged over every order in the window, not only the shipped and
	// delivered ones.
	if !stats.AverageOrderValue.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("average order value = %s, want 50.00", stats.AverageOrderValue)
	}
}

func TestOwnerScopingHidesForeignOrders(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-1", "Velvet Matte Lipstick", "LIP-001", "25.00")

	o := env.createOrder(t, dto.CreateOrderItemInput{ProductID: "prod-1", Quantity: 1})

	_, err := env.uc.GetByID(context.Background(), "other-owner", o.ID)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for foreign owner", err)
	}
}
