package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glambeauty/order-service/internal/apperrors"
	"github.com/glambeauty/order-service/internal/model"
	"github.com/glambeauty/order-service/internal/order/dto"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

func uuidString() string {
	return uuid.New().String()
}

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, o *model.Order) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	orderQuery := `
        INSERT INTO orders (
            id, order_number, customer_id, owner_id, status, payment_status,
            subtotal, discount_amount, tax_amount, shipping_cost, total_amount,
            amount_paid, payment_reference, tracking_number, courier_service,
            customer_notes, internal_notes, confirmed_at, shipped_at, delivered_at,
            created_at, updated_at
        )
        VALUES (
            :id, :order_number, :customer_id, :owner_id, :status, :payment_status,
            :subtotal, :discount_amount, :tax_amount, :shipping_cost, :total_amount,
            :amount_paid, :payment_reference, :tracking_number, :courier_service,
            :customer_notes, :internal_notes, :confirmed_at, :shipped_at, :delivered_at,
            :created_at, :updated_at
        )
    `
	if _, err := tx.NamedExecContext(ctx, orderQuery, o); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
        INSERT INTO order_items (
            id, order_id, product_id, inventory_item_id, quantity, unit_price,
            total_price, allocated_quantity, fulfilled_quantity,
            requested_color, requested_shade, requested_size,
            product_name, product_sku, product_description,
            allocated_at, fulfilled_at, created_at
        )
        VALUES (
            :id, :order_id, :product_id, :inventory_item_id, :quantity, :unit_price,
            :total_price, :allocated_quantity, :fulfilled_quantity,
            :requested_color, :requested_shade, :requested_size,
            :product_name, :product_sku, :product_description,
            :allocated_at, :fulfilled_at, :created_at
        )
    `
	for i := range o.Items {
		if _, err := tx.NamedExecContext(ctx, itemQuery, &o.Items[i]); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return tx.Commit()
}

func (r *PGRepository) GetByID(ctx context.Context, ownerID, id string) (*model.Order, error) {
	var o model.Order
	err := r.DB.GetContext(ctx, &o, `SELECT * FROM orders WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	err = r.DB.SelectContext(ctx, &o.Items,
		`SELECT * FROM order_items WHERE order_id = $1 ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.OrderFilters) ([]model.Order, int, error) {
	var orders []model.Order
	var count int

	conditions := []string{"owner_id = :owner_id"}
	args := map[string]interface{}{"owner_id": f.OwnerID}

	if f.CustomerID != "" {
		conditions = append(conditions, "customer_id = :customer_id")
		args["customer_id"] = f.CustomerID
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = f.Status
	}
	if f.PaymentStatus != "" {
		conditions = append(conditions, "payment_status = :payment_status")
		args["payment_status"] = f.PaymentStatus
	}
	if f.Search != "" {
		conditions = append(conditions, "order_number ILIKE :search")
		args["search"] = "%" + f.Search + "%"
	}

	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	countQuery := "SELECT count(*) FROM orders" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT * FROM orders" + whereClause + " ORDER BY created_at DESC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &orders, args)
	return orders, count, err
}

func (r *PGRepository) UpdateStatus(ctx context.Context, o *model.Order) error {
	query := `
        UPDATE orders SET
            status = :status,
            tracking_number = :tracking_number,
            courier_service = :courier_service,
            confirmed_at = :confirmed_at,
            shipped_at = :shipped_at,
            delivered_at = :delivered_at,
            updated_at = :updated_at
        WHERE id = :id AND owner_id = :owner_id
    `
	res, err := r.DB.NamedExecContext(ctx, query, o)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PGRepository) UpdatePayment(ctx context.Context, o *model.Order) error {
	query := `
        UPDATE orders SET
            payment_status = :payment_status,
            amount_paid = :amount_paid,
            payment_reference = :payment_reference,
            updated_at = :updated_at
        WHERE id = :id AND owner_id = :owner_id
    `
	res, err := r.DB.NamedExecContext(ctx, query, o)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// AllocateItemStock is the allocation engine's unit of work. The stock
// decrement, its ledger row and the order item counter move in one
// transaction; stock can never go negative because the decrement is
// conditional on current_stock >= quantity.
func (r *PGRepository) AllocateItemStock(ctx context.Context, a *dto.ItemAllocation) (*dto.StockReduction, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Lock the order row and re-check PENDING inside the transaction. A
	// cancel that committed after the caller's read cannot lose this
	// take's stock, and a concurrent cancel blocks on the row lock until
	// the take's out row is committed and visible to its restore scan.
	var status model.OrderStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = $1 AND owner_id = $2 FOR UPDATE`,
		a.OrderID, a.OwnerID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("lock order row: %w", err)
	}
	if status != model.OrderPending {
		return nil, apperrors.ErrConflict
	}

	var newStock int
	var unitCost decimal.Decimal
	err = tx.QueryRowContext(ctx, `
        UPDATE inventory_items
        SET current_stock = current_stock - $1, updated_at = now()
        WHERE id = $2 AND owner_id = $3 AND current_stock >= $1
        RETURNING current_stock, cost_price
    `, a.Quantity, a.InventoryItemID, a.OwnerID).Scan(&newStock, &unitCost)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost the take to a concurrent writer; not an error.
			return nil, nil
		}
		return nil, fmt.Errorf("conditional decrement: %w", err)
	}

	previousStock := newStock + a.Quantity
	now := time.Now()
	refType := model.ReferenceOrder
	refID := a.OrderID
	var actor *string
	if a.UserID != "" {
		actor = &a.UserID
	}

	movement := &model.StockMovement{
		ID:              uuidString(),
		InventoryItemID: a.InventoryItemID,
		MovementType:    model.MovementOut,
		Quantity:        a.Quantity,
		PreviousStock:   previousStock,
		NewStock:        newStock,
		ReferenceType:   &refType,
		ReferenceID:     &refID,
		Reason:          "Order allocation: " + a.OrderNumber,
		UnitCost:        &unitCost,
		ActorID:         actor,
		CreatedAt:       now,
	}
	if err := insertMovement(ctx, tx, movement); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
        UPDATE order_items
        SET allocated_quantity = allocated_quantity + $1,
            inventory_item_id = COALESCE(inventory_item_id, $2),
            allocated_at = COALESCE(allocated_at, now())
        WHERE id = $3 AND order_id = $4 AND allocated_quantity + $1 <= quantity
    `, a.Quantity, a.InventoryItemID, a.OrderItemID, a.OrderID)
	if err != nil {
		return nil, fmt.Errorf("bump allocated quantity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Would exceed the item's demand: somebody else allocated in
		// between. Roll the take back and let the caller re-read.
		return nil, apperrors.ErrConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &dto.StockReduction{
		InventoryItemID: a.InventoryItemID,
		Quantity:        a.Quantity,
		PreviousStock:   previousStock,
		NewStock:        newStock,
	}, nil
}

// CancelWithRestore flips the order to CANCELLED and puts back every
// quantity the order's own "out" ledger rows took, atomically. The
// restore set is derived inside the transaction, after the orders row
// is locked by the status update: allocation takes lock the same row,
// so every committed take is visible to the scan and later takes see
// the cancelled status and back off.
func (r *PGRepository) CancelWithRestore(ctx context.Context, o *model.Order, reason, actorID string) ([]dto.StockRestore, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// The status guard is the atomic backstop: a concurrently shipped
	// order cannot be cancelled even if the caller read a stale state.
	res, err := tx.NamedExecContext(ctx, `
        UPDATE orders SET
            status = :status,
            internal_notes = :internal_notes,
            updated_at = :updated_at
        WHERE id = :id AND owner_id = :owner_id
          AND status IN ('pending', 'confirmed', 'processing', 'packed')
    `, o)
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.ErrInvalidTransition
	}

	var restores []dto.StockRestore
	err = tx.SelectContext(ctx, &restores, `
        SELECT inventory_item_id, sum(quantity) AS quantity
        FROM stock_movements
        WHERE reference_type = $1 AND reference_id = $2 AND movement_type = $3
        GROUP BY inventory_item_id
        ORDER BY min(created_at) ASC
    `, model.ReferenceOrder, o.ID, model.MovementOut)
	if err != nil {
		return nil, fmt.Errorf("collect allocation rows: %w", err)
	}

	now := time.Now()
	refType := model.ReferenceCancellation
	var actor *string
	if actorID != "" {
		actor = &actorID
	}

	for _, restore := range restores {
		var newStock int
		err = tx.QueryRowContext(ctx, `
            UPDATE inventory_items
            SET current_stock = current_stock + $1, last_restocked_at = now(), updated_at = now()
            WHERE id = $2 AND owner_id = $3
            RETURNING current_stock
        `, restore.Quantity, restore.InventoryItemID, o.OwnerID).Scan(&newStock)
		if err != nil {
			return nil, fmt.Errorf("restore stock: %w", err)
		}

		refID := o.ID
		movement := &model.StockMovement{
			ID:              uuidString(),
			InventoryItemID: restore.InventoryItemID,
			MovementType:    model.MovementIn,
			Quantity:        restore.Quantity,
			PreviousStock:   newStock - restore.Quantity,
			NewStock:        newStock,
			ReferenceType:   &refType,
			ReferenceID:     &refID,
			Reason:          reason,
			ActorID:         actor,
			CreatedAt:       now,
		}
		if err := insertMovement(ctx, tx, movement); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `
        UPDATE order_items
        SET allocated_quantity = 0, fulfilled_quantity = 0
        WHERE order_id = $1
    `, o.ID); err != nil {
		return nil, fmt.Errorf("reset allocation counters: %w", err)
	}

	return restores, tx.Commit()
}

func (r *PGRepository) FulfillItem(ctx context.Context, item *model.OrderItem, o *model.Order) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.NamedExecContext(ctx, `
        UPDATE order_items SET
            fulfilled_quantity = :fulfilled_quantity,
            fulfilled_at = :fulfilled_at
        WHERE id = :id AND order_id = :order_id
          AND :fulfilled_quantity <= allocated_quantity
    `, item)
	if err != nil {
		return fmt.Errorf("fulfill order item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrInvalidTransition
	}

	if o != nil {
		if _, err := tx.NamedExecContext(ctx, `
            UPDATE orders SET
                status = :status, shipped_at = :shipped_at, updated_at = :updated_at
            WHERE id = :id AND owner_id = :owner_id
        `, o); err != nil {
			return fmt.Errorf("advance order status: %w", err)
		}
	}

	return tx.Commit()
}

func (r *PGRepository) PendingLowStockImpact(ctx context.Context, ownerID string) ([]dto.LowStockImpact, error) {
	// A pending line is "at risk" when the eligible variants of its
	// product have drained to the lowest variant threshold.
	query := `
        SELECT o.id AS order_id, o.order_number, o.customer_id, o.total_amount,
               oi.product_name, oi.product_sku,
               oi.quantity - oi.allocated_quantity AS ordered_quantity,
               COALESCE(s.total_stock, 0) AS available_stock,
               COALESCE(s.min_stock, 0) AS minimum_stock
        FROM orders o
        JOIN order_items oi ON oi.order_id = o.id
        LEFT JOIN (
            SELECT product_id,
                   sum(current_stock) AS total_stock,
                   min(minimum_stock) AS min_stock
            FROM inventory_items
            WHERE owner_id = $1 AND is_active AND NOT is_discontinued
            GROUP BY product_id
        ) s ON s.product_id = oi.product_id
        WHERE o.owner_id = $1 AND o.status = 'pending'
          AND COALESCE(s.total_stock, 0) <= COALESCE(s.min_stock, 0)
        ORDER BY o.created_at ASC, oi.created_at ASC
    `

	var rows []struct {
		OrderID         string          `db:"order_id"`
		OrderNumber     string          `db:"order_number"`
		CustomerID      string          `db:"customer_id"`
		TotalAmount     decimal.Decimal `db:"total_amount"`
		ProductName     string          `db:"product_name"`
		ProductSKU      string          `db:"product_sku"`
		OrderedQuantity int             `db:"ordered_quantity"`
		AvailableStock  int             `db:"available_stock"`
		MinimumStock    int             `db:"minimum_stock"`
	}
	if err := r.DB.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, err
	}

	impacts := []dto.LowStockImpact{}
	index := map[string]int{}
	for _, row := range rows {
		i, seen := index[row.OrderID]
		if !seen {
			impacts = append(impacts, dto.LowStockImpact{
				OrderID:     row.OrderID,
				OrderNumber: row.OrderNumber,
				CustomerID:  row.CustomerID,
				TotalAmount: row.TotalAmount,
			})
			i = len(impacts) - 1
			index[row.OrderID] = i
		}
		impacts[i].Items = append(impacts[i].Items, dto.LowStockImpactItem{
			ProductName:     row.ProductName,
			ProductSKU:      row.ProductSKU,
			AvailableStock:  row.AvailableStock,
			MinimumStock:    row.MinimumStock,
			OrderedQuantity: row.OrderedQuantity,
			CanFulfill:      row.AvailableStock >= row.OrderedQuantity,
		})
	}
	return impacts, nil
}

func (r *PGRepository) Stats(ctx context.Context, ownerID string, since time.Time) (*dto.OrderStats, error) {
	var row struct {
		TotalOrders     int             `db:"total_orders"`
		PendingOrders   int             `db:"pending_orders"`
		ConfirmedOrders int             `db:"confirmed_orders"`
		ShippedOrders   int             `db:"shipped_orders"`
		DeliveredOrders int             `db:"delivered_orders"`
		CancelledOrders int             `db:"cancelled_orders"`
		TotalRevenue    decimal.Decimal `db:"total_revenue"`
		PendingRevenue  decimal.Decimal `db:"pending_revenue"`
	}
	query := `
        SELECT
            count(*) AS total_orders,
            count(*) FILTER (WHERE status = 'pending') AS pending_orders,
            count(*) FILTER (WHERE status = 'confirmed') AS confirmed_orders,
            count(*) FILTER (WHERE status = 'shipped') AS shipped_orders,
            count(*) FILTER (WHERE status = 'delivered') AS delivered_orders,
            count(*) FILTER (WHERE status = 'cancelled') AS cancelled_orders,
            COALESCE(sum(amount_paid) FILTER (WHERE payment_status IN ('paid', 'partial')), 0) AS total_revenue,
            COALESCE(sum(total_amount) FILTER (WHERE payment_status = 'pending'), 0) AS pending_revenue
        FROM orders
        WHERE owner_id = $1 AND created_at >= $2
    `
	if err := r.DB.GetContext(ctx, &row, query, ownerID, since); err != nil {
		return nil, err
	}

	return &dto.OrderStats{
		TotalOrders:     row.TotalOrders,
		PendingOrders:   row.PendingOrders,
		ConfirmedOrders: row.ConfirmedOrders,
		ShippedOrders:   row.ShippedOrders,
		DeliveredOrders: row.DeliveredOrders,
		CancelledOrders: row.CancelledOrders,
		TotalRevenue:    row.TotalRevenue,
		PendingRevenue:  row.PendingRevenue,
	}, nil
}

func insertMovement(ctx context.Context, tx *sqlx.Tx, m *model.StockMovement) error {
	query := `
        INSERT INTO stock_movements (
            id, inventory_item_id, movement_type, quantity,
            previous_stock, new_stock, reference_type, reference_id,
            reason, unit_cost, actor_id, created_at
        )
        VALUES (
            :id, :inventory_item_id, :movement_type, :quantity,
            :previous_stock, :new_stock, :reference_type, :reference_id,
            :reason, :unit_cost, :actor_id, :created_at
        )
    `
	if _, err := tx.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("append stock movement: %w", err)
	}
	return nil
}
