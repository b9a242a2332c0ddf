package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/glambeauty/order-service/internal/apperrors"
	"github.com/glambeauty/order-service/internal/inventory/dto"
	"github.com/glambeauty/order-service/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// itemColumns is the read-time join of catalog fields into every item
// row; inventory never mirrors product name/SKU in its own table.
const itemColumns = `
	i.*, p.name AS product_name, p.sku AS product_sku
`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, item *model.InventoryItem, initial *model.StockMovement) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO inventory_items (
            id, product_id, owner_id, location, color, shade, size, batch,
            cost_price, selling_price, current_stock, minimum_stock,
            maximum_stock, reorder_point, reorder_quantity,
            is_active, is_discontinued, last_restocked_at, created_at, updated_at
        )
        VALUES (
            :id, :product_id, :owner_id, :location, :color, :shade, :size, :batch,
            :cost_price, :selling_price, :current_stock, :minimum_stock,
            :maximum_stock, :reorder_point, :reorder_quantity,
            :is_active, :is_discontinued, :last_restocked_at, :created_at, :updated_at
        )
    `
	if _, err := tx.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("insert inventory item: %w", err)
	}

	// Initial stock, if any, enters through the ledger in the same
	// transaction so the item is never observable without its first row.
	if initial != nil {
		if err := insertMovement(ctx, tx, initial); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PGRepository) GetByID(ctx context.Context, ownerID, id string) (*model.InventoryItem, error) {
	var item model.InventoryItem
	query := `
        SELECT ` + itemColumns + `
        FROM inventory_items i
        JOIN products p ON p.id = i.product_id
        WHERE i.id = $1 AND i.owner_id = $2
    `
	err := r.DB.GetContext(ctx, &item, query, id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.ItemFilters) ([]model.InventoryItem, int, error) {
	var items []model.InventoryItem
	var count int

	conditions := []string{"i.owner_id = :owner_id"}
	args := map[string]interface{}{"owner_id": f.OwnerID}

	if f.ProductID != "" {
		conditions = append(conditions, "i.product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.IsActive != nil {
		conditions = append(conditions, "i.is_active = :is_active")
		args["is_active"] = *f.IsActive
	}
	if f.LowStock {
		conditions = append(conditions, "i.current_stock <= i.minimum_stock")
	}
	if f.OutOfStock {
		conditions = append(conditions, "i.current_stock <= 0")
	}
	if f.NeedsReorder {
		conditions = append(conditions, "i.current_stock <= i.reorder_point")
	}
	if f.Search != "" {
		conditions = append(conditions, "(p.name ILIKE :search OR p.sku ILIKE :search)")
		args["search"] = "%" + f.Search + "%"
	}

	whereClause := " WHERE " + strings.Join(conditions, " AND ")
	from := " FROM inventory_items i JOIN products p ON p.id = i.product_id"

	countQuery := "SELECT count(*)" + from + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT " + itemColumns + from + whereClause + " ORDER BY i.created_at DESC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &items, args)
	return items, count, err
}

func (r *PGRepository) UpdateDetails(ctx context.Context, item *model.InventoryItem) error {
	query := `
        UPDATE inventory_items SET
            location = :location, color = :color, shade = :shade,
            size = :size, batch = :batch,
            cost_price = :cost_price, selling_price = :selling_price,
            minimum_stock = :minimum_stock, maximum_stock = :maximum_stock,
            reorder_point = :reorder_point, reorder_quantity = :reorder_quantity,
            is_active = :is_active, is_discontinued = :is_discontinued,
            updated_at = :updated_at
        WHERE id = :id AND owner_id = :owner_id
    `
	res, err := r.DB.NamedExecContext(ctx, query, item)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// FindAllocatable returns the eligible variants of one product, oldest
// first so equally-preferred candidates drain deterministically
// (oldest-batch-first).
func (r *PGRepository) FindAllocatable(ctx context.Context, ownerID, productID string) ([]model.InventoryItem, error) {
	var items []model.InventoryItem
	query := `
        SELECT ` + itemColumns + `
        FROM inventory_items i
        JOIN products p ON p.id = i.product_id
        WHERE i.owner_id = $1 AND i.product_id = $2
          AND i.is_active AND NOT i.is_discontinued
          AND i.current_stock > 0
        ORDER BY i.created_at ASC, i.id ASC
    `
	err := r.DB.SelectContext(ctx, &items, query, ownerID, productID)
	return items, err
}

func (r *PGRepository) HasOrderReferences(ctx context.Context, itemID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM order_items WHERE inventory_item_id = $1)`
	err := r.DB.GetContext(ctx, &exists, query, itemID)
	return exists, err
}

func (r *PGRepository) Deactivate(ctx context.Context, ownerID, id string) error {
	query := `
        UPDATE inventory_items
        SET is_active = false, is_discontinued = true, updated_at = now()
        WHERE id = $1 AND owner_id = $2
    `
	res, err := r.DB.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// PurgeWithMovements removes the item and its ledger rows. Only valid
// for items never referenced by an order; the usecase checks first.
func (r *PGRepository) PurgeWithMovements(ctx context.Context, ownerID, id string) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM stock_movements WHERE inventory_item_id = $1`, id); err != nil {
		return fmt.Errorf("purge movements: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("purge item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrNotFound
	}

	return tx.Commit()
}

// AdjustStockWithMovement writes the new stock level and its ledger row
// in one transaction; neither is ever visible without the other. The
// write is conditional on the stock the caller read (the movement's
// previous_stock): a miss means another writer committed in between and
// the caller must re-read, otherwise the ledger stops replaying.
func (r *PGRepository) AdjustStockWithMovement(ctx context.Context, item *model.InventoryItem, movement *model.StockMovement) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE inventory_items SET
            current_stock = $1,
            last_restocked_at = $2,
            updated_at = $3
        WHERE id = $4 AND owner_id = $5 AND current_stock = $6
    `, item.CurrentStock, item.LastRestockedAt, item.UpdatedAt,
		item.ID, item.OwnerID, movement.PreviousStock)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrConflict
	}

	if err := insertMovement(ctx, tx, movement); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	var movements []model.StockMovement
	var count int

	conditions := []string{"i.owner_id = :owner_id"}
	args := map[string]interface{}{"owner_id": f.OwnerID}

	if f.InventoryItemID != "" {
		conditions = append(conditions, "m.inventory_item_id = :inventory_item_id")
		args["inventory_item_id"] = f.InventoryItemID
	}
	if f.MovementType != "" {
		conditions = append(conditions, "m.movement_type = :movement_type")
		args["movement_type"] = f.MovementType
	}

	from := ` FROM stock_movements m JOIN inventory_items i ON i.id = m.inventory_item_id`
	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	countQuery := "SELECT count(*)" + from + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT m.*" + from + whereClause + " ORDER BY m.created_at DESC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &movements, args)
	return movements, count, err
}

func (r *PGRepository) Stats(ctx context.Context, ownerID string) (*dto.InventoryStats, error) {
	var row struct {
		TotalItems      int             `db:"total_items"`
		ActiveItems     int             `db:"active_items"`
		LowStockItems   int             `db:"low_stock_items"`
		OutOfStockItems int             `db:"out_of_stock_items"`
		TotalStockValue decimal.Decimal `db:"total_stock_value"`
	}
	query := `
        SELECT
            count(*) AS total_items,
            count(*) FILTER (WHERE is_active) AS active_items,
            count(*) FILTER (WHERE is_active AND current_stock <= minimum_stock) AS low_stock_items,
            count(*) FILTER (WHERE is_active AND current_stock <= 0) AS out_of_stock_items,
            COALESCE(sum(current_stock * cost_price) FILTER (WHERE is_active), 0) AS total_stock_value
        FROM inventory_items
        WHERE owner_id = $1
    `
	if err := r.DB.GetContext(ctx, &row, query, ownerID); err != nil {
		return nil, err
	}

	return &dto.InventoryStats{
		TotalItems:      row.TotalItems,
		ActiveItems:     row.ActiveItems,
		LowStockItems:   row.LowStockItems,
		OutOfStockItems: row.OutOfStockItems,
		TotalStockValue: row.TotalStockValue,
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
