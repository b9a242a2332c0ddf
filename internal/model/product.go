package model

import "github.com/shopspring/decimal"

// Product is the catalog definition of what can be sold. Physical,
// sellable stock lives in InventoryItem; one product may be backed by
// several inventory variants.
type Product struct {
	BaseModel
	OwnerID        string          `db:"owner_id" json:"owner_id"`
	SKU            string          `db:"sku" json:"sku"`
	Name           string          `db:"name" json:"name"`
	Description    *string         `db:"description" json:"description"`
	Brand          *string         `db:"brand" json:"brand"`
	BasePrice      decimal.Decimal `db:"base_price" json:"base_price"`
	IsActive       bool            `db:"is_active" json:"is_active"`
	IsDiscontinued bool            `db:"is_discontinued" json:"is_discontinued"`
}
