package dto

import "github.com/shopspring/decimal"

type CreateProductInput struct {
	OwnerID     string
	SKU         string
	Name        string
	Description string
	Brand       string
	BasePrice   decimal.Decimal
}
