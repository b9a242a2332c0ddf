package product

import (
	"context"

	"github.com/glambeauty/order-service/internal/model"
	"github.com/glambeauty/order-service/internal/product/dto"
)

type Repository interface {
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, ownerID, id string) (*model.Product, error)
	FindByIDs(ctx context.Context, ownerID string, ids []string) ([]model.Product, error)
	FindAll(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error)
	IsSKUUnique(ctx context.Context, ownerID, sku string) (bool, error)
}
