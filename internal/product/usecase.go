package product

import (
	"context"

	"github.com/glambeauty/order-service/internal/model"
	"github.com/glambeauty/order-service/internal/product/dto"
)

type UseCase interface {
	Create(ctx context.Context, input *dto.CreateProductInput) (*model.Product, error)
	GetByID(ctx context.Context, ownerID, id string) (*model.Product, error)
	List(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error)
	Search(ctx context.Context, ownerID, query string, size int) ([]model.Product, error)
}
