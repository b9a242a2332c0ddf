package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/glambeauty/order-service/internal/apperrors"
	"github.com/glambeauty/order-service/internal/model"
	"github.com/glambeauty/order-service/internal/platform/search"
	"github.com/glambeauty/order-service/internal/product"
	"github.com/glambeauty/order-service/internal/product/dto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const productIndex = "products"

const productMapping = `{
	"mappings": {
		"properties": {
			"owner_id": { "type": "keyword" },
			"sku": { "type": "keyword" },
			"name": { "type": "text" },
			"description": { "type": "text" },
			"brand": { "type": "keyword" },
			"is_active": { "type": "boolean" }
		}
	}
}`

type productUseCase struct {
	repo   product.Repository
	es     *search.Client
	logger *zap.Logger
}

func NewProductUseCase(repo product.Repository, es *search.Client, log *zap.Logger) product.UseCase {
	return &productUseCase{
		repo:   repo,
		es:     es,
		logger: log,
	}
}

func (uc *productUseCase) Create(ctx context.Context, input *dto.CreateProductInput) (*model.Product, error) {
	unique, err := uc.repo.IsSKUUnique(ctx, input.OwnerID, input.SKU)
	if err != nil {
		return nil, err
	}
	if !unique {
		return nil, fmt.Errorf("sku %s already exists: %w", input.SKU, apperrors.ErrConflict)
	}

	now := time.Now()
	var description *string
	if input.Description != "" {
		description = &input.Description
	}
	var brand *string
	if input.Brand != "" {
		brand = &input.Brand
	}

	p := &model.Product{
		BaseModel:   model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		OwnerID:     input.OwnerID,
		SKU:         input.SKU,
		Name:        input.Name,
		Description: description,
		Brand:       brand,
		BasePrice:   input.BasePrice,
		IsActive:    true,
	}

	if err := uc.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	// Sync to Elastic
	go uc.syncToElastic(context.Background(), p)

	return p, nil
}

func (uc *productUseCase) syncToElastic(ctx context.Context, p *model.Product) {
	if uc.es == nil {
		return
	}

	if err := uc.es.EnsureIndex(ctx, productIndex, productMapping); err != nil {
		uc.logger.Error("failed to ensure product index", zap.Error(err))
		return
	}

	doc := map[string]interface{}{
		"owner_id":    p.OwnerID,
		"sku":         p.SKU,
		"name":        p.Name,
		"description": p.Description,
		"brand":       p.Brand,
		"is_active":   p.IsActive,
	}
	if err := uc.es.Index(ctx, productIndex, p.ID, doc); err != nil {
		uc.logger.Error("failed to index product",
			zap.String("product_id", p.ID),
			zap.Error(err),
		)
	}
}

func (uc *productUseCase) GetByID(ctx context.Context, ownerID, id string) (*model.Product, error) {
	p, err := uc.repo.FindByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperrors.ErrNotFound
	}
	return p, nil
}

func (uc *productUseCase) List(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error) {
	return uc.repo.FindAll(ctx, filters)
}

func (uc *productUseCase) Search(ctx context.Context, ownerID, query string, size int) ([]model.Product, error) {
	if uc.es == nil {
		// Degrade to the database when search is not configured.
		items, _, err := uc.repo.FindAll(ctx, &dto.ProductFilters{
			OwnerID:  ownerID,
			Search:   query,
			Page:     1,
			PageSize: size,
		})
		return items, err
	}

	if size <= 0 {
		size = 20
	}
	esQuery := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  query,
						"fields": []string{"name^2", "sku", "brand", "description"},
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"owner_id": ownerID},
				},
			},
		},
	}

	ids, err := uc.es.Search(ctx, productIndex, esQuery)
	if err != nil {
		return nil, err
	}
	return uc.repo.FindByIDs(ctx, ownerID, ids)
}
