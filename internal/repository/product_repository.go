package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 商品の取得だけを約束（削除済みは ErrNotFound）
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
	FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error)
	FindVariant(ctx context.Context, variantID int64) (model.ProductVariant, error)
	FindVariantsByIDs(ctx context.Context, ids []int64) ([]model.ProductVariant, error)
	// サイズ一覧（ID順）
	ListVariantsByProductID(ctx context.Context, productID int64) ([]model.ProductVariant, error)
}
