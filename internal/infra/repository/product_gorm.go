package repository

import (
	"context"

	"storefront/internal/domain/model"

	"gorm.io/gorm"
)

type ProductGormRepository struct {
	db *gorm.DB
}

// DI
func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// IDで商品を取得（論理削除済みは対象外）
func (r *ProductGormRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return model.Product{}, translate(err)
	}
	return p, nil
}

// 見つからないIDは結果に含まれないだけ
func (r *ProductGormRepository) FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}
	var products []model.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return []model.Product{}, translate(err)
	}
	return products, nil
}

func (r *ProductGormRepository) FindVariant(ctx context.Context, variantID int64) (model.ProductVariant, error) {
	var v model.ProductVariant
	if err := r.db.WithContext(ctx).First(&v, variantID).Error; err != nil {
		return model.ProductVariant{}, translate(err)
	}
	return v, nil
}

func (r *ProductGormRepository) FindVariantsByIDs(ctx context.Context, ids []int64) ([]model.ProductVariant, error) {
	if len(ids) == 0 {
		return []model.ProductVariant{}, nil
	}
	var vs []model.ProductVariant
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&vs).Error; err != nil {
		return []model.ProductVariant{}, translate(err)
	}
	return vs, nil
}

func (r *ProductGormRepository) ListVariantsByProductID(ctx context.Context, productID int64) ([]model.ProductVariant, error) {
	var vs []model.ProductVariant
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("id ASC").Find(&vs).Error; err != nil {
		return []model.ProductVariant{}, translate(err)
	}
	return vs, nil
}
