package repository

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockGormRepository struct {
	db *gorm.DB
}

func NewStockGormRepository(db *gorm.DB) *StockGormRepository {
	return &StockGormRepository{db: db}
}

// SKU に対応する在庫行（products or product_variants）
func (r *StockGormRepository) row(ctx context.Context, sku model.SKU) *gorm.DB {
	if sku.VariantID != nil {
		return r.db.WithContext(ctx).
			Model(&model.ProductVariant{}).
			Where("id = ? AND product_id = ?", *sku.VariantID, sku.ProductID)
	}
	return r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", sku.ProductID)
}

type stockRow struct {
	Stock int64
}

func (r *StockGormRepository) LockOnHand(ctx context.Context, sku model.SKU) (int64, error) {
	var s stockRow
	err := r.row(ctx, sku).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("stock").
		Take(&s).Error
	if err != nil {
		return 0, translate(err)
	}
	return s.Stock, nil
}

func (r *StockGormRepository) OnHand(ctx context.Context, sku model.SKU) (int64, error) {
	var s stockRow
	if err := r.row(ctx, sku).Select("stock").Take(&s).Error; err != nil {
		return 0, translate(err)
	}
	return s.Stock, nil
}

// 在庫が足りるときだけ減らす
func (r *StockGormRepository) DecreaseIfEnough(ctx context.Context, sku model.SKU, qty int64) (bool, error) {
	res := r.row(ctx, sku).
		Where("stock >= ?", qty).
		Update("stock", gorm.Expr("stock - ?", qty))

	if res.Error != nil {
		return false, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, nil
}

// 在庫戻し（キャンセル）
func (r *StockGormRepository) Increase(ctx context.Context, sku model.SKU, qty int64) error {
	res := r.row(ctx, sku).Update("stock", gorm.Expr("stock + ?", qty))

	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 在庫の現在値を設定
func (r *StockGormRepository) SetOnHand(ctx context.Context, sku model.SKU, newStock int64) error {
	res := r.row(ctx, sku).Update("stock", newStock)

	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *StockGormRepository) SumVariantStock(ctx context.Context, productID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.ProductVariant{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(stock), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, translate(err)
	}
	return total, nil
}

func (r *StockGormRepository) SetProductStock(ctx context.Context, productID int64, stock int64) error {
	return r.SetOnHand(ctx, model.ProductSKU(productID), stock)
}

// 調整履歴作成
func (r *StockGormRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	if err := r.db.WithContext(ctx).Create(&adj).Error; err != nil {
		return translate(err)
	}
	return nil
}
