package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type HoldGormRepository struct {
	db *gorm.DB
}

func NewHoldGormRepository(db *gorm.DB) *HoldGormRepository {
	return &HoldGormRepository{db: db}
}

func (r *HoldGormRepository) DeleteByOwner(ctx context.Context, owner model.Owner) (int64, error) {
	q, err := whereOwner(r.db.WithContext(ctx), owner)
	if err != nil {
		return 0, err
	}
	res := q.Delete(&model.StockHold{})
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}

// 期限切れを削除（何度実行しても同じ）
func (r *HoldGormRepository) DeleteExpired(ctx context.Context, sku *model.SKU, now time.Time) (int64, error) {
	q := r.db.WithContext(ctx).Where("expires_at <= ?", now)
	if sku != nil {
		q = whereSKU(q, *sku)
	}
	res := q.Delete(&model.StockHold{})
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *HoldGormRepository) SumActive(ctx context.Context, sku model.SKU, now time.Time) (int64, error) {
	var total int64
	q := whereSKU(r.db.WithContext(ctx).Model(&model.StockHold{}), sku)
	err := q.Where("expires_at > ?", now).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, translate(err)
	}
	return total, nil
}

func (r *HoldGormRepository) CreateBulk(ctx context.Context, holds []model.StockHold) error {
	if len(holds) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&holds).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (r *HoldGormRepository) ListActiveByOwner(ctx context.Context, owner model.Owner, now time.Time) ([]model.StockHold, error) {
	return r.listActive(ctx, owner, now, false)
}

func (r *HoldGormRepository) LockActiveByOwner(ctx context.Context, owner model.Owner, now time.Time) ([]model.StockHold, error) {
	return r.listActive(ctx, owner, now, true)
}

func (r *HoldGormRepository) listActive(ctx context.Context, owner model.Owner, now time.Time, lock bool) ([]model.StockHold, error) {
	q, err := whereOwner(r.db.WithContext(ctx), owner)
	if err != nil {
		return nil, err
	}
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var holds []model.StockHold
	if err := q.Where("expires_at > ?", now).Order("id asc").Find(&holds).Error; err != nil {
		return []model.StockHold{}, translate(err)
	}
	return holds, nil
}
