package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// ユーザーのACTIVEカートを取得し、無ければ作成
func (r *CartGormRepository) GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	var cart model.Cart

	findErr := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND status = ?", userID, model.CartStatusActive).
		Order("id desc").
		First(&cart).Error
	if findErr == nil {
		return cart, nil
	}
	if !isNotFound(findErr) {
		return model.Cart{}, translate(findErr)
	}

	// 無ければ作る
	now := time.Now()
	newCart := model.Cart{
		UserID:    userID,
		Status:    model.CartStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(&newCart).Error; err != nil {
		return model.Cart{}, translate(err)
	}
	return newCart, nil
}

// ユーザーのACTIVEカートを取得
func (r *CartGormRepository) FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.CartStatusActive).
		Order("id desc").
		First(&cart).Error
	if err != nil {
		return model.Cart{}, translate(err)
	}
	return cart, nil
}

// 指定カートの明細を全削除
func (r *CartGormRepository) Clear(ctx context.Context, cartID int64) error {
	if err := r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error; err != nil {
		return translate(err)
	}
	return nil
}

// カート明細を一覧取得
func (r *CartGormRepository) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	var items []model.CartItem

	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return []model.CartItem{}, translate(err)
	}

	return items, nil
}

// 同一SKUは数量加算
func (r *CartGormRepository) UpsertByCartAndSKU(ctx context.Context, cartID int64, sku model.SKU, addQty int64, unitPriceSnapshot int64) error {
	if addQty <= 0 {
		return errors.New("invalid quantity")
	}

	var item model.CartItem
	q := whereSKU(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), sku)
	err := q.Where("cart_id = ?", cartID).First(&item).Error

	if err == nil {
		// 既存ありだったら数量を増やす
		res := r.db.WithContext(ctx).Model(&model.CartItem{}).
			Where("id = ?", item.ID).
			Updates(map[string]interface{}{
				"quantity":            item.Quantity + addQty,
				"unit_price_snapshot": unitPriceSnapshot,
			})
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}
		return nil
	}
	if !isNotFound(err) {
		return translate(err)
	}

	//無い場合は新規作成
	newItem := model.CartItem{
		CartID:            cartID,
		ProductID:         sku.ProductID,
		VariantID:         sku.VariantID,
		Quantity:          addQty,
		UnitPriceSnapshot: unitPriceSnapshot,
	}
	if err := r.db.WithContext(ctx).Create(&newItem).Error; err != nil {
		return translate(err)
	}
	return nil
}

// 明細を削除
func (r *CartGormRepository) DeleteByID(ctx context.Context, cartItemID int64) error {
	res := r.db.WithContext(ctx).Delete(&model.CartItem{}, cartItemID)

	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

//cartItemが、そのuserのカートに属しているかを判定

func (r *CartGormRepository) IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Table("cart_items").
		Joins("join carts on carts.id = cart_items.cart_id").
		Where("cart_items.id = ? AND carts.user_id = ?", cartItemID, userID).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}

	return count > 0, nil
}
