package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// products.stock / product_variants.stock を書けるのはここだけ
type StockRepository interface {
	// SELECT ... FOR UPDATE で現在庫を取得
	LockOnHand(ctx context.Context, sku model.SKU) (int64, error)

	// ロックせずに現在庫を取得
	OnHand(ctx context.Context, sku model.SKU) (int64, error)

	// 在庫が足りるときだけ減算
	DecreaseIfEnough(ctx context.Context, sku model.SKU, qty int64) (bool, error)

	// 在庫戻し（キャンセルなど）
	Increase(ctx context.Context, sku model.SKU, qty int64) error

	// 在庫の現在値を設定
	SetOnHand(ctx context.Context, sku model.SKU, newStock int64) error

	SumVariantStock(ctx context.Context, productID int64) (int64, error)
	SetProductStock(ctx context.Context, productID int64, stock int64) error

	// 調整履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
