package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

// stock_holds は追加と削除のみ
type HoldRepository interface {
	DeleteByOwner(ctx context.Context, owner model.Owner) (int64, error)

	// sku が nil なら全SKU対象
	DeleteExpired(ctx context.Context, sku *model.SKU, now time.Time) (int64, error)

	// 期限内ホールドの数量合計（SKU完全一致）
	SumActive(ctx context.Context, sku model.SKU, now time.Time) (int64, error)

	CreateBulk(ctx context.Context, holds []model.StockHold) error

	ListActiveByOwner(ctx context.Context, owner model.Owner, now time.Time) ([]model.StockHold, error)

	// 同一オーナーの注文確定を直列化するため FOR UPDATE で取得
	LockActiveByOwner(ctx context.Context, owner model.Owner, now time.Time) ([]model.StockHold, error)
}
