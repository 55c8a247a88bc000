package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 住所(Address)を取得する窓口
type AddressRepository interface {
	//ユーザーが持つ住所一覧を返す
	ListByUserID(ctx context.Context, userID int64) ([]model.Address, error)

	//デフォルト住所。無ければ最新の住所、どちらも無ければ ErrNotFound
	FindDefaultByUserID(ctx context.Context, userID int64) (model.Address, error)
}
