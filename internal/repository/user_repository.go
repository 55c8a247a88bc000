package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 参照のみ（登録・更新は認証サービス側）
type UserRepository interface {
	FindByID(ctx context.Context, userID int64) (model.User, error)
}
