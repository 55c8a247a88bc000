package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type VoucherRepository interface {
	// code は大文字で保存されている前提
	FindByCodeForUpdate(ctx context.Context, code string) (model.Voucher, error)

	// used_count < max_uses のときだけ +1
	IncrementUse(ctx context.Context, voucherID int64) (bool, error)
}
