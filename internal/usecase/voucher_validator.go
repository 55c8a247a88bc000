package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type VoucherValidator struct{}

func NewVoucherValidator() *VoucherValidator {
	return &VoucherValidator{}
}

func NormalizeVoucherCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// 行ロック付きで読むので、使用回数の加算まで同じトランザクションで行うこと
func (v *VoucherValidator) Validate(ctx context.Context, r repo.TxRepos, code string, subtotal int64, now time.Time) (model.Voucher, int64, error) {
	code = NormalizeVoucherCode(code)
	if code == "" {
		return model.Voucher{}, 0, voucherRejected(VoucherNotFound, "Kode voucher tidak ditemukan")
	}

	vc, err := r.Vouchers().FindByCodeForUpdate(ctx, code)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Voucher{}, 0, voucherRejected(VoucherNotFound, "Kode voucher tidak ditemukan")
	}
	if err != nil {
		return model.Voucher{}, 0, err
	}

	if !vc.IsActive {
		return model.Voucher{}, 0, voucherRejected(VoucherInactive, "Voucher tidak aktif")
	}
	if now.Before(vc.StartsAt) || now.After(vc.EndsAt) {
		return model.Voucher{}, 0, voucherRejected(VoucherOutsideWindow, "Voucher sudah kedaluwarsa atau belum berlaku")
	}
	if subtotal < vc.MinPurchase {
		return model.Voucher{}, 0, voucherRejected(VoucherBelowMinimum, fmt.Sprintf("Minimal pembelian Rp%d untuk voucher ini", vc.MinPurchase))
	}
	if vc.MaxUses > 0 && vc.UsedCount >= vc.MaxUses {
		return model.Voucher{}, 0, voucherRejected(VoucherExhausted, "Kuota voucher sudah habis")
	}

	return vc, vc.DiscountFor(subtotal), nil
}
