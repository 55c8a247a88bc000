package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoucherValidator_Validate(t *testing.T) {
	f := newFixture(t)
	window := func(v model.Voucher) model.Voucher {
		v.StartsAt, v.EndsAt = baseTime.Add(-24*time.Hour), baseTime.Add(24*time.Hour)
		return v
	}
	f.store.SeedVoucher(window(model.Voucher{Code: "PERSEN", DiscountType: model.DiscountTypePercentage, Value: 20, MaxDiscount: 30000, IsActive: true}))
	f.store.SeedVoucher(window(model.Voucher{Code: "POTONG", DiscountType: model.DiscountTypeFixed, Value: 80000, IsActive: true}))
	f.store.SeedVoucher(window(model.Voucher{Code: "MATI", DiscountType: model.DiscountTypeFixed, Value: 1000}))
	f.store.SeedVoucher(model.Voucher{Code: "LEWAT", DiscountType: model.DiscountTypeFixed, Value: 1000, IsActive: true,
		StartsAt: baseTime.Add(-48 * time.Hour), EndsAt: baseTime.Add(-24 * time.Hour)})
	f.store.SeedVoucher(window(model.Voucher{Code: "MINIMAL", DiscountType: model.DiscountTypeFixed, Value: 1000, MinPurchase: 500000, IsActive: true}))
	f.store.SeedVoucher(window(model.Voucher{Code: "HABIS", DiscountType: model.DiscountTypeFixed, Value: 1000, MaxUses: 3, UsedCount: 3, IsActive: true}))

	v := usecase.NewVoucherValidator()
	tests := []struct {
		code     string
		subtotal int64
		discount int64
		reason   usecase.VoucherRejectReason
	}{
		{"persen", 100000, 20000, ""},
		{"PERSEN", 500000, 30000, ""},
		{"POTONG", 50000, 50000, ""},
		{"TIDAKADA", 50000, 0, usecase.VoucherNotFound},
		{"MATI", 50000, 0, usecase.VoucherInactive},
		{"LEWAT", 50000, 0, usecase.VoucherOutsideWindow},
		{"MINIMAL", 50000, 0, usecase.VoucherBelowMinimum},
		{"HABIS", 50000, 0, usecase.VoucherExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			var discount int64
			err := f.store.WithinTx(context.Background(), func(r repo.TxRepos) error {
				var err error
				_, discount, err = v.Validate(context.Background(), r, tt.code, tt.subtotal, baseTime)
				return err
			})
			if tt.reason == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.discount, discount)
				return
			}
			var rej *usecase.VoucherRejection
			require.True(t, errors.As(err, &rej), "err=%v", err)
			assert.Equal(t, tt.reason, rej.Reason)
		})
	}
}
