package usecase_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoldForCheckout_ConcurrentNeverOversells(t *testing.T) {
	f := newFixture(t)
	p := f.product("Kaos Polos", 50000, 5)
	ctx := context.Background()

	var ok, short int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := model.GuestOwner{SessionID: fmt.Sprintf("sess-%d", i)}
			_, err := f.holds.HoldForCheckout(ctx, owner, []usecase.HoldItem{item(p.ID, 1)})
			if err == nil {
				atomic.AddInt64(&ok, 1)
				return
			}
			if usecase.IsKind(err, usecase.KindOutOfStock) {
				atomic.AddInt64(&short, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(5), ok)
	assert.Equal(t, int64(15), short)
	assert.Equal(t, int64(0), f.available(t, model.ProductSKU(p.ID)))
	assert.Equal(t, 5, f.store.Counts().Holds)
}

func TestHoldForCheckout_TwoBuyersRaceForLastUnits(t *testing.T) {
	f := newFixture(t)
	p := f.product("Topi", 75000, 5)
	ctx := context.Background()

	results := make([]error, 2)
	expires := make([]time.Time, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.holds.HoldForCheckout(ctx, model.GuestOwner{SessionID: fmt.Sprintf("buyer-%d", i)}, []usecase.HoldItem{item(p.ID, 3)})
			results[i] = err
			expires[i] = res.ExpiresAt
		}(i)
	}
	wg.Wait()

	var succeeded, failed int
	for i, err := range results {
		if err == nil {
			succeeded++
			assert.Equal(t, baseTime.Add(10*time.Minute), expires[i])
			continue
		}
		failed++
		ae := requireKind(t, err, usecase.KindOutOfStock)
		assert.Equal(t, http.StatusConflict, ae.Status)
		assert.Contains(t, ae.Message, "tersisa 2")
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)
}

func TestHoldForCheckout_RestartReplacesPreviousHolds(t *testing.T) {
	f := newFixture(t)
	a := f.product("Kemeja", 120000, 10)
	b := f.product("Celana", 150000, 10)
	owner := model.UserOwner{ID: 7}
	ctx := context.Background()

	_, err := f.holds.HoldForCheckout(ctx, owner, []usecase.HoldItem{item(a.ID, 4)})
	require.NoError(t, err)
	_, err = f.holds.HoldForCheckout(ctx, owner, []usecase.HoldItem{item(b.ID, 2)})
	require.NoError(t, err)

	cur, err := f.holds.CurrentHolds(ctx, owner)
	require.NoError(t, err)
	require.Len(t, cur.Items, 1)
	assert.Equal(t, b.ID, cur.Items[0].ProductID)
	assert.Equal(t, int64(2), cur.Items[0].Quantity)
	assert.Equal(t, int64(10), f.available(t, model.ProductSKU(a.ID)))
	assert.Equal(t, int64(8), f.available(t, model.ProductSKU(b.ID)))
}

func TestHoldForCheckout_ShortLineLeavesPreviousHoldsIntact(t *testing.T) {
	f := newFixture(t)
	a := f.product("Kemeja", 120000, 10)
	b := f.product("Celana", 150000, 1)
	owner := model.UserOwner{ID: 7}
	ctx := context.Background()

	_, err := f.holds.HoldForCheckout(ctx, owner, []usecase.HoldItem{item(a.ID, 4)})
	require.NoError(t, err)

	_, err = f.holds.HoldForCheckout(ctx, owner, []usecase.HoldItem{item(a.ID, 1), item(b.ID, 2)})
	requireKind(t, err, usecase.KindOutOfStock)

	//失敗したらロールバックされて元のホールドが残る
	assert.Equal(t, int64(6), f.available(t, model.ProductSKU(a.ID)))
	assert.Equal(t, 1, f.store.Counts().Holds)
}

func TestAvailableStock_ExpirySelfHeals(t *testing.T) {
	f := newFixture(t)
	p := f.product("Jaket", 300000, 10)
	sku := model.ProductSKU(p.ID)

	_, err := f.holds.HoldForCheckout(context.Background(), model.GuestOwner{SessionID: "s1"}, []usecase.HoldItem{item(p.ID, 3)})
	require.NoError(t, err)

	assert.Equal(t, int64(7), f.available(t, sku))

	f.clock.Advance(10*time.Minute + time.Second)
	assert.Equal(t, int64(10), f.available(t, sku))
	// 期限切れは読むついでに消える
	assert.Equal(t, 0, f.store.Counts().Holds)
}

func TestHoldForCheckout_MergesDuplicateLines(t *testing.T) {
	f := newFixture(t)
	p := f.product("Kaos", 50000, 5)

	res, err := f.holds.HoldForCheckout(context.Background(), model.GuestOwner{SessionID: "s1"},
		[]usecase.HoldItem{item(p.ID, 2), item(p.ID, 2)})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, int64(4), res.Items[0].Quantity)
}

func TestHoldForCheckout_VariantsAreSeparateSKUs(t *testing.T) {
	f := newFixture(t)
	p := f.product("Sepatu", 400000, 0)
	s := f.store.SeedVariant(model.ProductVariant{ProductID: p.ID, Size: "40", Stock: 1})
	m := f.store.SeedVariant(model.ProductVariant{ProductID: p.ID, Size: "41", Stock: 3})
	ctx := context.Background()

	_, err := f.holds.HoldForCheckout(ctx, model.GuestOwner{SessionID: "s1"}, []usecase.HoldItem{variantItem(p.ID, s.ID, 2)})
	ae := requireKind(t, err, usecase.KindOutOfStock)
	assert.Contains(t, ae.Message, "Sepatu (40)")
	assert.Contains(t, ae.Message, "tersisa 1")

	_, err = f.holds.HoldForCheckout(ctx, model.GuestOwner{SessionID: "s1"}, []usecase.HoldItem{variantItem(p.ID, m.ID, 2)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.available(t, model.VariantSKU(p.ID, m.ID)))
	assert.Equal(t, int64(1), f.available(t, model.VariantSKU(p.ID, s.ID)))
}

func TestHoldForCheckout_Validation(t *testing.T) {
	f := newFixture(t)
	p := f.product("Sepatu", 400000, 0)
	f.store.SeedVariant(model.ProductVariant{ProductID: p.ID, Size: "40", Stock: 1})
	plain := f.product("Kaos", 50000, 3)
	gone := f.product("Lama", 10000, 3)
	f.store.DeleteProduct(gone.ID, baseTime)
	ctx := context.Background()
	guest := model.GuestOwner{SessionID: "s1"}

	tests := []struct {
		name  string
		owner model.Owner
		items []usecase.HoldItem
		kind  usecase.ErrorKind
	}{
		{"nil owner", nil, []usecase.HoldItem{item(plain.ID, 1)}, usecase.KindValidation},
		{"empty session", model.GuestOwner{SessionID: "  "}, []usecase.HoldItem{item(plain.ID, 1)}, usecase.KindValidation},
		{"no items", guest, nil, usecase.KindValidation},
		{"zero quantity", guest, []usecase.HoldItem{item(plain.ID, 0)}, usecase.KindValidation},
		{"variant required", guest, []usecase.HoldItem{item(p.ID, 1)}, usecase.KindValidation},
		{"deleted product", guest, []usecase.HoldItem{item(gone.ID, 1)}, usecase.KindNotFound},
		{"unknown variant", guest, []usecase.HoldItem{variantItem(plain.ID, 9999, 1)}, usecase.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.holds.HoldForCheckout(ctx, tt.owner, tt.items)
			requireKind(t, err, tt.kind)
		})
	}
	assert.Equal(t, 0, f.store.Counts().Holds)
}

func TestHoldCartForCheckout_UsesSavedCart(t *testing.T) {
	f := newFixture(t)
	p := f.product("Kaos", 50000, 5)
	ctx := context.Background()

	_, err := f.holds.HoldCartForCheckout(ctx, 3)
	requireKind(t, err, usecase.KindValidation)

	_, err = f.carts.AddToCart(ctx, 3, usecase.AddCartInput{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	res, err := f.holds.HoldCartForCheckout(ctx, 3)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, int64(2), res.Items[0].Quantity)
	assert.Equal(t, int64(3), f.available(t, model.ProductSKU(p.ID)))
}

func TestAbandonCheckoutAndPurgeExpired(t *testing.T) {
	f := newFixture(t)
	p := f.product("Kaos", 50000, 5)
	ctx := context.Background()

	_, err := f.holds.HoldForCheckout(ctx, model.GuestOwner{SessionID: "a"}, []usecase.HoldItem{item(p.ID, 1)})
	require.NoError(t, err)
	_, err = f.holds.HoldForCheckout(ctx, model.GuestOwner{SessionID: "b"}, []usecase.HoldItem{item(p.ID, 1)})
	require.NoError(t, err)

	n, err := f.holds.AbandonCheckout(ctx, model.GuestOwner{SessionID: "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	f.clock.Advance(time.Hour)
	n, err = f.holds.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, f.store.Counts().Holds)
}
