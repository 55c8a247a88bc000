package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessSuccessfulPayment_Idempotent(t *testing.T) {
	f := newFixture(t)
	p := f.product("Kaos", 50000, 10)
	out := f.checkout(t, model.GuestOwner{SessionID: "s1"}, "BANK_TRANSFER", item(p.ID, 3))
	ctx := context.Background()

	first := f.settlement.ProcessSuccessfulPayment(ctx, *out.TransactionRef)
	assert.Equal(t, usecase.SettlementSettled, first.Outcome)
	assert.True(t, first.OK())
	assert.Equal(t, out.OrderID, first.OrderID)

	second := f.settlement.ProcessSuccessfulPayment(ctx, *out.TransactionRef)
	assert.Equal(t, usecase.SettlementAlreadyProcessed, second.Outcome)
	assert.True(t, second.OK())

	assert.Equal(t, int64(7), f.onHand(t, model.ProductSKU(p.ID)))
	assert.Equal(t, model.OrderStatusProcessing, f.order(t, out.OrderID).Status)
	assert.Len(t, f.history(t, out.OrderID), 2)
}

func TestProcessSuccessfulPayment_ConcurrentReplaysSettleOnce(t *testing.T) {
	f := newFixture(t)
	p := f.product("Kaos", 50000, 10)
	out := f.checkout(t, model.GuestOwner{SessionID: "s1"}, "E_WALLET", item(p.ID, 2))
	ctx := context.Background()

	results := make([]usecase.SettlementResult, 8)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.settlement.ProcessSuccessfulPayment(ctx, *out.TransactionRef)
		}(i)
	}
	wg.Wait()

	settled := 0
	for _, r := range results {
		assert.True(t, r.OK())
		if r.Outcome == usecase.SettlementSettled {
			settled++
		}
	}
	assert.Equal(t, 1, settled)
	assert.Equal(t, int64(8), f.onHand(t, model.ProductSKU(p.ID)))
}

func TestProcessSuccessfulPayment_UnknownReference(t *testing.T) {
	f := newFixture(t)

	res := f.settlement.ProcessSuccessfulPayment(context.Background(), "TRX-NOPE")
	assert.Equal(t, usecase.SettlementNotFound, res.Outcome)
	assert.False(t, res.OK())

	res = f.settlement.ProcessSuccessfulPayment(context.Background(), "  ")
	assert.Equal(t, usecase.SettlementNotFound, res.Outcome)
}

func TestProcessSuccessfulPayment_StockShortCancelsOrder(t *testing.T) {
	f := newFixture(t)
	p := f.product("Kaos", 50000, 10)
	out := f.checkout(t, model.GuestOwner{SessionID: "s1"}, "BANK_TRANSFER", item(p.ID, 3))
	ctx := context.Background()

	_, err := f.products.AdminUpdateProductInventory(ctx, 1, p.ID, usecase.AdminUpdateInventoryInput{Stock: 2, Reason: "stok rusak"})
	require.NoError(t, err)

	res := f.settlement.ProcessSuccessfulPayment(ctx, *out.TransactionRef)
	assert.Equal(t, usecase.SettlementStockShort, res.Outcome)
	assert.False(t, res.OK())
	assert.Contains(t, res.Message, "tersisa 2")

	assert.Equal(t, model.OrderStatusCancelled, f.order(t, out.OrderID).Status)
	assert.Equal(t, int64(2), f.onHand(t, model.ProductSKU(p.ID)))
	hs := f.history(t, out.OrderID)
	require.Len(t, hs, 2)
	assert.Equal(t, model.OrderStatusCancelled, hs[1].Status)

	// 取り消し後の再送は処理済み扱い
	again := f.settlement.ProcessSuccessfulPayment(ctx, *out.TransactionRef)
	assert.Equal(t, usecase.SettlementAlreadyProcessed, again.Outcome)
}

func TestProcessSuccessfulPayment_RespectsOtherBuyersHolds(t *testing.T) {
	f := newFixture(t)
	p := f.product("Kaos", 50000, 5)
	sku := model.ProductSKU(p.ID)
	ctx := context.Background()
	other := model.GuestOwner{SessionID: "other"}

	// 支払い待ちの間に解放された分を別の買い手が確保する
	out := f.checkout(t, model.GuestOwner{SessionID: "payer"}, "BANK_TRANSFER", item(p.ID, 3))
	_, err := f.holds.HoldForCheckout(ctx, other, []usecase.HoldItem{item(p.ID, 3)})
	require.NoError(t, err)

	res := f.settlement.ProcessSuccessfulPayment(ctx, *out.TransactionRef)
	assert.Equal(t, usecase.SettlementStockShort, res.Outcome)
	assert.Contains(t, res.Message, "tersisa 2")
	assert.Equal(t, model.OrderStatusCancelled, f.order(t, out.OrderID).Status)
	assert.Equal(t, int64(5), f.onHand(t, sku))
	assert.Equal(t, int64(2), f.available(t, sku))

	// 確保していた買い手はそのまま注文できる
	_, err = f.orders.CreateOrder(ctx, usecase.CreateOrderInput{
		Owner:         other,
		Shipping:      guestShipping(),
		PaymentMethod: "COD",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.onHand(t, sku))
}

func TestProcessSuccessfulPayment_SettlesWhenOtherHoldsFit(t *testing.T) {
	f := newFixture(t)
	p := f.product("Kaos", 50000, 5)
	sku := model.ProductSKU(p.ID)
	ctx := context.Background()

	out := f.checkout(t, model.GuestOwner{SessionID: "payer"}, "BANK_TRANSFER", item(p.ID, 3))
	_, err := f.holds.HoldForCheckout(ctx, model.GuestOwner{SessionID: "other"}, []usecase.HoldItem{item(p.ID, 2)})
	require.NoError(t, err)

	res := f.settlement.ProcessSuccessfulPayment(ctx, *out.TransactionRef)
	assert.Equal(t, usecase.SettlementSettled, res.Outcome)
	assert.Equal(t, int64(2), f.onHand(t, sku))
	assert.Equal(t, int64(0), f.available(t, sku))
}

func TestProcessSuccessfulPayment_ExpiredHoldsDoNotBlock(t *testing.T) {
	f := newFixture(t)
	p := f.product("Kaos", 50000, 5)
	ctx := context.Background()

	out := f.checkout(t, model.GuestOwner{SessionID: "payer"}, "BANK_TRANSFER", item(p.ID, 3))
	_, err := f.holds.HoldForCheckout(ctx, model.GuestOwner{SessionID: "other"}, []usecase.HoldItem{item(p.ID, 3)})
	require.NoError(t, err)
	f.clock.Advance(usecase.DefaultHoldTTL + time.Minute)

	res := f.settlement.ProcessSuccessfulPayment(ctx, *out.TransactionRef)
	assert.Equal(t, usecase.SettlementSettled, res.Outcome)
	assert.Equal(t, int64(2), f.onHand(t, model.ProductSKU(p.ID)))
}

func TestProcessSuccessfulPayment_RemovedProductCancels(t *testing.T) {
	f := newFixture(t)
	p := f.product("Kaos", 50000, 5)
	ctx := context.Background()

	out := f.checkout(t, model.GuestOwner{SessionID: "payer"}, "BANK_TRANSFER", item(p.ID, 1))
	f.store.DeleteProduct(p.ID, baseTime)

	res := f.settlement.ProcessSuccessfulPayment(ctx, *out.TransactionRef)
	assert.Equal(t, usecase.SettlementStockShort, res.Outcome)
	assert.Contains(t, res.Message, "tersisa 0")
	assert.Equal(t, model.OrderStatusCancelled, f.order(t, out.OrderID).Status)

	again := f.settlement.ProcessSuccessfulPayment(ctx, *out.TransactionRef)
	assert.Equal(t, usecase.SettlementAlreadyProcessed, again.Outcome)
}

func TestProcessSuccessfulPayment_RemovedVariantParentCancels(t *testing.T) {
	f := newFixture(t)
	p := f.product("Sepatu", 400000, 0)
	s := f.store.SeedVariant(model.ProductVariant{ProductID: p.ID, Size: "40", Stock: 4})
	ctx := context.Background()

	out := f.checkout(t, model.GuestOwner{SessionID: "payer"}, "E_WALLET", variantItem(p.ID, s.ID, 1))
	f.store.DeleteProduct(p.ID, baseTime)

	res := f.settlement.ProcessSuccessfulPayment(ctx, *out.TransactionRef)
	assert.Equal(t, usecase.SettlementStockShort, res.Outcome)
	assert.Equal(t, model.OrderStatusCancelled, f.order(t, out.OrderID).Status)
	assert.Equal(t, int64(4), f.onHand(t, model.VariantSKU(p.ID, s.ID)))
}

func TestProcessSuccessfulPayment_LegacyCreatedStatus(t *testing.T) {
	f := newFixture(t)
	p := f.product("Kaos", 50000, 5)
	ref := "TRX-LEGACY"
	o := f.store.SeedOrder(model.Order{
		Status:         model.OrderStatusCreated,
		PaymentMethod:  model.PaymentMethodBankTransfer,
		TransactionRef: &ref,
		GuestSessionID: &ref,
		CreatedAt:      baseTime,
	}, []model.OrderItem{{ProductID: p.ID, ProductNameSnapshot: "Kaos", UnitPriceSnapshot: 50000, Quantity: 1}})

	res := f.settlement.ProcessSuccessfulPayment(context.Background(), ref)
	assert.Equal(t, usecase.SettlementSettled, res.Outcome)
	assert.Equal(t, model.OrderStatusProcessing, f.order(t, o.ID).Status)
	assert.Equal(t, int64(4), f.onHand(t, model.ProductSKU(p.ID)))
}
