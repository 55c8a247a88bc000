package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/infra/memory"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// 連番で払い出す（テストで値を当てにできるように）
type seqIDs struct {
	mu       sync.Mutex
	trx, trk int
}

func (g *seqIDs) NewTransactionRef() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.trx++
	return fmt.Sprintf("TRX-%04d", g.trx)
}

func (g *seqIDs) NewTrackingNumber() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.trk++
	return fmt.Sprintf("RESI-%04d", g.trk)
}

var baseTime = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store *memory.Store
	clock *fixedClock

	ledger     *usecase.StockLedger
	holds      *usecase.HoldManager
	orders     *usecase.OrderUsecase
	settlement *usecase.PaymentSettlement
	lifecycle  *usecase.OrderLifecycle
	products   *usecase.ProductUsecase
	carts      *usecase.CartUsecase
	admin      *usecase.AdminOrderUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	clock := &fixedClock{now: baseTime}
	ids := &seqIDs{}

	ledger := usecase.NewStockLedger(clock)
	holds := usecase.NewHoldManager(store, ledger, clock, usecase.DefaultHoldTTL, nil)

	return &fixture{
		store:      store,
		clock:      clock,
		ledger:     ledger,
		holds:      holds,
		orders:     usecase.NewOrderUsecase(store, ledger, holds, usecase.NewVoucherValidator(), clock, ids, nil),
		settlement: usecase.NewPaymentSettlement(store, ledger, clock, nil),
		lifecycle:  usecase.NewOrderLifecycle(store, ledger, clock, ids, nil),
		products:   usecase.NewProductUsecase(store, ledger, nil),
		carts:      usecase.NewCartUsecase(store, nil),
		admin:      usecase.NewAdminOrderUsecase(store, nil),
	}
}

func (f *fixture) product(name string, price, stock int64) model.Product {
	return f.store.SeedProduct(model.Product{Name: name, Price: price, Stock: stock, IsActive: true})
}

func (f *fixture) onHand(t *testing.T, sku model.SKU) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		var err error
		n, err = r.Stock().OnHand(context.Background(), sku)
		return err
	}))
	return n
}

func (f *fixture) available(t *testing.T, sku model.SKU) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		var err error
		n, err = f.ledger.AvailableStock(context.Background(), r, sku)
		return err
	}))
	return n
}

func (f *fixture) order(t *testing.T, id int64) model.Order {
	t.Helper()
	var o model.Order
	require.NoError(t, f.store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		var err error
		o, err = r.Orders().FindByID(context.Background(), id)
		return err
	}))
	return o
}

func (f *fixture) history(t *testing.T, id int64) []model.OrderStatusHistory {
	t.Helper()
	var hs []model.OrderStatusHistory
	require.NoError(t, f.store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		var err error
		hs, err = r.OrderHistory().ListByOrderID(context.Background(), id)
		return err
	}))
	return hs
}

func guestShipping() *model.ShippingSnapshot {
	return &model.ShippingSnapshot{
		Name:       "Sari",
		Phone:      "081234567890",
		Email:      "sari@example.com",
		Address:    "Jl. Melati No. 5",
		City:       "Bandung",
		Province:   "Jawa Barat",
		PostalCode: "40111",
	}
}

// ホールド→注文確定までをまとめて行う
func (f *fixture) checkout(t *testing.T, owner model.Owner, method string, items ...usecase.HoldItem) usecase.CreateOrderOutput {
	t.Helper()
	ctx := context.Background()
	_, err := f.holds.HoldForCheckout(ctx, owner, items)
	require.NoError(t, err)
	out, err := f.orders.CreateOrder(ctx, usecase.CreateOrderInput{
		Owner:         owner,
		Shipping:      guestShipping(),
		PaymentMethod: method,
		ShippingCost:  10000,
	})
	require.NoError(t, err)
	return out
}

func item(productID int64, qty int64) usecase.HoldItem {
	return usecase.HoldItem{ProductID: productID, Quantity: qty}
}

func variantItem(productID, variantID int64, qty int64) usecase.HoldItem {
	v := variantID
	return usecase.HoldItem{ProductID: productID, VariantID: &v, Quantity: qty}
}

func requireKind(t *testing.T, err error, kind usecase.ErrorKind) *usecase.AppError {
	t.Helper()
	require.Error(t, err)
	ae, ok := usecase.AsAppError(err)
	require.True(t, ok, "err=%v is not AppError", err)
	require.Equal(t, kind, ae.Kind, "err=%v", err)
	return ae
}
