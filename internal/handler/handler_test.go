package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/handler"
	"storefront/internal/infra/memory"
	"storefront/internal/middleware"
	"storefront/internal/server"
	"storefront/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret    = "test-secret"
	webhookSecret = "hook-secret"
)

type testApp struct {
	e     *echo.Echo
	store *memory.Store
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	cfg := config.Config{JWTSecret: testSecret, WebhookSecret: webhookSecret}
	store := memory.NewStore()
	clock := usecase.SystemClock()
	ids := usecase.ULIDGenerator()
	ledger := usecase.NewStockLedger(clock)

	holds := usecase.NewHoldManager(store, ledger, clock, usecase.DefaultHoldTTL, nil)
	orders := usecase.NewOrderUsecase(store, ledger, holds, usecase.NewVoucherValidator(), clock, ids, nil)
	lifecycle := usecase.NewOrderLifecycle(store, ledger, clock, ids, nil)
	products := usecase.NewProductUsecase(store, ledger, nil)

	e := server.New(cfg, zap.NewNop(), server.Handlers{
		Product:        handler.NewProductHandler(products),
		Cart:           handler.NewCartHandler(usecase.NewCartUsecase(store, nil)),
		Checkout:       handler.NewCheckoutHandler(holds, orders),
		Order:          handler.NewOrderHandler(orders, lifecycle),
		Webhook:        handler.NewWebhookHandler(usecase.NewPaymentSettlement(store, ledger, clock, nil), webhookSecret),
		AdminOrder:     handler.NewAdminOrderHandler(usecase.NewAdminOrderUsecase(store, nil), lifecycle, clock, 24*time.Hour),
		AdminInventory: handler.NewAdminInventoryHandler(products),
	})
	return &testApp{e: e, store: store}
}

func mustMakeJWT(t *testing.T, sub int64, role model.Role) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  sub,
		"role": string(role),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (a *testApp) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func session(sid string) map[string]string {
	return map[string]string{middleware.HeaderSessionID: sid}
}

func shipping() *model.ShippingSnapshot {
	return &model.ShippingSnapshot{
		Name:       "Sari",
		Phone:      "081234567890",
		Address:    "Jl. Melati No. 5",
		City:       "Bandung",
		Province:   "Jawa Barat",
		PostalCode: "40111",
	}
}

func holdBody(productID, qty int64) handler.HoldRequest {
	return handler.HoldRequest{Items: []usecase.HoldItem{{ProductID: productID, Quantity: qty}}}
}

func TestGuestCheckoutAndPaymentWebhook(t *testing.T) {
	app := newTestApp(t)
	p := app.store.SeedProduct(model.Product{Name: "Kaos", Price: 50000, Stock: 5, IsActive: true})

	// セッション無しで始めると発行される
	rec := app.do(t, http.MethodPost, "/checkout/hold", holdBody(p.ID, 2), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sid := rec.Header().Get(middleware.HeaderSessionID)
	require.NotEmpty(t, sid)

	rec = app.do(t, http.MethodGet, "/checkout/hold", nil, session(sid))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[usecase.HoldResult](t, rec).Items, 1)

	rec = app.do(t, http.MethodPost, "/checkout/orders", handler.PlaceOrderRequest{
		Shipping:      shipping(),
		PaymentMethod: "BANK_TRANSFER",
		ShippingCost:  10000,
	}, session(sid))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[usecase.CreateOrderOutput](t, rec)
	require.NotNil(t, created.TransactionRef)
	assert.Equal(t, model.OrderStatusAwaitingPayment, created.Status)
	assert.Equal(t, int64(110000), created.Total)

	notify := handler.PaymentNotification{TransactionRef: *created.TransactionRef}

	rec = app.do(t, http.MethodPost, "/webhooks/payment", notify, map[string]string{handler.HeaderWebhookToken: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	hook := map[string]string{handler.HeaderWebhookToken: webhookSecret}
	rec = app.do(t, http.MethodPost, "/webhooks/payment", notify, hook)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, usecase.SettlementSettled, decode[usecase.SettlementResult](t, rec).Outcome)

	// 再送は冪等
	rec = app.do(t, http.MethodPost, "/webhooks/payment", notify, hook)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, usecase.SettlementAlreadyProcessed, decode[usecase.SettlementResult](t, rec).Outcome)

	// 不明な参照は再送させない
	rec = app.do(t, http.MethodPost, "/webhooks/payment", handler.PaymentNotification{TransactionRef: "TRX-UNKNOWN"}, hook)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, usecase.SettlementNotFound, decode[usecase.SettlementResult](t, rec).Outcome)

	rec = app.do(t, http.MethodGet, fmt.Sprintf("/guest/orders/%d", created.OrderID), nil, session(sid))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.OrderStatusProcessing, decode[usecase.OrderOutput](t, rec).Status)

	// 別セッションからは見えない
	rec = app.do(t, http.MethodGet, fmt.Sprintf("/guest/orders/%d", created.OrderID), nil, session(uuid.NewString()))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodGet, fmt.Sprintf("/products/%d/availability", p.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), decode[usecase.AvailabilityOutput](t, rec).OnHand)
}

func TestPaymentWebhook_StockShortIsAcknowledged(t *testing.T) {
	app := newTestApp(t)
	p := app.store.SeedProduct(model.Product{Name: "Kaos", Price: 50000, Stock: 2, IsActive: true})
	sid := uuid.NewString()

	rec := app.do(t, http.MethodPost, "/checkout/hold", holdBody(p.ID, 2), session(sid))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, http.MethodPost, "/checkout/orders", handler.PlaceOrderRequest{Shipping: shipping(), PaymentMethod: "E_WALLET"}, session(sid))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[usecase.CreateOrderOutput](t, rec)

	// 支払い待ちの間に別の買い手が全部確保する
	rec = app.do(t, http.MethodPost, "/checkout/hold", holdBody(p.ID, 2), session(uuid.NewString()))
	require.Equal(t, http.StatusOK, rec.Code)

	hook := map[string]string{handler.HeaderWebhookToken: webhookSecret}
	rec = app.do(t, http.MethodPost, "/webhooks/payment", handler.PaymentNotification{TransactionRef: *created.TransactionRef}, hook)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[usecase.SettlementResult](t, rec)
	assert.Equal(t, usecase.SettlementStockShort, res.Outcome)
	assert.Equal(t, created.OrderID, res.OrderID)

	rec = app.do(t, http.MethodGet, fmt.Sprintf("/guest/orders/%d", created.OrderID), nil, session(sid))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.OrderStatusCancelled, decode[usecase.OrderOutput](t, rec).Status)
}

func TestCheckoutHold_OutOfStockReportsRemaining(t *testing.T) {
	app := newTestApp(t)
	p := app.store.SeedProduct(model.Product{Name: "Topi", Price: 30000, Stock: 1, IsActive: true})

	rec := app.do(t, http.MethodPost, "/checkout/hold", holdBody(p.ID, 3), session(uuid.NewString()))
	require.Equal(t, http.StatusConflict, rec.Code)

	res := decode[handler.ErrorResponse](t, rec)
	require.NotNil(t, res.Stock)
	assert.Equal(t, p.ID, res.Stock.ProductID)
	assert.Equal(t, int64(3), res.Stock.Requested)
	assert.Equal(t, int64(1), res.Stock.Remaining)
	assert.Contains(t, res.Error, "Topi")
}

func TestPlaceOrder_VoucherRejectionIncludesReason(t *testing.T) {
	app := newTestApp(t)
	p := app.store.SeedProduct(model.Product{Name: "Tas", Price: 120000, Stock: 4, IsActive: true})
	sid := uuid.NewString()

	rec := app.do(t, http.MethodPost, "/checkout/hold", holdBody(p.ID, 1), session(sid))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodPost, "/checkout/orders", handler.PlaceOrderRequest{
		Shipping:      shipping(),
		PaymentMethod: "COD",
		VoucherCode:   "NOPE",
	}, session(sid))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(usecase.VoucherNotFound), decode[handler.ErrorResponse](t, rec).Reason)

	// 失敗してもホールドは残っている
	rec = app.do(t, http.MethodGet, "/checkout/hold", nil, session(sid))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[usecase.HoldResult](t, rec).Items, 1)
}

func TestCheckout_InvalidSessionHeader(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/checkout/hold", holdBody(1, 1), session("abc"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemberCartCheckoutAndCancel(t *testing.T) {
	app := newTestApp(t)
	user := app.store.SeedUser(model.User{Email: "budi@example.com"})
	p := app.store.SeedProduct(model.Product{Name: "Kemeja", Price: 90000, Stock: 3, IsActive: true})
	auth := bearer(mustMakeJWT(t, user.ID, model.RoleUser))

	rec := app.do(t, http.MethodPost, "/cart", handler.AddCartRequest{ProductID: p.ID, Quantity: 2}, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(180000), decode[usecase.CartResponse](t, rec).Total)

	// items 省略でカートから確保
	rec = app.do(t, http.MethodPost, "/checkout/hold", handler.HoldRequest{}, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodPost, "/checkout/orders", handler.PlaceOrderRequest{Shipping: shipping(), PaymentMethod: "COD"}, auth)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[usecase.CreateOrderOutput](t, rec)
	assert.Equal(t, model.OrderStatusProcessing, created.Status)

	rec = app.do(t, http.MethodGet, "/cart", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[usecase.CartResponse](t, rec).Items)

	rec = app.do(t, http.MethodGet, "/orders", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[usecase.OrderListOutput](t, rec).Total)

	rec = app.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/cancel", created.OrderID), nil, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// 二度目は状態エラー
	rec = app.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/cancel", created.OrderID), nil, auth)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodGet, fmt.Sprintf("/products/%d/availability", p.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), decode[usecase.AvailabilityOutput](t, rec).OnHand)

	// 他人の注文は存在しない扱い
	other := bearer(mustMakeJWT(t, user.ID+100, model.RoleUser))
	rec = app.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", created.OrderID), nil, other)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrders_RequireAuth(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodGet, "/orders", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodGet, "/cart", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodGet, "/guest/orders", nil, nil).Code)
}

func TestAdminOrderFlow(t *testing.T) {
	app := newTestApp(t)
	admin := app.store.SeedUser(model.User{Email: "admin@example.com", Role: model.RoleAdmin})
	p := app.store.SeedProduct(model.Product{Name: "Jaket", Price: 200000, Stock: 2, IsActive: true})
	sid := uuid.NewString()

	rec := app.do(t, http.MethodPost, "/checkout/hold", holdBody(p.ID, 1), session(sid))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, http.MethodPost, "/checkout/orders", handler.PlaceOrderRequest{Shipping: shipping(), PaymentMethod: "COD"}, session(sid))
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := decode[usecase.CreateOrderOutput](t, rec).OrderID

	userAuth := bearer(mustMakeJWT(t, admin.ID+1, model.RoleUser))
	assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodGet, "/admin/orders", nil, userAuth).Code)

	auth := bearer(mustMakeJWT(t, admin.ID, model.RoleAdmin))

	rec = app.do(t, http.MethodGet, "/admin/orders?status=Diproses", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), decode[usecase.OrderListOutput](t, rec).Total)

	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodGet, "/admin/orders?from=yesterday", nil, auth).Code)

	rec = app.do(t, http.MethodPut, fmt.Sprintf("/admin/orders/%d/status", orderID), handler.OrderStatusUpdateRequest{Status: "Dikirim"}, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[handler.StatusUpdateResponse](t, rec).Changed)

	rec = app.do(t, http.MethodGet, fmt.Sprintf("/admin/orders/%d", orderID), nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[usecase.AdminOrderDetailOutput](t, rec)
	assert.Equal(t, model.OrderStatusShipped, detail.Status)
	require.NotNil(t, detail.TrackingNumber)
	assert.NotEmpty(t, *detail.TrackingNumber)
	assert.NotEmpty(t, detail.AuditLogs)

	// 発送済みは取り消せない
	rec = app.do(t, http.MethodPost, fmt.Sprintf("/admin/orders/%d/cancel", orderID), nil, auth)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodPost, "/admin/orders/expire", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[handler.ExpireResponse](t, rec).Expired)
}

func TestAdminInventoryUpdate(t *testing.T) {
	app := newTestApp(t)
	admin := app.store.SeedUser(model.User{Email: "admin@example.com", Role: model.RoleAdmin})
	p := app.store.SeedProduct(model.Product{Name: "Sandal", Price: 40000, Stock: 2, IsActive: true})
	auth := bearer(mustMakeJWT(t, admin.ID, model.RoleAdmin))

	stock := int64(7)
	rec := app.do(t, http.MethodPut, fmt.Sprintf("/admin/inventory/products/%d", p.ID), handler.InventoryUpdateRequest{Stock: &stock, Reason: "restock"}, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[usecase.AdjustResult](t, rec)
	assert.Equal(t, int64(2), res.Before)
	assert.Equal(t, int64(7), res.After)

	rec = app.do(t, http.MethodPut, fmt.Sprintf("/admin/inventory/products/%d", p.ID), map[string]string{"reason": "x"}, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	negative := int64(-1)
	rec = app.do(t, http.MethodPut, fmt.Sprintf("/admin/inventory/products/%d", p.ID), handler.InventoryUpdateRequest{Stock: &negative}, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
