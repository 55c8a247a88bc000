package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	Create(ctx context.Context, order model.Order) (int64, error)
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	//行ロック付き
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)
	FindByTransactionRef(ctx context.Context, ref string) (model.Order, error)
	FindByTransactionRefForUpdate(ctx context.Context, ref string) (model.Order, error)

	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
	UpdateStatusAndTracking(ctx context.Context, orderID int64, status model.OrderStatus, tracking *string) error

	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	ListByGuestSession(ctx context.Context, sessionID string) ([]model.Order, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)

	// 支払い待ちのまま cutoff より前に作られた注文（古い順）
	ListAwaitingPaymentBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error)

	// ゲスト注文を会員に紐づける
	AdoptGuestOrders(ctx context.Context, sessionID string, userID int64) (int64, error)
}

type OrderHistoryRepository interface {
	Create(ctx context.Context, h model.OrderStatusHistory) error
	CreateBulk(ctx context.Context, hs []model.OrderStatusHistory) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error)
}
