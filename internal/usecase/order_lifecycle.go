package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

const expireBatchSize = 100

// 操作した人。Admin=true なら他人の注文も触れる
type Actor struct {
	UserID    int64
	SessionID string
	Admin     bool
}

func (a Actor) owns(o model.Order) bool {
	if a.UserID > 0 && o.UserID != nil {
		return *o.UserID == a.UserID
	}
	if a.SessionID != "" && o.UserID == nil && o.GuestSessionID != nil {
		return *o.GuestSessionID == a.SessionID
	}
	return false
}

// 作成後のステータス遷移と在庫戻し
type OrderLifecycle struct {
	tx     repo.TransactionManager
	ledger *StockLedger
	clock  Clock
	ids    IDGenerator
	log    *zap.Logger
}

func NewOrderLifecycle(tx repo.TransactionManager, ledger *StockLedger, clock Clock, ids IDGenerator, log *zap.Logger) *OrderLifecycle {
	if clock == nil {
		clock = SystemClock()
	}
	if ids == nil {
		ids = ULIDGenerator()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderLifecycle{tx: tx, ledger: ledger, clock: clock, ids: ids, log: log.Named("order_lifecycle")}
}

// Cancel は支払い待ち・処理中の注文のみ。処理中なら在庫を戻す
func (l *OrderLifecycle) Cancel(ctx context.Context, orderID int64, actor Actor) error {
	if orderID <= 0 {
		return validationError("invalid id")
	}
	actor.SessionID = strings.TrimSpace(actor.SessionID)
	if !actor.Admin && actor.UserID <= 0 && actor.SessionID == "" {
		return unauthorizedError()
	}

	var restocked bool
	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.Admin && !actor.owns(o) {
			//他人の注文は見えない扱い
			return repo.ErrNotFound
		}
		restocked, err = l.cancelInTx(ctx, r, o, actor, cancelNote(actor))
		return err
	})
	if err != nil {
		return repoError(l.log, "cancel_order", err, "Pesanan tidak ditemukan", zap.Int64("order_id", orderID))
	}

	l.log.Info("order cancelled",
		zap.Int64("order_id", orderID),
		zap.Bool("admin", actor.Admin),
		zap.Bool("restocked", restocked),
	)
	return nil
}

func cancelNote(actor Actor) string {
	if actor.Admin {
		return "Dibatalkan oleh admin"
	}
	return "Dibatalkan oleh pembeli"
}

// 行ロック済みの注文を取り消す。戻り値は在庫を戻したかどうか
func (l *OrderLifecycle) cancelInTx(ctx context.Context, r repo.TxRepos, o model.Order, actor Actor, note string) (bool, error) {
	if !o.Status.IsAwaitingPayment() && o.Status != model.OrderStatusProcessing {
		return false, invalidOperation(fmt.Sprintf("Pesanan tidak dapat dibatalkan karena berstatus '%s'", o.Status))
	}

	restock := o.Status == model.OrderStatusProcessing
	if restock {
		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return false, err
		}
		skus := make([]model.SKU, 0, len(items))
		for _, it := range items {
			skus = append(skus, it.SKU())
		}
		present, err := l.ledger.LockPresent(ctx, r, skus)
		if err != nil {
			return false, err
		}
		restocked := make([]model.SKU, 0, len(items))
		for _, it := range items {
			if _, ok := present[it.SKU().Key()]; !ok {
				// 販売終了した商品は戻し先が無い。取り消し自体は進める
				l.log.Warn("restock skipped for removed sku",
					zap.Int64("order_id", o.ID),
					zap.Int64("product_id", it.ProductID),
					zap.Int64("quantity", it.Quantity),
				)
				continue
			}
			if err := l.ledger.IncrementPermanently(ctx, r, it.SKU(), it.Quantity); err != nil {
				return false, err
			}
			restocked = append(restocked, it.SKU())
		}
		if err := l.ledger.recomputeFamilies(ctx, r, restocked); err != nil {
			return false, err
		}
	}

	now := l.clock.Now()
	if err := r.Orders().UpdateStatus(ctx, o.ID, model.OrderStatusCancelled); err != nil {
		return false, err
	}
	if err := r.OrderHistory().Create(ctx, model.OrderStatusHistory{
		OrderID:   o.ID,
		Status:    model.OrderStatusCancelled,
		Note:      note,
		CreatedAt: now,
	}); err != nil {
		return false, err
	}

	if actor.Admin {
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actor.UserID,
			Action:       model.AuditActionCancelOrder,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   o.ID,
			BeforeJSON:   fmt.Sprintf(`{"status":%q}`, o.Status),
			AfterJSON:    fmt.Sprintf(`{"status":%q,"restocked":%t}`, model.OrderStatusCancelled, restock),
			CreatedAt:    now,
		}); err != nil {
			return false, err
		}
	}
	return restock, nil
}

// 管理者の発送・完了操作。何も変わらなければ changed=false
func (l *OrderLifecycle) UpdateStatusAndTracking(ctx context.Context, adminID int64, orderID int64, newStatus string, tracking *string) (bool, error) {
	if adminID <= 0 {
		return false, unauthorizedError()
	}
	if orderID <= 0 {
		return false, validationError("invalid id")
	}
	target, ok := model.ParseOrderStatus(newStatus)
	if !ok {
		return false, validationError("Status pesanan tidak valid")
	}
	if tracking != nil {
		t := strings.TrimSpace(*tracking)
		tracking = nil
		if t != "" {
			tracking = &t
		}
	}

	var changed bool
	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		trackingChanged := tracking != nil && (o.TrackingNumber == nil || *o.TrackingNumber != *tracking)
		if target == o.Status && !trackingChanged {
			return nil
		}

		if target == model.OrderStatusCancelled {
			if o.Status == model.OrderStatusCancelled {
				return invalidOperation("Pesanan sudah dibatalkan")
			}
			changed = true
			_, err := l.cancelInTx(ctx, r, o, Actor{UserID: adminID, Admin: true}, cancelNote(Actor{Admin: true}))
			return err
		}

		if target != o.Status {
			//処理中への遷移は決済確認（またはCOD）経由のみ
			if target == model.OrderStatusProcessing || !model.CanTransition(o.Status, target) {
				return invalidOperation(fmt.Sprintf("Status pesanan tidak dapat diubah dari '%s' ke '%s'", o.Status, target))
			}
		} else if o.Status == model.OrderStatusCancelled {
			return invalidOperation(fmt.Sprintf("Pesanan berstatus '%s' tidak dapat diubah", o.Status))
		}

		nextTracking := o.TrackingNumber
		if tracking != nil {
			nextTracking = tracking
		}
		if target == model.OrderStatusShipped && nextTracking == nil {
			t := l.ids.NewTrackingNumber()
			nextTracking = &t
		}

		if err := r.Orders().UpdateStatusAndTracking(ctx, o.ID, target, nextTracking); err != nil {
			return err
		}

		now := l.clock.Now()
		if target != o.Status {
			if err := r.OrderHistory().Create(ctx, model.OrderStatusHistory{
				OrderID:   o.ID,
				Status:    target,
				Note:      statusNote(target, nextTracking),
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   o.ID,
			BeforeJSON:   fmt.Sprintf(`{"status":%q,"tracking_number":%q}`, o.Status, deref(o.TrackingNumber)),
			AfterJSON:    fmt.Sprintf(`{"status":%q,"tracking_number":%q}`, target, deref(nextTracking)),
			CreatedAt:    now,
		}); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, repoError(l.log, "update_order_status", err, "Pesanan tidak ditemukan", zap.Int64("order_id", orderID))
	}
	if changed {
		l.log.Info("order status updated",
			zap.Int64("order_id", orderID),
			zap.Int64("admin_id", adminID),
			zap.String("status", string(target)),
		)
	}
	return changed, nil
}

func statusNote(s model.OrderStatus, tracking *string) string {
	switch s {
	case model.OrderStatusShipped:
		return "Pesanan dikirim, resi " + deref(tracking)
	case model.OrderStatusCompleted:
		return "Pesanan selesai"
	}
	return "Status diperbarui"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ExpirePendingOrders は cutoff より前に作られた支払い待ち注文を取り消す。
// 在庫は減っていないので戻さない
func (l *OrderLifecycle) ExpirePendingOrders(ctx context.Context, cutoff time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		var n, seen int
		err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			orders, err := r.Orders().ListAwaitingPaymentBefore(ctx, cutoff, expireBatchSize)
			if err != nil {
				return err
			}
			seen = len(orders)
			now := l.clock.Now()

			history := make([]model.OrderStatusHistory, 0, len(orders))
			for _, candidate := range orders {
				//決済と競合したらそちらを優先
				o, err := r.Orders().FindByIDForUpdate(ctx, candidate.ID)
				if err != nil {
					return err
				}
				if !o.Status.IsAwaitingPayment() {
					continue
				}
				if err := r.Orders().UpdateStatus(ctx, o.ID, model.OrderStatusCancelled); err != nil {
					return err
				}
				history = append(history, model.OrderStatusHistory{
					OrderID:   o.ID,
					Status:    model.OrderStatusCancelled,
					Note:      "Dibatalkan otomatis: batas waktu pembayaran habis",
					CreatedAt: now,
				})
			}
			if len(history) == 0 {
				return nil
			}
			if err := r.OrderHistory().CreateBulk(ctx, history); err != nil {
				return err
			}
			n = len(history)
			return nil
		})
		if err != nil {
			return total, repoError(l.log, "expire_pending_orders", err, "", zap.Time("cutoff", cutoff))
		}
		total += n
		if seen < expireBatchSize || n == 0 {
			break
		}
	}

	if total > 0 {
		l.log.Info("pending orders expired", zap.Int("count", total), zap.Time("cutoff", cutoff))
	}
	return total, nil
}
