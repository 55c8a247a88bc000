package usecase

import (
	"context"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

type AdminOrderUsecase struct {
	tx  repo.TransactionManager
	log *zap.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, log *zap.Logger) *AdminOrderUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminOrderUsecase{tx: tx, log: log.Named("admin_order")}
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return OrderListOutput{}, validationError("invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return OrderListOutput{}, validationError("invalid limit")
	}
	if f.Status != "" {
		st, ok := model.ParseOrderStatus(f.Status)
		if !ok {
			return OrderListOutput{}, validationError("Status pesanan tidak valid")
		}
		f.Status = string(st)
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return OrderListOutput{}, validationError("invalid period")
	}

	out := OrderListOutput{Items: []OrderOutput{}, Page: f.Page, Limit: f.Limit}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return err
		}
		out.Total = total
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return err
			}
			out.Items = append(out.Items, toOrderOutput(o, items, nil))
		}
		return nil
	})
	if err != nil {
		return OrderListOutput{}, repoError(u.log, "admin_list_orders", err, "")
	}
	return out, nil
}

type AdminOrderDetailOutput struct {
	OrderOutput
	AuditLogs []model.AuditLog `json:"audit_logs"`
}

// 注文詳細（履歴＋監査ログ付き）
func (u *AdminOrderUsecase) Detail(ctx context.Context, orderID int64) (AdminOrderDetailOutput, error) {
	if orderID <= 0 {
		return AdminOrderDetailOutput{}, validationError("invalid id")
	}

	var out AdminOrderDetailOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		history, err := r.OrderHistory().ListByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		logs, err := r.AuditLogs().ListByResource(ctx, model.AuditResourceOrder, orderID)
		if err != nil {
			return err
		}
		out = AdminOrderDetailOutput{OrderOutput: toOrderOutput(o, items, history), AuditLogs: logs}
		return nil
	})
	if err != nil {
		return AdminOrderDetailOutput{}, repoError(u.log, "admin_order_detail", err, "Pesanan tidak ditemukan", zap.Int64("order_id", orderID))
	}
	return out, nil
}

// 期間パラメータでtime.Timeが必要なら、handlerでこれを通してここに入れる
func ParseDateTimeRFC3339(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
