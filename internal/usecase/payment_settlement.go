package usecase

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

type SettlementOutcome string

const (
	SettlementSettled          SettlementOutcome = "settled"
	SettlementAlreadyProcessed SettlementOutcome = "already_processed"
	SettlementNotFound         SettlementOutcome = "not_found"
	SettlementStockShort       SettlementOutcome = "stock_short"
	SettlementFailed           SettlementOutcome = "failed"
)

type SettlementResult struct {
	Outcome SettlementOutcome `json:"outcome"`
	OrderID int64             `json:"order_id,omitempty"`
	Message string            `json:"message"`
}

func (r SettlementResult) OK() bool {
	return r.Outcome == SettlementSettled || r.Outcome == SettlementAlreadyProcessed
}

// 決済ゲートウェイからの成功通知を受けて在庫を確定させる
type PaymentSettlement struct {
	tx     repo.TransactionManager
	ledger *StockLedger
	clock  Clock
	log    *zap.Logger
}

func NewPaymentSettlement(tx repo.TransactionManager, ledger *StockLedger, clock Clock, log *zap.Logger) *PaymentSettlement {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentSettlement{tx: tx, ledger: ledger, clock: clock, log: log.Named("payment_settlement")}
}

var errSettledAlready = errors.New("already processed")

// ProcessSuccessfulPayment はエラーを返さない。結果は Outcome で判定する
func (p *PaymentSettlement) ProcessSuccessfulPayment(ctx context.Context, transactionRef string) SettlementResult {
	ref := strings.TrimSpace(transactionRef)
	if ref == "" {
		return SettlementResult{Outcome: SettlementNotFound, Message: "Transaksi tidak ditemukan"}
	}

	var orderID int64
	var short *OutOfStockError
	err := p.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//同じ通知の再送はここで直列化される
		order, err := r.Orders().FindByTransactionRefForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		orderID = order.ID
		if !order.Status.IsAwaitingPayment() {
			return errSettledAlready
		}

		items, err := r.OrderItems().ListByOrderID(ctx, order.ID)
		if err != nil {
			return err
		}
		skus := make([]model.SKU, 0, len(items))
		for _, it := range items {
			skus = append(skus, it.SKU())
		}
		avail, err := p.lockAvailable(ctx, r, skus)
		if err != nil {
			return err
		}

		//注文自身のホールドは確定時に解放済み。残っているのは他人のホールドだけ
		for _, it := range items {
			key := it.SKU().Key()
			if avail[key] < it.Quantity {
				short = &OutOfStockError{
					ProductID: it.ProductID,
					VariantID: it.VariantID,
					Name:      it.ProductNameSnapshot,
					Size:      it.SizeSnapshot,
					Requested: it.Quantity,
					Remaining: avail[key],
				}
				// 支払い済みでも在庫不足なら取り消して確定させる
				return p.cancelForShortage(ctx, r, order.ID, short)
			}
			avail[key] -= it.Quantity
		}
		for _, it := range items {
			if err := p.ledger.DecrementPermanently(ctx, r, it.SKU(), it.Quantity); err != nil {
				return err
			}
		}
		if err := p.ledger.recomputeFamilies(ctx, r, skus); err != nil {
			return err
		}

		if err := r.Orders().UpdateStatus(ctx, order.ID, model.OrderStatusProcessing); err != nil {
			return err
		}
		return r.OrderHistory().Create(ctx, model.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    model.OrderStatusProcessing,
			Note:      "Pembayaran diterima",
			CreatedAt: p.clock.Now(),
		})
	})

	switch {
	case err == nil && short != nil:
		p.log.Warn("payment settlement stock short, order cancelled",
			zap.String("transaction_ref", ref),
			zap.Int64("order_id", orderID),
			zap.Int64("product_id", short.ProductID),
			zap.Int64("requested", short.Requested),
			zap.Int64("remaining", short.Remaining),
		)
		return SettlementResult{Outcome: SettlementStockShort, OrderID: orderID, Message: short.Error()}
	case err == nil:
		p.log.Info("payment settled", zap.String("transaction_ref", ref), zap.Int64("order_id", orderID))
		return SettlementResult{Outcome: SettlementSettled, OrderID: orderID, Message: "Pembayaran berhasil diproses"}
	case errors.Is(err, errSettledAlready):
		p.log.Info("payment already processed", zap.String("transaction_ref", ref), zap.Int64("order_id", orderID))
		return SettlementResult{Outcome: SettlementAlreadyProcessed, OrderID: orderID, Message: "Pembayaran sudah diproses"}
	case errors.Is(err, repo.ErrNotFound) && orderID == 0:
		p.log.Warn("payment for unknown transaction", zap.String("transaction_ref", ref))
		return SettlementResult{Outcome: SettlementNotFound, Message: "Transaksi tidak ditemukan"}
	default:
		p.log.Error("payment settlement failed",
			zap.String("transaction_ref", ref),
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return SettlementResult{Outcome: SettlementFailed, OrderID: orderID, Message: msgTryAgain}
	}
}

// 行ロックを取ってから有効な在庫を数える。消えた SKU は 0
func (p *PaymentSettlement) lockAvailable(ctx context.Context, r repo.TxRepos, skus []model.SKU) (map[string]int64, error) {
	present, err := p.ledger.LockPresent(ctx, r, skus)
	if err != nil {
		return nil, err
	}
	avail := make(map[string]int64, len(present))
	for _, sku := range uniqueSKUs(skus) {
		if _, ok := present[sku.Key()]; !ok {
			continue
		}
		n, err := p.ledger.AvailableStock(ctx, r, sku)
		if err != nil {
			return nil, err
		}
		avail[sku.Key()] = n
	}
	return avail, nil
}

func (p *PaymentSettlement) cancelForShortage(ctx context.Context, r repo.TxRepos, orderID int64, short *OutOfStockError) error {
	if err := r.Orders().UpdateStatus(ctx, orderID, model.OrderStatusCancelled); err != nil {
		return err
	}
	return r.OrderHistory().Create(ctx, model.OrderStatusHistory{
		OrderID:   orderID,
		Status:    model.OrderStatusCancelled,
		Note:      "Dibatalkan otomatis: " + short.Error(),
		CreatedAt: p.clock.Now(),
	})
}
