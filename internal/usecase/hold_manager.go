package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

const DefaultHoldTTL = 10 * time.Minute

// チェックアウト中の在庫一時確保
type HoldManager struct {
	tx     repo.TransactionManager
	ledger *StockLedger
	clock  Clock
	ttl    time.Duration
	log    *zap.Logger
}

func NewHoldManager(tx repo.TransactionManager, ledger *StockLedger, clock Clock, ttl time.Duration, log *zap.Logger) *HoldManager {
	if clock == nil {
		clock = SystemClock()
	}
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HoldManager{tx: tx, ledger: ledger, clock: clock, ttl: ttl, log: log.Named("hold_manager")}
}

type HoldItem struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Quantity  int64  `json:"quantity"`
}

func (it HoldItem) SKU() model.SKU {
	return model.SKU{ProductID: it.ProductID, VariantID: it.VariantID}
}

type HeldItemOutput struct {
	ProductID int64     `json:"product_id"`
	VariantID *int64    `json:"variant_id,omitempty"`
	Quantity  int64     `json:"quantity"`
	ExpiresAt time.Time `json:"expires_at"`
}

type HoldResult struct {
	ExpiresAt time.Time        `json:"expires_at"`
	Items     []HeldItemOutput `json:"items"`
}

func validateOwner(owner model.Owner) error {
	switch o := owner.(type) {
	case model.UserOwner:
		if o.ID <= 0 {
			return validationError("Sesi tidak valid")
		}
		return nil
	case model.GuestOwner:
		if strings.TrimSpace(o.SessionID) == "" {
			return validationError("Sesi tidak valid")
		}
		return nil
	}
	return validationError("Sesi tidak valid")
}

// 同一SKUは数量をまとめる（順序は最初に現れた順）
func normalizeHoldItems(items []HoldItem) ([]HoldItem, error) {
	if len(items) == 0 {
		return nil, validationError("Keranjang kosong")
	}
	index := map[string]int{}
	out := make([]HoldItem, 0, len(items))
	for _, it := range items {
		if it.ProductID <= 0 {
			return nil, validationError("product_id tidak valid")
		}
		if it.VariantID != nil && *it.VariantID <= 0 {
			return nil, validationError("variant_id tidak valid")
		}
		if it.Quantity <= 0 {
			return nil, validationError("Jumlah harus lebih dari 0")
		}
		key := it.SKU().Key()
		if i, ok := index[key]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[key] = len(out)
		out = append(out, it)
	}
	return out, nil
}

// HoldForCheckout は既存ホールドを消して、全行まとめて確保し直す（全部か無しか）
func (m *HoldManager) HoldForCheckout(ctx context.Context, owner model.Owner, items []HoldItem) (HoldResult, error) {
	if err := validateOwner(owner); err != nil {
		return HoldResult{}, err
	}
	lines, err := normalizeHoldItems(items)
	if err != nil {
		return HoldResult{}, err
	}

	var out HoldResult
	err = m.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		res, err := m.holdInTx(ctx, r, owner, lines)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return HoldResult{}, repoError(m.log, "hold_for_checkout", err, "", zap.String("owner", owner.String()))
	}
	return out, nil
}

// ログイン中ユーザーは保存済みカートの中身で確保する
func (m *HoldManager) HoldCartForCheckout(ctx context.Context, userID int64) (HoldResult, error) {
	owner := model.UserOwner{ID: userID}
	if err := validateOwner(owner); err != nil {
		return HoldResult{}, unauthorizedError()
	}

	var out HoldResult
	err := m.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindActiveByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return validationError("Keranjang kosong")
		}
		if err != nil {
			return err
		}
		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return err
		}

		items := make([]HoldItem, 0, len(cartItems))
		for _, ci := range cartItems {
			items = append(items, HoldItem{ProductID: ci.ProductID, VariantID: ci.VariantID, Quantity: ci.Quantity})
		}
		lines, err := normalizeHoldItems(items)
		if err != nil {
			return err
		}

		res, err := m.holdInTx(ctx, r, owner, lines)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return HoldResult{}, repoError(m.log, "hold_cart_for_checkout", err, "", zap.Int64("user_id", userID))
	}
	return out, nil
}

func (m *HoldManager) holdInTx(ctx context.Context, r repo.TxRepos, owner model.Owner, lines []HoldItem) (HoldResult, error) {
	//やり直しは既存ホールドを全部消してから
	if _, err := m.ReleaseHoldsForOwner(ctx, r, owner); err != nil {
		return HoldResult{}, err
	}

	labels, err := resolveLabels(ctx, r, lines)
	if err != nil {
		return HoldResult{}, err
	}

	skus := make([]model.SKU, 0, len(lines))
	for _, it := range lines {
		skus = append(skus, it.SKU())
	}
	//在庫行が直列化ポイント
	if _, err := m.ledger.LockForUpdate(ctx, r, skus); err != nil {
		return HoldResult{}, err
	}

	for _, it := range lines {
		avail, err := m.ledger.AvailableStock(ctx, r, it.SKU())
		if err != nil {
			return HoldResult{}, err
		}
		if it.Quantity > avail {
			lb := labels[it.SKU().Key()]
			return HoldResult{}, outOfStock(&OutOfStockError{
				ProductID: it.ProductID,
				VariantID: it.VariantID,
				Name:      lb.name,
				Size:      lb.size,
				Requested: it.Quantity,
				Remaining: avail,
			})
		}
	}

	now := m.clock.Now()
	expiresAt := now.Add(m.ttl)
	userID, sessionID := model.OwnerColumns(owner)

	holds := make([]model.StockHold, 0, len(lines))
	outItems := make([]HeldItemOutput, 0, len(lines))
	for _, it := range lines {
		holds = append(holds, model.StockHold{
			UserID:    userID,
			SessionID: sessionID,
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			CreatedAt: now,
			ExpiresAt: expiresAt,
		})
		outItems = append(outItems, HeldItemOutput{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			ExpiresAt: expiresAt,
		})
	}
	if err := r.Holds().CreateBulk(ctx, holds); err != nil {
		return HoldResult{}, err
	}

	return HoldResult{ExpiresAt: expiresAt, Items: outItems}, nil
}

type skuLabel struct {
	name  string
	size  string
	price int64
}

// 商品名・サイズ・実売価格を引く。消えた商品／バリアント無し指定はここで弾く
func resolveLabels(ctx context.Context, r repo.TxRepos, lines []HoldItem) (map[string]skuLabel, error) {
	pids := make([]int64, 0, len(lines))
	var vids []int64
	for _, it := range lines {
		pids = append(pids, it.ProductID)
		if it.VariantID != nil {
			vids = append(vids, *it.VariantID)
		}
	}

	products, err := r.Products().FindByIDs(ctx, pids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	variants, err := r.Products().FindVariantsByIDs(ctx, vids)
	if err != nil {
		return nil, err
	}
	vByID := make(map[int64]model.ProductVariant, len(variants))
	for _, v := range variants {
		vByID[v.ID] = v
	}

	labels := make(map[string]skuLabel, len(lines))
	for _, it := range lines {
		p, ok := byID[it.ProductID]
		if !ok || !p.IsActive {
			return nil, notFoundError(fmt.Sprintf("Produk #%d sudah tidak tersedia", it.ProductID))
		}
		lb := skuLabel{name: p.Name, price: p.EffectivePrice()}
		if it.VariantID == nil {
			if p.HasVariants {
				return nil, validationError(fmt.Sprintf("Pilih ukuran untuk '%s'", p.Name))
			}
		} else {
			v, ok := vByID[*it.VariantID]
			if !ok || v.ProductID != p.ID {
				return nil, notFoundError(fmt.Sprintf("Ukuran untuk '%s' sudah tidak tersedia", p.Name))
			}
			lb.size = v.Size
		}
		labels[it.SKU().Key()] = lb
	}
	return labels, nil
}

// 呼び出し側のトランザクション内で実行すること
func (m *HoldManager) ReleaseHoldsForOwner(ctx context.Context, r repo.TxRepos, owner model.Owner) (int64, error) {
	return r.Holds().DeleteByOwner(ctx, owner)
}

// 期限内のホールドのみ。注文の明細はここから作る
func (m *HoldManager) ListActiveHoldsForOwner(ctx context.Context, r repo.TxRepos, owner model.Owner) ([]model.StockHold, error) {
	return r.Holds().ListActiveByOwner(ctx, owner, m.clock.Now())
}

// 現在のホールド表示用
func (m *HoldManager) CurrentHolds(ctx context.Context, owner model.Owner) (HoldResult, error) {
	if err := validateOwner(owner); err != nil {
		return HoldResult{}, err
	}

	var out HoldResult
	err := m.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		holds, err := m.ListActiveHoldsForOwner(ctx, r, owner)
		if err != nil {
			return err
		}
		out.Items = make([]HeldItemOutput, 0, len(holds))
		for _, h := range holds {
			if out.ExpiresAt.IsZero() || h.ExpiresAt.Before(out.ExpiresAt) {
				out.ExpiresAt = h.ExpiresAt
			}
			out.Items = append(out.Items, HeldItemOutput{
				ProductID: h.ProductID,
				VariantID: h.VariantID,
				Quantity:  h.Quantity,
				ExpiresAt: h.ExpiresAt,
			})
		}
		return nil
	})
	if err != nil {
		return HoldResult{}, repoError(m.log, "current_holds", err, "", zap.String("owner", owner.String()))
	}
	return out, nil
}

// チェックアウト中断。件数を返す
func (m *HoldManager) AbandonCheckout(ctx context.Context, owner model.Owner) (int64, error) {
	if err := validateOwner(owner); err != nil {
		return 0, err
	}

	var n int64
	err := m.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		n, err = m.ReleaseHoldsForOwner(ctx, r, owner)
		return err
	})
	if err != nil {
		return 0, repoError(m.log, "abandon_checkout", err, "", zap.String("owner", owner.String()))
	}
	return n, nil
}

// 期限切れホールドの一括削除（スケジューラから）
func (m *HoldManager) PurgeExpired(ctx context.Context) (int64, error) {
	var n int64
	err := m.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		n, err = r.Holds().DeleteExpired(ctx, nil, m.clock.Now())
		return err
	})
	if err != nil {
		return 0, repoError(m.log, "purge_expired_holds", err, "")
	}
	return n, nil
}
