package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// 在庫数を書き換えるのはこの型だけ。
// メソッドはすべて呼び出し側のトランザクション (r) の中で動く
type StockLedger struct {
	clock Clock
}

func NewStockLedger(clock Clock) *StockLedger {
	if clock == nil {
		clock = SystemClock()
	}
	return &StockLedger{clock: clock}
}

// 期限切れホールドを消してから max(0, 現在庫 - 有効ホールド合計)
func (l *StockLedger) AvailableStock(ctx context.Context, r repo.TxRepos, sku model.SKU) (int64, error) {
	now := l.clock.Now()
	if _, err := r.Holds().DeleteExpired(ctx, &sku, now); err != nil {
		return 0, err
	}
	onHand, err := r.Stock().OnHand(ctx, sku)
	if err != nil {
		return 0, err
	}
	held, err := r.Holds().SumActive(ctx, sku, now)
	if err != nil {
		return 0, err
	}
	if avail := onHand - held; avail > 0 {
		return avail, nil
	}
	return 0, nil
}

// SKU順に行ロックを取る。戻り値は SKU.Key() -> 現在庫
func (l *StockLedger) LockForUpdate(ctx context.Context, r repo.TxRepos, skus []model.SKU) (map[string]int64, error) {
	ordered := uniqueSKUs(skus)
	onHand := make(map[string]int64, len(ordered))
	for _, sku := range ordered {
		n, err := r.Stock().LockOnHand(ctx, sku)
		if err != nil {
			return nil, err
		}
		onHand[sku.Key()] = n
	}
	return onHand, nil
}

// LockForUpdate と同じ順でロックするが、消えた SKU（商品の論理削除・バリアント削除）は飛ばす。
// 戻り値に無いキーが消えた SKU
func (l *StockLedger) LockPresent(ctx context.Context, r repo.TxRepos, skus []model.SKU) (map[string]int64, error) {
	ordered := uniqueSKUs(skus)
	onHand := make(map[string]int64, len(ordered))
	gone := map[int64]bool{}
	for _, sku := range ordered {
		if gone[sku.ProductID] {
			continue
		}
		if sku.HasVariant() {
			// バリアント行が残っていても親商品が消えていれば販売できない
			_, err := r.Products().FindByID(ctx, sku.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				gone[sku.ProductID] = true
				continue
			}
			if err != nil {
				return nil, err
			}
		}
		n, err := r.Stock().LockOnHand(ctx, sku)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		onHand[sku.Key()] = n
	}
	return onHand, nil
}

// 行ロック済みが前提。0行更新は SKU が消えたとみなす
func (l *StockLedger) DecrementPermanently(ctx context.Context, r repo.TxRepos, sku model.SKU, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("decrement %s: non-positive quantity %d", sku.Key(), qty)
	}
	ok, err := r.Stock().DecreaseIfEnough(ctx, sku, qty)
	if err != nil {
		return err
	}
	if !ok {
		return notFoundError(fmt.Sprintf("Stok untuk produk #%d tidak ditemukan", sku.ProductID))
	}
	return nil
}

// 在庫戻し
func (l *StockLedger) IncrementPermanently(ctx context.Context, r repo.TxRepos, sku model.SKU, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("increment %s: non-positive quantity %d", sku.Key(), qty)
	}
	return r.Stock().Increase(ctx, sku, qty)
}

// products.stock = sum(product_variants.stock)
func (l *StockLedger) RecomputeProductTotalFromVariants(ctx context.Context, r repo.TxRepos, productID int64) error {
	total, err := r.Stock().SumVariantStock(ctx, productID)
	if err != nil {
		return err
	}
	return r.Stock().SetProductStock(ctx, productID, total)
}

// バリアント経由で触った商品をまとめて再計算
func (l *StockLedger) recomputeFamilies(ctx context.Context, r repo.TxRepos, skus []model.SKU) error {
	seen := map[int64]bool{}
	for _, sku := range uniqueSKUs(skus) {
		if !sku.HasVariant() || seen[sku.ProductID] {
			continue
		}
		seen[sku.ProductID] = true
		if err := l.RecomputeProductTotalFromVariants(ctx, r, sku.ProductID); err != nil {
			return err
		}
	}
	return nil
}

type StockAdjustment struct {
	SKU         model.SKU
	NewStock    int64
	AdminUserID int64
	Reason      string
}

type AdjustResult struct {
	Before int64 `json:"before"`
	After  int64 `json:"after"`
}

// 管理者の在庫編集。行ロック→設定→調整履歴→合計再計算→監査ログ
func (l *StockLedger) AdjustStock(ctx context.Context, r repo.TxRepos, adj StockAdjustment) (AdjustResult, error) {
	if adj.NewStock < 0 {
		return AdjustResult{}, validationError("Stok tidak boleh negatif")
	}
	reason := strings.TrimSpace(adj.Reason)
	if reason == "" {
		return AdjustResult{}, validationError("Alasan perubahan stok wajib diisi")
	}

	before, err := r.Stock().LockOnHand(ctx, adj.SKU)
	if errors.Is(err, repo.ErrNotFound) {
		return AdjustResult{}, notFoundError("Produk tidak ditemukan")
	}
	if err != nil {
		return AdjustResult{}, err
	}

	if err := r.Stock().SetOnHand(ctx, adj.SKU, adj.NewStock); err != nil {
		return AdjustResult{}, err
	}

	if err := r.Stock().CreateAdjustment(ctx, model.InventoryAdjustment{
		ProductID:   adj.SKU.ProductID,
		VariantID:   adj.SKU.VariantID,
		AdminUserID: adj.AdminUserID,
		Delta:       adj.NewStock - before,
		Reason:      reason,
		CreatedAt:   l.clock.Now(),
	}); err != nil {
		return AdjustResult{}, err
	}

	if err := l.recomputeFamilies(ctx, r, []model.SKU{adj.SKU}); err != nil {
		return AdjustResult{}, err
	}

	//「誰が」「何を」「どの対象に」「どう変えたか」を残す
	resourceType, resourceID := model.AuditResourceProduct, adj.SKU.ProductID
	if adj.SKU.HasVariant() {
		resourceType, resourceID = model.AuditResourceVariant, *adj.SKU.VariantID
	}
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  adj.AdminUserID,
		Action:       model.AuditActionUpdateStock,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		BeforeJSON:   fmt.Sprintf(`{"stock":%d}`, before),
		AfterJSON:    fmt.Sprintf(`{"stock":%d,"reason":%q}`, adj.NewStock, reason),
		CreatedAt:    l.clock.Now(),
	}); err != nil {
		return AdjustResult{}, err
	}

	return AdjustResult{Before: before, After: adj.NewStock}, nil
}

// 重複を除いてロック順に並べる
func uniqueSKUs(skus []model.SKU) []model.SKU {
	seen := make(map[string]bool, len(skus))
	out := make([]model.SKU, 0, len(skus))
	for _, s := range skus {
		if seen[s.Key()] {
			continue
		}
		seen[s.Key()] = true
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
