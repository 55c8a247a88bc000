package usecase

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

type ProductUsecase struct {
	tx     repo.TransactionManager
	ledger *StockLedger
	log    *zap.Logger
}

// DI
func NewProductUsecase(tx repo.TransactionManager, ledger *StockLedger, log *zap.Logger) *ProductUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductUsecase{tx: tx, ledger: ledger, log: log.Named("product")}
}

type VariantAvailability struct {
	VariantID int64  `json:"variant_id"`
	Size      string `json:"size"`
	OnHand    int64  `json:"on_hand"`
	Available int64  `json:"available"`
}

// 表示用の在庫。Available は他人のホールドを引いた数
type AvailabilityOutput struct {
	ProductID int64                 `json:"product_id"`
	Name      string                `json:"name"`
	Price     int64                 `json:"price"`
	OnHand    int64                 `json:"on_hand"`
	Available int64                 `json:"available"`
	Variants  []VariantAvailability `json:"variants,omitempty"`
}

// variantID を指定するとそのサイズだけを返す
func (u *ProductUsecase) Availability(ctx context.Context, productID int64, variantID *int64) (AvailabilityOutput, error) {
	if productID <= 0 {
		return AvailabilityOutput{}, validationError("invalid id")
	}
	if variantID != nil && *variantID <= 0 {
		return AvailabilityOutput{}, validationError("variant_id tidak valid")
	}

	var out AvailabilityOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if err != nil {
			return err
		}
		if !p.IsActive {
			return repo.ErrNotFound
		}
		out = AvailabilityOutput{ProductID: p.ID, Name: p.Name, Price: p.EffectivePrice()}

		if !p.HasVariants {
			if variantID != nil {
				return repo.ErrNotFound
			}
			sku := model.ProductSKU(p.ID)
			avail, err := u.ledger.AvailableStock(ctx, r, sku)
			if err != nil {
				return err
			}
			out.OnHand, out.Available = p.Stock, avail
			return nil
		}

		variants, err := r.Products().ListVariantsByProductID(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, v := range variants {
			if variantID != nil && v.ID != *variantID {
				continue
			}
			avail, err := u.ledger.AvailableStock(ctx, r, model.VariantSKU(p.ID, v.ID))
			if err != nil {
				return err
			}
			out.Variants = append(out.Variants, VariantAvailability{
				VariantID: v.ID,
				Size:      v.Size,
				OnHand:    v.Stock,
				Available: avail,
			})
			out.OnHand += v.Stock
			out.Available += avail
		}
		if variantID != nil && len(out.Variants) == 0 {
			return repo.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return AvailabilityOutput{}, repoError(u.log, "availability", err, "Produk tidak ditemukan", zap.Int64("product_id", productID))
	}
	return out, nil
}

type AdminUpdateInventoryInput struct {
	Stock  int64
	Reason string
}

// バリアントを持つ商品は合計値なので直接は編集させない
func (u *ProductUsecase) AdminUpdateProductInventory(ctx context.Context, adminID int64, productID int64, in AdminUpdateInventoryInput) (AdjustResult, error) {
	if adminID <= 0 {
		return AdjustResult{}, unauthorizedError()
	}
	if productID <= 0 {
		return AdjustResult{}, validationError("invalid id")
	}

	var out AdjustResult
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if err != nil {
			return err
		}
		if p.HasVariants {
			return invalidOperation("Stok produk ini diatur per ukuran")
		}
		out, err = u.ledger.AdjustStock(ctx, r, StockAdjustment{
			SKU:         model.ProductSKU(productID),
			NewStock:    in.Stock,
			AdminUserID: adminID,
			Reason:      in.Reason,
		})
		return err
	})
	if err != nil {
		return AdjustResult{}, repoError(u.log, "admin_update_product_inventory", err, "Produk tidak ditemukan", zap.Int64("product_id", productID))
	}

	u.log.Info("inventory adjusted",
		zap.Int64("admin_id", adminID),
		zap.Int64("product_id", productID),
		zap.Int64("before", out.Before),
		zap.Int64("after", out.After),
	)
	return out, nil
}

func (u *ProductUsecase) AdminUpdateVariantInventory(ctx context.Context, adminID int64, variantID int64, in AdminUpdateInventoryInput) (AdjustResult, error) {
	if adminID <= 0 {
		return AdjustResult{}, unauthorizedError()
	}
	if variantID <= 0 {
		return AdjustResult{}, validationError("invalid id")
	}

	var out AdjustResult
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		v, err := r.Products().FindVariant(ctx, variantID)
		if err != nil {
			return err
		}
		//親が消えていれば対象外
		if _, err := r.Products().FindByID(ctx, v.ProductID); err != nil {
			return err
		}
		out, err = u.ledger.AdjustStock(ctx, r, StockAdjustment{
			SKU:         model.VariantSKU(v.ProductID, v.ID),
			NewStock:    in.Stock,
			AdminUserID: adminID,
			Reason:      in.Reason,
		})
		return err
	})
	if err != nil {
		return AdjustResult{}, repoError(u.log, "admin_update_variant_inventory", err, "Ukuran tidak ditemukan", zap.Int64("variant_id", variantID))
	}

	u.log.Info("inventory adjusted",
		zap.Int64("admin_id", adminID),
		zap.Int64("variant_id", variantID),
		zap.Int64("before", out.Before),
		zap.Int64("after", out.After),
	)
	return out, nil
}
