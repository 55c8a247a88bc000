package usecase

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

// CartUsecase はログインユーザーの保存カート。チェックアウト時は HoldCartForCheckout が読む
type CartUsecase struct {
	tx  repo.TransactionManager
	log *zap.Logger
}

func NewCartUsecase(tx repo.TransactionManager, log *zap.Logger) *CartUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartUsecase{tx: tx, log: log.Named("cart")}
}

// price は unit_price_snapshot（追加時点の価格）を返します。
type CartItemResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Name      string `json:"name"`
	Size      string `json:"size,omitempty"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

type CartResponse struct {
	Items []CartItemResponse `json:"items"`
	Total int64              `json:"total"`
}

type AddCartInput struct {
	ProductID int64
	VariantID *int64
	Quantity  int64
}

// GetCart はカート取得（無ければACTIVEを作って空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, unauthorizedError()
	}

	var out CartResponse
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateActiveByUserID(ctx, userID)
		if err != nil {
			return err
		}
		out, err = buildCartResponse(ctx, r, cart.ID)
		return err
	})
	if err != nil {
		return CartResponse{}, repoError(u.log, "get_cart", err, "", zap.Int64("user_id", userID))
	}
	return out, nil
}

// AddToCart はカートに追加（同一SKUは数量加算）。
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, unauthorizedError()
	}
	if in.ProductID <= 0 {
		return CartResponse{}, validationError("product_id tidak valid")
	}
	if in.VariantID != nil && *in.VariantID <= 0 {
		return CartResponse{}, validationError("variant_id tidak valid")
	}
	if in.Quantity < 1 {
		return CartResponse{}, validationError("Jumlah harus lebih dari 0")
	}
	sku := model.SKU{ProductID: in.ProductID, VariantID: in.VariantID}

	var out CartResponse
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateActiveByUserID(ctx, userID)
		if err != nil {
			return err
		}

		labels, err := resolveLabels(ctx, r, []HoldItem{{ProductID: in.ProductID, VariantID: in.VariantID, Quantity: in.Quantity}})
		if err != nil {
			return err
		}
		lb := labels[sku.Key()]

		items, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return err
		}
		var existingQty int64
		for _, it := range items {
			if it.SKU().Key() == sku.Key() {
				existingQty = it.Quantity
				break
			}
		}

		//確保はしない。現在庫を超える数量だけ弾く
		onHand, err := r.Stock().OnHand(ctx, sku)
		if err != nil {
			return err
		}
		if existingQty+in.Quantity > onHand {
			return outOfStock(&OutOfStockError{
				ProductID: in.ProductID,
				VariantID: in.VariantID,
				Name:      lb.name,
				Size:      lb.size,
				Requested: existingQty + in.Quantity,
				Remaining: onHand,
			})
		}

		if err := r.CartItems().UpsertByCartAndSKU(ctx, cart.ID, sku, in.Quantity, lb.price); err != nil {
			return err
		}
		out, err = buildCartResponse(ctx, r, cart.ID)
		return err
	})
	if err != nil {
		return CartResponse{}, repoError(u.log, "add_to_cart", err, "", zap.Int64("user_id", userID), zap.Int64("product_id", in.ProductID))
	}
	return out, nil
}

// 明細削除
func (u *CartUsecase) DeleteCartItem(ctx context.Context, userID int64, cartItemID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, unauthorizedError()
	}
	if cartItemID <= 0 {
		return CartResponse{}, validationError("invalid id")
	}

	var out CartResponse
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		owned, err := r.CartItems().IsOwnedByUser(ctx, cartItemID, userID)
		if err != nil {
			return err
		}
		if !owned {
			return repo.ErrNotFound
		}
		if err := r.CartItems().DeleteByID(ctx, cartItemID); err != nil {
			return err
		}
		cart, err := r.Carts().FindActiveByUserID(ctx, userID)
		if err != nil {
			return err
		}
		out, err = buildCartResponse(ctx, r, cart.ID)
		return err
	})
	if err != nil {
		return CartResponse{}, repoError(u.log, "delete_cart_item", err, fmt.Sprintf("Item keranjang #%d tidak ditemukan", cartItemID), zap.Int64("user_id", userID))
	}
	return out, nil
}

// cartIDの明細をまとめてCartResponseを作る。消えた商品は表示しない
func buildCartResponse(ctx context.Context, r repo.TxRepos, cartID int64) (CartResponse, error) {
	items, err := r.CartItems().ListByCartID(ctx, cartID)
	if err != nil {
		return CartResponse{}, err
	}

	respItems := make([]CartItemResponse, 0, len(items))
	var total int64
	for _, it := range items {
		p, err := r.Products().FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return CartResponse{}, err
		}
		if !p.IsActive {
			continue
		}

		var size string
		if it.VariantID != nil {
			v, err := r.Products().FindVariant(ctx, *it.VariantID)
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			if err != nil {
				return CartResponse{}, err
			}
			size = v.Size
		}

		respItems = append(respItems, CartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Name:      p.Name,
			Size:      size,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
		total += it.UnitPriceSnapshot * it.Quantity
	}

	return CartResponse{Items: respItems, Total: total}, nil
}
