package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type voucherRepo struct{ st *state }

func (r voucherRepo) FindByCodeForUpdate(_ context.Context, code string) (model.Voucher, error) {
	for _, v := range r.st.vouchers {
		if v.Code == code {
			return v, nil
		}
	}
	return model.Voucher{}, repo.ErrNotFound
}

func (r voucherRepo) IncrementUse(_ context.Context, voucherID int64) (bool, error) {
	v, ok := r.st.vouchers[voucherID]
	if !ok {
		return false, nil
	}
	if v.MaxUses > 0 && v.UsedCount >= v.MaxUses {
		return false, nil
	}
	v.UsedCount++
	r.st.vouchers[voucherID] = v
	return true, nil
}

type cartRepo struct{ st *state }

func (r cartRepo) GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	c, err := r.FindActiveByUserID(ctx, userID)
	if err == nil {
		return c, nil
	}
	now := time.Now()
	c = model.Cart{
		ID:        r.st.nextID(),
		UserID:    userID,
		Status:    model.CartStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.st.carts[c.ID] = c
	return c, nil
}

func (r cartRepo) FindActiveByUserID(_ context.Context, userID int64) (model.Cart, error) {
	ids := sortedIDs(r.st.carts)
	for i := len(ids) - 1; i >= 0; i-- {
		c := r.st.carts[ids[i]]
		if c.UserID == userID && c.Status == model.CartStatusActive {
			return c, nil
		}
	}
	return model.Cart{}, repo.ErrNotFound
}

func (r cartRepo) Clear(_ context.Context, cartID int64) error {
	for id, it := range r.st.cartItems {
		if it.CartID == cartID {
			delete(r.st.cartItems, id)
		}
	}
	return nil
}

func (r cartRepo) ListByCartID(_ context.Context, cartID int64) ([]model.CartItem, error) {
	out := []model.CartItem{}
	for _, id := range sortedIDs(r.st.cartItems) {
		if it := r.st.cartItems[id]; it.CartID == cartID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r cartRepo) UpsertByCartAndSKU(_ context.Context, cartID int64, sku model.SKU, addQty int64, unitPriceSnapshot int64) error {
	if addQty <= 0 {
		return errors.New("invalid quantity")
	}
	now := time.Now()
	for id, it := range r.st.cartItems {
		if it.CartID == cartID && it.ProductID == sku.ProductID && sameVariant(it.VariantID, sku.VariantID) {
			it.Quantity += addQty
			it.UnitPriceSnapshot = unitPriceSnapshot
			it.UpdatedAt = now
			r.st.cartItems[id] = it
			return nil
		}
	}
	it := model.CartItem{
		ID:                r.st.nextID(),
		CartID:            cartID,
		ProductID:         sku.ProductID,
		VariantID:         sku.VariantID,
		Quantity:          addQty,
		UnitPriceSnapshot: unitPriceSnapshot,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	r.st.cartItems[it.ID] = it
	return nil
}

func (r cartRepo) DeleteByID(_ context.Context, cartItemID int64) error {
	if _, ok := r.st.cartItems[cartItemID]; !ok {
		return repo.ErrNotFound
	}
	delete(r.st.cartItems, cartItemID)
	return nil
}

func (r cartRepo) IsOwnedByUser(_ context.Context, cartItemID int64, userID int64) (bool, error) {
	it, ok := r.st.cartItems[cartItemID]
	if !ok {
		return false, nil
	}
	c, ok := r.st.carts[it.CartID]
	return ok && c.UserID == userID, nil
}

type userRepo struct{ st *state }

func (r userRepo) FindByID(_ context.Context, userID int64) (model.User, error) {
	u, ok := r.st.users[userID]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return u, nil
}

type addressRepo struct{ st *state }

func (r addressRepo) ListByUserID(_ context.Context, userID int64) ([]model.Address, error) {
	out := []model.Address{}
	for _, id := range sortedIDs(r.st.addresses) {
		if a := r.st.addresses[id]; a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IsDefault && !out[j].IsDefault })
	return out, nil
}

func (r addressRepo) FindDefaultByUserID(ctx context.Context, userID int64) (model.Address, error) {
	list, _ := r.ListByUserID(ctx, userID)
	if len(list) == 0 {
		return model.Address{}, repo.ErrNotFound
	}
	if list[0].IsDefault {
		return list[0], nil
	}
	// デフォルト無しは一番新しい住所
	return list[len(list)-1], nil
}

type auditLogRepo struct{ st *state }

func (r auditLogRepo) Create(_ context.Context, log model.AuditLog) error {
	log.ID = r.st.nextID()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	r.st.auditLogs[log.ID] = log
	return nil
}

func (r auditLogRepo) ListByResource(_ context.Context, resourceType model.AuditResourceType, resourceID int64) ([]model.AuditLog, error) {
	out := []model.AuditLog{}
	ids := sortedIDs(r.st.auditLogs)
	for i := len(ids) - 1; i >= 0; i-- {
		l := r.st.auditLogs[ids[i]]
		if l.ResourceType == resourceType && l.ResourceID == resourceID {
			out = append(out, l)
		}
	}
	return out, nil
}
