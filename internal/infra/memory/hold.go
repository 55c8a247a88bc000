package memory

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"
)

var errNoOwner = errors.New("owner is required")

func validOwner(owner model.Owner) error {
	switch o := owner.(type) {
	case model.UserOwner:
		return nil
	case model.GuestOwner:
		if o.SessionID == "" {
			return errNoOwner
		}
		return nil
	}
	return errNoOwner
}

type holdRepo struct{ st *state }

func (r holdRepo) DeleteByOwner(_ context.Context, owner model.Owner) (int64, error) {
	if err := validOwner(owner); err != nil {
		return 0, err
	}
	var n int64
	for id, h := range r.st.holds {
		if h.OwnedBy(owner) {
			delete(r.st.holds, id)
			n++
		}
	}
	return n, nil
}

func (r holdRepo) DeleteExpired(_ context.Context, sku *model.SKU, now time.Time) (int64, error) {
	var n int64
	for id, h := range r.st.holds {
		if h.IsActive(now) {
			continue
		}
		if sku != nil && (h.ProductID != sku.ProductID || !sameVariant(h.VariantID, sku.VariantID)) {
			continue
		}
		delete(r.st.holds, id)
		n++
	}
	return n, nil
}

func (r holdRepo) SumActive(_ context.Context, sku model.SKU, now time.Time) (int64, error) {
	var total int64
	for _, h := range r.st.holds {
		if h.ProductID == sku.ProductID && sameVariant(h.VariantID, sku.VariantID) && h.IsActive(now) {
			total += h.Quantity
		}
	}
	return total, nil
}

func (r holdRepo) CreateBulk(_ context.Context, holds []model.StockHold) error {
	for _, h := range holds {
		if (h.UserID == nil) == (h.SessionID == nil) {
			return errors.New("stock_holds: exactly one of user_id or session_id must be set")
		}
		h.ID = r.st.nextID()
		r.st.holds[h.ID] = h
	}
	return nil
}

func (r holdRepo) ListActiveByOwner(_ context.Context, owner model.Owner, now time.Time) ([]model.StockHold, error) {
	if err := validOwner(owner); err != nil {
		return nil, err
	}
	out := []model.StockHold{}
	for _, id := range sortedIDs(r.st.holds) {
		h := r.st.holds[id]
		if h.OwnedBy(owner) && h.IsActive(now) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r holdRepo) LockActiveByOwner(ctx context.Context, owner model.Owner, now time.Time) ([]model.StockHold, error) {
	return r.ListActiveByOwner(ctx, owner, now)
}
