package memory

import (
	"context"
	"sort"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type orderRepo struct{ st *state }

func (r orderRepo) Create(_ context.Context, o model.Order) (int64, error) {
	if o.TransactionRef != nil {
		for _, existing := range r.st.orders {
			if existing.TransactionRef != nil && *existing.TransactionRef == *o.TransactionRef {
				return 0, repo.ErrConflict
			}
		}
	}
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	o.ID = r.st.nextID()
	r.st.orders[o.ID] = o
	return o.ID, nil
}

func (r orderRepo) FindByID(_ context.Context, orderID int64) (model.Order, error) {
	o, ok := r.st.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r orderRepo) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r orderRepo) FindByTransactionRef(_ context.Context, ref string) (model.Order, error) {
	for _, o := range r.st.orders {
		if o.TransactionRef != nil && *o.TransactionRef == ref {
			return o, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (r orderRepo) FindByTransactionRefForUpdate(ctx context.Context, ref string) (model.Order, error) {
	return r.FindByTransactionRef(ctx, ref)
}

func (r orderRepo) UpdateStatus(_ context.Context, orderID int64, status model.OrderStatus) error {
	o, ok := r.st.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	r.st.orders[orderID] = o
	return nil
}

func (r orderRepo) UpdateStatusAndTracking(_ context.Context, orderID int64, status model.OrderStatus, tracking *string) error {
	o, ok := r.st.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	o.TrackingNumber = tracking
	o.UpdatedAt = time.Now()
	r.st.orders[orderID] = o
	return nil
}

// 新しい順
func (r orderRepo) filter(keep func(model.Order) bool) []model.Order {
	ids := sortedIDs(r.st.orders)
	out := []model.Order{}
	for i := len(ids) - 1; i >= 0; i-- {
		o := r.st.orders[ids[i]]
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

func paginate(items []model.Order, page, limit int) []model.Order {
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit
	if limit <= 0 || offset >= len(items) {
		return []model.Order{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (r orderRepo) ListByUserID(_ context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	all := r.filter(func(o model.Order) bool { return o.UserID != nil && *o.UserID == userID })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (r orderRepo) ListByGuestSession(_ context.Context, sessionID string) ([]model.Order, error) {
	return r.filter(func(o model.Order) bool {
		return o.UserID == nil && o.GuestSessionID != nil && *o.GuestSessionID == sessionID
	}), nil
}

func (r orderRepo) ListAdmin(_ context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	all := r.filter(func(o model.Order) bool {
		if f.Status != "" && string(o.Status) != f.Status {
			return false
		}
		if f.UserID != nil && (o.UserID == nil || *o.UserID != *f.UserID) {
			return false
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			return false
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			return false
		}
		return true
	})
	return paginate(all, f.Page, f.Limit), int64(len(all)), nil
}

func (r orderRepo) ListAwaitingPaymentBefore(_ context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 500
	}
	out := r.filter(func(o model.Order) bool {
		return o.Status.IsAwaitingPayment() && o.CreatedAt.Before(cutoff)
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r orderRepo) AdoptGuestOrders(_ context.Context, sessionID string, userID int64) (int64, error) {
	var n int64
	for id, o := range r.st.orders {
		if o.UserID == nil && o.GuestSessionID != nil && *o.GuestSessionID == sessionID {
			o.UserID = ptr(userID)
			o.UpdatedAt = time.Now()
			r.st.orders[id] = o
			n++
		}
	}
	return n, nil
}

type orderItemRepo struct{ st *state }

func (r orderItemRepo) CreateBulk(_ context.Context, orderID int64, items []model.OrderItem) error {
	for _, it := range items {
		it.OrderID = orderID
		it.ID = r.st.nextID()
		if it.CreatedAt.IsZero() {
			it.CreatedAt = time.Now()
		}
		r.st.orderItems[it.ID] = it
	}
	return nil
}

func (r orderItemRepo) ListByOrderID(_ context.Context, orderID int64) ([]model.OrderItem, error) {
	out := []model.OrderItem{}
	for _, id := range sortedIDs(r.st.orderItems) {
		if it := r.st.orderItems[id]; it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

type historyRepo struct{ st *state }

func (r historyRepo) Create(_ context.Context, h model.OrderStatusHistory) error {
	h.ID = r.st.nextID()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	r.st.history[h.ID] = h
	return nil
}

func (r historyRepo) CreateBulk(ctx context.Context, hs []model.OrderStatusHistory) error {
	for _, h := range hs {
		if err := r.Create(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

func (r historyRepo) ListByOrderID(_ context.Context, orderID int64) ([]model.OrderStatusHistory, error) {
	out := []model.OrderStatusHistory{}
	for _, id := range sortedIDs(r.st.history) {
		if h := r.st.history[id]; h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}
