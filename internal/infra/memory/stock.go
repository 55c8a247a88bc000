package memory

import (
	"context"
	"sort"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sameVariant(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func ptr[T any](v T) *T { return &v }

type productRepo struct{ st *state }

func (r productRepo) FindByID(_ context.Context, id int64) (model.Product, error) {
	p, ok := r.st.products[id]
	if !ok || p.DeletedAt.Valid {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r productRepo) FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	out := []model.Product{}
	for _, id := range ids {
		if p, err := r.FindByID(ctx, id); err == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r productRepo) FindVariant(_ context.Context, variantID int64) (model.ProductVariant, error) {
	v, ok := r.st.variants[variantID]
	if !ok {
		return model.ProductVariant{}, repo.ErrNotFound
	}
	return v, nil
}

func (r productRepo) FindVariantsByIDs(ctx context.Context, ids []int64) ([]model.ProductVariant, error) {
	out := []model.ProductVariant{}
	for _, id := range ids {
		if v, err := r.FindVariant(ctx, id); err == nil {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r productRepo) ListVariantsByProductID(_ context.Context, productID int64) ([]model.ProductVariant, error) {
	out := []model.ProductVariant{}
	for _, id := range sortedIDs(r.st.variants) {
		if v := r.st.variants[id]; v.ProductID == productID {
			out = append(out, v)
		}
	}
	return out, nil
}

type stockRepo struct{ st *state }

func (r stockRepo) get(sku model.SKU) (int64, error) {
	if sku.VariantID != nil {
		v, ok := r.st.variants[*sku.VariantID]
		if !ok || v.ProductID != sku.ProductID {
			return 0, repo.ErrNotFound
		}
		return v.Stock, nil
	}
	p, ok := r.st.products[sku.ProductID]
	if !ok || p.DeletedAt.Valid {
		return 0, repo.ErrNotFound
	}
	return p.Stock, nil
}

func (r stockRepo) set(sku model.SKU, n int64) {
	now := time.Now()
	if sku.VariantID != nil {
		v := r.st.variants[*sku.VariantID]
		v.Stock = n
		v.UpdatedAt = now
		r.st.variants[v.ID] = v
		return
	}
	p := r.st.products[sku.ProductID]
	p.Stock = n
	p.UpdatedAt = now
	r.st.products[p.ID] = p
}

func (r stockRepo) LockOnHand(_ context.Context, sku model.SKU) (int64, error) {
	return r.get(sku)
}

func (r stockRepo) OnHand(_ context.Context, sku model.SKU) (int64, error) {
	return r.get(sku)
}

func (r stockRepo) DecreaseIfEnough(_ context.Context, sku model.SKU, qty int64) (bool, error) {
	cur, err := r.get(sku)
	if err != nil {
		// UPDATE ... WHERE で0行と同じ扱い
		return false, nil
	}
	if cur < qty {
		return false, nil
	}
	r.set(sku, cur-qty)
	return true, nil
}

func (r stockRepo) Increase(_ context.Context, sku model.SKU, qty int64) error {
	cur, err := r.get(sku)
	if err != nil {
		return err
	}
	r.set(sku, cur+qty)
	return nil
}

func (r stockRepo) SetOnHand(_ context.Context, sku model.SKU, newStock int64) error {
	if _, err := r.get(sku); err != nil {
		return err
	}
	r.set(sku, newStock)
	return nil
}

func (r stockRepo) SumVariantStock(_ context.Context, productID int64) (int64, error) {
	var total int64
	for _, v := range r.st.variants {
		if v.ProductID == productID {
			total += v.Stock
		}
	}
	return total, nil
}

func (r stockRepo) SetProductStock(ctx context.Context, productID int64, stock int64) error {
	return r.SetOnHand(ctx, model.ProductSKU(productID), stock)
}

func (r stockRepo) CreateAdjustment(_ context.Context, adj model.InventoryAdjustment) error {
	adj.ID = r.st.nextID()
	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = time.Now()
	}
	r.st.adjustments[adj.ID] = adj
	return nil
}
