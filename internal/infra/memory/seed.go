package memory

import (
	"time"

	"storefront/internal/domain/model"
)

// 初期データ投入（ローカル起動・テスト用）。ID未指定なら採番する

func (s *Store) SeedUser(u model.User) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == 0 {
		u.ID = s.st.nextID()
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	s.st.users[u.ID] = u
	return u
}

func (s *Store) SeedAddress(a model.Address) model.Address {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == 0 {
		a.ID = s.st.nextID()
	}
	s.st.addresses[a.ID] = a
	return a
}

func (s *Store) SeedProduct(p model.Product) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		p.ID = s.st.nextID()
	}
	s.st.products[p.ID] = p
	return p
}

// バリアントを追加し、親商品の在庫合計も更新する
func (s *Store) SeedVariant(v model.ProductVariant) model.ProductVariant {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ID == 0 {
		v.ID = s.st.nextID()
	}
	s.st.variants[v.ID] = v

	p := s.st.products[v.ProductID]
	p.HasVariants = true
	var total int64
	for _, other := range s.st.variants {
		if other.ProductID == v.ProductID {
			total += other.Stock
		}
	}
	p.Stock = total
	s.st.products[p.ID] = p
	return v
}

func (s *Store) SeedVoucher(v model.Voucher) model.Voucher {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ID == 0 {
		v.ID = s.st.nextID()
	}
	s.st.vouchers[v.ID] = v
	return v
}

// 作成日時を指定して注文を置く（スイープのテスト用）
func (s *Store) SeedOrder(o model.Order, items []model.OrderItem) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == 0 {
		o.ID = s.st.nextID()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	s.st.orders[o.ID] = o
	for _, it := range items {
		it.ID = s.st.nextID()
		it.OrderID = o.ID
		s.st.orderItems[it.ID] = it
	}
	return o
}

func (s *Store) DeleteProduct(productID int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.st.products[productID]
	if !ok {
		return
	}
	p.DeletedAt.Time = at
	p.DeletedAt.Valid = true
	s.st.products[productID] = p
}

// 件数の確認用
type Counts struct {
	Orders      int
	OrderItems  int
	History     int
	Holds       int
	AuditLogs   int
	Adjustments int
}

func (s *Store) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Counts{
		Orders:      len(s.st.orders),
		OrderItems:  len(s.st.orderItems),
		History:     len(s.st.history),
		Holds:       len(s.st.holds),
		AuditLogs:   len(s.st.auditLogs),
		Adjustments: len(s.st.adjustments),
	}
}
