// Package memory はプロセス内で完結する TransactionManager 実装。
// ローカル起動 (STORE_DRIVER=memory) とユースケースのテストで使う。
package memory

import (
	"context"
	"sync"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type state struct {
	products    map[int64]model.Product
	variants    map[int64]model.ProductVariant
	holds       map[int64]model.StockHold
	orders      map[int64]model.Order
	orderItems  map[int64]model.OrderItem
	history     map[int64]model.OrderStatusHistory
	vouchers    map[int64]model.Voucher
	carts       map[int64]model.Cart
	cartItems   map[int64]model.CartItem
	users       map[int64]model.User
	addresses   map[int64]model.Address
	auditLogs   map[int64]model.AuditLog
	adjustments map[int64]model.InventoryAdjustment

	seq int64
}

func newState() *state {
	return &state{
		products:    map[int64]model.Product{},
		variants:    map[int64]model.ProductVariant{},
		holds:       map[int64]model.StockHold{},
		orders:      map[int64]model.Order{},
		orderItems:  map[int64]model.OrderItem{},
		history:     map[int64]model.OrderStatusHistory{},
		vouchers:    map[int64]model.Voucher{},
		carts:       map[int64]model.Cart{},
		cartItems:   map[int64]model.CartItem{},
		users:       map[int64]model.User{},
		addresses:   map[int64]model.Address{},
		auditLogs:   map[int64]model.AuditLog{},
		adjustments: map[int64]model.InventoryAdjustment{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// 値は差し替えのみで中身を書き換えないので浅いコピーで足りる
func (s *state) clone() *state {
	return &state{
		products:    cloneMap(s.products),
		variants:    cloneMap(s.variants),
		holds:       cloneMap(s.holds),
		orders:      cloneMap(s.orders),
		orderItems:  cloneMap(s.orderItems),
		history:     cloneMap(s.history),
		vouchers:    cloneMap(s.vouchers),
		carts:       cloneMap(s.carts),
		cartItems:   cloneMap(s.cartItems),
		users:       cloneMap(s.users),
		addresses:   cloneMap(s.addresses),
		auditLogs:   cloneMap(s.auditLogs),
		adjustments: cloneMap(s.adjustments),
		seq:         s.seq,
	}
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// Store はトランザクションを1本ずつ直列に流す。
// 行ロック系のメソッドは直列化済みなので何もしない。
type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

var _ repo.TransactionManager = (*Store)(nil)

func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.st.clone()
	if err := fn(&txRepos{st: working}); err != nil {
		// 作業中のコピーを捨ててロールバック
		return err
	}
	s.st = working
	return nil
}

type txRepos struct {
	st *state
}

func (r *txRepos) Products() repo.ProductRepository         { return productRepo{r.st} }
func (r *txRepos) Stock() repo.StockRepository               { return stockRepo{r.st} }
func (r *txRepos) Holds() repo.HoldRepository                { return holdRepo{r.st} }
func (r *txRepos) Orders() repo.OrderRepository              { return orderRepo{r.st} }
func (r *txRepos) OrderItems() repo.OrderItemRepository      { return orderItemRepo{r.st} }
func (r *txRepos) OrderHistory() repo.OrderHistoryRepository { return historyRepo{r.st} }
func (r *txRepos) Vouchers() repo.VoucherRepository          { return voucherRepo{r.st} }
func (r *txRepos) Carts() repo.CartRepository                { return cartRepo{r.st} }
func (r *txRepos) CartItems() repo.CartItemRepository        { return cartRepo{r.st} }
func (r *txRepos) Users() repo.UserRepository                { return userRepo{r.st} }
func (r *txRepos) Addresses() repo.AddressRepository         { return addressRepo{r.st} }
func (r *txRepos) AuditLogs() repo.AuditLogRepository        { return auditLogRepo{r.st} }
