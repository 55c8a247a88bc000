package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Products() ProductRepository
	Stock() StockRepository
	Holds() HoldRepository
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	OrderHistory() OrderHistoryRepository
	Vouchers() VoucherRepository
	Carts() CartRepository
	CartItems() CartItemRepository
	Users() UserRepository
	Addresses() AddressRepository
	AuditLogs() AuditLogRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// fn がエラーを返したら必ずロールバックしてからそのエラーを返す
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
