package model

import (
	"strings"
	"time"
)

type OrderStatus string

const (
	// 旧データの作成直後ステータス。支払い待ちと同じ扱い
	OrderStatusCreated         OrderStatus = "Pesanan Dibuat"
	OrderStatusAwaitingPayment OrderStatus = "Menunggu Pembayaran"
	OrderStatusProcessing      OrderStatus = "Diproses"
	OrderStatusShipped         OrderStatus = "Dikirim"
	OrderStatusCompleted       OrderStatus = "Selesai"
	OrderStatusCancelled       OrderStatus = "Dibatalkan"
)

var orderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusAwaitingPayment,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// 大文字小文字・前後空白を無視して列挙値に変換
func ParseOrderStatus(s string) (OrderStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range orderStatuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

func (s OrderStatus) Valid() bool {
	for _, st := range orderStatuses {
		if st == s {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsAwaitingPayment() bool {
	return s == OrderStatusAwaitingPayment || s == OrderStatusCreated
}

// 表示用のクラス名（保存しない）
func (s OrderStatus) Class() string {
	switch s {
	case OrderStatusCreated, OrderStatusAwaitingPayment:
		return "status-pending"
	case OrderStatusProcessing:
		return "status-processing"
	case OrderStatusShipped:
		return "status-shipped"
	case OrderStatusCompleted:
		return "status-completed"
	case OrderStatusCancelled:
		return "status-cancelled"
	default:
		return "status-unknown"
	}
}

var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusCreated:         {OrderStatusProcessing: true, OrderStatusCancelled: true},
	OrderStatusAwaitingPayment: {OrderStatusProcessing: true, OrderStatusCancelled: true},
	OrderStatusProcessing:      {OrderStatusShipped: true, OrderStatusCancelled: true},
	OrderStatusShipped:         {OrderStatusCompleted: true},
	OrderStatusCompleted:       {},
	OrderStatusCancelled:       {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "COD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodEWallet      PaymentMethod = "E_WALLET"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToUpper(strings.TrimSpace(s))) {
	case PaymentMethodCOD:
		return PaymentMethodCOD, true
	case PaymentMethodBankTransfer:
		return PaymentMethodBankTransfer, true
	case PaymentMethodEWallet:
		return PaymentMethodEWallet, true
	}
	return "", false
}

func (m PaymentMethod) IsCOD() bool {
	return m == PaymentMethodCOD
}

// 注文時点の配送先コピー（ユーザー情報への参照ではない）
type ShippingSnapshot struct {
	Name       string `gorm:"type:varchar(255);not null" json:"name"`
	Phone      string `gorm:"type:varchar(30);not null" json:"phone"`
	Email      string `gorm:"type:varchar(255)" json:"email"`
	Address    string `gorm:"type:text;not null" json:"address"`
	City       string `gorm:"type:varchar(255);not null" json:"city"`
	Province   string `gorm:"type:varchar(255);not null" json:"province"`
	PostalCode string `gorm:"type:varchar(20);not null" json:"postal_code"`
}

// 発送に必要な項目が揃っているか
func (s ShippingSnapshot) Complete() bool {
	for _, v := range []string{s.Name, s.Phone, s.Address, s.City, s.Province, s.PostalCode} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// 金額・明細は作成後に変更しない。変わるのは status / tracking のみ
type Order struct {
	ID             int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         *int64           `gorm:"index" json:"user_id,omitempty"`
	GuestSessionID *string          `gorm:"type:varchar(64);index" json:"-"`
	Status         OrderStatus      `gorm:"type:varchar(40);not null;index" json:"status"`
	Subtotal       int64            `gorm:"not null" json:"subtotal"`
	DiscountAmount int64            `gorm:"not null;default:0" json:"discount_amount"`
	ShippingCost   int64            `gorm:"not null;default:0" json:"shipping_cost"`
	Total          int64            `gorm:"not null" json:"total"`
	VoucherCode    *string          `gorm:"type:varchar(64)" json:"voucher_code,omitempty"`
	PaymentMethod  PaymentMethod    `gorm:"type:varchar(30);not null" json:"payment_method"`
	TransactionRef *string          `gorm:"type:varchar(64);uniqueIndex" json:"transaction_ref,omitempty"`
	TrackingNumber *string          `gorm:"type:varchar(64)" json:"tracking_number,omitempty"`
	Shipping       ShippingSnapshot `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping"`
	CreatedAt      time.Time        `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"not null" json:"updated_at"`
}
