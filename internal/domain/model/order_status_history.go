package model

import "time"

// 追記のみの履歴
type OrderStatusHistory struct {
	ID        int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64       `gorm:"not null;index" json:"order_id"`
	Status    OrderStatus `gorm:"type:varchar(40);not null" json:"status"`
	Note      string      `gorm:"type:text" json:"note"`
	CreatedAt time.Time   `gorm:"not null" json:"created_at"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}
