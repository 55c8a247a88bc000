package model

import "time"

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

type Voucher struct {
	ID           int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	Code         string       `gorm:"type:varchar(64);not null;uniqueIndex" json:"code"`
	DiscountType DiscountType `gorm:"type:varchar(20);not null" json:"discount_type"`
	Value        int64        `gorm:"not null" json:"value"`
	// 0 なら上限なし
	MaxDiscount int64     `gorm:"not null;default:0" json:"max_discount"`
	MinPurchase int64     `gorm:"not null;default:0" json:"min_purchase"`
	// 0 なら無制限
	MaxUses     int64     `gorm:"not null;default:0" json:"max_uses"`
	UsedCount   int64     `gorm:"not null;default:0" json:"used_count"`
	StartsAt    time.Time `gorm:"not null" json:"starts_at"`
	EndsAt      time.Time `gorm:"not null" json:"ends_at"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 小計に対する割引額（小計を超えない）
func (v Voucher) DiscountFor(subtotal int64) int64 {
	var d int64
	switch v.DiscountType {
	case DiscountTypePercentage:
		d = subtotal * v.Value / 100
		if v.MaxDiscount > 0 && d > v.MaxDiscount {
			d = v.MaxDiscount
		}
	case DiscountTypeFixed:
		d = v.Value
	}
	if d < 0 {
		return 0
	}
	if d > subtotal {
		return subtotal
	}
	return d
}
