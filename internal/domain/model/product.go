package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// HasVariants=true のとき Stock は各バリアント在庫の合計（再計算で上書きする）
type Product struct {
	ID            int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string         `gorm:"type:varchar(255);not null" json:"name"`
	Description   string         `gorm:"type:text" json:"description"`
	Price         int64          `gorm:"not null" json:"price"`
	DiscountPrice int64          `gorm:"not null;default:0" json:"discount_price"`
	Stock         int64          `gorm:"not null" json:"stock"`
	HasVariants   bool           `gorm:"not null;default:false" json:"has_variants"`
	IsActive      bool           `gorm:"not null;default:false" json:"is_active"`
	CreatedAt     time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// 割引価格が設定されていればそちらを使う
func (p Product) EffectivePrice() int64 {
	if p.DiscountPrice > 0 {
		return p.DiscountPrice
	}
	return p.Price
}

// サイズ別の在庫単位
type ProductVariant struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64     `gorm:"not null;index" json:"product_id"`
	Size      string    `gorm:"type:varchar(50);not null" json:"size"`
	Stock     int64     `gorm:"not null" json:"stock"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// SKU は在庫を持つ最小単位（商品 or 商品+バリアント）
type SKU struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
}

func ProductSKU(productID int64) SKU {
	return SKU{ProductID: productID}
}

func VariantSKU(productID, variantID int64) SKU {
	v := variantID
	return SKU{ProductID: productID, VariantID: &v}
}

// バリアント無しは "p:<id>"、ありは "p:<id>:v:<id>"
func (s SKU) Key() string {
	if s.VariantID == nil {
		return fmt.Sprintf("p:%d", s.ProductID)
	}
	return fmt.Sprintf("p:%d:v:%d", s.ProductID, *s.VariantID)
}

func (s SKU) HasVariant() bool {
	return s.VariantID != nil
}

// ロック順序（product → variant、variant無しが先）
func (s SKU) Less(o SKU) bool {
	if s.ProductID != o.ProductID {
		return s.ProductID < o.ProductID
	}
	if s.VariantID == nil || o.VariantID == nil {
		return s.VariantID == nil && o.VariantID != nil
	}
	return *s.VariantID < *o.VariantID
}
