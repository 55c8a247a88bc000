package repository

import (
	"errors"

	"storefront/internal/domain/model"

	"gorm.io/gorm"
)

// variant_id IS NULL も別キーとして扱う
func whereSKU(q *gorm.DB, sku model.SKU) *gorm.DB {
	q = q.Where("product_id = ?", sku.ProductID)
	if sku.VariantID == nil {
		return q.Where("variant_id IS NULL")
	}
	return q.Where("variant_id = ?", *sku.VariantID)
}

var errNoOwner = errors.New("owner is required")

func whereOwner(q *gorm.DB, owner model.Owner) (*gorm.DB, error) {
	switch o := owner.(type) {
	case model.UserOwner:
		return q.Where("user_id = ?", o.ID), nil
	case model.GuestOwner:
		if o.SessionID == "" {
			return nil, errNoOwner
		}
		return q.Where("session_id = ?", o.SessionID), nil
	}
	return nil, errNoOwner
}
