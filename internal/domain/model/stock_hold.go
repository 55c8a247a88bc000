package model

import "time"

// Owner はホールドの持ち主。UserOwner か GuestOwner のどちらか
type Owner interface {
	isOwner()
	String() string
}

type UserOwner struct {
	ID int64
}

type GuestOwner struct {
	SessionID string
}

func (UserOwner) isOwner()  {}
func (GuestOwner) isOwner() {}

func (o UserOwner) String() string  { return "user:" + itoa(o.ID) }
func (o GuestOwner) String() string { return "guest:" + o.SessionID }

// (user_id, session_id) の組に変換。必ず片方だけ埋まる
func OwnerColumns(o Owner) (userID *int64, sessionID *string) {
	switch v := o.(type) {
	case UserOwner:
		id := v.ID
		return &id, nil
	case GuestOwner:
		s := v.SessionID
		return nil, &s
	}
	return nil, nil
}

// 在庫の一時確保。更新はせず、削除→再作成のみ
type StockHold struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    *int64    `gorm:"index" json:"user_id,omitempty"`
	SessionID *string   `gorm:"type:varchar(64);index" json:"session_id,omitempty"`
	ProductID int64     `gorm:"not null;index" json:"product_id"`
	VariantID *int64    `gorm:"index" json:"variant_id,omitempty"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}

func (h StockHold) SKU() SKU {
	return SKU{ProductID: h.ProductID, VariantID: h.VariantID}
}

func (h StockHold) Owner() Owner {
	if h.UserID != nil {
		return UserOwner{ID: *h.UserID}
	}
	if h.SessionID != nil {
		return GuestOwner{SessionID: *h.SessionID}
	}
	return nil
}

func (h StockHold) IsActive(now time.Time) bool {
	return h.ExpiresAt.After(now)
}

// オーナー一致判定（メモリ実装・テスト用）
func (h StockHold) OwnedBy(o Owner) bool {
	switch v := o.(type) {
	case UserOwner:
		return h.UserID != nil && *h.UserID == v.ID
	case GuestOwner:
		return h.SessionID != nil && *h.SessionID == v.SessionID
	}
	return false
}
