package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart belongs to exactly one of a user or an anonymous session.
type Cart struct {
	ID        uint       `gorm:"primaryKey;autoIncrement"   json:"id"`
	UserID    *uint      `gorm:"uniqueIndex"                json:"userId,omitempty"`
	SessionID *string    `gorm:"uniqueIndex;size:64"        json:"sessionId,omitempty"`
	Items     []CartItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type CartItem struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"                 json:"id"`
	CartID    uint            `gorm:"uniqueIndex:idx_cart_product;not null"    json:"cartId"`
	ProductID uint            `gorm:"uniqueIndex:idx_cart_product;not null"    json:"productId"`
	Product   *Product        `json:"product,omitempty"`
	Quantity  int             `gorm:"not null;check:quantity > 0"              json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"              json:"unitPrice"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartOwner identifies the caller of a cart operation. UserID wins when both
// are set.
type CartOwner struct {
	UserID    uint
	SessionID string
}

func (o CartOwner) IsZero() bool { return o.UserID == 0 && o.SessionID == "" }

func (o CartOwner) IsUser() bool { return o.UserID != 0 }

func (o CartOwner) Owns(c *Cart) bool {
	if c == nil {
		return false
	}
	if o.IsUser() {
		return c.UserID != nil && *c.UserID == o.UserID
	}
	return o.SessionID != "" && c.SessionID != nil && *c.SessionID == o.SessionID
}
