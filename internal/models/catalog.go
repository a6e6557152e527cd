package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"      json:"id"`
	Name        string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Description string    `gorm:"size:500"                      json:"description"`
	IsActive    bool      `gorm:"not null"                      json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Product struct {
	ID            uint                `gorm:"primaryKey;autoIncrement"                      json:"id"`
	Name          string              `gorm:"size:200;not null"                             json:"name"`
	Description   string              `gorm:"type:text"                                     json:"description"`
	Brand         string              `gorm:"size:100"                                      json:"brand"`
	SKU           string              `gorm:"size:64;index"                                 json:"sku"`
	Price         decimal.Decimal     `gorm:"type:decimal(12,2);not null"                   json:"price"`
	DiscountPrice decimal.NullDecimal `gorm:"type:decimal(12,2)"                            json:"discountPrice"`
	StockQuantity int                 `gorm:"not null;check:stock_quantity >= 0"            json:"stockQuantity"`
	IsActive      bool                `gorm:"not null;index"                                json:"isActive"`
	IsFeatured    bool                `gorm:"not null"                                      json:"isFeatured"`
	ViewCount     int64               `gorm:"not null"                                      json:"viewCount"`
	CategoryID    uint                `gorm:"index;not null"                                json:"categoryId"`
	Category      *Category           `json:"category,omitempty"`
	SellerID      *uint               `gorm:"index"                                         json:"sellerId,omitempty"`
	Images        []ProductImage      `gorm:"constraint:OnDelete:CASCADE"                   json:"images,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// EffectivePrice is the price a buyer pays right now: the discount price when
// one is set, otherwise the list price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice.Valid {
		return p.DiscountPrice.Decimal
	}
	return p.Price
}

type ProductImage struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID uint      `gorm:"index;not null"           json:"productId"`
	URL       string    `gorm:"size:500;not null"        json:"url"`
	AltText   string    `gorm:"size:200"                 json:"altText"`
	IsMain    bool      `gorm:"not null"                 json:"isMain"`
	SortOrder int       `gorm:"not null"                 json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
}
