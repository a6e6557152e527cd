package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                   uint            `gorm:"primaryKey;autoIncrement"      json:"id"`
	OrderNumber          string          `gorm:"uniqueIndex;size:32;not null"  json:"orderNumber"`
	UserID               uint            `gorm:"index;not null"                json:"userId"`
	Status               OrderStatus     `gorm:"size:16;index;not null"        json:"status"`
	PaymentMethod        string          `gorm:"size:50;not null"              json:"paymentMethod"`
	PaymentTransactionID string          `gorm:"size:100"                      json:"paymentTransactionId,omitempty"`
	ShippingFirstName    string          `gorm:"size:100;not null"             json:"shippingFirstName"`
	ShippingLastName     string          `gorm:"size:100;not null"             json:"shippingLastName"`
	ShippingEmail        string          `gorm:"size:255;not null"             json:"shippingEmail"`
	ShippingPhone        string          `gorm:"size:32"                       json:"shippingPhone"`
	ShippingAddress      string          `gorm:"size:500;not null"             json:"shippingAddress"`
	ShippingCity         string          `gorm:"size:100;not null"             json:"shippingCity"`
	ShippingState        string          `gorm:"size:100"                      json:"shippingState"`
	ShippingPostalCode   string          `gorm:"size:20"                       json:"shippingPostalCode"`
	ShippingCountry      string          `gorm:"size:100;not null"             json:"shippingCountry"`
	Subtotal             decimal.Decimal `gorm:"type:decimal(12,2);not null"   json:"subtotal"`
	ShippingCost         decimal.Decimal `gorm:"type:decimal(12,2);not null"   json:"shippingCost"`
	Tax                  decimal.Decimal `gorm:"type:decimal(12,2);not null"   json:"tax"`
	Total                decimal.Decimal `gorm:"type:decimal(12,2);not null"   json:"total"`
	Notes                string          `gorm:"size:1000"                     json:"notes,omitempty"`
	Items                []OrderItem     `gorm:"constraint:OnDelete:CASCADE"   json:"items"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
	PaidAt               *time.Time      `json:"paidAt,omitempty"`
	ShippedAt            *time.Time      `json:"shippedAt,omitempty"`
	DeliveredAt          *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt          *time.Time      `json:"cancelledAt,omitempty"`
	RefundedAt           *time.Time      `json:"refundedAt,omitempty"`
}

// OrderItem is a copy of the product line at purchase time.
type OrderItem struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"    json:"id"`
	OrderID     uint            `gorm:"index;not null"              json:"orderId"`
	ProductID   uint            `gorm:"index;not null"              json:"productId"`
	ProductName string          `gorm:"size:200;not null"           json:"productName"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unitPrice"`
	Quantity    int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"lineTotal"`
}

func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}
