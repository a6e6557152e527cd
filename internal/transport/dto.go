package transport

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/util"
)

type MessageResponse struct {
	Message string `json:"message"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateProductRequest struct {
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Brand         string           `json:"brand"`
	SKU           string           `json:"sku"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice"`
	StockQuantity int              `json:"stockQuantity"`
	CategoryID    uint             `json:"categoryId"`
	IsFeatured    bool             `json:"isFeatured"`
}

type PatchProductRequest struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Brand         *string          `json:"brand"`
	SKU           *string          `json:"sku"`
	Price         *decimal.Decimal `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice"`
	ClearDiscount bool             `json:"clearDiscount"`
	StockQuantity *int             `json:"stockQuantity"`
	CategoryID    *uint            `json:"categoryId"`
	IsFeatured    *bool            `json:"isFeatured"`
	IsActive      *bool            `json:"isActive"`
}

type AddImageRequest struct {
	URL       string `json:"url"`
	AltText   string `json:"altText"`
	IsMain    bool   `json:"isMain"`
	SortOrder int    `json:"sortOrder"`
}

type CategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    *bool  `json:"isActive"`
}

type ProductListResponse struct {
	Products   []models.Product `json:"products"`
	Pagination util.Pagination  `json:"pagination"`
}

type StockReport struct {
	LowStockThreshold   int              `json:"lowStockThreshold"`
	LowStock            []models.Product `json:"lowStock"`
	OutOfStockCount     int64            `json:"outOfStockCount"`
	TotalInventoryValue decimal.Decimal  `json:"totalInventoryValue"`
}

type AddCartItemRequest struct {
	ProductID uint `json:"productId"`
	Quantity  int  `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	ID        uint              `json:"id"`
	Items     []models.CartItem `json:"items"`
	ItemCount int               `json:"itemCount"`
	Subtotal  decimal.Decimal   `json:"subtotal"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type AddressRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Phone       string `json:"phone"`
	AddressLine string `json:"addressLine"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postalCode"`
	Country     string `json:"country"`
	IsDefault   bool   `json:"isDefault"`
}

type CreateOrderRequest struct {
	AddressID     uint   `json:"addressId"`
	PaymentMethod string `json:"paymentMethod"`
	Notes         string `json:"notes"`
}

type UpdateOrderStatusRequest struct {
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
}

type OrderListResponse struct {
	Orders     []models.Order  `json:"orders"`
	Pagination util.Pagination `json:"pagination"`
}

// TrackOrderResponse is the anonymous view of an order.
type TrackOrderResponse struct {
	OrderNumber string             `json:"orderNumber"`
	Status      models.OrderStatus `json:"status"`
	City        string             `json:"city"`
	ItemCount   int                `json:"itemCount"`
	Total       decimal.Decimal    `json:"total"`
	CreatedAt   time.Time          `json:"createdAt"`
}

type OrderStats struct {
	Counts  map[models.OrderStatus]int64 `json:"counts"`
	Total   int64                        `json:"total"`
	Revenue decimal.Decimal              `json:"revenue"`
}

type UserListResponse struct {
	Users      []models.User   `json:"users"`
	Pagination util.Pagination `json:"pagination"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

type SetActiveRequest struct {
	IsActive bool `json:"isActive"`
}
