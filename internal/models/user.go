package models

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"          json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null"     json:"email"`
	PasswordHash string    `gorm:"not null"                          json:"-"`
	FirstName    string    `gorm:"size:100;not null"                 json:"firstName"`
	LastName     string    `gorm:"size:100;not null"                 json:"lastName"`
	Phone        string    `gorm:"size:32"                           json:"phone"`
	Role         Role      `gorm:"size:16;not null"                  json:"role"`
	IsActive     bool      `gorm:"not null"                          json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"                  json:"id"`
	TokenHash string    `gorm:"uniqueIndex;size:64;not null" json:"-"`
	JTI       string    `gorm:"uniqueIndex;size:64;not null" json:"jti"`
	UserID    uint      `gorm:"index;not null"              json:"userId"`
	ExpiresAt time.Time `gorm:"not null"                    json:"expiresAt"`
	Revoked   bool      `gorm:"not null"                    json:"revoked"`
	CreatedAt time.Time `json:"createdAt"`
}

type Address struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint      `gorm:"index;not null"           json:"userId"`
	FirstName   string    `gorm:"size:100;not null"        json:"firstName"`
	LastName    string    `gorm:"size:100;not null"        json:"lastName"`
	Phone       string    `gorm:"size:32"                  json:"phone"`
	AddressLine string    `gorm:"size:500;not null"        json:"addressLine"`
	City        string    `gorm:"size:100;not null"        json:"city"`
	State       string    `gorm:"size:100"                 json:"state"`
	PostalCode  string    `gorm:"size:20"                  json:"postalCode"`
	Country     string    `gorm:"size:100;not null"        json:"country"`
	IsDefault   bool      `gorm:"not null"                 json:"isDefault"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
