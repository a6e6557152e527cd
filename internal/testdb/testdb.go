// Package testdb opens migrated in-memory SQLite databases for tests.
package testdb

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/pkg/db"
)

func DSN() string {
	return "sqlite://file:" + uuid.NewString() + "?mode=memory&cache=shared"
}

func New(t testing.TB) *gorm.DB {
	t.Helper()
	gdb, err := db.Open(context.Background(), DSN())
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

func Category(t testing.TB, gdb *gorm.DB, name string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name, IsActive: true}
	require.NoError(t, gdb.Create(c).Error)
	return c
}

func Product(t testing.TB, gdb *gorm.DB, categoryID uint, name, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:          name,
		Description:   name + " description",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
		CategoryID:    categoryID,
	}
	require.NoError(t, gdb.Omit("Category", "Images").Create(p).Error)
	return p
}

func User(t testing.TB, gdb *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		Email:        email,
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

func Address(t testing.TB, gdb *gorm.DB, userID uint, city string) *models.Address {
	t.Helper()
	a := &models.Address{
		UserID:      userID,
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Phone:       "+900000000",
		AddressLine: "1 Test Street",
		City:        city,
		PostalCode:  "34000",
		Country:     "Turkey",
	}
	require.NoError(t, gdb.Create(a).Error)
	return a
}

// CartLine puts a line into the user's cart at the product's current price.
func CartLine(t testing.TB, gdb *gorm.DB, userID uint, p *models.Product, qty int) *models.CartItem {
	t.Helper()
	r := repo.New(gdb)
	cart, err := r.GetOrCreateCart(context.Background(), models.CartOwner{UserID: userID})
	require.NoError(t, err)
	item := &models.CartItem{CartID: cart.ID, ProductID: p.ID, Quantity: qty, UnitPrice: p.EffectivePrice()}
	require.NoError(t, r.CreateCartItem(context.Background(), item))
	return item
}

func Stock(t testing.TB, gdb *gorm.DB, productID uint) int {
	t.Helper()
	var p models.Product
	require.NoError(t, gdb.First(&p, productID).Error)
	return p.StockQuantity
}
