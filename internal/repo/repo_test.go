package repo_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/testdb"
)

func TestDecrementStock_Conditional(t *testing.T) {
	gdb := testdb.New(t)
	r := repo.New(gdb)
	ctx := context.Background()
	cat := testdb.Category(t, gdb, "Books")
	p := testdb.Product(t, gdb, cat.ID, "Go Book", "40.00", 3)

	ok, err := r.DecrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, testdb.Stock(t, gdb, p.ID))

	ok, err = r.DecrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, testdb.Stock(t, gdb, p.ID))

	require.NoError(t, r.RestoreStock(ctx, p.ID, 4))
	assert.Equal(t, 5, testdb.Stock(t, gdb, p.ID))
}

func TestDecrementStock_InactiveProduct(t *testing.T) {
	gdb := testdb.New(t)
	r := repo.New(gdb)
	ctx := context.Background()
	cat := testdb.Category(t, gdb, "Books")
	p := testdb.Product(t, gdb, cat.ID, "Old Book", "10.00", 5)
	require.NoError(t, r.SetProductActive(ctx, p.ID, false))

	ok, err := r.DecrementStock(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListProducts_Pagination(t *testing.T) {
	gdb := testdb.New(t)
	r := repo.New(gdb)
	cat := testdb.Category(t, gdb, "Widgets")
	for i := 0; i < 23; i++ {
		testdb.Product(t, gdb, cat.ID, fmt.Sprintf("Widget %02d", i), "5.00", 1)
	}

	total, page3, err := r.ListProducts(context.Background(), repo.ProductFilter{Offset: 20, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 23, total)
	require.Len(t, page3, 3)
	assert.Equal(t, "Widget 20", page3[0].Name)
}

func TestListProducts_Filters(t *testing.T) {
	gdb := testdb.New(t)
	r := repo.New(gdb)
	ctx := context.Background()
	books := testdb.Category(t, gdb, "Books")
	toys := testdb.Category(t, gdb, "Toys")

	cheap := testdb.Product(t, gdb, books.ID, "Pocket Guide", "9.99", 4)
	pricey := testdb.Product(t, gdb, books.ID, "Collector Edition", "120.00", 1)
	toy := testdb.Product(t, gdb, toys.ID, "Robot", "45.00", 2)
	require.NoError(t, r.UpdateProductColumns(ctx, toy.ID, map[string]any{"brand": "Acme"}))
	hidden := testdb.Product(t, gdb, toys.ID, "Retired Robot", "30.00", 0)
	require.NoError(t, r.SetProductActive(ctx, hidden.ID, false))

	min := decimal.RequireFromString("10")
	max := decimal.RequireFromString("100")

	tests := []struct {
		name   string
		filter repo.ProductFilter
		want   []uint
	}{
		{"default sort by name", repo.ProductFilter{}, []uint{pricey.ID, cheap.ID, toy.ID}},
		{"search is case-insensitive", repo.ProductFilter{Search: "ROBOT"}, []uint{toy.ID}},
		{"search matches brand", repo.ProductFilter{Search: "acme"}, []uint{toy.ID}},
		{"category", repo.ProductFilter{CategoryID: books.ID}, []uint{pricey.ID, cheap.ID}},
		{"price range", repo.ProductFilter{MinPrice: &min, MaxPrice: &max}, []uint{toy.ID}},
		{"price ascending", repo.ProductFilter{SortBy: repo.SortPrice}, []uint{cheap.ID, toy.ID, pricey.ID}},
		{"price descending", repo.ProductFilter{SortBy: repo.SortPriceDesc}, []uint{pricey.ID, toy.ID, cheap.ID}},
		{"admin sees inactive", repo.ProductFilter{Search: "robot", IncludeInactive: true}, []uint{hidden.ID, toy.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.filter
			f.Limit = 50
			total, items, err := r.ListProducts(ctx, f)
			require.NoError(t, err)
			assert.EqualValues(t, len(tt.want), total)
			got := make([]uint, 0, len(items))
			for _, p := range items {
				got = append(got, p.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMainImage(t *testing.T) {
	gdb := testdb.New(t)
	r := repo.New(gdb)
	ctx := context.Background()
	cat := testdb.Category(t, gdb, "Cams")
	p := testdb.Product(t, gdb, cat.ID, "Camera", "300.00", 1)

	a := &models.ProductImage{ProductID: p.ID, URL: "a.jpg", IsMain: true}
	b := &models.ProductImage{ProductID: p.ID, URL: "b.jpg", SortOrder: 1}
	require.NoError(t, r.CreateImage(ctx, a))
	require.NoError(t, r.CreateImage(ctx, b))

	require.NoError(t, r.Transaction(ctx, func(tx *repo.GormRepo) error {
		if err := tx.ClearMainImage(ctx, p.ID); err != nil {
			return err
		}
		return tx.MarkMainImage(ctx, p.ID, b.ID)
	}))

	imgs, err := r.ListImages(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, b.ID, imgs[0].ID)
	assert.True(t, imgs[0].IsMain)
	assert.False(t, imgs[1].IsMain)

	err = r.MarkMainImage(ctx, p.ID+1, a.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestStockReport(t *testing.T) {
	gdb := testdb.New(t)
	r := repo.New(gdb)
	ctx := context.Background()
	cat := testdb.Category(t, gdb, "Misc")
	testdb.Product(t, gdb, cat.ID, "A", "10.00", 0)
	testdb.Product(t, gdb, cat.ID, "B", "2.50", 4)
	testdb.Product(t, gdb, cat.ID, "C", "1.00", 50)

	low, err := r.LowStockProducts(ctx, 5)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "A", low[0].Name)

	n, err := r.CountOutOfStock(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	v, err := r.InventoryValue(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("60").Equal(v), "got %s", v)
}

func newOrder(userID uint, number string, status models.OrderStatus, total string) *models.Order {
	return &models.Order{
		OrderNumber:       number,
		UserID:            userID,
		Status:            status,
		PaymentMethod:     "card",
		ShippingFirstName: "A",
		ShippingLastName:  "B",
		ShippingEmail:     "a@b.c",
		ShippingAddress:   "street",
		ShippingCity:      "Istanbul",
		ShippingCountry:   "Turkey",
		Subtotal:          decimal.RequireFromString(total),
		ShippingCost:      decimal.Zero,
		Tax:               decimal.Zero,
		Total:             decimal.RequireFromString(total),
		Items: []models.OrderItem{{
			ProductID:   1,
			ProductName: "thing",
			UnitPrice:   decimal.RequireFromString(total),
			Quantity:    1,
			LineTotal:   decimal.RequireFromString(total),
		}},
	}
}

func TestInsertOrder_DuplicateNumberKeepsOuterTransaction(t *testing.T) {
	gdb := testdb.New(t)
	r := repo.New(gdb)
	ctx := context.Background()
	u := testdb.User(t, gdb, "dup@example.com", models.RoleCustomer)

	require.NoError(t, r.InsertOrder(ctx, newOrder(u.ID, "ORD-1", models.StatusPending, "10")))

	err := r.Transaction(ctx, func(tx *repo.GormRepo) error {
		dupErr := tx.InsertOrder(ctx, newOrder(u.ID, "ORD-1", models.StatusPending, "20"))
		require.Error(t, dupErr)
		assert.True(t, repo.IsDuplicate(dupErr))
		return tx.InsertOrder(ctx, newOrder(u.ID, "ORD-2", models.StatusPending, "20"))
	})
	require.NoError(t, err)

	o, err := r.GetOrderByNumber(ctx, "ORD-2")
	require.NoError(t, err)
	require.Len(t, o.Items, 1)

	var count int64
	require.NoError(t, gdb.Model(&models.Order{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestCompareAndSetStatus(t *testing.T) {
	gdb := testdb.New(t)
	r := repo.New(gdb)
	ctx := context.Background()
	u := testdb.User(t, gdb, "cas@example.com", models.RoleCustomer)
	o := newOrder(u.ID, "ORD-CAS", models.StatusPending, "10")
	require.NoError(t, r.InsertOrder(ctx, o))

	now := time.Now().UTC()
	ok, err := r.CompareAndSetStatus(ctx, o.ID, []models.OrderStatus{models.StatusPending}, models.StatusProcessing,
		map[string]any{"payment_transaction_id": "tx-1", "paid_at": now})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.CompareAndSetStatus(ctx, o.ID, []models.OrderStatus{models.StatusPending}, models.StatusProcessing, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := r.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, got.Status)
	assert.Equal(t, "tx-1", got.PaymentTransactionID)
	assert.NotNil(t, got.PaidAt)
}

func TestOrderStats(t *testing.T) {
	gdb := testdb.New(t)
	r := repo.New(gdb)
	ctx := context.Background()
	u := testdb.User(t, gdb, "stats@example.com", models.RoleCustomer)
	require.NoError(t, r.InsertOrder(ctx, newOrder(u.ID, "O1", models.StatusPending, "10.50")))
	require.NoError(t, r.InsertOrder(ctx, newOrder(u.ID, "O2", models.StatusDelivered, "20")))
	require.NoError(t, r.InsertOrder(ctx, newOrder(u.ID, "O3", models.StatusCancelled, "99")))

	counts, err := r.CountOrdersByStatus(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[models.StatusPending])
	assert.EqualValues(t, 1, counts[models.StatusDelivered])
	assert.EqualValues(t, 1, counts[models.StatusCancelled])
	assert.EqualValues(t, 0, counts[models.StatusRefunded])

	rev, err := r.Revenue(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("30.50").Equal(rev), "got %s", rev)

	total, list, err := r.ListOrders(ctx, models.StatusCancelled, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "O3", list[0].OrderNumber)
}

func TestCartOwnership(t *testing.T) {
	gdb := testdb.New(t)
	r := repo.New(gdb)
	ctx := context.Background()
	u := testdb.User(t, gdb, "cart@example.com", models.RoleCustomer)

	_, err := r.FindCart(ctx, models.CartOwner{SessionID: "s-1"})
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	sess, err := r.GetOrCreateCart(ctx, models.CartOwner{SessionID: "s-1"})
	require.NoError(t, err)
	again, err := r.GetOrCreateCart(ctx, models.CartOwner{SessionID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, sess.ID, again.ID)

	require.NoError(t, r.ReownCart(ctx, sess.ID, u.ID))
	owned, err := r.FindCart(ctx, models.CartOwner{UserID: u.ID})
	require.NoError(t, err)
	assert.Equal(t, sess.ID, owned.ID)
	assert.Nil(t, owned.SessionID)
}
