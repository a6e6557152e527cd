package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/testdb"
	"github.com/Skotchmaster/storefront/internal/transport"
)

type fakeIndex struct {
	indexed []uint
	deleted []uint
	hits    []uint
	err     error
}

func (f *fakeIndex) IndexProduct(_ context.Context, p *models.Product) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, p.ID)
	return nil
}

func (f *fakeIndex) DeleteProduct(_ context.Context, id uint) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeIndex) SearchProducts(_ context.Context, _ string, offset, limit int) (int64, []uint, error) {
	if f.err != nil {
		return 0, nil, f.err
	}
	end := min(offset+limit, len(f.hits))
	if offset > end {
		offset = end
	}
	return int64(len(f.hits)), f.hits[offset:end], nil
}

var staff = Actor{ID: 1, Role: models.RoleAdmin}

func newCatalog(t *testing.T) (*CatalogService, *fakeIndex, *models.Category) {
	t.Helper()
	gdb := testdb.New(t)
	idx := &fakeIndex{}
	svc := &CatalogService{Repo: repo.New(gdb), Index: idx, Searcher: idx, Events: &recordingPublisher{}, LowStockThreshold: 3}
	return svc, idx, testdb.Category(t, gdb, "Electronics")
}

func TestCatalog_PaginationArithmetic(t *testing.T) {
	svc, _, cat := newCatalog(t)
	for i := 0; i < 23; i++ {
		testdb.Product(t, svc.Repo.DB, cat.ID, fmt.Sprintf("Item %02d", i), "1.00", 1)
	}

	page, err := svc.ListProducts(context.Background(), ProductQuery{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.EqualValues(t, 23, page.Pagination.TotalItems)
	assert.Equal(t, 3, page.Pagination.CurrentPage)
	assert.Len(t, page.Products, 3)

	far, err := svc.ListProducts(context.Background(), ProductQuery{Page: math.MaxInt, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, far.Products)
	assert.EqualValues(t, 23, far.Pagination.TotalItems)
}

func TestCatalog_ListValidation(t *testing.T) {
	svc, _, _ := newCatalog(t)
	ctx := context.Background()

	_, err := svc.ListProducts(ctx, ProductQuery{SortBy: "random"})
	assert.ErrorIs(t, err, ErrValidation)

	lo, hi := decimal.NewFromInt(50), decimal.NewFromInt(10)
	_, err = svc.ListProducts(ctx, ProductQuery{MinPrice: &lo, MaxPrice: &hi})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCatalog_CreateUpdateDelete(t *testing.T) {
	svc, idx, cat := newCatalog(t)
	ctx := context.Background()
	discount := dec("80")

	res, err := svc.CreateProduct(ctx, transport.CreateProductRequest{
		Name: "Headphones", Price: dec("99.999"), DiscountPrice: &discount, StockQuantity: 4, CategoryID: cat.ID,
	}, 0)
	require.NoError(t, err)
	p := res.Value
	assert.True(t, dec("100").Equal(p.Price))
	assert.True(t, p.IsActive)
	assert.Equal(t, []uint{p.ID}, idx.indexed)

	_, err = svc.CreateProduct(ctx, transport.CreateProductRequest{Name: "Bad", Price: dec("10"), DiscountPrice: &discount, CategoryID: cat.ID}, 0)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.CreateProduct(ctx, transport.CreateProductRequest{Name: "Orphan", Price: dec("10"), CategoryID: cat.ID + 50}, 0)
	assert.ErrorIs(t, err, ErrValidation)

	stock := 0
	upd, err := svc.UpdateProduct(ctx, staff, p.ID, transport.PatchProductRequest{StockQuantity: &stock, ClearDiscount: true})
	require.NoError(t, err)
	assert.False(t, upd.Value.DiscountPrice.Valid)
	assert.Equal(t, 0, upd.Value.StockQuantity)

	ok, err := svc.CheckStockAvailability(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.DeleteProduct(ctx, staff, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{p.ID}, idx.deleted)

	_, err = svc.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	admin, err := svc.AdminGetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, admin.IsActive)

	_, err = svc.DeleteProduct(ctx, staff, p.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_IndexFailureIsAdvisory(t *testing.T) {
	svc, idx, cat := newCatalog(t)
	idx.err = errors.New("es down")

	res, err := svc.CreateProduct(context.Background(), transport.CreateProductRequest{Name: "Tablet", Price: dec("300"), CategoryID: cat.ID}, 0)
	require.NoError(t, err)
	assert.NotZero(t, res.Value.ID)
	assert.Equal(t, []string{"search_index"}, res.Advisory.Effects())
}

func TestCatalog_GetProductCountsViews(t *testing.T) {
	svc, _, cat := newCatalog(t)
	ctx := context.Background()
	p := testdb.Product(t, svc.Repo.DB, cat.ID, "Watch", "50.00", 2)

	for i := 0; i < 3; i++ {
		_, err := svc.GetProduct(ctx, p.ID)
		require.NoError(t, err)
	}
	got, err := svc.AdminGetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, got.ViewCount)
}

func TestCatalog_Search(t *testing.T) {
	svc, idx, cat := newCatalog(t)
	ctx := context.Background()
	a := testdb.Product(t, svc.Repo.DB, cat.ID, "Laptop", "900.00", 2)
	b := testdb.Product(t, svc.Repo.DB, cat.ID, "Laptop bag", "40.00", 2)
	idx.hits = []uint{b.ID, 999, a.ID}

	res, err := svc.SearchProducts(ctx, "laptp", 1, 10)
	require.NoError(t, err)
	require.Len(t, res.Products, 2)
	assert.Equal(t, b.ID, res.Products[0].ID)
	assert.Equal(t, a.ID, res.Products[1].ID)

	idx.err = errors.New("es down")
	res, err = svc.SearchProducts(ctx, "bag", 1, 10)
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, b.ID, res.Products[0].ID)

	_, err = svc.SearchProducts(ctx, "  ", 1, 10)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCatalog_Images(t *testing.T) {
	svc, _, cat := newCatalog(t)
	ctx := context.Background()
	p := testdb.Product(t, svc.Repo.DB, cat.ID, "Phone", "500.00", 2)

	first, err := svc.AddImage(ctx, staff, p.ID, transport.AddImageRequest{URL: "front.jpg"})
	require.NoError(t, err)
	assert.True(t, first.IsMain)
	second, err := svc.AddImage(ctx, staff, p.ID, transport.AddImageRequest{URL: "back.jpg"})
	require.NoError(t, err)
	assert.False(t, second.IsMain)

	assert.True(t, svc.SetMainImage(ctx, staff, p.ID, second.ID))
	assert.False(t, svc.SetMainImage(ctx, staff, p.ID, 12345))

	imgs, err := svc.Repo.ListImages(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, second.ID, imgs[0].ID)
	assert.True(t, imgs[0].IsMain)

	require.NoError(t, svc.DeleteImage(ctx, staff, p.ID, first.ID))
	assert.ErrorIs(t, svc.DeleteImage(ctx, staff, p.ID, first.ID), ErrNotFound)
	_, err = svc.AddImage(ctx, staff, p.ID+77, transport.AddImageRequest{URL: "x.jpg"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_StockReportAndFeatured(t *testing.T) {
	svc, _, cat := newCatalog(t)
	ctx := context.Background()
	testdb.Product(t, svc.Repo.DB, cat.ID, "Empty", "10.00", 0)
	testdb.Product(t, svc.Repo.DB, cat.ID, "Few", "10.00", 2)
	plenty := testdb.Product(t, svc.Repo.DB, cat.ID, "Plenty", "1.00", 100)
	featured := true
	_, err := svc.UpdateProduct(ctx, staff, plenty.ID, transport.PatchProductRequest{IsFeatured: &featured})
	require.NoError(t, err)

	rep, err := svc.StockReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.LowStockThreshold)
	assert.Len(t, rep.LowStock, 2)
	assert.EqualValues(t, 1, rep.OutOfStockCount)
	assert.True(t, dec("120").Equal(rep.TotalInventoryValue), "got %s", rep.TotalInventoryValue)

	list, err := svc.FeaturedProducts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, plenty.ID, list[0].ID)
}

func TestCatalog_Categories(t *testing.T) {
	svc, _, cat := newCatalog(t)
	ctx := context.Background()

	_, err := svc.CreateCategory(ctx, transport.CategoryRequest{Name: "Electronics"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = svc.CreateCategory(ctx, transport.CategoryRequest{Name: " "})
	assert.ErrorIs(t, err, ErrValidation)

	garden, err := svc.CreateCategory(ctx, transport.CategoryRequest{Name: "Garden", Description: "outdoor"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCategory(ctx, cat.ID))
	active, err := svc.ListCategories(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, garden.ID, active[0].ID)

	all, err := svc.ListCategories(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, svc.DeleteCategory(ctx, 999), ErrNotFound)
}

func TestCatalog_UpdateKeepsConcurrentStockChanges(t *testing.T) {
	svc, _, cat := newCatalog(t)
	ctx := context.Background()
	p := testdb.Product(t, svc.Repo.DB, cat.ID, "Keyboard", "70.00", 10)

	// Sell 3 units and count a view right after the update has read the row.
	var once sync.Once
	var armed bool
	require.NoError(t, svc.Repo.DB.Callback().Query().After("gorm:query").Register("sell_between_read_and_write", func(db *gorm.DB) {
		if !armed || db.Statement.Schema == nil || db.Statement.Schema.Table != "products" {
			return
		}
		once.Do(func() {
			r := repo.New(svc.Repo.DB.Session(&gorm.Session{NewDB: true}))
			ok, err := r.DecrementStock(ctx, p.ID, 3)
			require.NoError(t, err)
			require.True(t, ok)
			require.NoError(t, r.IncrementViewCount(ctx, p.ID))
		})
	}))

	armed = true
	name := "Mechanical Keyboard"
	res, err := svc.UpdateProduct(ctx, staff, p.ID, transport.PatchProductRequest{Name: &name})
	armed = false
	require.NoError(t, err)

	got, err := svc.AdminGetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mechanical Keyboard", got.Name)
	assert.Equal(t, 7, got.StockQuantity)
	assert.EqualValues(t, 1, got.ViewCount)
	assert.Equal(t, 7, res.Value.StockQuantity)

	stock := 20
	_, err = svc.UpdateProduct(ctx, staff, p.ID, transport.PatchProductRequest{StockQuantity: &stock})
	require.NoError(t, err)
	got, err = svc.AdminGetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.StockQuantity)
}

func TestCatalog_SellerScope(t *testing.T) {
	svc, _, cat := newCatalog(t)
	ctx := context.Background()
	owner := Actor{ID: 10, Role: models.RoleSeller}
	other := Actor{ID: 11, Role: models.RoleSeller}

	res, err := svc.CreateProduct(ctx, transport.CreateProductRequest{Name: "Lamp", Price: dec("25"), StockQuantity: 3, CategoryID: cat.ID}, owner.ID)
	require.NoError(t, err)
	lamp := res.Value
	unowned := testdb.Product(t, svc.Repo.DB, cat.ID, "House brand", "5.00", 1)

	name := "Stolen lamp"
	_, err = svc.UpdateProduct(ctx, other, lamp.ID, transport.PatchProductRequest{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.DeleteProduct(ctx, other, lamp.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.AddImage(ctx, other, lamp.ID, transport.AddImageRequest{URL: "x.jpg"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.UpdateProduct(ctx, owner, unowned.ID, transport.PatchProductRequest{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.UpdateProduct(ctx, Actor{ID: 12, Role: models.RoleCustomer}, lamp.ID, transport.PatchProductRequest{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := svc.AdminGetProduct(ctx, lamp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", got.Name)
	assert.True(t, got.IsActive)

	img, err := svc.AddImage(ctx, owner, lamp.ID, transport.AddImageRequest{URL: "lamp.jpg"})
	require.NoError(t, err)
	assert.False(t, svc.SetMainImage(ctx, other, lamp.ID, img.ID))
	assert.ErrorIs(t, svc.DeleteImage(ctx, other, lamp.ID, img.ID), ErrForbidden)
	assert.True(t, svc.SetMainImage(ctx, owner, lamp.ID, img.ID))

	renamed := "Desk lamp"
	upd, err := svc.UpdateProduct(ctx, owner, lamp.ID, transport.PatchProductRequest{Name: &renamed})
	require.NoError(t, err)
	assert.Equal(t, "Desk lamp", upd.Value.Name)
	_, err = svc.UpdateProduct(ctx, staff, unowned.ID, transport.PatchProductRequest{Name: &renamed})
	require.NoError(t, err)
}
