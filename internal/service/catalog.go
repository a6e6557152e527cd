package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

const featuredLimit = 8

// ProductIndexer mirrors product writes into the search index.
type ProductIndexer interface {
	IndexProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id uint) error
}

// ProductSearcher returns matching product ids in relevance order.
type ProductSearcher interface {
	SearchProducts(ctx context.Context, q string, offset, limit int) (int64, []uint, error)
}

type CatalogService struct {
	Repo              *repo.GormRepo
	Index             ProductIndexer
	Searcher          ProductSearcher
	Events            EventPublisher
	LowStockThreshold int
}

type ProductQuery struct {
	Page       int
	PageSize   int
	Search     string
	CategoryID uint
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	SortBy     string
}

func validSort(s string) bool {
	switch s {
	case "", repo.SortName, repo.SortPrice, repo.SortPriceDesc, repo.SortNewest, repo.SortPopular:
		return true
	}
	return false
}

func (s *CatalogService) list(ctx context.Context, q ProductQuery, includeInactive bool) (*transport.ProductListResponse, error) {
	if !validSort(q.SortBy) {
		return nil, fmt.Errorf("%w: unknown sortBy %q", ErrValidation, q.SortBy)
	}
	if q.MinPrice != nil && q.MaxPrice != nil && q.MinPrice.GreaterThan(*q.MaxPrice) {
		return nil, fmt.Errorf("%w: minPrice exceeds maxPrice", ErrValidation)
	}
	offset, limit := util.Calculate(q.Page, q.PageSize)
	total, items, err := s.Repo.ListProducts(ctx, repo.ProductFilter{
		Search:          q.Search,
		CategoryID:      q.CategoryID,
		MinPrice:        q.MinPrice,
		MaxPrice:        q.MaxPrice,
		SortBy:          q.SortBy,
		IncludeInactive: includeInactive,
		Offset:          offset,
		Limit:           limit,
	})
	if err != nil {
		return nil, err
	}
	return &transport.ProductListResponse{
		Products:   items,
		Pagination: util.NewPagination(q.Page, q.PageSize, total),
	}, nil
}

// ListProducts is the customer listing; inactive products never appear.
func (s *CatalogService) ListProducts(ctx context.Context, q ProductQuery) (*transport.ProductListResponse, error) {
	return s.list(ctx, q, false)
}

func (s *CatalogService) AdminListProducts(ctx context.Context, q ProductQuery) (*transport.ProductListResponse, error) {
	return s.list(ctx, q, true)
}

// GetProduct returns an active product and counts the view. A failed view
// counter update is only logged.
func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id, false)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: product %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var adv Advisory
	adv.Run(ctx, "view_count", func(ctx context.Context) error {
		return s.Repo.IncrementViewCount(ctx, id)
	})
	return p, nil
}

func (s *CatalogService) AdminGetProduct(ctx context.Context, id uint) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id, true)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: product %d", ErrNotFound, id)
	}
	return p, err
}

func (s *CatalogService) FeaturedProducts(ctx context.Context) ([]models.Product, error) {
	return s.Repo.FeaturedProducts(ctx, featuredLimit)
}

// CheckStockAvailability is a plain read with no reservation.
func (s *CatalogService) CheckStockAvailability(ctx context.Context, productID uint, qty int) (bool, error) {
	p, err := s.Repo.GetProduct(ctx, productID, false)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return qty > 0 && p.StockQuantity >= qty, nil
}

// SearchProducts asks the search index for ids and loads them from the
// database. Without an index it falls back to the substring listing.
func (s *CatalogService) SearchProducts(ctx context.Context, q string, page, size int) (*transport.ProductListResponse, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("%w: q required", ErrValidation)
	}
	if s.Searcher == nil {
		return s.ListProducts(ctx, ProductQuery{Page: page, PageSize: size, Search: q})
	}

	offset, limit := util.Calculate(page, size)
	total, ids, err := s.Searcher.SearchProducts(ctx, q, offset, limit)
	if err != nil {
		logging.FromContext(ctx).Warn("search_index_unavailable", "error", err)
		return s.ListProducts(ctx, ProductQuery{Page: page, PageSize: size, Search: q})
	}
	found, err := s.Repo.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	items := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			items = append(items, p)
		}
	}
	return &transport.ProductListResponse{Products: items, Pagination: util.NewPagination(page, size, total)}, nil
}

func (s *CatalogService) afterWrite(ctx context.Context, adv *Advisory, p *models.Product, kind string) {
	if s.Index != nil {
		adv.Run(ctx, "search_index", func(ctx context.Context) error {
			if p.IsActive {
				return s.Index.IndexProduct(ctx, p)
			}
			return s.Index.DeleteProduct(ctx, p.ID)
		})
	}
	if s.Events != nil {
		adv.Run(ctx, "product_event", func(ctx context.Context) error {
			return s.Events.PublishEvent(ctx, TopicProductEvents, fmt.Sprint(p.ID), map[string]any{
				"type":       kind,
				"product_id": p.ID,
				"name":       p.Name,
				"price":      p.Price.String(),
				"stock":      p.StockQuantity,
				"active":     p.IsActive,
			})
		})
	}
}

func (s *CatalogService) requireCategory(ctx context.Context, id uint) error {
	if id == 0 {
		return fmt.Errorf("%w: categoryId required", ErrValidation)
	}
	if _, err := s.Repo.GetCategory(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: category %d does not exist", ErrValidation, id)
		}
		return err
	}
	return nil
}

// managedProduct loads a product, including inactive ones, that actor may
// edit. Sellers only manage products they listed.
func (s *CatalogService) managedProduct(ctx context.Context, r *repo.GormRepo, actor Actor, id uint) (*models.Product, error) {
	p, err := r.GetProduct(ctx, id, true)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: product %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(p) {
		return nil, fmt.Errorf("%w: product %d belongs to another seller", ErrForbidden, id)
	}
	return p, nil
}

func validatePrices(price decimal.Decimal, discount *decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be greater than zero", ErrValidation)
	}
	if discount != nil && (!discount.IsPositive() || discount.GreaterThanOrEqual(price)) {
		return fmt.Errorf("%w: discountPrice must be positive and below price", ErrValidation)
	}
	return nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, req transport.CreateProductRequest, sellerID uint) (res Result[*models.Product], err error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return res, fmt.Errorf("%w: name required", ErrValidation)
	}
	if err := validatePrices(req.Price, req.DiscountPrice); err != nil {
		return res, err
	}
	if req.StockQuantity < 0 {
		return res, fmt.Errorf("%w: stockQuantity must be >= 0", ErrValidation)
	}
	if err := s.requireCategory(ctx, req.CategoryID); err != nil {
		return res, err
	}

	p := &models.Product{
		Name:          name,
		Description:   req.Description,
		Brand:         strings.TrimSpace(req.Brand),
		SKU:           strings.TrimSpace(req.SKU),
		Price:         req.Price.Round(2),
		StockQuantity: req.StockQuantity,
		IsActive:      true,
		IsFeatured:    req.IsFeatured,
		CategoryID:    req.CategoryID,
	}
	if req.DiscountPrice != nil {
		p.DiscountPrice = decimal.NewNullDecimal(req.DiscountPrice.Round(2))
	}
	if sellerID != 0 {
		p.SellerID = &sellerID
	}
	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		return res, err
	}

	res.Value = p
	s.afterWrite(ctx, &res.Advisory, p, "product_created")
	return res, nil
}

// UpdateProduct applies a partial update. Only the columns the request sets
// are written, so concurrent stock decrements are never overwritten.
func (s *CatalogService) UpdateProduct(ctx context.Context, actor Actor, id uint, req transport.PatchProductRequest) (res Result[*models.Product], err error) {
	p, err := s.managedProduct(ctx, s.Repo, actor, id)
	if err != nil {
		return res, err
	}

	cols := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return res, fmt.Errorf("%w: name must not be empty", ErrValidation)
		}
		cols["name"] = name
	}
	if req.Description != nil {
		cols["description"] = *req.Description
	}
	if req.Brand != nil {
		cols["brand"] = strings.TrimSpace(*req.Brand)
	}
	if req.SKU != nil {
		cols["sku"] = strings.TrimSpace(*req.SKU)
	}
	if req.Price != nil {
		p.Price = req.Price.Round(2)
		cols["price"] = p.Price
	}
	if req.ClearDiscount {
		p.DiscountPrice = decimal.NullDecimal{}
		cols["discount_price"] = nil
	} else if req.DiscountPrice != nil {
		p.DiscountPrice = decimal.NewNullDecimal(req.DiscountPrice.Round(2))
		cols["discount_price"] = p.DiscountPrice.Decimal
	}
	var discount *decimal.Decimal
	if p.DiscountPrice.Valid {
		discount = &p.DiscountPrice.Decimal
	}
	if err := validatePrices(p.Price, discount); err != nil {
		return res, err
	}
	if req.StockQuantity != nil {
		if *req.StockQuantity < 0 {
			return res, fmt.Errorf("%w: stockQuantity must be >= 0", ErrValidation)
		}
		cols["stock_quantity"] = *req.StockQuantity
	}
	if req.CategoryID != nil && *req.CategoryID != p.CategoryID {
		if err := s.requireCategory(ctx, *req.CategoryID); err != nil {
			return res, err
		}
		cols["category_id"] = *req.CategoryID
	}
	if req.IsFeatured != nil {
		cols["is_featured"] = *req.IsFeatured
	}
	if req.IsActive != nil {
		cols["is_active"] = *req.IsActive
	}

	if err := s.Repo.UpdateProductColumns(ctx, id, cols); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return res, fmt.Errorf("%w: product %d", ErrNotFound, id)
		}
		return res, err
	}
	if p, err = s.Repo.GetProduct(ctx, id, true); err != nil {
		return res, err
	}
	res.Value = p
	s.afterWrite(ctx, &res.Advisory, p, "product_updated")
	return res, nil
}

// DeleteProduct deactivates the product so order history keeps resolving.
func (s *CatalogService) DeleteProduct(ctx context.Context, actor Actor, id uint) (res Result[*models.Product], err error) {
	if _, err := s.managedProduct(ctx, s.Repo, actor, id); err != nil {
		return res, err
	}
	if err := s.Repo.SetProductActive(ctx, id, false); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return res, fmt.Errorf("%w: product %d", ErrNotFound, id)
		}
		return res, err
	}
	p, err := s.Repo.GetProduct(ctx, id, true)
	if err != nil {
		return res, err
	}
	res.Value = p
	s.afterWrite(ctx, &res.Advisory, p, "product_deleted")
	return res, nil
}

func (s *CatalogService) AddImage(ctx context.Context, actor Actor, productID uint, req transport.AddImageRequest) (*models.ProductImage, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, fmt.Errorf("%w: url required", ErrValidation)
	}
	img := &models.ProductImage{
		ProductID: productID,
		URL:       url,
		AltText:   req.AltText,
		SortOrder: req.SortOrder,
	}
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if _, err := s.managedProduct(ctx, tx, actor, productID); err != nil {
			return err
		}
		existing, err := tx.ListImages(ctx, productID)
		if err != nil {
			return err
		}
		img.IsMain = req.IsMain || len(existing) == 0
		if img.IsMain {
			if err := tx.ClearMainImage(ctx, productID); err != nil {
				return err
			}
		}
		return tx.CreateImage(ctx, img)
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *CatalogService) DeleteImage(ctx context.Context, actor Actor, productID, imageID uint) error {
	if _, err := s.managedProduct(ctx, s.Repo, actor, productID); err != nil {
		return err
	}
	if err := s.Repo.DeleteImage(ctx, productID, imageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: image %d", ErrNotFound, imageID)
		}
		return err
	}
	return nil
}

// SetMainImage is best effort: any failure is logged and reported as false.
func (s *CatalogService) SetMainImage(ctx context.Context, actor Actor, productID, imageID uint) bool {
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if _, err := s.managedProduct(ctx, tx, actor, productID); err != nil {
			return err
		}
		if err := tx.ClearMainImage(ctx, productID); err != nil {
			return err
		}
		return tx.MarkMainImage(ctx, productID, imageID)
	})
	if err != nil {
		logging.FromContext(ctx).Warn("set_main_image_failed", "product_id", productID, "image_id", imageID, "error", err)
		return false
	}
	return true
}

func (s *CatalogService) StockReport(ctx context.Context) (*transport.StockReport, error) {
	threshold := s.LowStockThreshold
	if threshold <= 0 {
		threshold = 5
	}
	low, err := s.Repo.LowStockProducts(ctx, threshold)
	if err != nil {
		return nil, err
	}
	out, err := s.Repo.CountOutOfStock(ctx)
	if err != nil {
		return nil, err
	}
	value, err := s.Repo.InventoryValue(ctx)
	if err != nil {
		return nil, err
	}
	return &transport.StockReport{
		LowStockThreshold:   threshold,
		LowStock:            low,
		OutOfStockCount:     out,
		TotalInventoryValue: value.Round(2),
	}, nil
}

func (s *CatalogService) ListCategories(ctx context.Context, includeInactive bool) ([]models.Category, error) {
	return s.Repo.ListCategories(ctx, includeInactive)
}

func (s *CatalogService) CreateCategory(ctx context.Context, req transport.CategoryRequest) (*models.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrValidation)
	}
	c := &models.Category{Name: name, Description: req.Description, IsActive: true}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	if err := s.Repo.CreateCategory(ctx, c); err != nil {
		if repo.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: category %q exists", ErrConflict, name)
		}
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id uint, req transport.CategoryRequest) (*models.Category, error) {
	c, err := s.Repo.GetCategory(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: category %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		c.Name = name
	}
	c.Description = req.Description
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	if err := s.Repo.SaveCategory(ctx, c); err != nil {
		if repo.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: category %q exists", ErrConflict, c.Name)
		}
		return nil, err
	}
	return c, nil
}

// DeleteCategory deactivates the category; its products are left alone.
func (s *CatalogService) DeleteCategory(ctx context.Context, id uint) error {
	c, err := s.Repo.GetCategory(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: category %d", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	c.IsActive = false
	return s.Repo.SaveCategory(ctx, c)
}
