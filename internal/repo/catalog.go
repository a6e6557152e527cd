package repo

import (
	"context"
	"strings"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	SortName      = "name"
	SortPrice     = "price"
	SortPriceDesc = "price_desc"
	SortNewest    = "newest"
	SortPopular   = "popular"
)

type ProductFilter struct {
	Search          string
	CategoryID      uint
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	SortBy          string
	IncludeInactive bool
	Offset          int
	Limit           int
}

func (r *GormRepo) filteredProducts(ctx context.Context, f ProductFilter) *gorm.DB {
	q := r.DB.WithContext(ctx).Model(&models.Product{})
	if !f.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(brand) LIKE ?", like, like, like)
	}
	if f.CategoryID != 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	return q
}

func productOrder(sortBy string) string {
	switch sortBy {
	case SortPrice:
		return "price ASC, id ASC"
	case SortPriceDesc:
		return "price DESC, id ASC"
	case SortNewest:
		return "created_at DESC, id DESC"
	case SortPopular:
		return "view_count DESC, id ASC"
	default:
		return "name ASC, id ASC"
	}
}

func mainImageFirst(db *gorm.DB) *gorm.DB {
	return db.Order("is_main DESC, sort_order ASC, id ASC")
}

// ListProducts counts the filtered set and then fetches one page of it.
func (r *GormRepo) ListProducts(ctx context.Context, f ProductFilter) (int64, []models.Product, error) {
	var total int64
	if err := r.filteredProducts(ctx, f).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.Product, 0, f.Limit)
	if total == 0 {
		return 0, items, nil
	}
	if err := r.filteredProducts(ctx, f).
		Preload("Category").
		Preload("Images", mainImageFirst).
		Order(productOrder(f.SortBy)).
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

func (r *GormRepo) GetProduct(ctx context.Context, id uint, includeInactive bool) (*models.Product, error) {
	var p models.Product
	q := r.DB.WithContext(ctx).Preload("Category").Preload("Images", mainImageFirst)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormRepo) ProductsByIDs(ctx context.Context, ids []uint) ([]models.Product, error) {
	var items []models.Product
	if len(ids) == 0 {
		return items, nil
	}
	if err := r.DB.WithContext(ctx).
		Preload("Images", mainImageFirst).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) FeaturedProducts(ctx context.Context, limit int) ([]models.Product, error) {
	var items []models.Product
	if err := r.DB.WithContext(ctx).
		Preload("Images", mainImageFirst).
		Where("is_active = ? AND is_featured = ?", true, true).
		Order("view_count DESC, id ASC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, p *models.Product) error {
	return r.DB.WithContext(ctx).Omit("Category", "Images").Create(p).Error
}

// UpdateProductColumns writes only the given columns. Stock and view count
// have their own atomic updates and are never rewritten from a stale read
// unless the caller sets stock_quantity explicitly.
func (r *GormRepo) UpdateProductColumns(ctx context.Context, id uint, cols map[string]any) error {
	if len(cols) == 0 {
		return nil
	}
	res := r.DB.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) SetProductActive(ctx context.Context, id uint, active bool) error {
	res := r.DB.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) IncrementViewCount(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error
}

// DecrementStock removes qty units only if that many are on hand. It reports
// false when the product is missing, inactive or short.
func (r *GormRepo) DecrementStock(ctx context.Context, productID uint, qty int) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND is_active = ? AND stock_quantity >= ?", productID, true, qty).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) RestoreStock(ctx context.Context, productID uint, qty int) error {
	return r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", qty)).Error
}

func (r *GormRepo) LowStockProducts(ctx context.Context, threshold int) ([]models.Product, error) {
	var items []models.Product
	if err := r.DB.WithContext(ctx).
		Where("is_active = ? AND stock_quantity <= ?", true, threshold).
		Order("stock_quantity ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) CountOutOfStock(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("is_active = ? AND stock_quantity = 0", true).
		Count(&n).Error
	return n, err
}

func (r *GormRepo) InventoryValue(ctx context.Context) (decimal.Decimal, error) {
	var v decimal.NullDecimal
	err := r.DB.WithContext(ctx).Model(&models.Product{}).
		Select("SUM(price * stock_quantity)").
		Where("is_active = ?", true).
		Row().Scan(&v)
	if err != nil {
		return decimal.Zero, err
	}
	if !v.Valid {
		return decimal.Zero, nil
	}
	return v.Decimal, nil
}

func (r *GormRepo) ListImages(ctx context.Context, productID uint) ([]models.ProductImage, error) {
	var imgs []models.ProductImage
	if err := mainImageFirst(r.DB.WithContext(ctx).Where("product_id = ?", productID)).Find(&imgs).Error; err != nil {
		return nil, err
	}
	return imgs, nil
}

func (r *GormRepo) CreateImage(ctx context.Context, img *models.ProductImage) error {
	return r.DB.WithContext(ctx).Create(img).Error
}

func (r *GormRepo) DeleteImage(ctx context.Context, productID, imageID uint) error {
	res := r.DB.WithContext(ctx).Where("id = ? AND product_id = ?", imageID, productID).Delete(&models.ProductImage{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) ClearMainImage(ctx context.Context, productID uint) error {
	return r.DB.WithContext(ctx).Model(&models.ProductImage{}).
		Where("product_id = ? AND is_main = ?", productID, true).
		Update("is_main", false).Error
}

func (r *GormRepo) MarkMainImage(ctx context.Context, productID, imageID uint) error {
	res := r.DB.WithContext(ctx).Model(&models.ProductImage{}).
		Where("id = ? AND product_id = ?", imageID, productID).
		Update("is_main", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) ListCategories(ctx context.Context, includeInactive bool) ([]models.Category, error) {
	var cats []models.Category
	q := r.DB.WithContext(ctx).Order("name ASC")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&cats).Error; err != nil {
		return nil, err
	}
	return cats, nil
}

func (r *GormRepo) GetCategory(ctx context.Context, id uint) (*models.Category, error) {
	var c models.Category
	if err := r.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormRepo) CreateCategory(ctx context.Context, c *models.Category) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *GormRepo) SaveCategory(ctx context.Context, c *models.Category) error {
	return r.DB.WithContext(ctx).Save(c).Error
}
