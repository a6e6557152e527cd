package repo

import (
	"context"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func orderItemsOrdered(db *gorm.DB) *gorm.DB {
	return db.Order("order_items.id ASC")
}

// InsertOrder writes the order and its items inside a savepoint so a
// duplicate order number can be retried without aborting the outer
// transaction.
func (r *GormRepo) InsertOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
}

func (r *GormRepo) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	if err := r.DB.WithContext(ctx).Preload("Items", orderItemsOrdered).First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepo) GetOrderForUser(ctx context.Context, id, userID uint) (*models.Order, error) {
	var o models.Order
	if err := r.DB.WithContext(ctx).
		Preload("Items", orderItemsOrdered).
		Where("user_id = ?", userID).
		First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepo) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	var o models.Order
	if err := r.DB.WithContext(ctx).
		Preload("Items", orderItemsOrdered).
		Where("order_number = ?", number).
		First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepo) ListOrdersByUser(ctx context.Context, userID uint, offset, limit int) (int64, []models.Order, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	orders := make([]models.Order, 0, limit)
	if err := r.DB.WithContext(ctx).
		Preload("Items", orderItemsOrdered).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, status models.OrderStatus, offset, limit int) (int64, []models.Order, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if status != "" {
			return db.Where("status = ?", status)
		}
		return db
	}

	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Order{}).Scopes(scope).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	orders := make([]models.Order, 0, limit)
	if err := r.DB.WithContext(ctx).
		Scopes(scope).
		Preload("Items", orderItemsOrdered).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

// CompareAndSetStatus moves the order to `to` only while its current status
// is one of `from`. It reports whether the row was updated.
func (r *GormRepo) CompareAndSetStatus(ctx context.Context, id uint, from []models.OrderStatus, to models.OrderStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

type statusCount struct {
	Status models.OrderStatus
	N      int64
}

func (r *GormRepo) CountOrdersByStatus(ctx context.Context) (map[models.OrderStatus]int64, error) {
	var rows []statusCount
	if err := r.DB.WithContext(ctx).Model(&models.Order{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[models.OrderStatus]int64, len(models.AllOrderStatuses))
	for _, s := range models.AllOrderStatuses {
		out[s] = 0
	}
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

// Revenue sums totals of orders that were neither cancelled nor refunded.
func (r *GormRepo) Revenue(ctx context.Context) (decimal.Decimal, error) {
	var v decimal.NullDecimal
	err := r.DB.WithContext(ctx).Model(&models.Order{}).
		Select("SUM(total)").
		Where("status NOT IN ?", []models.OrderStatus{models.StatusCancelled, models.StatusRefunded}).
		Row().Scan(&v)
	if err != nil {
		return decimal.Zero, err
	}
	if !v.Valid {
		return decimal.Zero, nil
	}
	return v.Decimal, nil
}
