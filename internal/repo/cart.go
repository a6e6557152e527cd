package repo

import (
	"context"
	"errors"

	"github.com/Skotchmaster/storefront/internal/models"
	"gorm.io/gorm"
)

func cartItemsOrdered(db *gorm.DB) *gorm.DB {
	return db.Order("cart_items.id ASC")
}

func ownerScope(owner models.CartOwner) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if owner.IsUser() {
			return db.Where("user_id = ?", owner.UserID)
		}
		return db.Where("session_id = ?", owner.SessionID)
	}
}

// FindCart loads the owner's cart with its lines and their products.
// It returns gorm.ErrRecordNotFound when the owner has no cart yet.
func (r *GormRepo) FindCart(ctx context.Context, owner models.CartOwner) (*models.Cart, error) {
	var cart models.Cart
	if err := r.DB.WithContext(ctx).
		Scopes(ownerScope(owner)).
		Preload("Items", cartItemsOrdered).
		Preload("Items.Product").
		First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *GormRepo) GetCartByID(ctx context.Context, id uint) (*models.Cart, error) {
	var cart models.Cart
	if err := r.DB.WithContext(ctx).First(&cart, id).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetOrCreateCart returns the owner's cart, creating an empty one on first use.
func (r *GormRepo) GetOrCreateCart(ctx context.Context, owner models.CartOwner) (*models.Cart, error) {
	cart, err := r.FindCart(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = &models.Cart{}
	if owner.IsUser() {
		uid := owner.UserID
		cart.UserID = &uid
	} else {
		sid := owner.SessionID
		cart.SessionID = &sid
	}
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Items").Create(cart).Error
	})
	if err != nil {
		if IsDuplicate(err) {
			return r.FindCart(ctx, owner)
		}
		return nil, err
	}
	cart.Items = []models.CartItem{}
	return cart, nil
}

func (r *GormRepo) GetCartItem(ctx context.Context, itemID uint) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.DB.WithContext(ctx).Preload("Product").First(&item, itemID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) FindCartLine(ctx context.Context, cartID, productID uint) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.DB.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	return r.DB.WithContext(ctx).Omit("Product").Create(item).Error
}

func (r *GormRepo) SetCartItemQuantity(ctx context.Context, itemID uint, qty int) error {
	return r.DB.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("quantity", qty).Error
}

func (r *GormRepo) AddCartItemQuantity(ctx context.Context, itemID uint, delta int) error {
	return r.DB.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("quantity", gorm.Expr("quantity + ?", delta)).Error
}

func (r *GormRepo) MoveCartItem(ctx context.Context, itemID, cartID uint) error {
	return r.DB.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("cart_id", cartID).Error
}

func (r *GormRepo) DeleteCartItem(ctx context.Context, itemID uint) error {
	return r.DB.WithContext(ctx).Delete(&models.CartItem{}, itemID).Error
}

func (r *GormRepo) ClearCartItems(ctx context.Context, cartID uint) error {
	return r.DB.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

func (r *GormRepo) DeleteCart(ctx context.Context, cartID uint) error {
	return r.DB.WithContext(ctx).Delete(&models.Cart{}, cartID).Error
}

// ReownCart hands a session cart over to a user.
func (r *GormRepo) ReownCart(ctx context.Context, cartID, userID uint) error {
	return r.DB.WithContext(ctx).Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{"user_id": userID, "session_id": nil}).Error
}

func (r *GormRepo) TouchCart(ctx context.Context, cartID uint) error {
	return r.DB.WithContext(ctx).Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("updated_at", r.DB.NowFunc()).Error
}

func (r *GormRepo) CountCartQuantity(ctx context.Context, owner models.CartOwner) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.CartItem{}).
		Select("COALESCE(SUM(cart_items.quantity), 0)").
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Scopes(func(db *gorm.DB) *gorm.DB {
			if owner.IsUser() {
				return db.Where("carts.user_id = ?", owner.UserID)
			}
			return db.Where("carts.session_id = ?", owner.SessionID)
		}).
		Row().Scan(&n)
	return n, err
}
