package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type CartService struct {
	Repo   *repo.GormRepo
	Events EventPublisher
}

func (s *CartService) publish(ctx context.Context, event map[string]any) {
	if s.Events == nil {
		return
	}
	var adv Advisory
	adv.Run(ctx, "cart_event", func(ctx context.Context) error {
		return s.Events.PublishEvent(ctx, TopicCartEvents, fmt.Sprint(event["cart_id"]), event)
	})
}

func emptyCart(owner models.CartOwner) *models.Cart {
	c := &models.Cart{Items: []models.CartItem{}}
	if owner.IsUser() {
		uid := owner.UserID
		c.UserID = &uid
	} else if owner.SessionID != "" {
		sid := owner.SessionID
		c.SessionID = &sid
	}
	return c
}

// Get returns the owner's cart. An owner without a cart gets an empty,
// unsaved one.
func (s *CartService) Get(ctx context.Context, owner models.CartOwner) (*models.Cart, error) {
	if owner.IsZero() {
		return emptyCart(owner), nil
	}
	cart, err := s.Repo.FindCart(ctx, owner)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return emptyCart(owner), nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) Count(ctx context.Context, owner models.CartOwner) (int64, error) {
	if owner.IsZero() {
		return 0, nil
	}
	return s.Repo.CountCartQuantity(ctx, owner)
}

// AddItem merges quantity into the owner's line for the product, or creates
// the line at the product's current effective price.
func (s *CartService) AddItem(ctx context.Context, owner models.CartOwner, productID uint, quantity int) (*models.CartItem, error) {
	if owner.IsZero() {
		return nil, fmt.Errorf("%w: cart owner required", ErrValidation)
	}
	if productID == 0 {
		return nil, fmt.Errorf("%w: productId required", ErrValidation)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
	}

	var line *models.CartItem
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		product, err := tx.GetProduct(ctx, productID, false)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: product %d", ErrNotFound, productID)
		}
		if err != nil {
			return err
		}

		cart, err := tx.GetOrCreateCart(ctx, owner)
		if err != nil {
			return err
		}

		existing, err := tx.FindCartLine(ctx, cart.ID, productID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		have := 0
		if existing != nil {
			have = existing.Quantity
		}
		if have+quantity > product.StockQuantity {
			return &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   have + quantity,
				Available:   product.StockQuantity,
			}
		}

		if existing != nil {
			if err := tx.AddCartItemQuantity(ctx, existing.ID, quantity); err != nil {
				return err
			}
			existing.Quantity += quantity
			line = existing
		} else {
			line = &models.CartItem{
				CartID:    cart.ID,
				ProductID: product.ID,
				Quantity:  quantity,
				UnitPrice: product.EffectivePrice(),
			}
			if err := tx.CreateCartItem(ctx, line); err != nil {
				return err
			}
		}
		line.Product = product
		return tx.TouchCart(ctx, cart.ID)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, map[string]any{
		"type":       "cart_item_added",
		"cart_id":    line.CartID,
		"product_id": line.ProductID,
		"quantity":   quantity,
	})
	return line, nil
}

func (s *CartService) ownedItem(ctx context.Context, tx *repo.GormRepo, owner models.CartOwner, itemID uint) (*models.CartItem, error) {
	item, err := tx.GetCartItem(ctx, itemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: cart item %d", ErrNotFound, itemID)
	}
	if err != nil {
		return nil, err
	}
	cart, err := tx.GetCartByID(ctx, item.CartID)
	if err != nil {
		return nil, err
	}
	if !owner.Owns(cart) {
		return nil, fmt.Errorf("%w: cart item belongs to another cart", ErrForbidden)
	}
	return item, nil
}

// UpdateItem sets the line quantity; zero or less removes the line and
// returns a nil item.
func (s *CartService) UpdateItem(ctx context.Context, owner models.CartOwner, itemID uint, quantity int) (*models.CartItem, error) {
	var out *models.CartItem
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		item, err := s.ownedItem(ctx, tx, owner, itemID)
		if err != nil {
			return err
		}
		if quantity <= 0 {
			return tx.DeleteCartItem(ctx, item.ID)
		}

		p := item.Product
		if p == nil || !p.IsActive {
			return fmt.Errorf("%w: product %d", ErrNotFound, item.ProductID)
		}
		if quantity > p.StockQuantity {
			return &InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   quantity,
				Available:   p.StockQuantity,
			}
		}
		if err := tx.SetCartItemQuantity(ctx, item.ID, quantity); err != nil {
			return err
		}
		item.Quantity = quantity
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CartService) RemoveItem(ctx context.Context, owner models.CartOwner, itemID uint) error {
	return s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		item, err := s.ownedItem(ctx, tx, owner, itemID)
		if err != nil {
			return err
		}
		return tx.DeleteCartItem(ctx, item.ID)
	})
}

// Clear empties the owner's cart. Clearing a missing or empty cart succeeds.
func (s *CartService) Clear(ctx context.Context, owner models.CartOwner) error {
	if owner.IsZero() {
		return nil
	}
	cart, err := s.Repo.FindCart(ctx, owner)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.Repo.ClearCartItems(ctx, cart.ID)
}

// MergeAnonymousIntoUser moves the session cart into the user's cart, summing
// quantities for products present in both, and deletes the session cart.
func (s *CartService) MergeAnonymousIntoUser(ctx context.Context, userID uint, sessionID string) error {
	if userID == 0 || sessionID == "" {
		return nil
	}
	l := logging.FromContext(ctx).With("svc", "cart.merge", "user_id", userID)

	merged := 0
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		sess, err := tx.FindCart(ctx, models.CartOwner{SessionID: sessionID})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		userCart, err := tx.FindCart(ctx, models.CartOwner{UserID: userID})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			merged = len(sess.Items)
			return tx.ReownCart(ctx, sess.ID, userID)
		}
		if err != nil {
			return err
		}

		byProduct := make(map[uint]models.CartItem, len(userCart.Items))
		for _, it := range userCart.Items {
			byProduct[it.ProductID] = it
		}
		for _, line := range sess.Items {
			if existing, ok := byProduct[line.ProductID]; ok {
				if err := tx.AddCartItemQuantity(ctx, existing.ID, line.Quantity); err != nil {
					return err
				}
				if err := tx.DeleteCartItem(ctx, line.ID); err != nil {
					return err
				}
			} else if err := tx.MoveCartItem(ctx, line.ID, userCart.ID); err != nil {
				return err
			}
			merged++
		}
		return tx.DeleteCart(ctx, sess.ID)
	})
	if err != nil {
		return err
	}
	if merged > 0 {
		l.Info("cart_merged", "lines", merged)
	}
	return nil
}
