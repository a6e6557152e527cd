package service

import (
	"context"

	"github.com/Skotchmaster/storefront/internal/models"
)

// OrderNotifier delivers customer emails about an order. Calls are advisory.
type OrderNotifier interface {
	OrderPlaced(ctx context.Context, order *models.Order) error
	OrderStatusChanged(ctx context.Context, order *models.Order) error
}

type UserNotifier interface {
	UserRegistered(ctx context.Context, user *models.User) error
}
