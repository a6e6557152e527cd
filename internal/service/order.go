package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

const tracerName = "github.com/Skotchmaster/storefront/internal/service"

type OrderService struct {
	Repo     *repo.GormRepo
	Events   EventPublisher
	Notifier OrderNotifier
	Tracer   trace.Tracer

	Now            func() time.Time
	NewOrderNumber OrderNumberFunc
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *OrderService) orderNumber(now time.Time) string {
	if s.NewOrderNumber != nil {
		return s.NewOrderNumber(now)
	}
	return NewOrderNumber(now)
}

func (s *OrderService) tracer() trace.Tracer {
	if s.Tracer != nil {
		return s.Tracer
	}
	return otel.Tracer(tracerName)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CreateOrder turns the user's cart into a Pending order. Stock decrement,
// order insert and cart clearing commit together or not at all.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint, req transport.CreateOrderRequest) (res Result[*models.Order], err error) {
	ctx, span := s.tracer().Start(ctx, "order.create", trace.WithAttributes(attribute.Int("user.id", int(userID))))
	defer func() { endSpan(span, err) }()

	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		return res, fmt.Errorf("%w: paymentMethod required", ErrValidation)
	}
	if req.AddressID == 0 {
		return res, fmt.Errorf("%w: addressId required", ErrInvalidAddress)
	}

	var order *models.Order
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		cart, err := tx.FindCart(ctx, models.CartOwner{UserID: userID})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return ErrEmptyCart
		}

		addr, err := tx.GetAddressForUser(ctx, req.AddressID, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: address %d", ErrInvalidAddress, req.AddressID)
		}
		if err != nil {
			return err
		}

		user, err := tx.GetUserByID(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		if err != nil {
			return err
		}

		lines := slices.Clone(cart.Items)
		slices.SortFunc(lines, func(a, b models.CartItem) int { return cmp.Compare(a.ProductID, b.ProductID) })

		for _, line := range lines {
			p := line.Product
			if p == nil || !p.IsActive {
				return fmt.Errorf("%w: product %d is no longer available", ErrNotFound, line.ProductID)
			}
			if p.StockQuantity < line.Quantity {
				return &InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Requested:   line.Quantity,
					Available:   p.StockQuantity,
				}
			}
		}

		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			items = append(items, models.OrderItem{
				ProductID:   line.ProductID,
				ProductName: line.Product.Name,
				UnitPrice:   line.UnitPrice,
				Quantity:    line.Quantity,
				LineTotal:   line.LineTotal(),
			})
		}
		totals := ComputeTotals(CartSubtotal(lines), addr.City)

		phone := addr.Phone
		if phone == "" {
			phone = user.Phone
		}
		order = &models.Order{
			UserID:             userID,
			Status:             models.StatusPending,
			PaymentMethod:      method,
			ShippingFirstName:  addr.FirstName,
			ShippingLastName:   addr.LastName,
			ShippingEmail:      user.Email,
			ShippingPhone:      phone,
			ShippingAddress:    addr.AddressLine,
			ShippingCity:       addr.City,
			ShippingState:      addr.State,
			ShippingPostalCode: addr.PostalCode,
			ShippingCountry:    addr.Country,
			Subtotal:           totals.Subtotal,
			ShippingCost:       totals.Shipping,
			Tax:                totals.Tax,
			Total:              totals.Total,
			Notes:              strings.TrimSpace(req.Notes),
			Items:              items,
		}

		for _, line := range lines {
			ok, err := tx.DecrementStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				available := 0
				if cur, err := tx.GetProduct(ctx, line.ProductID, true); err == nil {
					available = cur.StockQuantity
				}
				return &InsufficientStockError{
					ProductID:   line.ProductID,
					ProductName: line.Product.Name,
					Requested:   line.Quantity,
					Available:   available,
				}
			}
		}

		if err := s.insertWithUniqueNumber(ctx, tx, order); err != nil {
			return err
		}
		return tx.ClearCartItems(ctx, cart.ID)
	})
	if err != nil {
		return res, err
	}

	span.SetAttributes(
		attribute.String("order.number", order.OrderNumber),
		attribute.String("order.total", order.Total.String()),
	)
	logging.FromContext(ctx).Info("order_created", "order_id", order.ID, "order_number", order.OrderNumber, "user_id", userID)

	res.Value = order
	s.publish(ctx, &res.Advisory, order, map[string]any{"type": "order_created"})
	if s.Notifier != nil {
		res.Advisory.Run(ctx, "order_confirmation_email", func(ctx context.Context) error {
			return s.Notifier.OrderPlaced(ctx, order)
		})
	}
	return res, nil
}

func (s *OrderService) insertWithUniqueNumber(ctx context.Context, tx *repo.GormRepo, order *models.Order) error {
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		order.OrderNumber = s.orderNumber(s.now())
		err := tx.InsertOrder(ctx, order)
		if err == nil {
			return nil
		}
		if !repo.IsDuplicate(err) {
			return err
		}
		logging.FromContext(ctx).Warn("order_number_collision", "order_number", order.OrderNumber, "attempt", attempt)
		order.ID = 0
		for i := range order.Items {
			order.Items[i].ID = 0
			order.Items[i].OrderID = 0
		}
	}
	return fmt.Errorf("%w: could not allocate a unique order number", ErrConflict)
}

func (s *OrderService) publish(ctx context.Context, adv *Advisory, order *models.Order, event map[string]any) {
	if s.Events == nil {
		return
	}
	event["order_id"] = order.ID
	event["order_number"] = order.OrderNumber
	event["user_id"] = order.UserID
	event["status"] = string(order.Status)
	event["total"] = order.Total.String()
	event["ts"] = s.now().Unix()
	adv.Run(ctx, "order_event", func(ctx context.Context) error {
		return s.Events.PublishEvent(ctx, TopicOrderEvents, order.OrderNumber, event)
	})
}

func (s *OrderService) notifyStatus(ctx context.Context, adv *Advisory, order *models.Order, from models.OrderStatus) {
	s.publish(ctx, adv, order, map[string]any{
		"type": "order_status_changed",
		"from": string(from),
		"to":   string(order.Status),
	})
	if s.Notifier != nil {
		adv.Run(ctx, "order_status_email", func(ctx context.Context) error {
			return s.Notifier.OrderStatusChanged(ctx, order)
		})
	}
}

// CancelOrder cancels a Pending or Processing order and puts its quantities
// back on stock. Orders owned by someone else are reported as not found
// unless asAdmin is set.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID uint, asAdmin bool) (res Result[*models.Order], err error) {
	ctx, span := s.tracer().Start(ctx, "order.cancel", trace.WithAttributes(attribute.Int("order.id", int(orderID))))
	defer func() { endSpan(span, err) }()

	var (
		order *models.Order
		from  models.OrderStatus
	)
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		var err error
		if asAdmin {
			order, err = tx.GetOrder(ctx, orderID)
		} else {
			order, err = tx.GetOrderForUser(ctx, orderID, userID)
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		if err != nil {
			return err
		}

		from = order.Status
		if !from.CanTransitionTo(models.StatusCancelled) {
			return fmt.Errorf("%w: %s order cannot be cancelled", ErrInvalidTransition, from)
		}

		now := s.now()
		ok, err := tx.CompareAndSetStatus(ctx, order.ID, models.Sources(models.StatusCancelled), models.StatusCancelled,
			map[string]any{"cancelled_at": now})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %d changed concurrently", ErrInvalidTransition, orderID)
		}

		for _, it := range order.Items {
			if err := tx.RestoreStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		order.Status = models.StatusCancelled
		order.CancelledAt = &now
		return nil
	})
	if err != nil {
		return res, err
	}

	logging.FromContext(ctx).Info("order_cancelled", "order_id", order.ID, "from", from)
	res.Value = order
	s.notifyStatus(ctx, &res.Advisory, order, from)
	return res, nil
}

func (s *OrderService) transition(ctx context.Context, orderID uint, to models.OrderStatus, extra map[string]any) (res Result[*models.Order], err error) {
	ctx, span := s.tracer().Start(ctx, "order.transition", trace.WithAttributes(
		attribute.Int("order.id", int(orderID)),
		attribute.String("order.status.to", string(to)),
	))
	defer func() { endSpan(span, err) }()

	order, err := s.Repo.GetOrder(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return res, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	if err != nil {
		return res, err
	}

	from := order.Status
	if !from.CanTransitionTo(to) {
		return res, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	ok, err := s.Repo.CompareAndSetStatus(ctx, orderID, []models.OrderStatus{from}, to, extra)
	if err != nil {
		return res, err
	}
	if !ok {
		return res, fmt.Errorf("%w: order %d changed concurrently", ErrInvalidTransition, orderID)
	}

	order, err = s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return res, err
	}
	logging.FromContext(ctx).Info("order_status_changed", "order_id", orderID, "from", from, "to", to)
	res.Value = order
	s.notifyStatus(ctx, &res.Advisory, order, from)
	return res, nil
}

func (s *OrderService) ProcessPayment(ctx context.Context, orderID uint, transactionID string) (Result[*models.Order], error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return Result[*models.Order]{}, fmt.Errorf("%w: transactionId required", ErrValidation)
	}
	return s.transition(ctx, orderID, models.StatusProcessing, map[string]any{
		"payment_transaction_id": transactionID,
		"paid_at":                s.now(),
	})
}

func (s *OrderService) MarkShipped(ctx context.Context, orderID uint) (Result[*models.Order], error) {
	return s.transition(ctx, orderID, models.StatusShipped, map[string]any{"shipped_at": s.now()})
}

func (s *OrderService) MarkDelivered(ctx context.Context, orderID uint) (Result[*models.Order], error) {
	return s.transition(ctx, orderID, models.StatusDelivered, map[string]any{"delivered_at": s.now()})
}

// Refund marks a delivered order refunded. Returned goods are not put back on
// stock automatically.
func (s *OrderService) Refund(ctx context.Context, orderID uint) (Result[*models.Order], error) {
	return s.transition(ctx, orderID, models.StatusRefunded, map[string]any{"refunded_at": s.now()})
}

// UpdateStatus dispatches an admin status change to the matching transition.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint, target models.OrderStatus, transactionID string) (Result[*models.Order], error) {
	switch target {
	case models.StatusProcessing:
		return s.ProcessPayment(ctx, orderID, transactionID)
	case models.StatusShipped:
		return s.MarkShipped(ctx, orderID)
	case models.StatusDelivered:
		return s.MarkDelivered(ctx, orderID)
	case models.StatusRefunded:
		return s.Refund(ctx, orderID)
	case models.StatusCancelled:
		return s.CancelOrder(ctx, orderID, 0, true)
	case models.StatusPending:
		return Result[*models.Order]{}, fmt.Errorf("%w: no transition leads to %s", ErrInvalidTransition, target)
	default:
		return Result[*models.Order]{}, fmt.Errorf("%w: unknown status %q", ErrValidation, target)
	}
}

func (s *OrderService) ListForUser(ctx context.Context, userID uint, page, size int) (*transport.OrderListResponse, error) {
	offset, limit := util.Calculate(page, size)
	total, orders, err := s.Repo.ListOrdersByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	return &transport.OrderListResponse{Orders: orders, Pagination: util.NewPagination(page, size, total)}, nil
}

func (s *OrderService) GetForUser(ctx context.Context, orderID, userID uint) (*models.Order, error) {
	o, err := s.Repo.GetOrderForUser(ctx, orderID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	return o, err
}

func (s *OrderService) Get(ctx context.Context, orderID uint) (*models.Order, error) {
	o, err := s.Repo.GetOrder(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	return o, err
}

func (s *OrderService) Track(ctx context.Context, orderNumber string) (*transport.TrackOrderResponse, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, fmt.Errorf("%w: order number required", ErrValidation)
	}
	o, err := s.Repo.GetOrderByNumber(ctx, orderNumber)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderNumber)
	}
	if err != nil {
		return nil, err
	}
	return &transport.TrackOrderResponse{
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		City:        o.ShippingCity,
		ItemCount:   o.ItemCount(),
		Total:       o.Total,
		CreatedAt:   o.CreatedAt,
	}, nil
}

func (s *OrderService) ListAll(ctx context.Context, status string, page, size int) (*transport.OrderListResponse, error) {
	var st models.OrderStatus
	if status != "" {
		parsed, err := models.ParseOrderStatus(status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		st = parsed
	}
	offset, limit := util.Calculate(page, size)
	total, orders, err := s.Repo.ListOrders(ctx, st, offset, limit)
	if err != nil {
		return nil, err
	}
	return &transport.OrderListResponse{Orders: orders, Pagination: util.NewPagination(page, size, total)}, nil
}

func (s *OrderService) Stats(ctx context.Context) (*transport.OrderStats, error) {
	counts, err := s.Repo.CountOrdersByStatus(ctx)
	if err != nil {
		return nil, err
	}
	revenue, err := s.Repo.Revenue(ctx)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return &transport.OrderStats{Counts: counts, Total: total, Revenue: revenue.Round(2)}, nil
}
