package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

// CartHTTP serves both signed-in users and anonymous sessions; the session is
// carried in the cartSession cookie or the X-Session-Id header.
type CartHTTP struct {
	Svc *service.CartService
}

func cartResponse(cart *models.Cart) transport.CartResponse {
	count := 0
	for _, it := range cart.Items {
		count += it.Quantity
	}
	items := cart.Items
	if items == nil {
		items = []models.CartItem{}
	}
	return transport.CartResponse{
		ID:        cart.ID,
		Items:     items,
		ItemCount: count,
		Subtotal:  service.Subtotal(cart),
	}
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	cart, err := h.Svc.Get(ctx, cartOwner(c, false))
	if err != nil {
		return fail(l, "get_cart_error", err)
	}
	return c.JSON(http.StatusOK, cartResponse(cart))
}

func (h *CartHTTP) Count(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.count")

	n, err := h.Svc.Count(ctx, cartOwner(c, false))
	if err != nil {
		return fail(l, "count_cart_error", err)
	}
	return c.JSON(http.StatusOK, transport.CountResponse{Count: n})
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	var req transport.AddCartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "add_to_cart_error", "invalid body", err)
	}

	item, err := h.Svc.AddItem(ctx, cartOwner(c, true), req.ProductID, req.Quantity)
	if err != nil {
		return fail(l, "add_to_cart_error", err)
	}
	l.Info("add_to_cart_success", "product_id", req.ProductID, "quantity", item.Quantity)
	return c.JSON(http.StatusCreated, item)
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update_item")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "update_cart_item_error", "invalid id", err)
	}
	var req transport.UpdateCartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_cart_item_error", "invalid body", err)
	}

	item, err := h.Svc.UpdateItem(ctx, cartOwner(c, false), id, req.Quantity)
	if err != nil {
		return fail(l, "update_cart_item_error", err)
	}
	if item == nil {
		return noContent(c)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "remove_cart_item_error", "invalid id", err)
	}
	if err := h.Svc.RemoveItem(ctx, cartOwner(c, false), id); err != nil {
		return fail(l, "remove_cart_item_error", err)
	}
	return noContent(c)
}

func (h *CartHTTP) Clear(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	if err := h.Svc.Clear(ctx, cartOwner(c, false)); err != nil {
		return fail(l, "clear_cart_error", err)
	}
	return noContent(c)
}
