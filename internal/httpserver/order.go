package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_order_error", "invalid body", err)
	}

	res, err := h.Svc.CreateOrder(ctx, uid, req)
	if err != nil {
		return failCheckout(l, "create_order_error", err)
	}

	markDegraded(c, res.Advisory)
	l.Info("create_order_success", "order_number", res.Value.OrderNumber)
	return c.JSON(http.StatusCreated, res.Value)
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_orders")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	page, size := pageParams(c)
	res, err := h.Svc.ListForUser(ctx, uid, page, size)
	if err != nil {
		return fail(l, "list_orders_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "get_order_error", "invalid id", err)
	}
	o, err := h.Svc.GetForUser(ctx, id, uid)
	if err != nil {
		return fail(l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel_order")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "cancel_order_error", "invalid id", err)
	}

	res, err := h.Svc.CancelOrder(ctx, id, uid, false)
	if err != nil {
		return fail(l, "cancel_order_error", err)
	}
	markDegraded(c, res.Advisory)
	l.Info("cancel_order_success", "order_id", id)
	return c.JSON(http.StatusOK, res.Value)
}

func (h *OrderHTTP) TrackOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.track")

	res, err := h.Svc.Track(ctx, c.Param("orderNumber"))
	if err != nil {
		return fail(l, "track_order_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

// Admin endpoints.

func (h *OrderHTTP) AdminListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_orders")

	page, size := pageParams(c)
	res, err := h.Svc.ListAll(ctx, c.QueryParam("status"), page, size)
	if err != nil {
		return fail(l, "list_orders_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *OrderHTTP) AdminGetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.get_order")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "get_order_error", "invalid id", err)
	}
	o, err := h.Svc.Get(ctx, id)
	if err != nil {
		return fail(l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update_order_status")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "update_status_error", "invalid id", err)
	}
	var req transport.UpdateOrderStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_status_error", "invalid body", err)
	}
	target, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		return badRequest(l, "update_status_error", "unknown status", err)
	}

	res, err := h.Svc.UpdateStatus(ctx, id, target, req.TransactionID)
	if err != nil {
		return fail(l, "update_status_error", err)
	}
	markDegraded(c, res.Advisory)
	l.Info("update_status_success", "order_id", id, "status", target)
	return c.JSON(http.StatusOK, res.Value)
}

func (h *OrderHTTP) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.order_stats")

	st, err := h.Svc.Stats(ctx)
	if err != nil {
		return fail(l, "order_stats_error", err)
	}
	return c.JSON(http.StatusOK, st)
}
