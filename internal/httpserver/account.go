package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type AddressHTTP struct {
	Svc *service.AddressService
}

func (h *AddressHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "address.list")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	list, err := h.Svc.List(ctx, uid)
	if err != nil {
		return fail(l, "list_addresses_error", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AddressHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "address.get")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "get_address_error", "invalid id", err)
	}
	a, err := h.Svc.Get(ctx, id, uid)
	if err != nil {
		return fail(l, "get_address_error", err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *AddressHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "address.create")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	var req transport.AddressRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_address_error", "invalid body", err)
	}
	a, err := h.Svc.Create(ctx, uid, req)
	if err != nil {
		return fail(l, "create_address_error", err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *AddressHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "address.update")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "update_address_error", "invalid id", err)
	}
	var req transport.AddressRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_address_error", "invalid body", err)
	}
	a, err := h.Svc.Update(ctx, id, uid, req)
	if err != nil {
		return fail(l, "update_address_error", err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *AddressHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "address.delete")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "delete_address_error", "invalid id", err)
	}
	if err := h.Svc.Delete(ctx, id, uid); err != nil {
		return fail(l, "delete_address_error", err)
	}
	return noContent(c)
}

func (h *AddressHTTP) SetDefault(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "address.set_default")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "set_default_address_error", "invalid id", err)
	}
	a, err := h.Svc.SetDefault(ctx, id, uid)
	if err != nil {
		return fail(l, "set_default_address_error", err)
	}
	return c.JSON(http.StatusOK, a)
}

type UserHTTP struct {
	Svc *service.UserService
}

func (h *UserHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_users")

	page, size := pageParams(c)
	res, err := h.Svc.List(ctx, page, size)
	if err != nil {
		return fail(l, "list_users_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *UserHTTP) SetRole(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.set_role")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "set_role_error", "invalid id", err)
	}
	var req transport.UpdateRoleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "set_role_error", "invalid body", err)
	}
	u, err := h.Svc.SetRole(ctx, id, models.Role(req.Role))
	if err != nil {
		return fail(l, "set_role_error", err)
	}
	l.Info("set_role_success", "user_id", id, "role", u.Role)
	return c.JSON(http.StatusOK, u)
}

func (h *UserHTTP) SetActive(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.set_active")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "set_active_error", "invalid id", err)
	}
	var req transport.SetActiveRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "set_active_error", "invalid body", err)
	}
	u, err := h.Svc.SetActive(ctx, id, req.IsActive)
	if err != nil {
		return fail(l, "set_active_error", err)
	}
	l.Info("set_active_success", "user_id", id, "active", u.IsActive)
	return c.JSON(http.StatusOK, u)
}
