package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type CatalogHTTP struct {
	Svc *service.CatalogService
}

func parseProductQuery(c echo.Context) (service.ProductQuery, error) {
	page, size := pageParams(c)
	q := service.ProductQuery{
		Page:     page,
		PageSize: size,
		Search:   c.QueryParam("search"),
		SortBy:   c.QueryParam("sortBy"),
	}
	if v := c.QueryParam("categoryId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return q, err
		}
		q.CategoryID = uint(id)
	}
	for _, p := range []struct {
		name string
		dst  **decimal.Decimal
	}{{"minPrice", &q.MinPrice}, {"maxPrice", &q.MaxPrice}} {
		v := c.QueryParam(p.name)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return q, err
		}
		*p.dst = &d
	}
	return q, nil
}

func (h *CatalogHTTP) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.list_products")

	q, err := parseProductQuery(c)
	if err != nil {
		return badRequest(l, "list_products_error", "invalid query", err)
	}
	res, err := h.Svc.ListProducts(ctx, q)
	if err != nil {
		return fail(l, "list_products_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *CatalogHTTP) FeaturedProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.featured")

	items, err := h.Svc.FeaturedProducts(ctx)
	if err != nil {
		return fail(l, "featured_error", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CatalogHTTP) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.search")

	page, size := pageParams(c)
	res, err := h.Svc.SearchProducts(ctx, c.QueryParam("q"), page, size)
	if err != nil {
		return fail(l, "search_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.get_product")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "get_product_error", "invalid id", err)
	}
	p, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		return fail(l, "get_product_error", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *CatalogHTTP) ListCategories(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.list_categories")

	cats, err := h.Svc.ListCategories(ctx, false)
	if err != nil {
		return fail(l, "list_categories_error", err)
	}
	return c.JSON(http.StatusOK, cats)
}

// Admin endpoints.

func (h *CatalogHTTP) AdminListProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_products")

	q, err := parseProductQuery(c)
	if err != nil {
		return badRequest(l, "list_products_error", "invalid query", err)
	}
	res, err := h.Svc.AdminListProducts(ctx, q)
	if err != nil {
		return fail(l, "list_products_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *CatalogHTTP) AdminGetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.get_product")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "get_product_error", "invalid id", err)
	}
	p, err := h.Svc.AdminGetProduct(ctx, id)
	if err != nil {
		return fail(l, "get_product_error", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *CatalogHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.create_product")

	var req transport.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_product_error", "invalid body", err)
	}
	var seller uint
	if uid, err := userID(c); err == nil && role(c) == models.RoleSeller {
		seller = uid
	}

	res, err := h.Svc.CreateProduct(ctx, req, seller)
	if err != nil {
		return fail(l, "create_product_error", err)
	}
	markDegraded(c, res.Advisory)
	l.Info("create_product_success", "product_id", res.Value.ID)
	return c.JSON(http.StatusCreated, res.Value)
}

func (h *CatalogHTTP) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update_product")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "update_product_error", "invalid id", err)
	}
	var req transport.PatchProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_product_error", "invalid body", err)
	}

	a, err := actor(c)
	if err != nil {
		return err
	}
	res, err := h.Svc.UpdateProduct(ctx, a, id, req)
	if err != nil {
		return fail(l, "update_product_error", err)
	}
	markDegraded(c, res.Advisory)
	return c.JSON(http.StatusOK, res.Value)
}

func (h *CatalogHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.delete_product")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "delete_product_error", "invalid id", err)
	}
	a, err := actor(c)
	if err != nil {
		return err
	}
	res, err := h.Svc.DeleteProduct(ctx, a, id)
	if err != nil {
		return fail(l, "delete_product_error", err)
	}
	markDegraded(c, res.Advisory)
	l.Info("delete_product_success", "product_id", id)
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "product deactivated"})
}

func (h *CatalogHTTP) AddImage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.add_image")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "add_image_error", "invalid id", err)
	}
	var req transport.AddImageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "add_image_error", "invalid body", err)
	}
	a, err := actor(c)
	if err != nil {
		return err
	}
	img, err := h.Svc.AddImage(ctx, a, id, req)
	if err != nil {
		return fail(l, "add_image_error", err)
	}
	return c.JSON(http.StatusCreated, img)
}

func (h *CatalogHTTP) DeleteImage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.delete_image")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "delete_image_error", "invalid id", err)
	}
	imageID, err := pathID(c, "imageId")
	if err != nil {
		return badRequest(l, "delete_image_error", "invalid image id", err)
	}
	a, err := actor(c)
	if err != nil {
		return err
	}
	if err := h.Svc.DeleteImage(ctx, a, id, imageID); err != nil {
		return fail(l, "delete_image_error", err)
	}
	return noContent(c)
}

func (h *CatalogHTTP) SetMainImage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.set_main_image")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "set_main_image_error", "invalid id", err)
	}
	imageID, err := pathID(c, "imageId")
	if err != nil {
		return badRequest(l, "set_main_image_error", "invalid image id", err)
	}
	a, err := actor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": h.Svc.SetMainImage(ctx, a, id, imageID)})
}

func (h *CatalogHTTP) StockReport(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.stock_report")

	rep, err := h.Svc.StockReport(ctx)
	if err != nil {
		return fail(l, "stock_report_error", err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *CatalogHTTP) AdminListCategories(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_categories")

	cats, err := h.Svc.ListCategories(ctx, true)
	if err != nil {
		return fail(l, "list_categories_error", err)
	}
	return c.JSON(http.StatusOK, cats)
}

func (h *CatalogHTTP) CreateCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.create_category")

	var req transport.CategoryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_category_error", "invalid body", err)
	}
	cat, err := h.Svc.CreateCategory(ctx, req)
	if err != nil {
		return fail(l, "create_category_error", err)
	}
	return c.JSON(http.StatusCreated, cat)
}

func (h *CatalogHTTP) UpdateCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update_category")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "update_category_error", "invalid id", err)
	}
	var req transport.CategoryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_category_error", "invalid body", err)
	}
	cat, err := h.Svc.UpdateCategory(ctx, id, req)
	if err != nil {
		return fail(l, "update_category_error", err)
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *CatalogHTTP) DeleteCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.delete_category")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "delete_category_error", "invalid id", err)
	}
	if err := h.Svc.DeleteCategory(ctx, id); err != nil {
		return fail(l, "delete_category_error", err)
	}
	return noContent(c)
}
