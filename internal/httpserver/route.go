package httpserver

import (
	"context"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/models"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
)

// csrfExempt names routes a browser reaches before it holds a CSRF cookie,
// plus health checks that should not mint one.
var csrfExempt = []string{"auth.register", "auth.login", "health.live", "health.ready"}

// CSRFExemptRoutes returns the registered paths of the csrfExempt routes.
// Call it after Register.
func CSRFExemptRoutes(e *echo.Echo) []string {
	var out []string
	for _, r := range e.Routes() {
		if slices.Contains(csrfExempt, r.Name) {
			out = append(out, r.Path)
		}
	}
	return out
}

type Deps struct {
	AuthHandler    *AuthHTTP
	CatalogHandler *CatalogHTTP
	CartHandler    *CartHTTP
	OrderHandler   *OrderHTTP
	AddressHandler *AddressHTTP
	UserHandler    *UserHTTP

	AuthMW *middleware.AutoRefreshMiddleware
	// Idempotency guards order placement; nil disables it.
	Idempotency echo.MiddlewareFunc
	// Ready reports whether the database is reachable.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) }).Name = "health.live"
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	}).Name = "health.ready"

	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register).Name = "auth.register"
	auth.POST("/login", d.AuthHandler.Login).Name = "auth.login"
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.Logout)
	auth.GET("/me", d.AuthHandler.Me, d.AuthMW.RequireAuth)

	products := api.Group("/products")
	products.GET("", d.CatalogHandler.ListProducts)
	products.GET("/featured", d.CatalogHandler.FeaturedProducts)
	products.GET("/search", d.CatalogHandler.SearchProducts)
	products.GET("/:id", d.CatalogHandler.GetProduct)
	api.GET("/categories", d.CatalogHandler.ListCategories)

	cart := api.Group("/cart", d.AuthMW.OptionalAuth)
	cart.GET("", d.CartHandler.GetCart)
	cart.GET("/count", d.CartHandler.Count)
	cart.POST("/items", d.CartHandler.AddItem)
	cart.PUT("/items/:id", d.CartHandler.UpdateItem)
	cart.DELETE("/items/:id", d.CartHandler.RemoveItem)
	cart.DELETE("", d.CartHandler.Clear)

	addresses := api.Group("/addresses", d.AuthMW.RequireAuth)
	addresses.GET("", d.AddressHandler.List)
	addresses.POST("", d.AddressHandler.Create)
	addresses.GET("/:id", d.AddressHandler.Get)
	addresses.PUT("/:id", d.AddressHandler.Update)
	addresses.DELETE("/:id", d.AddressHandler.Delete)
	addresses.PUT("/:id/default", d.AddressHandler.SetDefault)

	api.GET("/orders/track/:orderNumber", d.OrderHandler.TrackOrder)
	orders := api.Group("/orders", d.AuthMW.RequireAuth)
	if d.Idempotency != nil {
		orders.POST("", d.OrderHandler.CreateOrder, d.Idempotency)
	} else {
		orders.POST("", d.OrderHandler.CreateOrder)
	}
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.PUT("/:id/cancel", d.OrderHandler.CancelOrder)

	// Sellers manage their own products; categories and orders are admin only.
	admin := api.Group("/admin", d.AuthMW.RequireRole(string(models.RoleAdmin), string(models.RoleSeller)))
	adminOnly := middleware.AllowRoles(string(models.RoleAdmin))
	admin.GET("/products", d.CatalogHandler.AdminListProducts)
	admin.POST("/products", d.CatalogHandler.CreateProduct)
	admin.GET("/products/stock-report", d.CatalogHandler.StockReport)
	admin.GET("/products/:id", d.CatalogHandler.AdminGetProduct)
	admin.PUT("/products/:id", d.CatalogHandler.UpdateProduct)
	admin.DELETE("/products/:id", d.CatalogHandler.DeleteProduct)
	admin.POST("/products/:id/images", d.CatalogHandler.AddImage)
	admin.DELETE("/products/:id/images/:imageId", d.CatalogHandler.DeleteImage)
	admin.PUT("/products/:id/images/:imageId/main", d.CatalogHandler.SetMainImage)

	admin.GET("/categories", d.CatalogHandler.AdminListCategories)
	admin.POST("/categories", d.CatalogHandler.CreateCategory, adminOnly)
	admin.PUT("/categories/:id", d.CatalogHandler.UpdateCategory, adminOnly)
	admin.DELETE("/categories/:id", d.CatalogHandler.DeleteCategory, adminOnly)

	admin.GET("/orders", d.OrderHandler.AdminListOrders, adminOnly)
	admin.GET("/orders/stats", d.OrderHandler.Stats, adminOnly)
	admin.GET("/orders/:id", d.OrderHandler.AdminGetOrder, adminOnly)
	admin.PUT("/orders/:id/status", d.OrderHandler.UpdateStatus, adminOnly)

	users := api.Group("/admin/users", d.AuthMW.RequireAdmin)
	users.GET("", d.UserHandler.List)
	users.PUT("/:id/role", d.UserHandler.SetRole)
	users.PUT("/:id/active", d.UserHandler.SetActive)
}
