package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/catalog"
	sessionmw "github.com/Skotchmaster/storefront/internal/middleware/session"
)

type Deps struct {
	Catalog *catalog.Catalog
	// Session resolves the browser session. Nil in tests that put the
	// session on the context themselves.
	Session echo.MiddlewareFunc
	// Ready reports whether the backing services are reachable.
	Ready func() error
	// AllowOrigins restricts the websocket handshake; empty or "*" allows
	// any origin.
	AllowOrigins []string
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
			}
		}
		return c.NoContent(http.StatusOK)
	})

	var mw []echo.MiddlewareFunc
	if d.Session != nil {
		mw = append(mw, d.Session)
	}
	api := e.Group("/api", mw...)

	products := &ProductHTTP{Catalog: d.Catalog}
	api.GET("/categories", products.Categories)
	api.GET("/products", products.List)
	api.GET("/products/:id", products.Get)
	api.GET("/listing", products.Listing)

	queryHandler := &QueryHTTP{}
	q := api.Group("/query")
	q.PUT("/search", queryHandler.SetSearch)
	q.PUT("/categories", queryHandler.SetCategories)
	q.PUT("/price-range", queryHandler.SetRange(rangePrice))
	q.PUT("/discount-range", queryHandler.SetRange(rangeDiscount))
	q.PUT("/rating-range", queryHandler.SetRange(rangeRating))
	q.PUT("/in-stock", queryHandler.SetInStock)
	q.PUT("/page", queryHandler.SetPage)
	q.POST("/reset", queryHandler.Reset)
	q.POST("/clear", queryHandler.Clear)

	cartHandler := &CartHTTP{}
	cart := api.Group("/cart")
	cart.GET("", cartHandler.Get)
	cart.POST("", cartHandler.Add, sessionmw.RequireLogin)
	cart.PATCH("/items/:productId", cartHandler.UpdateQuantity, sessionmw.RequireLogin)
	cart.DELETE("/items/:productId", cartHandler.RemoveLine, sessionmw.RequireLogin)
	cart.DELETE("", cartHandler.Clear, sessionmw.RequireLogin)
	cart.POST("/checkout", cartHandler.Checkout, sessionmw.RequireLogin)

	authHandler := &AuthHTTP{}
	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/register", authHandler.Register)
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/change-password", authHandler.ChangePassword, sessionmw.RequireLogin)
	auth.GET("/me", authHandler.Me)

	stream := &EventStream{AllowOrigins: d.AllowOrigins}
	api.GET("/events", stream.Serve)
}
