package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/models"
)

type CartHTTP struct{}

func productIDParam(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("productId"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	return id, nil
}

func (h *CartHTTP) Get(c echo.Context) error {
	r, err := rootOf(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r.Cart.View())
}

func (h *CartHTTP) Add(c echo.Context) error {
	r, err := rootOf(c)
	if err != nil {
		return err
	}
	var req struct {
		Product  models.Product `json:"product"`
		Quantity int            `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Product.ID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "product id required")
	}
	if err := r.Cart.AddToCart(c.Request().Context(), req.Product, req.Quantity); err != nil {
		return toHTTP(c, "add_to_cart_error", err)
	}
	return c.JSON(http.StatusOK, r.Cart.View())
}

// UpdateQuantity applies a delta locally; the server sees it with the
// next debounced flush.
func (h *CartHTTP) UpdateQuantity(c echo.Context) error {
	r, err := rootOf(c)
	if err != nil {
		return err
	}
	id, err := productIDParam(c)
	if err != nil {
		return err
	}
	var req struct {
		Delta   int             `json:"delta"`
		Product *models.Product `json:"product"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := r.Cart.UpdateQuantity(id, req.Delta, req.Product); err != nil {
		return toHTTP(c, "update_quantity_error", err)
	}
	return c.JSON(http.StatusAccepted, r.Cart.View())
}

func (h *CartHTTP) RemoveLine(c echo.Context) error {
	r, err := rootOf(c)
	if err != nil {
		return err
	}
	id, err := productIDParam(c)
	if err != nil {
		return err
	}
	if err := r.Cart.RemoveLine(c.Request().Context(), id); err != nil {
		return toHTTP(c, "remove_line_error", err)
	}
	return c.JSON(http.StatusOK, r.Cart.View())
}

func (h *CartHTTP) Clear(c echo.Context) error {
	r, err := rootOf(c)
	if err != nil {
		return err
	}
	if err := r.Cart.ClearAll(c.Request().Context()); err != nil {
		return toHTTP(c, "clear_cart_error", err)
	}
	return c.JSON(http.StatusOK, r.Cart.View())
}

// Checkout sends queued changes first so the order covers what the
// customer sees.
func (h *CartHTTP) Checkout(c echo.Context) error {
	r, err := rootOf(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := r.Cart.Flush(ctx); err != nil {
		return toHTTP(c, "checkout_flush_error", err)
	}
	if len(r.Cart.Pending()) > 0 {
		return echo.NewHTTPError(http.StatusBadGateway, "cart changes could not be saved")
	}
	receipt, err := r.Cart.Checkout(ctx)
	if err != nil {
		return toHTTP(c, "checkout_error", err)
	}
	return c.JSON(http.StatusOK, receipt)
}
