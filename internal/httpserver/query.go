package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/query"
	"github.com/Skotchmaster/storefront/internal/session"
)

// QueryHTTP exposes the filter setters. Every call answers with the
// listing as it stands once the fetch the change caused has finished.
type QueryHTTP struct{}

type rangeKind int

const (
	rangePrice rangeKind = iota
	rangeDiscount
	rangeRating
)

func (h *QueryHTTP) apply(c echo.Context, fn func(r *session.Root)) error {
	r, err := rootOf(c)
	if err != nil {
		return err
	}
	fn(r)
	settle(c, r)
	return c.JSON(http.StatusOK, listingOf(r))
}

func (h *QueryHTTP) SetSearch(c echo.Context) error {
	var req struct {
		Search string `json:"search"`
		// Find submits the search right away.
		Find bool `json:"find"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	return h.apply(c, func(r *session.Root) {
		r.Query.SetSearch(req.Search)
		if req.Find {
			r.Listing.Find()
		}
	})
}

func (h *QueryHTTP) SetCategories(c echo.Context) error {
	var req struct {
		Categories []query.Option `json:"categories"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	for _, o := range req.Categories {
		if o.Key == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "category key required")
		}
	}
	return h.apply(c, func(r *session.Root) { r.Query.SetCategories(req.Categories) })
}

func (h *QueryHTTP) SetRange(kind rangeKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			Min *float64 `json:"min"`
			Max *float64 `json:"max"`
		}
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		if req.Min == nil || req.Max == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "min and max required")
		}
		return h.apply(c, func(r *session.Root) {
			switch kind {
			case rangePrice:
				r.Query.SetPriceRange(*req.Min, *req.Max)
			case rangeDiscount:
				r.Query.SetDiscountRange(*req.Min, *req.Max)
			case rangeRating:
				r.Query.SetRatingRange(*req.Min, *req.Max)
			}
		})
	}
}

func (h *QueryHTTP) SetInStock(c echo.Context) error {
	var req struct {
		InStock bool `json:"inStock"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	return h.apply(c, func(r *session.Root) { r.Query.SetInStock(req.InStock) })
}

func (h *QueryHTTP) SetPage(c echo.Context) error {
	var req struct {
		Page int `json:"page"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	return h.apply(c, func(r *session.Root) { r.Query.SetPage(req.Page) })
}

func (h *QueryHTTP) Reset(c echo.Context) error {
	return h.apply(c, func(r *session.Root) { r.Query.Reset() })
}

func (h *QueryHTTP) Clear(c echo.Context) error {
	return h.apply(c, func(r *session.Root) { r.Query.Clear() })
}
