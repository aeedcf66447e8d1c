package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/catalog"
	"github.com/Skotchmaster/storefront/internal/contentapi"
	"github.com/Skotchmaster/storefront/internal/listing"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/query"
	"github.com/Skotchmaster/storefront/internal/session"
)

type ProductHTTP struct {
	Catalog *catalog.Catalog
}

// ListingResponse is the listing page: products, the query they were
// fetched for and the pager.
type ListingResponse struct {
	Listing  listing.Result   `json:"listing"`
	Query    query.Snapshot   `json:"query"`
	Location string           `json:"location"`
	Pages    []query.PageItem `json:"pages"`
}

func listingOf(r *session.Root) ListingResponse {
	snap := r.Query.Snapshot()
	return ListingResponse{
		Listing:  r.Listing.Result(),
		Query:    snap,
		Location: r.Query.Location(),
		Pages:    query.PageRange(snap.Pagination.Page, snap.Pagination.PageCount),
	}
}

// settle waits for the fetch a mutation may have started so the response
// carries its result. A client that went away gets whatever is there.
func settle(c echo.Context, r *session.Root) {
	if err := r.Listing.Settle(c.Request().Context()); err != nil {
		logging.FromContext(c.Request().Context()).Debug("listing_settle_interrupted", "error", err)
	}
}

// List loads the query state from the page URL and fetches that page.
func (h *ProductHTTP) List(c echo.Context) error {
	r, err := rootOf(c)
	if err != nil {
		return err
	}
	r.Query.Init(c.QueryString())
	r.Listing.Reload()
	settle(c, r)
	return c.JSON(http.StatusOK, listingOf(r))
}

func (h *ProductHTTP) Listing(c echo.Context) error {
	r, err := rootOf(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listingOf(r))
}

// Get loads the product detail page: the product and a few related ones.
func (h *ProductHTTP) Get(c echo.Context) error {
	r, err := rootOf(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "product id required")
	}
	limit := catalog.DefaultRelated
	if v := c.QueryParam("related"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid related")
		}
		limit = n
	}

	r.Product.LoadAll(c.Request().Context(), id, limit)
	view := r.Product.View()
	if view.Product == nil {
		if err := r.Product.Err(); err != nil && !contentapi.IsNotFound(err) {
			return toHTTP(c, "get_product_error", err)
		}
		return c.JSON(http.StatusNotFound, view)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *ProductHTTP) Categories(c echo.Context) error {
	if h.Catalog == nil {
		return c.JSON(http.StatusOK, []query.Option{})
	}
	opts, err := h.Catalog.Categories(c.Request().Context())
	if err != nil {
		return toHTTP(c, "get_categories_error", err)
	}
	return c.JSON(http.StatusOK, opts)
}
