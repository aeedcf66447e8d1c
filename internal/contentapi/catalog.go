package contentapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/qs"
)

// ProductQuery is the filter set of a product list request.
type ProductQuery struct {
	Search      string
	CategoryIDs []string
	Price       *Bounds
	Discount    *Bounds
	Rating      *Bounds
	InStock     bool
	Page        int
	PageSize    int
}

type Bounds struct {
	Min float64
	Max float64
}

// Encode renders the query in the API's filter syntax, always populating
// images and the product category.
func (q ProductQuery) Encode() string {
	var b qs.Builder
	b.Add("images", "populate", "0")
	b.Add("productCategory", "populate", "1")

	for i, id := range q.CategoryIDs {
		b.Add(id, "filters", "productCategory", "documentId", "$in", strconv.Itoa(i))
	}
	if q.Search != "" {
		b.Add(q.Search, "filters", "title", "$containsi")
	}
	addBounds(&b, "price", q.Price)
	addBounds(&b, "discountPercent", q.Discount)
	addBounds(&b, "rating", q.Rating)
	if q.InStock {
		b.Add("0", "filters", "stock", "$gt")
	}

	if q.Page > 0 {
		b.AddInt(q.Page, "pagination", "page")
	}
	if q.PageSize > 0 {
		b.AddInt(q.PageSize, "pagination", "pageSize")
	}
	return b.Encode()
}

func addBounds(b *qs.Builder, field string, r *Bounds) {
	if r == nil {
		return
	}
	b.AddFloat(r.Min, "filters", field, "$gte")
	b.AddFloat(r.Max, "filters", field, "$lte")
}

func (c *Client) ListProducts(ctx context.Context, q ProductQuery) (*models.List[models.Product], error) {
	var out models.List[models.Product]
	if err := c.do(ctx, http.MethodGet, productsPath, q.Encode(), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProduct looks a product up by its documentId.
func (c *Client) GetProduct(ctx context.Context, documentID string) (*models.Product, error) {
	var b qs.Builder
	b.Add("images", "populate", "0")
	b.Add("productCategory", "populate", "1")

	var out models.Single[models.Product]
	path := productsPath + "/" + url.PathEscape(documentID)
	if err := c.do(ctx, http.MethodGet, path, b.Encode(), "", nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out models.List[models.Category]
	if err := c.do(ctx, http.MethodGet, categoriesPath, "", "", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}
