package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/contentapi"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/query"
)

const (
	DefaultTTL = 5 * time.Minute

	categoriesKey = "catalog:categories"
	boundsKey     = "catalog:bounds"

	// measurePageSize is the page size used to walk the whole catalog.
	measurePageSize = 100
)

type API interface {
	ListProducts(ctx context.Context, q contentapi.ProductQuery) (*models.List[models.Product], error)
	GetProduct(ctx context.Context, documentID string) (*models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// Catalog serves the data every session shares: category options and the
// catalog-wide filter bounds. Both are cached for TTL.
type Catalog struct {
	api   API
	cache cache.Cache
	ttl   time.Duration
	log   *slog.Logger
}

func New(api API, c cache.Cache, ttl time.Duration, log *slog.Logger) *Catalog {
	if c == nil {
		c = cache.NewMemory()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Catalog{api: api, cache: c, ttl: ttl, log: log.With("component", "catalog")}
}

// Categories lists the categories as filter options: key is the
// documentId, value the title.
func (c *Catalog) Categories(ctx context.Context) ([]query.Option, error) {
	var opts []query.Option
	if c.cached(ctx, categoriesKey, &opts) {
		return opts, nil
	}

	cats, err := c.api.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	opts = make([]query.Option, 0, len(cats))
	for _, cat := range cats {
		opts = append(opts, query.Option{Key: cat.DocumentID, Value: cat.Title})
	}
	c.store(ctx, categoriesKey, opts)
	return opts, nil
}

// Bounds measures min and max price, discount and rating over the whole
// catalog. Non-positive prices are ignored. A dimension with no data
// keeps its default bound.
func (c *Catalog) Bounds(ctx context.Context) (query.Bounds, error) {
	var b query.Bounds
	if c.cached(ctx, boundsKey, &b) {
		return b, nil
	}

	price, discount, rating := newSpan(), newSpan(), newSpan()
	for page, pageCount := 1, 1; page <= pageCount; page++ {
		list, err := c.api.ListProducts(ctx, contentapi.ProductQuery{Page: page, PageSize: measurePageSize})
		if err != nil {
			return query.DefaultBounds, fmt.Errorf("measure catalog page %d: %w", page, err)
		}
		for _, p := range list.Data {
			if p.Price > 0 {
				price.add(p.Price)
			}
			discount.add(p.DiscountPercent)
			rating.add(p.Rating)
		}
		pageCount = list.Meta.Pagination.PageCount
	}

	b = query.Bounds{
		Price:    price.or(query.DefaultBounds.Price),
		Discount: discount.or(query.DefaultBounds.Discount),
		Rating:   rating.or(query.DefaultBounds.Rating),
	}
	c.store(ctx, boundsKey, b)
	return b, nil
}

func (c *Catalog) cached(ctx context.Context, key string, out any) bool {
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache_get_error", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Warn("cache_decode_error", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Catalog) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("cache_encode_error", "key", key, "error", err)
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		c.log.Warn("cache_set_error", "key", key, "error", err)
	}
}

type span struct {
	min, max float64
}

func newSpan() *span {
	return &span{min: math.Inf(1), max: math.Inf(-1)}
}

func (s *span) add(v float64) {
	s.min = math.Min(s.min, v)
	s.max = math.Max(s.max, v)
}

func (s *span) or(def query.Range) query.Range {
	if math.IsInf(s.min, 1) {
		return def
	}
	return query.Range{Min: s.min, Max: s.max}
}
