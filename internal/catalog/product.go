package catalog

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/storefront/internal/contentapi"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/meta"
	"github.com/Skotchmaster/storefront/internal/models"
)

const (
	DefaultRelated = 3
	relatedSample  = 50
)

// ProductPage is the state of one product detail page: the product and a
// few related products, each with its own status.
type ProductPage struct {
	api     API
	log     *slog.Logger
	shuffle func(n int, swap func(i, j int))

	mu            sync.Mutex
	product       *models.Product
	productStatus meta.Status
	productErr    error
	related       []models.Product
	relatedStatus meta.Status
}

type PageView struct {
	Product       *models.Product  `json:"product"`
	ProductStatus meta.Status      `json:"productStatus"`
	Related       []models.Product `json:"related"`
	RelatedStatus meta.Status      `json:"relatedStatus"`
}

func NewProductPage(api API, log *slog.Logger) *ProductPage {
	if log == nil {
		log = logging.Discard()
	}
	return &ProductPage{
		api:           api,
		log:           log.With("component", "product_page"),
		shuffle:       rand.Shuffle,
		productStatus: meta.Initial,
		relatedStatus: meta.Initial,
	}
}

// Load fetches the product by documentId. The previous product is cleared
// first so a failed load never shows a stale one.
func (p *ProductPage) Load(ctx context.Context, documentID string) {
	p.mu.Lock()
	p.product = nil
	p.productStatus = meta.Loading
	p.productErr = nil
	p.mu.Unlock()

	prod, err := p.api.GetProduct(ctx, documentID)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.log.Error("get_product_error", "id", documentID, "status", meta.Error, "error", err)
		p.productStatus = meta.Error
		p.productErr = err
		return
	}
	p.product = prod
	p.productStatus = meta.Success
}

// LoadRelated picks limit random products out of a sample of the catalog.
// A zero limit loads none; a negative one means DefaultRelated.
func (p *ProductPage) LoadRelated(ctx context.Context, limit int) {
	if limit < 0 {
		limit = DefaultRelated
	}
	p.mu.Lock()
	p.related = nil
	if limit == 0 {
		p.relatedStatus = meta.Success
		p.mu.Unlock()
		return
	}
	p.relatedStatus = meta.Loading
	p.mu.Unlock()

	list, err := p.api.ListProducts(ctx, contentapi.ProductQuery{PageSize: relatedSample})

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.log.Error("related_products_error", "status", meta.Error, "error", err)
		p.relatedStatus = meta.Error
		return
	}
	items := append([]models.Product(nil), list.Data...)
	p.shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	if len(items) > limit {
		items = items[:limit]
	}
	p.related = items
	p.relatedStatus = meta.Success
}

// LoadAll loads the product and its related products concurrently.
func (p *ProductPage) LoadAll(ctx context.Context, documentID string, limit int) {
	var g errgroup.Group
	g.Go(func() error {
		p.Load(ctx, documentID)
		return nil
	})
	g.Go(func() error {
		p.LoadRelated(ctx, limit)
		return nil
	})
	_ = g.Wait()
}

// Err is the error of the last failed Load, nil otherwise.
func (p *ProductPage) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.productErr
}

func (p *ProductPage) View() PageView {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := PageView{
		ProductStatus: p.productStatus,
		Related:       append([]models.Product(nil), p.related...),
		RelatedStatus: p.relatedStatus,
	}
	if p.product != nil {
		prod := *p.product
		v.Product = &prod
	}
	return v
}
