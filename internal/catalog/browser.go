package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ariefcatur/go-shopora-console/internal/metrics"
)

type ProductLister interface {
	ListProducts(ctx context.Context) ([]Product, error)
}

// Browser is the storefront's view of the catalog. The backend is never asked to
// filter; inactive products are dropped here.
type Browser struct {
	src ProductLister
	log *slog.Logger

	mu       sync.RWMutex
	products []Product
}

func NewBrowser(src ProductLister, log *slog.Logger) *Browser {
	if log == nil {
		log = slog.Default()
	}
	return &Browser{src: src, log: log}
}

// ListActiveProducts refreshes the catalog. On failure the list is left empty and
// the error is returned as well, so callers can tell an empty shop from a broken one.
func (b *Browser) ListActiveProducts(ctx context.Context) ([]Product, error) {
	all, err := b.src.ListProducts(ctx)
	if err != nil {
		metrics.CatalogFetchFailures.Inc()
		b.log.Error("fetch products failed", "error", err)
		b.mu.Lock()
		b.products = []Product{}
		b.mu.Unlock()
		return []Product{}, fmt.Errorf("list products: %w", err)
	}

	active := FilterActive(all)
	b.mu.Lock()
	b.products = active
	b.mu.Unlock()
	return cloneProducts(active), nil
}

// Products returns the list from the last refresh.
func (b *Browser) Products() []Product {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneProducts(b.products)
}

func (b *Browser) Find(productID, variantID string) (Product, Variant, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, p := range b.products {
		if p.ID != productID {
			continue
		}
		v, ok := p.Variant(variantID)
		if !ok {
			return Product{}, Variant{}, fmt.Errorf("%w: variant %q of %s", ErrNotFound, variantID, productID)
		}
		return p, v, nil
	}
	return Product{}, Variant{}, fmt.Errorf("%w: %s", ErrNotFound, productID)
}

func cloneProducts(ps []Product) []Product {
	out := make([]Product, len(ps))
	copy(out, ps)
	return out
}
