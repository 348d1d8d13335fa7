package storefront

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/cart"
	"github.com/ariefcatur/go-shopora-console/internal/catalog"
	"github.com/ariefcatur/go-shopora-console/internal/checkout"
	"github.com/ariefcatur/go-shopora-console/internal/money"
	"github.com/ariefcatur/go-shopora-console/internal/orders"
)

// Backend is what a shop needs from the REST API.
type Backend interface {
	catalog.ProductLister
	checkout.OrderCreator
}

// Shop is one visitor's storefront: catalog view, cart and checkout.
type Shop struct {
	Catalog  *catalog.Browser
	Cart     *cart.Cart
	Checkout *checkout.Submitter

	mu       sync.Mutex
	lastSeen time.Time
}

func NewShop(b Backend, opts checkout.Options) *Shop {
	c := cart.New()
	return &Shop{
		Catalog:  catalog.NewBrowser(b, opts.Logger),
		Cart:     c,
		Checkout: checkout.NewSubmitter(c, b, opts),
		lastSeen: time.Now(),
	}
}

// AddToCart resolves the pair against the last catalog listing, refreshing it once
// when the product is not there yet.
func (s *Shop) AddToCart(ctx context.Context, productID, variantID string) (cart.Line, error) {
	p, v, err := s.Catalog.Find(productID, variantID)
	if err != nil {
		if _, ferr := s.Catalog.ListActiveProducts(ctx); ferr != nil {
			return cart.Line{}, ferr
		}
		if p, v, err = s.Catalog.Find(productID, variantID); err != nil {
			return cart.Line{}, err
		}
	}
	return s.Cart.Add(p, v)
}

func (s *Shop) PlaceOrder(ctx context.Context, customer orders.CustomerInfo, storeID string) (checkout.Result, error) {
	return s.Checkout.Checkout(ctx, customer, storeID)
}

type View struct {
	Lines    []cart.Line    `json:"lines"`
	Count    int            `json:"count"`
	Total    money.Money    `json:"total"`
	State    cart.State     `json:"state"`
	Open     bool           `json:"open"`
	Checkout checkout.State `json:"checkout"`
}

func (s *Shop) View() View {
	lines := s.Cart.Lines()
	var total money.Money
	for _, l := range lines {
		total += l.Price()
	}
	state := cart.StateEmpty
	if len(lines) > 0 {
		state = cart.StateNonEmpty
	}
	return View{
		Lines:    lines,
		Count:    len(lines),
		Total:    total,
		State:    state,
		Open:     s.Cart.IsOpen(),
		Checkout: s.Checkout.State(),
	}
}

func (s *Shop) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Shop) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Registry holds shops in memory. A restart loses every cart, as a page reload did.
type Registry struct {
	backend Backend
	opts    checkout.Options
	idleTTL time.Duration
	log     *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	shops map[string]*Shop
}

func NewRegistry(b Backend, opts checkout.Options, idleTTL time.Duration) *Registry {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		backend: b,
		opts:    opts,
		idleTTL: idleTTL,
		log:     log,
		now:     time.Now,
		shops:   make(map[string]*Shop),
	}
}

func (r *Registry) Get(visitorID string) *Shop {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shops[visitorID]
	if !ok {
		s = NewShop(r.backend, r.opts)
		r.shops[visitorID] = s
	}
	s.touch(now)
	return s
}

func (r *Registry) Drop(visitorID string) {
	r.mu.Lock()
	s, ok := r.shops[visitorID]
	delete(r.shops, visitorID)
	r.mu.Unlock()
	if ok {
		s.Checkout.Stop()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shops)
}

// Sweep evicts shops idle longer than the TTL and returns how many were dropped.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	now := r.now()
	r.mu.Lock()
	var stale []*Shop
	for id, s := range r.shops {
		if s.idleSince(now) > r.idleTTL && !s.Checkout.State().CheckingOut {
			stale = append(stale, s)
			delete(r.shops, id)
		}
	}
	r.mu.Unlock()
	for _, s := range stale {
		s.Checkout.Stop()
	}
	return len(stale)
}

// Run sweeps periodically until ctx is done.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(); n > 0 {
				r.log.Info("evicted idle shops", "count", n, "remaining", r.Len())
			}
		}
	}
}
