package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/cart"
	"github.com/ariefcatur/go-shopora-console/internal/orders"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DefaultHold is how long the success flag stays up before the cart panel closes.
const DefaultHold = 3 * time.Second

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrBusy            = errors.New("checkout already in progress")
	ErrNoStore         = errors.New("no store to order from")
	ErrInvalidCustomer = errors.New("invalid customer contact")
)

type OrderCreator interface {
	CreateOrder(ctx context.Context, req orders.CreateOrderRequest) (orders.Order, error)
}

// Ledger tracks idempotency keys. Begin claims a key before the order is posted and
// reports what an earlier attempt with the same key left behind.
type Ledger interface {
	Begin(ctx context.Context, key string) (orders.CheckoutAttempt, error)
	Remember(ctx context.Context, key string, o orders.Order) error
	Release(ctx context.Context, key string) error
}

// Resolver looks up an order an earlier attempt may have created after since.
type Resolver interface {
	FindPlacedOrder(ctx context.Context, req orders.CreateOrderRequest, since time.Time) (orders.Order, bool, error)
}

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

type State struct {
	Phase       Phase  `json:"phase"`
	CheckingOut bool   `json:"checkingOut"`
	OrderDone   bool   `json:"orderDone"`
	LastOrderID string `json:"lastOrderId,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}

type Result struct {
	Order     orders.Order
	Request   orders.CreateOrderRequest
	Replayed  bool
	// Recovered is set when the order was found on the backend after an attempt whose
	// response was lost; nothing has announced it yet.
	Recovered bool
}

var validate = validator.New()

type Options struct {
	Ledger   Ledger
	Resolver Resolver
	Hold     time.Duration
	Logger   *slog.Logger
}

// Submitter turns one cart into orders, one submission at a time.
type Submitter struct {
	cart    *cart.Cart
	creator OrderCreator
	ledger   Ledger
	resolver Resolver
	hold     time.Duration
	log      *slog.Logger

	mu         sync.Mutex
	phase      Phase
	inFlight   bool
	orderDone  bool
	lastOrder  string
	lastErr    error
	key        string
	keyVersion uint64
	timer      *time.Timer
}

func NewSubmitter(c *cart.Cart, creator OrderCreator, opts Options) *Submitter {
	if opts.Hold <= 0 {
		opts.Hold = DefaultHold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Submitter{
		cart:     c,
		creator:  creator,
		ledger:   opts.Ledger,
		resolver: opts.Resolver,
		hold:     opts.Hold,
		log:      opts.Logger,
		phase:    PhaseIdle,
	}
}

func (s *Submitter) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Phase:       s.phase,
		CheckingOut: s.inFlight,
		OrderDone:   s.orderDone,
		LastOrderID: s.lastOrder,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Checkout submits the current cart. On failure the cart is left untouched so the
// customer can try again; a retry of the same cart reuses the idempotency key.
func (s *Submitter) Checkout(ctx context.Context, customer orders.CustomerInfo, storeID string) (Result, error) {
	customer = normalize(customer)
	storeID = strings.TrimSpace(storeID)

	s.mu.Lock()
	if s.inFlight || s.orderDone {
		s.mu.Unlock()
		return Result{}, ErrBusy
	}
	lines, version := s.cart.Snapshot()
	if len(lines) == 0 {
		s.mu.Unlock()
		return Result{}, ErrEmptyCart
	}
	if storeID == "" {
		s.mu.Unlock()
		return Result{}, ErrNoStore
	}
	if err := validate.Struct(customer); err != nil {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidCustomer, err)
	}
	if s.key == "" || s.keyVersion != version {
		s.key = uuid.NewString()
		s.keyVersion = version
	}
	req := BuildRequest(lines, customer, storeID, s.key)
	s.inFlight = true
	s.phase = PhaseSubmitting
	s.lastErr = nil
	s.mu.Unlock()

	res, err := s.submit(ctx, req)
	if err != nil {
		s.mu.Lock()
		s.inFlight = false
		s.phase = PhaseFailed
		s.lastErr = err
		s.mu.Unlock()
		s.log.Error("checkout failed", "store_id", storeID, "items", len(req.Items), "idempotency_key", req.IdempotencyKey, "error", err)
		return Result{Request: req}, err
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ID
	}
	s.cart.Discard(ids...)

	s.mu.Lock()
	s.inFlight = false
	s.orderDone = true
	s.phase = PhaseSucceeded
	s.lastOrder = res.Order.ID
	s.key = ""
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.hold, s.settle)
	s.mu.Unlock()

	s.log.Info("checkout succeeded", "order_id", res.Order.ID, "store_id", storeID, "total", req.Total.String(), "replayed", res.Replayed)
	res.Request = req
	return res, nil
}

func (s *Submitter) submit(ctx context.Context, req orders.CreateOrderRequest) (Result, error) {
	key := req.IdempotencyKey
	claimed := false
	if s.ledger != nil {
		prior, err := s.ledger.Begin(ctx, key)
		switch {
		case err != nil:
			s.log.Warn("checkout ledger unavailable", "error", err)
		case prior.Done:
			return Result{Order: prior.Order, Replayed: true}, nil
		case !prior.PendingSince.IsZero():
			// an earlier attempt with this key never reported back
			if o, ok := s.resolve(ctx, req, prior.PendingSince); ok {
				s.remember(ctx, key, o)
				return Result{Order: o, Replayed: true, Recovered: true}, nil
			}
			claimed = true
		default:
			claimed = true
		}
	}

	o, err := s.creator.CreateOrder(ctx, req)
	if err != nil {
		if claimed && rejected(err) {
			if rerr := s.ledger.Release(ctx, key); rerr != nil {
				s.log.Warn("release checkout key failed", "error", rerr)
			}
		}
		return Result{}, fmt.Errorf("create order: %w", err)
	}
	if claimed {
		s.remember(ctx, key, o)
	}
	return Result{Order: o}, nil
}

func (s *Submitter) resolve(ctx context.Context, req orders.CreateOrderRequest, since time.Time) (orders.Order, bool) {
	if s.resolver == nil {
		return orders.Order{}, false
	}
	o, ok, err := s.resolver.FindPlacedOrder(ctx, req, since)
	if err != nil {
		s.log.Warn("resolve pending checkout failed", "idempotency_key", req.IdempotencyKey, "error", err)
		return orders.Order{}, false
	}
	return o, ok
}

func (s *Submitter) remember(ctx context.Context, key string, o orders.Order) {
	if err := s.ledger.Remember(ctx, key, o); err != nil {
		s.log.Warn("remember checkout failed", "order_id", o.ID, "error", err)
	}
}

// rejected reports whether the backend refused the order outright, so nothing was created.
func rejected(err error) bool {
	var r interface{ Rejected() bool }
	return errors.As(err, &r) && r.Rejected()
}

// settle runs when the hold expires: the success flag drops and the panel closes.
func (s *Submitter) settle() {
	s.mu.Lock()
	s.orderDone = false
	if s.phase == PhaseSucceeded {
		s.phase = PhaseIdle
	}
	s.timer = nil
	s.mu.Unlock()
	s.cart.Close()
}

// Stop cancels a pending hold timer.
func (s *Submitter) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// BuildRequest maps cart lines to the order contract; every line is one unit.
func BuildRequest(lines []cart.Line, customer orders.CustomerInfo, storeID, key string) orders.CreateOrderRequest {
	req := orders.CreateOrderRequest{
		StoreID:        storeID,
		Customer:       customer,
		Items:          make([]orders.Item, 0, len(lines)),
		IdempotencyKey: key,
	}
	for _, l := range lines {
		req.Items = append(req.Items, orders.Item{
			VariantID: l.Variant.ID,
			Quantity:  1,
			Price:     l.Price(),
		})
	}
	req.Total = req.ItemsTotal()
	return req
}

func normalize(c orders.CustomerInfo) orders.CustomerInfo {
	c.Email = strings.TrimSpace(c.Email)
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	return c
}
