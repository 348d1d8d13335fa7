package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/cart"
	"github.com/ariefcatur/go-shopora-console/internal/catalog"
	"github.com/ariefcatur/go-shopora-console/internal/money"
	"github.com/ariefcatur/go-shopora-console/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreator struct {
	mu       sync.Mutex
	requests []orders.CreateOrderRequest
	err      error
	block    chan struct{}
}

func (f *fakeCreator) CreateOrder(ctx context.Context, req orders.CreateOrderRequest) (orders.Order, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return orders.Order{}, f.err
	}
	return orders.Order{ID: "order-" + req.IdempotencyKey[:8], Status: orders.StatusPending, Total: req.Total}, nil
}

func (f *fakeCreator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type memLedger struct {
	mu  sync.Mutex
	now func() time.Time
	m   map[string]orders.CheckoutAttempt
}

func newMemLedger() *memLedger {
	return &memLedger{now: time.Now, m: map[string]orders.CheckoutAttempt{}}
}

func (l *memLedger) Begin(ctx context.Context, key string) (orders.CheckoutAttempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.m[key]; ok {
		return a, nil
	}
	l.m[key] = orders.CheckoutAttempt{PendingSince: l.now()}
	return orders.CheckoutAttempt{}, nil
}

func (l *memLedger) Remember(ctx context.Context, key string, o orders.Order) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m[key] = orders.CheckoutAttempt{Order: o, Done: true}
	return nil
}

func (l *memLedger) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.m, key)
	return nil
}

func (l *memLedger) has(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.m[key]
	return ok
}

// lossyBackend stores every order it is sent but drops the response of the first
// failFirst calls, the way a gateway timeout after commit does.
type lossyBackend struct {
	mu        sync.Mutex
	failFirst int
	creates   int
	finds     int
	placed    []orders.Order
}

func (b *lossyBackend) CreateOrder(ctx context.Context, req orders.CreateOrderRequest) (orders.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creates++
	o := orders.Order{
		ID:        fmt.Sprintf("o-%d", len(b.placed)+1),
		StoreID:   req.StoreID,
		Status:    orders.StatusPending,
		Customer:  req.Customer,
		Items:     req.Items,
		Total:     req.Total,
		CreatedAt: time.Now(),
	}
	b.placed = append(b.placed, o)
	if b.creates <= b.failFirst {
		return orders.Order{}, statusErr(http.StatusGatewayTimeout)
	}
	return o, nil
}

func (b *lossyBackend) FindPlacedOrder(ctx context.Context, req orders.CreateOrderRequest, since time.Time) (orders.Order, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finds++
	for _, o := range b.placed {
		if o.Placed(req) && !o.CreatedAt.Before(since.Add(-time.Minute)) {
			return o, true, nil
		}
	}
	return orders.Order{}, false, nil
}

type statusErr int

func (e statusErr) Error() string  { return fmt.Sprintf("backend returned %d", int(e)) }
func (e statusErr) Rejected() bool { return e >= 400 && e < 500 }

var customer = orders.CustomerInfo{Email: "client@test.com", FirstName: "Client", LastName: "Test"}

func addLine(t *testing.T, c *cart.Cart, variantID, price string) cart.Line {
	m := money.MustParse(price)
	l, err := c.Add(catalog.Product{ID: "p-" + variantID}, catalog.Variant{ID: variantID, Price: &m})
	require.NoError(t, err)
	return l
}

func TestCheckout_ScenarioTwoLines(t *testing.T) {
	c := cart.New()
	addLine(t, c, "A", "10.00")
	addLine(t, c, "B", "15.50")
	assert.Equal(t, "25.50", c.Total().String())

	api := &fakeCreator{}
	s := NewSubmitter(c, api, Options{Hold: 20 * time.Millisecond})

	res, err := s.Checkout(context.Background(), customer, "store-1")
	require.NoError(t, err)
	require.Equal(t, 1, api.calls())

	req := api.requests[0]
	assert.Len(t, req.Items, 2)
	assert.Equal(t, "25.50", req.Total.String())
	assert.Equal(t, "store-1", req.StoreID)
	assert.NotEmpty(t, req.IdempotencyKey)
	for _, it := range req.Items {
		assert.Equal(t, 1, it.Quantity)
	}
	assert.Equal(t, req.ItemsTotal(), req.Total)
	assert.Equal(t, res.Order.ID, s.State().LastOrderID)

	// success clears the cart and releases the guard
	assert.Equal(t, cart.StateEmpty, c.State())
	st := s.State()
	assert.False(t, st.CheckingOut)
	assert.True(t, st.OrderDone)
	assert.Equal(t, PhaseSucceeded, st.Phase)
	assert.True(t, c.IsOpen())

	// ... and eventually closes the panel
	assert.Eventually(t, func() bool {
		st := s.State()
		return !c.IsOpen() && !st.OrderDone && st.Phase == PhaseIdle
	}, time.Second, 5*time.Millisecond)
}

func TestCheckout_EmptyCartNeverReachesNetwork(t *testing.T) {
	api := &fakeCreator{}
	s := NewSubmitter(cart.New(), api, Options{})

	_, err := s.Checkout(context.Background(), customer, "store-1")
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 0, api.calls())
	assert.Equal(t, PhaseIdle, s.State().Phase)
}

func TestCheckout_Validation(t *testing.T) {
	c := cart.New()
	addLine(t, c, "A", "1")
	api := &fakeCreator{}
	s := NewSubmitter(c, api, Options{})

	_, err := s.Checkout(context.Background(), orders.CustomerInfo{Email: "not-an-email", FirstName: "a", LastName: "b"}, "store-1")
	assert.ErrorIs(t, err, ErrInvalidCustomer)

	_, err = s.Checkout(context.Background(), orders.CustomerInfo{}, "store-1")
	assert.ErrorIs(t, err, ErrInvalidCustomer)

	_, err = s.Checkout(context.Background(), customer, "  ")
	assert.ErrorIs(t, err, ErrNoStore)

	assert.Equal(t, 0, api.calls())
	assert.Equal(t, 1, c.Len())
}

func TestCheckout_FailureKeepsCartAndReusesKey(t *testing.T) {
	c := cart.New()
	addLine(t, c, "A", "10.00")
	api := &fakeCreator{err: errors.New("503")}
	s := NewSubmitter(c, api, Options{Hold: time.Millisecond})

	before := c.Lines()
	_, err := s.Checkout(context.Background(), customer, "store-1")
	require.Error(t, err)
	assert.Equal(t, before, c.Lines())
	st := s.State()
	assert.False(t, st.CheckingOut)
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Contains(t, st.LastError, "503")

	_, err = s.Checkout(context.Background(), customer, "store-1")
	require.Error(t, err)
	require.Equal(t, 2, api.calls())
	assert.Equal(t, api.requests[0].IdempotencyKey, api.requests[1].IdempotencyKey, "same cart, same key")

	addLine(t, c, "B", "2.00")
	api.err = nil
	_, err = s.Checkout(context.Background(), customer, "store-1")
	require.NoError(t, err)
	assert.NotEqual(t, api.requests[0].IdempotencyKey, api.requests[2].IdempotencyKey, "changed cart, new key")
}

func TestCheckout_OneInFlightAtATime(t *testing.T) {
	c := cart.New()
	addLine(t, c, "A", "10.00")
	api := &fakeCreator{block: make(chan struct{})}
	s := NewSubmitter(c, api, Options{Hold: time.Hour})
	defer s.Stop()

	done := make(chan error, 1)
	go func() {
		_, err := s.Checkout(context.Background(), customer, "store-1")
		done <- err
	}()

	require.Eventually(t, func() bool { return s.State().CheckingOut }, time.Second, time.Millisecond)
	_, err := s.Checkout(context.Background(), customer, "store-1")
	assert.ErrorIs(t, err, ErrBusy)

	close(api.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, api.calls())

	// while the success flag shows, the control stays disabled
	addLine(t, c, "B", "1")
	_, err = s.Checkout(context.Background(), customer, "store-1")
	assert.ErrorIs(t, err, ErrBusy)
}

func TestCheckout_LinesAddedInFlightSurvive(t *testing.T) {
	c := cart.New()
	addLine(t, c, "A", "10.00")
	api := &fakeCreator{block: make(chan struct{})}
	s := NewSubmitter(c, api, Options{Hold: time.Hour})
	defer s.Stop()

	done := make(chan error, 1)
	go func() {
		_, err := s.Checkout(context.Background(), customer, "store-1")
		done <- err
	}()
	require.Eventually(t, func() bool { return s.State().CheckingOut }, time.Second, time.Millisecond)
	late := addLine(t, c, "B", "5.00")
	close(api.block)
	require.NoError(t, <-done)

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, late.ID, lines[0].ID)
}

func TestCheckout_RetryAfterLostResponseDoesNotDuplicate(t *testing.T) {
	c := cart.New()
	addLine(t, c, "A", "10.00")
	addLine(t, c, "B", "15.50")
	backend := &lossyBackend{failFirst: 1}
	s := NewSubmitter(c, backend, Options{Ledger: newMemLedger(), Resolver: backend, Hold: time.Hour})
	defer s.Stop()

	_, err := s.Checkout(context.Background(), customer, "store-1")
	require.Error(t, err)
	assert.Equal(t, 2, c.Len(), "failed checkout keeps the cart")
	assert.Len(t, backend.placed, 1, "the backend committed anyway")

	res, err := s.Checkout(context.Background(), customer, "store-1")
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.True(t, res.Recovered)
	assert.Equal(t, "o-1", res.Order.ID)
	assert.Equal(t, 1, backend.creates, "no second order")
	assert.Equal(t, 1, backend.finds)
	assert.Len(t, backend.placed, 1)
	assert.Equal(t, cart.StateEmpty, c.State())
}

func TestCheckout_PendingKeyWithNothingPlacedRetries(t *testing.T) {
	c := cart.New()
	addLine(t, c, "A", "10.00")
	api := &fakeCreator{err: errors.New("connection reset")}
	ledger := newMemLedger()
	s := NewSubmitter(c, api, Options{Ledger: ledger, Resolver: &lossyBackend{}, Hold: time.Hour})
	defer s.Stop()

	_, err := s.Checkout(context.Background(), customer, "store-1")
	require.Error(t, err)
	key := api.requests[0].IdempotencyKey
	assert.True(t, ledger.has(key), "unknown outcome keeps the claim")

	api.err = nil
	res, err := s.Checkout(context.Background(), customer, "store-1")
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, 2, api.calls())
	assert.Equal(t, key, api.requests[1].IdempotencyKey)

	// a third submission of the same key would be served from the ledger
	a, err := ledger.Begin(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, a.Done)
	assert.Equal(t, res.Order.ID, a.Order.ID)
}

func TestCheckout_RejectedOrderReleasesKey(t *testing.T) {
	c := cart.New()
	addLine(t, c, "A", "10.00")
	api := &fakeCreator{err: statusErr(http.StatusUnprocessableEntity)}
	ledger := newMemLedger()
	s := NewSubmitter(c, api, Options{Ledger: ledger, Hold: time.Hour})
	defer s.Stop()

	_, err := s.Checkout(context.Background(), customer, "store-1")
	require.Error(t, err)
	assert.False(t, ledger.has(api.requests[0].IdempotencyKey))
}
