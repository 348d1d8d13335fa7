package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUpdateInFlight    = errors.New("status update already in flight")
)

type StatusUpdater interface {
	UpdateOrderStatus(ctx context.Context, orderID string, status Status) (Order, error)
}

// Detail is the admin order-detail view model. The displayed status may run ahead of
// the server while a change is pending; confirmed always holds what the server accepted.
type Detail struct {
	api StatusUpdater

	mu        sync.Mutex
	order     Order
	confirmed Status
	pending   *Change
}

func NewDetail(o Order, api StatusUpdater) *Detail {
	return &Detail{api: api, order: o, confirmed: o.Status}
}

func (d *Detail) Order() Order {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order
}

func (d *Detail) Confirmed() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.confirmed
}

func (d *Detail) Updating() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Change is an optimistically applied status that has not been confirmed yet.
type Change struct {
	d    *Detail
	From Status
	To   Status
}

// Propose checks the transition against the last confirmed status and shows it
// immediately. The returned change must be submitted.
func (d *Detail) Propose(to Status) (*Change, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		return nil, ErrUpdateInFlight
	}
	if !CanTransition(d.confirmed, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.confirmed, to)
	}
	c := &Change{d: d, From: d.confirmed, To: to}
	d.pending = c
	d.order.Status = to
	return c, nil
}

// Outcome of a submitted change. A failed outcome keeps the optimistic status on
// screen and blocks further changes until Revert is called.
type Outcome struct {
	Change *Change
	Order  Order
	Err    error
}

func (o Outcome) Failed() bool { return o.Err != nil }

// Revert restores the last confirmed status. It is a no-op for successful outcomes.
func (o Outcome) Revert() Order {
	d := o.Change.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if o.Err != nil && d.pending == o.Change {
		d.order.Status = d.confirmed
		d.pending = nil
	}
	return d.order
}

func (c *Change) Submit(ctx context.Context) Outcome {
	d := c.d
	id := d.Order().ID
	updated, err := d.api.UpdateOrderStatus(ctx, id, c.To)
	if err != nil {
		return Outcome{Change: c, Order: d.Order(), Err: fmt.Errorf("update status of %s: %w", id, err)}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if updated.ID != "" {
		d.order = updated
	}
	if !d.order.Status.Valid() {
		d.order.Status = c.To
	}
	d.confirmed = d.order.Status
	d.pending = nil
	return Outcome{Change: c, Order: d.order}
}

// ChangeStatus proposes, submits and rolls back on failure.
func (d *Detail) ChangeStatus(ctx context.Context, to Status) (Order, error) {
	c, err := d.Propose(to)
	if err != nil {
		return d.Order(), err
	}
	out := c.Submit(ctx)
	if out.Failed() {
		return out.Revert(), out.Err
	}
	return out.Order, nil
}
