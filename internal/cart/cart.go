package cart

import (
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/catalog"
	"github.com/ariefcatur/go-shopora-console/internal/money"
	"github.com/google/uuid"
)

var (
	ErrNoPrice         = errors.New("variant has no price")
	ErrVariantMismatch = errors.New("variant does not belong to product")
)

type State string

const (
	StateEmpty    State = "empty"
	StateNonEmpty State = "non_empty"
)

// Line is one unit of a variant. Adding the same variant twice gives two lines.
type Line struct {
	ID      string          `json:"id"`
	Product catalog.Product `json:"product"`
	Variant catalog.Variant `json:"variant"`
	AddedAt time.Time       `json:"addedAt"`
}

func (l Line) Price() money.Money { return *l.Variant.Price }

// Cart is volatile: it lives only as long as the process holding it.
type Cart struct {
	mu      sync.Mutex
	lines   []Line
	open    bool
	version uint64
	now     func() time.Time
}

func New() *Cart {
	return &Cart{now: time.Now}
}

func newLineID() string {
	// v7 is time-ordered, so ids also sort by add time.
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Add appends a new line and opens the cart panel.
func (c *Cart) Add(p catalog.Product, v catalog.Variant) (Line, error) {
	if v.Price == nil {
		return Line{}, ErrNoPrice
	}
	if v.ProductID != "" && p.ID != "" && v.ProductID != p.ID {
		return Line{}, ErrVariantMismatch
	}
	price := *v.Price
	v.Price = &price // snapshot, independent of later catalog refreshes

	c.mu.Lock()
	defer c.mu.Unlock()
	line := Line{ID: newLineID(), Product: p, Variant: v, AddedAt: c.now()}
	c.lines = append(c.lines, line)
	c.open = true
	c.version++
	return line, nil
}

// Remove drops the line with the given id. Unknown ids are ignored.
func (c *Cart) Remove(lineID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, l := range c.lines {
		if l.ID == lineID {
			c.lines = append(c.lines[:i:i], c.lines[i+1:]...)
			c.version++
			return true
		}
	}
	return false
}

// Discard removes every line whose id is listed; used after a successful checkout
// so that lines added while the order was in flight survive.
func (c *Cart) Discard(ids ...string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.lines[:0:0]
	for _, l := range c.lines {
		if _, ok := drop[l.ID]; !ok {
			kept = append(kept, l)
		}
	}
	if len(kept) != len(c.lines) {
		c.lines = kept
		c.version++
	}
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lines) > 0 {
		c.lines = nil
		c.version++
	}
}

func (c *Cart) Total() money.Money {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total money.Money
	for _, l := range c.lines {
		total += l.Price()
	}
	return total
}

func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Snapshot returns lines and the version they belong to under a single lock.
func (c *Cart) Snapshot() ([]Line, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out, c.version
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

func (c *Cart) State() State {
	if c.Len() == 0 {
		return StateEmpty
	}
	return StateNonEmpty
}

func (c *Cart) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

func (c *Cart) Open() {
	c.mu.Lock()
	c.open = true
	c.mu.Unlock()
}

func (c *Cart) Close() {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
}

func (c *Cart) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}
