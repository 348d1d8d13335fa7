package catalog

import (
	"errors"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/money"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusDraft    Status = "draft"
	StatusArchived Status = "archived"
)

var ErrNotFound = errors.New("product not found")

type Product struct {
	ID          string    `json:"id"`
	StoreID     string    `json:"storeId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	Status      Status    `json:"status"`
	Variants    []Variant `json:"variants"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// Variant.Price is nil when the backend sent no price; such variants cannot be sold.
type Variant struct {
	ID        string       `json:"id"`
	ProductID string       `json:"productId"`
	Title     string       `json:"title,omitempty"`
	SKU       string       `json:"sku,omitempty"`
	Price     *money.Money `json:"price"`
	Inventory int          `json:"inventory"`
}

func (p Product) IsActive() bool { return p.Status == StatusActive }

// Variant looks up a variant by id. An empty id selects the first variant,
// which is what the storefront's add-to-cart button does.
func (p Product) Variant(id string) (Variant, bool) {
	if len(p.Variants) == 0 {
		return Variant{}, false
	}
	if id == "" {
		return p.Variants[0], true
	}
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// FilterActive keeps backend order.
func FilterActive(ps []Product) []Product {
	out := make([]Product, 0, len(ps))
	for _, p := range ps {
		if p.IsActive() {
			out = append(out, p)
		}
	}
	return out
}
