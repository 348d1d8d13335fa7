package orders

import (
	"strings"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/money"
)

// CustomerInfo is a contact snapshot taken at checkout, not a customer record.
type CustomerInfo struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
}

type Item struct {
	VariantID string      `json:"variantId"`
	Quantity  int         `json:"quantity"`
	Price     money.Money `json:"price"`
}

type Order struct {
	ID            string        `json:"id"`
	Number        string        `json:"orderNumber,omitempty"`
	StoreID       string        `json:"storeId"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus,omitempty"`
	Customer      CustomerInfo  `json:"customerInfo"`
	Items         []Item        `json:"items"`
	Total         money.Money   `json:"total"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	StoreID        string       `json:"storeId"`
	Customer       CustomerInfo `json:"customerInfo"`
	Items          []Item       `json:"items"`
	Total          money.Money  `json:"total"`
	IdempotencyKey string       `json:"idempotencyKey,omitempty"`
}

// ItemsTotal is the sum the request's total must equal.
func (r CreateOrderRequest) ItemsTotal() money.Money {
	var total money.Money
	for _, it := range r.Items {
		total += it.Price * money.Money(it.Quantity)
	}
	return total
}

type ListQuery struct {
	Search string
	Status Status
	Page   int
	Limit  int
}

type PageMeta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type Page struct {
	Data []Order  `json:"data"`
	Meta PageMeta `json:"meta"`
}

// CheckoutAttempt is what is known about an idempotency key before a submission.
// A zero value means the key is new. PendingSince is set when an earlier submission
// with the key never reported back.
type CheckoutAttempt struct {
	Order        Order
	Done         bool
	PendingSince time.Time
}

// Placed reports whether o looks like the order req would have created.
func (o Order) Placed(req CreateOrderRequest) bool {
	if o.ID == "" || o.StoreID != req.StoreID || o.Total != req.Total {
		return false
	}
	if req.Customer.Email != "" && !strings.EqualFold(o.Customer.Email, req.Customer.Email) {
		return false
	}
	want := make(map[string]int, len(req.Items))
	for _, it := range req.Items {
		want[it.VariantID] += it.Quantity
	}
	for _, it := range o.Items {
		want[it.VariantID] -= it.Quantity
	}
	for _, n := range want {
		if n != 0 {
			return false
		}
	}
	return true
}
