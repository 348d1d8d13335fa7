package shopapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/catalog"
	"github.com/ariefcatur/go-shopora-console/internal/orders"
)

const (
	placedOrderScan = 50
	// backend and console clocks are not assumed to agree
	placedOrderSkew = time.Minute
)

func (c *Client) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	var ps []catalog.Product
	if err := c.do(ctx, http.MethodGet, "/products", "/products", nil, nil, &ps, nil); err != nil {
		return nil, err
	}
	return ps, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	var p catalog.Product
	err := c.do(ctx, http.MethodGet, "/products/{id}", "/products/"+url.PathEscape(id), nil, nil, &p, nil)
	return p, err
}

// CreateOrder posts the order. The idempotency key travels both in the body and as
// a header; the backend may honour either or neither.
func (c *Client) CreateOrder(ctx context.Context, req orders.CreateOrderRequest) (orders.Order, error) {
	var h http.Header
	if req.IdempotencyKey != "" {
		h = http.Header{"Idempotency-Key": []string{req.IdempotencyKey}}
	}
	var o orders.Order
	err := c.do(ctx, http.MethodPost, "/orders", "/orders", nil, req, &o, h)
	return o, err
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status orders.Status) (orders.Order, error) {
	var o orders.Order
	body := map[string]orders.Status{"status": status}
	err := c.do(ctx, http.MethodPatch, "/orders/{id}/status", "/orders/"+url.PathEscape(id)+"/status", nil, body, &o, nil)
	return o, err
}

func (c *Client) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	var o orders.Order
	err := c.do(ctx, http.MethodGet, "/orders/{id}", "/orders/"+url.PathEscape(id), nil, nil, &o, nil)
	return o, err
}

func (c *Client) ListOrders(ctx context.Context, q orders.ListQuery) (orders.Page, error) {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	var page orders.Page
	if err := c.do(ctx, http.MethodGet, "/orders", "/orders", v, nil, &page, nil); err != nil {
		return orders.Page{}, err
	}
	if page.Data == nil {
		page.Data = []orders.Order{}
	}
	return page, nil
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginUser is the user object returned by /auth/login. Role is kept raw here;
// the session package parses it into a closed set.
type LoginUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	StoreID   string `json:"storeId"`
}

type LoginResult struct {
	Token string    `json:"token"`
	User  LoginUser `json:"user"`
}

func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	var res LoginResult
	err := c.do(ctx, http.MethodPost, "/auth/login", "/auth/login", nil, creds, &res, nil)
	return res, err
}

// FindPlacedOrder searches recent orders for one matching req created at or after since.
// It backs checkout retries whose earlier attempt never reported back.
func (c *Client) FindPlacedOrder(ctx context.Context, req orders.CreateOrderRequest, since time.Time) (orders.Order, bool, error) {
	page, err := c.ListOrders(ctx, orders.ListQuery{Search: req.Customer.Email, Limit: placedOrderScan})
	if err != nil {
		return orders.Order{}, false, err
	}
	cutoff := since.Add(-placedOrderSkew)
	for _, o := range page.Data {
		if !o.Placed(req) {
			continue
		}
		if !o.CreatedAt.IsZero() && o.CreatedAt.Before(cutoff) {
			continue
		}
		return o, true, nil
	}
	return orders.Order{}, false, nil
}
