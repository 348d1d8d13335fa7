package shopapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ariefcatur/go-shopora-console/internal/catalog"
	"github.com/ariefcatur/go-shopora-console/internal/merchant"
)

func (c *Client) CreateProduct(ctx context.Context, in catalog.ProductInput) (catalog.Product, error) {
	var p catalog.Product
	err := c.do(ctx, http.MethodPost, "/products", "/products", nil, in, &p, nil)
	return p, err
}

func (c *Client) UpdateProduct(ctx context.Context, id string, patch catalog.ProductPatch) (catalog.Product, error) {
	var p catalog.Product
	err := c.do(ctx, http.MethodPatch, "/products/{id}", "/products/"+url.PathEscape(id), nil, patch, &p, nil)
	return p, err
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/products/{id}", "/products/"+url.PathEscape(id), nil, nil, nil, nil)
}

func (c *Client) ListMarkets(ctx context.Context) ([]merchant.Market, error) {
	ms := []merchant.Market{}
	if err := c.do(ctx, http.MethodGet, "/markets", "/markets", nil, nil, &ms, nil); err != nil {
		return nil, err
	}
	return ms, nil
}

func (c *Client) CreateMarket(ctx context.Context, m merchant.Market) (merchant.Market, error) {
	var out merchant.Market
	err := c.do(ctx, http.MethodPost, "/markets", "/markets", nil, m, &out, nil)
	return out, err
}

func (c *Client) UpdateMarket(ctx context.Context, id string, patch merchant.MarketPatch) (merchant.Market, error) {
	var out merchant.Market
	err := c.do(ctx, http.MethodPatch, "/markets/{id}", "/markets/"+url.PathEscape(id), nil, patch, &out, nil)
	return out, err
}

func (c *Client) DeleteMarket(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/markets/{id}", "/markets/"+url.PathEscape(id), nil, nil, nil, nil)
}

func (c *Client) ListTaxRules(ctx context.Context) ([]merchant.TaxRule, error) {
	rs := []merchant.TaxRule{}
	if err := c.do(ctx, http.MethodGet, "/tax-rules", "/tax-rules", nil, nil, &rs, nil); err != nil {
		return nil, err
	}
	return rs, nil
}

func (c *Client) CreateTaxRule(ctx context.Context, r merchant.TaxRule) (merchant.TaxRule, error) {
	var out merchant.TaxRule
	err := c.do(ctx, http.MethodPost, "/tax-rules", "/tax-rules", nil, r, &out, nil)
	return out, err
}

func (c *Client) UpdateTaxRule(ctx context.Context, id string, patch merchant.TaxRulePatch) (merchant.TaxRule, error) {
	var out merchant.TaxRule
	err := c.do(ctx, http.MethodPatch, "/tax-rules/{id}", "/tax-rules/"+url.PathEscape(id), nil, patch, &out, nil)
	return out, err
}

func (c *Client) DeleteTaxRule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tax-rules/{id}", "/tax-rules/"+url.PathEscape(id), nil, nil, nil, nil)
}

func (c *Client) ListPayouts(ctx context.Context) ([]merchant.Payout, error) {
	ps := []merchant.Payout{}
	if err := c.do(ctx, http.MethodGet, "/payouts", "/payouts", nil, nil, &ps, nil); err != nil {
		return nil, err
	}
	return ps, nil
}

func (c *Client) PayoutSummary(ctx context.Context) (merchant.PayoutSummary, error) {
	var s merchant.PayoutSummary
	err := c.do(ctx, http.MethodGet, "/payouts/summary", "/payouts/summary", nil, nil, &s, nil)
	return s, err
}

// Registration is the body of /auth/register: a new seller account and its store.
type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	StoreName string `json:"storeName"`
}

// Register creates the account; the backend answers like /auth/login.
func (c *Client) Register(ctx context.Context, reg Registration) (LoginResult, error) {
	var res LoginResult
	err := c.do(ctx, http.MethodPost, "/auth/register", "/auth/register", nil, reg, &res, nil)
	return res, err
}
