// Package merchant holds the store settings a seller manages from the console:
// sales markets, tax rules and the payouts the platform sends them.
package merchant

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/money"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var ErrInvalid = errors.New("invalid merchant settings")

var validate = validator.New()

type MarketStatus string

const (
	MarketActive   MarketStatus = "active"
	MarketInactive MarketStatus = "inactive"
)

// Market is a region the store sells into, with its own domain and currency.
type Market struct {
	ID       string       `json:"id"`
	StoreID  string       `json:"storeId,omitempty"`
	Name     string       `json:"name" validate:"required"`
	Type     string       `json:"type,omitempty"`
	Status   MarketStatus `json:"status" validate:"oneof=active inactive"`
	Domain   string       `json:"domain,omitempty" validate:"omitempty,hostname|fqdn"`
	Regions  []string     `json:"regions,omitempty" validate:"dive,required"`
	Currency string       `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	Primary  bool         `json:"primary,omitempty"`
}

// MarketPatch carries the fields a PATCH changes; nil fields are left alone.
type MarketPatch struct {
	Name     *string       `json:"name,omitempty" validate:"omitempty,min=1"`
	Status   *MarketStatus `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
	Domain   *string       `json:"domain,omitempty"`
	Regions  []string      `json:"regions,omitempty" validate:"omitempty,dive,required"`
	Currency *string       `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
}

// NormalizeMarket trims the market and fills the default status before validating it.
func NormalizeMarket(m Market) (Market, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.Domain = strings.ToLower(strings.TrimSpace(m.Domain))
	m.Currency = strings.ToUpper(strings.TrimSpace(m.Currency))
	if m.Status == "" {
		m.Status = MarketActive
	}
	if err := validate.Struct(m); err != nil {
		return Market{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return m, nil
}

func ValidatePatch(p any) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

var hundred = decimal.NewFromInt(100)

// TaxRule applies Rate percent to orders shipped to Country (and Region when set).
// Higher Priority wins when several rules match.
type TaxRule struct {
	ID       string          `json:"id"`
	StoreID  string          `json:"storeId,omitempty"`
	Name     string          `json:"name" validate:"required"`
	Country  string          `json:"country" validate:"required,iso3166_1_alpha2"`
	Region   string          `json:"region,omitempty"`
	Rate     decimal.Decimal `json:"rate"`
	Priority int             `json:"priority,omitempty" validate:"gte=0"`
	Shipping bool            `json:"appliesToShipping,omitempty"`
}

type TaxRulePatch struct {
	Name     *string          `json:"name,omitempty" validate:"omitempty,min=1"`
	Region   *string          `json:"region,omitempty"`
	Rate     *decimal.Decimal `json:"rate,omitempty"`
	Priority *int             `json:"priority,omitempty" validate:"omitempty,gte=0"`
	Shipping *bool            `json:"appliesToShipping,omitempty"`
}

func checkRate(r decimal.Decimal) error {
	if r.IsNegative() || r.GreaterThan(hundred) {
		return fmt.Errorf("%w: rate %s outside 0..100", ErrInvalid, r.String())
	}
	return nil
}

func NormalizeTaxRule(t TaxRule) (TaxRule, error) {
	t.Name = strings.TrimSpace(t.Name)
	t.Country = strings.ToUpper(strings.TrimSpace(t.Country))
	t.Region = strings.TrimSpace(t.Region)
	if err := validate.Struct(t); err != nil {
		return TaxRule{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := checkRate(t.Rate); err != nil {
		return TaxRule{}, err
	}
	return t, nil
}

func ValidateTaxRulePatch(p TaxRulePatch) error {
	if err := ValidatePatch(p); err != nil {
		return err
	}
	if p.Rate != nil {
		return checkRate(*p.Rate)
	}
	return nil
}

// Tax is the tax owed on amount at the rule's rate, rounded to the cent.
func (t TaxRule) Tax(amount money.Money) money.Money {
	m, err := money.FromDecimal(amount.Decimal().Mul(t.Rate).Div(hundred))
	if err != nil {
		return 0
	}
	return m
}

type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutInTransit PayoutStatus = "in_transit"
	PayoutPaid      PayoutStatus = "paid"
	PayoutFailed    PayoutStatus = "failed"
)

// Payout is a transfer of store revenue to the seller's bank account. Read only.
type Payout struct {
	ID        string       `json:"id"`
	StoreID   string       `json:"storeId,omitempty"`
	Amount    money.Money  `json:"amount"`
	Currency  string       `json:"currency,omitempty"`
	Status    PayoutStatus `json:"status"`
	Bank      string       `json:"bank,omitempty"`
	CreatedAt time.Time    `json:"date"`
}

type PayoutSummary struct {
	Pending    money.Money `json:"pending"`
	Paid       money.Money `json:"paid"`
	Count      int         `json:"count"`
	NextPayout *time.Time  `json:"nextPayoutAt,omitempty"`
}

// Summarize totals payouts by state. It backs the summary when the backend has none.
func Summarize(ps []Payout) PayoutSummary {
	var s PayoutSummary
	for _, p := range ps {
		s.Count++
		switch p.Status {
		case PayoutPaid:
			s.Paid += p.Amount
		case PayoutPending, PayoutInTransit:
			s.Pending += p.Amount
		}
	}
	return s
}
