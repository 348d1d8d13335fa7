package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-shopora-console/internal/money"
	"github.com/go-playground/validator/v10"
)

var ErrInvalidProduct = errors.New("invalid product")

var validate = validator.New()

// ProductInput is the body of POST /products.
type ProductInput struct {
	Name        string         `json:"name" validate:"required"`
	Description string         `json:"description,omitempty"`
	Category    string         `json:"category,omitempty"`
	Vendor      string         `json:"vendor,omitempty"`
	ProductType string         `json:"productType,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Status      Status         `json:"status" validate:"oneof=active draft archived"`
	Variants    []VariantInput `json:"variants" validate:"dive"`
}

type VariantInput struct {
	Title     string      `json:"title,omitempty"`
	SKU       string      `json:"sku,omitempty"`
	Price     money.Money `json:"price" validate:"gte=0"`
	Inventory int         `json:"inventory" validate:"gte=0"`
}

// ProductPatch is the body of PATCH /products/{id}; nil fields keep their value.
// Variants, when present, replace the product's variants.
type ProductPatch struct {
	Name        *string        `json:"name,omitempty" validate:"omitempty,min=1"`
	Description *string        `json:"description,omitempty"`
	Category    *string        `json:"category,omitempty"`
	Status      *Status        `json:"status,omitempty" validate:"omitempty,oneof=active draft archived"`
	Tags        []string       `json:"tags,omitempty"`
	Variants    []VariantInput `json:"variants,omitempty" validate:"omitempty,dive"`
}

// NormalizeInput trims text fields, dedups tags and defaults the status to draft.
func NormalizeInput(in ProductInput) (ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Tags = cleanTags(in.Tags)
	if in.Status == "" {
		in.Status = StatusDraft
	}
	for i := range in.Variants {
		in.Variants[i].SKU = strings.TrimSpace(in.Variants[i].SKU)
	}
	if err := validate.Struct(in); err != nil {
		return ProductInput{}, fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	return in, nil
}

func NormalizePatch(p ProductPatch) (ProductPatch, error) {
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		p.Name = &n
	}
	p.Tags = cleanTags(p.Tags)
	if err := validate.Struct(p); err != nil {
		return ProductPatch{}, fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	return p, nil
}

func cleanTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
