package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/catalog"
	"github.com/ariefcatur/go-shopora-console/internal/merchant"
	"github.com/ariefcatur/go-shopora-console/internal/session"
	"github.com/ariefcatur/go-shopora-console/internal/shopapi"
	"github.com/go-chi/chi/v5"
)

// MerchantAPI is the slice of the backend behind the seller's catalog and store settings.
type MerchantAPI interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	CreateProduct(ctx context.Context, in catalog.ProductInput) (catalog.Product, error)
	UpdateProduct(ctx context.Context, id string, patch catalog.ProductPatch) (catalog.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListMarkets(ctx context.Context) ([]merchant.Market, error)
	CreateMarket(ctx context.Context, m merchant.Market) (merchant.Market, error)
	UpdateMarket(ctx context.Context, id string, patch merchant.MarketPatch) (merchant.Market, error)
	DeleteMarket(ctx context.Context, id string) error

	ListTaxRules(ctx context.Context) ([]merchant.TaxRule, error)
	CreateTaxRule(ctx context.Context, r merchant.TaxRule) (merchant.TaxRule, error)
	UpdateTaxRule(ctx context.Context, id string, patch merchant.TaxRulePatch) (merchant.TaxRule, error)
	DeleteTaxRule(ctx context.Context, id string) error

	ListPayouts(ctx context.Context) ([]merchant.Payout, error)
	PayoutSummary(ctx context.Context) (merchant.PayoutSummary, error)
}

// MerchantHandler serves the seller console. Everything here needs CapSellerConsole.
type MerchantHandler struct {
	API     func(token string) MerchantAPI
	Timeout time.Duration
	Log     *slog.Logger
}

func (h *MerchantHandler) Register(r chi.Router) {
	if h.Log == nil {
		h.Log = slog.Default()
	}
	r.Group(func(r chi.Router) {
		r.Use(RequireCapability(session.CapSellerConsole))

		r.Get("/admin/products", h.listProducts)
		r.Post("/admin/products", h.createProduct)
		r.Patch("/admin/products/{id}", h.updateProduct)
		r.Delete("/admin/products/{id}", h.deleteProduct)

		r.Get("/admin/markets", h.listMarkets)
		r.Post("/admin/markets", h.createMarket)
		r.Patch("/admin/markets/{id}", h.updateMarket)
		r.Delete("/admin/markets/{id}", h.deleteMarket)

		r.Get("/admin/tax-rules", h.listTaxRules)
		r.Post("/admin/tax-rules", h.createTaxRule)
		r.Patch("/admin/tax-rules/{id}", h.updateTaxRule)
		r.Delete("/admin/tax-rules/{id}", h.deleteTaxRule)

		r.Get("/admin/payouts", h.listPayouts)
		r.Get("/admin/payouts/summary", h.payoutSummary)
	})
}

func (h *MerchantHandler) api(r *http.Request) MerchantAPI {
	sess, _ := session.FromContext(r.Context())
	return h.API(sess.Token)
}

// call runs fn against the caller's backend client and writes its result with code.
func call[T any](h *MerchantHandler, w http.ResponseWriter, r *http.Request, code int, fn func(ctx context.Context, api MerchantAPI) (T, error)) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	out, err := fn(ctx, h.api(r))
	if err != nil {
		h.Log.Warn("merchant call failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeBackendError(w, err)
		return
	}
	writeJSON(w, code, out)
}

func (h *MerchantHandler) remove(w http.ResponseWriter, r *http.Request, fn func(api MerchantAPI, ctx context.Context, id string) error) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	if err := fn(h.api(r), ctx, id); err != nil {
		h.Log.Warn("merchant delete failed", "path", r.URL.Path, "error", err)
		writeBackendError(w, err)
		return
	}
	sess, _ := session.FromContext(r.Context())
	h.Log.Info("merchant record deleted", "path", r.URL.Path, "user_id", sess.User.ID)
	w.WriteHeader(http.StatusNoContent)
}

// decodeValid reads the body into v and runs check on it. It writes the 400 itself.
func decodeValid[T any](w http.ResponseWriter, r *http.Request, check func(T) (T, error)) (T, bool) {
	var v T
	if err := decodeJSON(r, &v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return v, false
	}
	v, err := check(v)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, catalog.ErrInvalidProduct) || errors.Is(err, merchant.ErrInvalid) {
			code = http.StatusUnprocessableEntity
		}
		writeError(w, code, err.Error())
		return v, false
	}
	return v, true
}

func (h *MerchantHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	call(h, w, r, http.StatusOK, func(ctx context.Context, api MerchantAPI) ([]catalog.Product, error) {
		return api.ListProducts(ctx)
	})
}

func (h *MerchantHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeValid(w, r, catalog.NormalizeInput)
	if !ok {
		return
	}
	call(h, w, r, http.StatusCreated, func(ctx context.Context, api MerchantAPI) (catalog.Product, error) {
		return api.CreateProduct(ctx, in)
	})
}

func (h *MerchantHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	patch, ok := decodeValid(w, r, catalog.NormalizePatch)
	if !ok {
		return
	}
	call(h, w, r, http.StatusOK, func(ctx context.Context, api MerchantAPI) (catalog.Product, error) {
		return api.UpdateProduct(ctx, chi.URLParam(r, "id"), patch)
	})
}

func (h *MerchantHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, MerchantAPI.DeleteProduct)
}

func (h *MerchantHandler) listMarkets(w http.ResponseWriter, r *http.Request) {
	call(h, w, r, http.StatusOK, func(ctx context.Context, api MerchantAPI) ([]merchant.Market, error) {
		return api.ListMarkets(ctx)
	})
}

func (h *MerchantHandler) createMarket(w http.ResponseWriter, r *http.Request) {
	m, ok := decodeValid(w, r, merchant.NormalizeMarket)
	if !ok {
		return
	}
	call(h, w, r, http.StatusCreated, func(ctx context.Context, api MerchantAPI) (merchant.Market, error) {
		return api.CreateMarket(ctx, m)
	})
}

func (h *MerchantHandler) updateMarket(w http.ResponseWriter, r *http.Request) {
	patch, ok := decodeValid(w, r, func(p merchant.MarketPatch) (merchant.MarketPatch, error) {
		return p, merchant.ValidatePatch(p)
	})
	if !ok {
		return
	}
	call(h, w, r, http.StatusOK, func(ctx context.Context, api MerchantAPI) (merchant.Market, error) {
		return api.UpdateMarket(ctx, chi.URLParam(r, "id"), patch)
	})
}

func (h *MerchantHandler) deleteMarket(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, MerchantAPI.DeleteMarket)
}

func (h *MerchantHandler) listTaxRules(w http.ResponseWriter, r *http.Request) {
	call(h, w, r, http.StatusOK, func(ctx context.Context, api MerchantAPI) ([]merchant.TaxRule, error) {
		return api.ListTaxRules(ctx)
	})
}

func (h *MerchantHandler) createTaxRule(w http.ResponseWriter, r *http.Request) {
	rule, ok := decodeValid(w, r, merchant.NormalizeTaxRule)
	if !ok {
		return
	}
	call(h, w, r, http.StatusCreated, func(ctx context.Context, api MerchantAPI) (merchant.TaxRule, error) {
		return api.CreateTaxRule(ctx, rule)
	})
}

func (h *MerchantHandler) updateTaxRule(w http.ResponseWriter, r *http.Request) {
	patch, ok := decodeValid(w, r, func(p merchant.TaxRulePatch) (merchant.TaxRulePatch, error) {
		return p, merchant.ValidateTaxRulePatch(p)
	})
	if !ok {
		return
	}
	call(h, w, r, http.StatusOK, func(ctx context.Context, api MerchantAPI) (merchant.TaxRule, error) {
		return api.UpdateTaxRule(ctx, chi.URLParam(r, "id"), patch)
	})
}

func (h *MerchantHandler) deleteTaxRule(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, MerchantAPI.DeleteTaxRule)
}

func (h *MerchantHandler) listPayouts(w http.ResponseWriter, r *http.Request) {
	call(h, w, r, http.StatusOK, func(ctx context.Context, api MerchantAPI) ([]merchant.Payout, error) {
		return api.ListPayouts(ctx)
	})
}

// payoutSummary falls back to totalling the payout list on backends without the endpoint.
func (h *MerchantHandler) payoutSummary(w http.ResponseWriter, r *http.Request) {
	call(h, w, r, http.StatusOK, func(ctx context.Context, api MerchantAPI) (merchant.PayoutSummary, error) {
		sum, err := api.PayoutSummary(ctx)
		if shopapi.StatusCode(err) != http.StatusNotFound {
			return sum, err
		}
		ps, err := api.ListPayouts(ctx)
		if err != nil {
			return merchant.PayoutSummary{}, err
		}
		return merchant.Summarize(ps), nil
	})
}
