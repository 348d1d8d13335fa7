package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/cart"
	"github.com/ariefcatur/go-shopora-console/internal/catalog"
	"github.com/ariefcatur/go-shopora-console/internal/checkout"
	kafkax "github.com/ariefcatur/go-shopora-console/internal/kafka"
	"github.com/ariefcatur/go-shopora-console/internal/metrics"
	"github.com/ariefcatur/go-shopora-console/internal/orders"
	"github.com/ariefcatur/go-shopora-console/internal/session"
	"github.com/ariefcatur/go-shopora-console/internal/storefront"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type StorefrontHandler struct {
	Shops          *storefront.Registry
	Events         kafkax.Publisher
	Service        string
	DefaultStoreID string
	Timeout        time.Duration
	Log            *slog.Logger
}

type AddLineReq struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
}

type CheckoutReq struct {
	Customer orders.CustomerInfo `json:"customerInfo"`
}

type CheckoutResp struct {
	Order    orders.Order    `json:"order"`
	Replayed bool            `json:"replayed"`
	Cart     storefront.View `json:"cart"`
}

func (h *StorefrontHandler) Register(r chi.Router) {
	if h.Log == nil {
		h.Log = slog.Default()
	}
	r.Route("/storefront", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/cart", h.getCart)
		r.Delete("/cart", h.clearCart)
		r.Post("/cart/lines", h.addLine)
		r.Delete("/cart/lines/{lineID}", h.removeLine)
		r.Post("/cart/open", h.openCart)
		r.Post("/cart/close", h.closeCart)
		r.Post("/checkout", h.checkout)
	})
}

func (h *StorefrontHandler) shop(r *http.Request) *storefront.Shop {
	return h.Shops.Get(VisitorID(r.Context()))
}

// storeID prefers the signed-in user's store over the configured default.
func (h *StorefrontHandler) storeID(r *http.Request) string {
	if sess, ok := session.FromContext(r.Context()); ok && sess.StoreID != "" {
		return sess.StoreID
	}
	return h.DefaultStoreID
}

func (h *StorefrontHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	ps, err := h.shop(r).Catalog.ListActiveProducts(ctx)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *StorefrontHandler) getCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.shop(r).View())
}

func (h *StorefrontHandler) addLine(w http.ResponseWriter, r *http.Request) {
	var req AddLineReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "missing productId")
		return
	}

	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	shop := h.shop(r)
	if _, err := shop.AddToCart(ctx, req.ProductID, req.VariantID); err != nil {
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, cart.ErrNoPrice):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, cart.ErrVariantMismatch):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeBackendError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, shop.View())
}

// removeLine is a no-op for unknown ids; the cart is returned either way.
func (h *StorefrontHandler) removeLine(w http.ResponseWriter, r *http.Request) {
	shop := h.shop(r)
	shop.Cart.Remove(chi.URLParam(r, "lineID"))
	writeJSON(w, http.StatusOK, shop.View())
}

func (h *StorefrontHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	shop := h.shop(r)
	if shop.Checkout.State().CheckingOut {
		writeError(w, http.StatusConflict, checkout.ErrBusy.Error())
		return
	}
	shop.Cart.Clear()
	writeJSON(w, http.StatusOK, shop.View())
}

func (h *StorefrontHandler) openCart(w http.ResponseWriter, r *http.Request) {
	shop := h.shop(r)
	shop.Cart.Open()
	writeJSON(w, http.StatusOK, shop.View())
}

func (h *StorefrontHandler) closeCart(w http.ResponseWriter, r *http.Request) {
	shop := h.shop(r)
	shop.Cart.Close()
	writeJSON(w, http.StatusOK, shop.View())
}

func (h *StorefrontHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if sess, ok := session.FromContext(r.Context()); ok {
		req.Customer = fillFromUser(req.Customer, sess.User)
	}

	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	shop := h.shop(r)
	res, err := shop.PlaceOrder(ctx, req.Customer, h.storeID(r))
	if err != nil {
		code, outcome := 0, metrics.OutcomeRejected
		switch {
		case errors.Is(err, checkout.ErrBusy):
			code = http.StatusConflict
		case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, checkout.ErrNoStore):
			code = http.StatusUnprocessableEntity
		case errors.Is(err, checkout.ErrInvalidCustomer):
			code = http.StatusBadRequest
		default:
			code = backendCode(err)
			outcome = metrics.OutcomeFailure
		}
		metrics.Checkouts.WithLabelValues(outcome).Inc()
		writeError(w, code, err.Error())
		return
	}

	if res.Replayed {
		metrics.Checkouts.WithLabelValues(metrics.OutcomeReplayed).Inc()
	} else {
		metrics.Checkouts.WithLabelValues(metrics.OutcomeSuccess).Inc()
	}
	// a ledger replay was announced by the attempt that created it
	if h.Events != nil && (!res.Replayed || res.Recovered) {
		kafkax.Emit(h.Events, orders.TopicOrderPlaced, orders.EventOrderPlaced, h.Service,
			middleware.GetReqID(r.Context()), res.Order.ID, orders.OrderPlacedPayload{
				OrderID:        res.Order.ID,
				StoreID:        res.Request.StoreID,
				IdempotencyKey: res.Request.IdempotencyKey,
				CustomerEmail:  res.Request.Customer.Email,
				Items:          res.Request.Items,
				Total:          res.Request.Total,
			})
	}
	writeJSON(w, http.StatusCreated, CheckoutResp{Order: res.Order, Replayed: res.Replayed, Cart: shop.View()})
}

// fillFromUser completes blank contact fields from the signed-in user.
func fillFromUser(c orders.CustomerInfo, u session.User) orders.CustomerInfo {
	if c.Email == "" {
		c.Email = u.Email
	}
	if c.FirstName == "" {
		c.FirstName = u.FirstName
	}
	if c.LastName == "" {
		c.LastName = u.LastName
	}
	return c
}
