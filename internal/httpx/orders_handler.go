package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/journal"
	kafkax "github.com/ariefcatur/go-shopora-console/internal/kafka"
	"github.com/ariefcatur/go-shopora-console/internal/metrics"
	"github.com/ariefcatur/go-shopora-console/internal/orders"
	"github.com/ariefcatur/go-shopora-console/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// OrdersAPI is the slice of the backend the admin order views call.
type OrdersAPI interface {
	ListOrders(ctx context.Context, q orders.ListQuery) (orders.Page, error)
	GetOrder(ctx context.Context, id string) (orders.Order, error)
	orders.StatusUpdater
}

type TimelineReader interface {
	Timeline(ctx context.Context, orderID string) ([]journal.Entry, error)
}

type OrdersHandler struct {
	// API returns a backend client authorised with the caller's token.
	API      func(token string) OrdersAPI
	Timeline TimelineReader
	Events   kafkax.Publisher
	Service  string
	Timeout  time.Duration
	Log      *slog.Logger
}

type UpdateStatusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	if h.Log == nil {
		h.Log = slog.Default()
	}
	r.Route("/admin/orders", func(r chi.Router) {
		r.Use(RequireCapability(session.CapAdminConsole))
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}/status", h.updateStatus)
		r.Get("/{id}/timeline", h.timeline)
	})
}

func (h *OrdersHandler) api(r *http.Request) OrdersAPI {
	sess, _ := session.FromContext(r.Context())
	return h.API(sess.Token)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := orders.ListQuery{Search: r.URL.Query().Get("search")}
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := orders.ParseStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q.Status = st
	}
	var err error
	if q.Page, err = intParam(r, "page"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	if q.Limit, err = intParam(r, "limit"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	page, err := h.api(r).ListOrders(ctx, q)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	o, err := h.api(r).GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// updateStatus loads the order, applies the change optimistically and rolls it
// back if the backend refuses.
func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	to, err := orders.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	api := h.api(r)
	id := chi.URLParam(r, "id")
	current, err := api.GetOrder(ctx, id)
	if err != nil {
		writeBackendError(w, err)
		return
	}

	detail := orders.NewDetail(current, api)
	updated, err := detail.ChangeStatus(ctx, to)
	if errors.Is(err, orders.ErrInvalidTransition) {
		metrics.StatusUpdates.WithLabelValues(metrics.OutcomeRejected).Inc()
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "allowed": current.Status.Next()})
		return
	}
	if err != nil {
		metrics.StatusUpdates.WithLabelValues(metrics.OutcomeFailure).Inc()
		h.Log.Error("status update failed", "order_id", id, "from", current.Status, "to", to, "error", err)
		writeJSON(w, backendCode(err), map[string]any{"error": err.Error(), "order": updated})
		return
	}

	metrics.StatusUpdates.WithLabelValues(metrics.OutcomeSuccess).Inc()
	if h.Events != nil {
		sess, _ := session.FromContext(r.Context())
		kafkax.Emit(h.Events, orders.TopicOrderStatusChanged, orders.EventOrderStatusChanged, h.Service,
			middleware.GetReqID(r.Context()), id, orders.OrderStatusChangedPayload{
				OrderID: id,
				From:    current.Status,
				To:      updated.Status,
				ActorID: sess.User.ID,
			})
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *OrdersHandler) timeline(w http.ResponseWriter, r *http.Request) {
	if h.Timeline == nil {
		writeError(w, http.StatusServiceUnavailable, "order journal not configured")
		return
	}
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	entries, err := h.Timeline.Timeline(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.Log.Error("timeline query failed", "order_id", chi.URLParam(r, "id"), "error", err)
		writeError(w, http.StatusInternalServerError, "timeline unavailable")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}

func intParam(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}
