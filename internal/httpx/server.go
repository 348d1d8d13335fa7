package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/metrics"
	"github.com/ariefcatur/go-shopora-console/internal/shopapi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the root mux; mw runs after the standard middleware and before every route.
func NewRouter(timeout time.Duration, mw ...func(http.Handler) http.Handler) *chi.Mux {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(mw...)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// backendCode maps a failed backend call to the status the console answers with.
func backendCode(err error) int {
	switch {
	case errors.Is(err, shopapi.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, shopapi.ErrTransport), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	switch code := shopapi.StatusCode(err); {
	case code == 0:
		return http.StatusInternalServerError
	case code >= 500:
		return http.StatusBadGateway
	default:
		return code
	}
}

func writeBackendError(w http.ResponseWriter, err error) {
	writeError(w, backendCode(err), err.Error())
}

func withTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), d)
}

func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
