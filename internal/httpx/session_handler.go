package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/session"
	"github.com/ariefcatur/go-shopora-console/internal/shopapi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	SessionCookie = "shopora_session"
	VisitorCookie = "shopora_visitor"
)

type SessionStore interface {
	Save(ctx context.Context, s session.Session) error
	Load(ctx context.Context, id string) (session.Session, error)
	Delete(ctx context.Context, id string) error
}

type visitorKey struct{}

// VisitorID identifies the browser a cart belongs to, signed in or not.
func VisitorID(ctx context.Context) string {
	id, _ := ctx.Value(visitorKey{}).(string)
	return id
}

// Sessions attaches the caller's session (if the cookie names a live one) and a
// visitor id to the request context.
func Sessions(store SessionStore, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" && store != nil {
				sess, err := store.Load(ctx, c.Value)
				switch {
				case err == nil:
					ctx = session.WithSession(ctx, sess)
				case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
					clearCookie(w, SessionCookie)
				default:
					log.Warn("session lookup failed", "error", err)
				}
			}

			visitor := ""
			if c, err := r.Cookie(VisitorCookie); err == nil {
				visitor = strings.TrimSpace(c.Value)
			}
			if visitor == "" {
				visitor = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     VisitorCookie,
					Value:    visitor,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx = context.WithValue(ctx, visitorKey{}, visitor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCapability rejects requests whose session role lacks c.
func RequireCapability(c session.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := session.FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "sign in required")
				return
			}
			if !sess.Can(c) {
				writeError(w, http.StatusForbidden, "role "+string(sess.User.Role)+" lacks "+c.String())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
}

type Authenticator interface {
	Login(ctx context.Context, creds shopapi.Credentials) (shopapi.LoginResult, error)
}

// Registrar creates seller accounts. Optional; without it there is no sign-up route.
type Registrar interface {
	Register(ctx context.Context, reg shopapi.Registration) (shopapi.LoginResult, error)
}

type SessionHandler struct {
	Auth    Authenticator
	Signup  Registrar
	Store   SessionStore
	Timeout time.Duration
	Log     *slog.Logger
	Now     func() time.Time
}

type sessionResp struct {
	User      session.User `json:"user"`
	StoreID   string       `json:"storeId,omitempty"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

func (h *SessionHandler) Register(r chi.Router) {
	if h.Log == nil {
		h.Log = slog.Default()
	}
	r.Post("/session/login", h.login)
	if h.Signup != nil {
		r.Post("/session/register", h.register)
	}
	r.Get("/session", h.current)
	r.Delete("/session", h.logout)
}

func (h *SessionHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *SessionHandler) login(w http.ResponseWriter, r *http.Request) {
	var creds shopapi.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	res, err := h.Auth.Login(ctx, creds)
	if err != nil {
		if code := shopapi.StatusCode(err); code == http.StatusUnauthorized || code == http.StatusBadRequest {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeBackendError(w, err)
		return
	}

	h.start(ctx, w, res, http.StatusOK)
}

// register signs a new seller up and starts their session straight away.
func (h *SessionHandler) register(w http.ResponseWriter, r *http.Request) {
	var reg shopapi.Registration
	if err := decodeJSON(r, &reg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	reg.Email = strings.TrimSpace(reg.Email)
	reg.StoreName = strings.TrimSpace(reg.StoreName)
	if reg.Email == "" || reg.Password == "" || reg.StoreName == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	res, err := h.Signup.Register(ctx, reg)
	if err != nil {
		if code := shopapi.StatusCode(err); code == http.StatusConflict || code == http.StatusBadRequest {
			writeError(w, code, err.Error())
			return
		}
		writeBackendError(w, err)
		return
	}
	h.Log.Info("account registered", "email", reg.Email, "store_name", reg.StoreName)
	h.start(ctx, w, res, http.StatusCreated)
}

// start turns a backend auth result into a stored session and its cookie.
func (h *SessionHandler) start(ctx context.Context, w http.ResponseWriter, res shopapi.LoginResult, code int) {
	sess, err := session.New(res.Token, session.User{
		ID:        res.User.ID,
		Email:     res.User.Email,
		FirstName: res.User.FirstName,
		LastName:  res.User.LastName,
		Role:      session.Role(res.User.Role),
		StoreID:   res.User.StoreID,
	}, h.now())
	if err != nil {
		h.Log.Error("unusable login response", "email", res.User.Email, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := h.Store.Save(ctx, sess); err != nil {
		h.Log.Error("save session failed", "user_id", sess.User.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not start session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.Log.Info("signed in", "user_id", sess.User.ID, "role", sess.User.Role)
	writeJSON(w, code, sessionResp{User: sess.User, StoreID: sess.StoreID, ExpiresAt: sess.ExpiresAt})
}

func (h *SessionHandler) current(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}
	writeJSON(w, http.StatusOK, sessionResp{User: sess.User, StoreID: sess.StoreID, ExpiresAt: sess.ExpiresAt})
}

func (h *SessionHandler) logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := session.FromContext(r.Context()); ok {
		if err := h.Store.Delete(r.Context(), sess.ID); err != nil {
			h.Log.Warn("delete session failed", "session_id", sess.ID, "error", err)
		}
	}
	clearCookie(w, SessionCookie)
	w.WriteHeader(http.StatusNoContent)
}
