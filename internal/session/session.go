package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

var (
	ErrExpired      = errors.New("session expired")
	ErrInvalidToken = errors.New("invalid session token")
	ErrNotFound     = errors.New("session not found")
)

// DefaultLifetime applies when the token carries no exp claim.
const DefaultLifetime = 24 * time.Hour

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      Role   `json:"role"`
	StoreID   string `json:"storeId,omitempty"`
}

// Session replaces the token/user pair the browser used to keep in local storage.
// It is passed explicitly through context.Context.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	User      User      `json:"user"`
	StoreID   string    `json:"storeId,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// New builds a session from a login response. The signature is not verified here:
// only the backend holds the key and it checks the token on every call.
func New(token string, user User, now time.Time) (Session, error) {
	if token == "" {
		return Session{}, ErrInvalidToken
	}
	claims := &jwt.StandardClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	exp := now.Add(DefaultLifetime)
	if claims.ExpiresAt != 0 {
		exp = time.Unix(claims.ExpiresAt, 0)
	}
	if !now.Before(exp) {
		return Session{}, ErrExpired
	}
	role, err := ParseRole(string(user.Role))
	if err != nil {
		return Session{}, err
	}
	user.Role = role
	if user.ID == "" {
		user.ID = claims.Subject
	}

	return Session{
		ID:        uuid.NewString(),
		Token:     token,
		User:      user,
		StoreID:   user.StoreID,
		ExpiresAt: exp,
	}, nil
}

func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.ExpiresAt)
}

func (s Session) Can(c Capability) bool {
	return s.User.Role.Can(c)
}

type ctxKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
