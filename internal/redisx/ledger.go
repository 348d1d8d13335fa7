package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/orders"
	"github.com/redis/go-redis/v9"
)

const (
	attemptPending = "pending"
	attemptDone    = "done"
)

type attemptRecord struct {
	State string       `json:"state"`
	Since time.Time    `json:"since"`
	Order orders.Order `json:"order,omitempty"`
}

// CheckoutLedger tracks idempotency keys across checkout attempts. A key is claimed as
// pending before the order is posted and marked done with the created order afterwards,
// so a retry can tell a lost response from a submission that never happened.
type CheckoutLedger struct {
	rdb *redis.Client
	now func() time.Time
}

func NewCheckoutLedger(rdb *redis.Client) *CheckoutLedger {
	return &CheckoutLedger{rdb: rdb, now: time.Now}
}

// Begin claims key for a submission and reports any earlier attempt with it.
func (l *CheckoutLedger) Begin(ctx context.Context, key string) (orders.CheckoutAttempt, error) {
	pending, err := json.Marshal(attemptRecord{State: attemptPending, Since: l.now().UTC()})
	if err != nil {
		return orders.CheckoutAttempt{}, fmt.Errorf("marshal checkout attempt: %w", err)
	}
	won, err := l.rdb.SetNX(ctx, CheckoutKey(key), pending, TTLIdempotency).Result()
	if err != nil {
		return orders.CheckoutAttempt{}, fmt.Errorf("redis claim checkout: %w", err)
	}
	if won {
		return orders.CheckoutAttempt{}, nil
	}

	b, err := l.rdb.Get(ctx, CheckoutKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls; treat as new
		return orders.CheckoutAttempt{}, nil
	}
	if err != nil {
		return orders.CheckoutAttempt{}, fmt.Errorf("redis get checkout: %w", err)
	}
	var rec attemptRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return orders.CheckoutAttempt{}, fmt.Errorf("unmarshal checkout: %w", err)
	}
	switch rec.State {
	case attemptDone:
		return orders.CheckoutAttempt{Order: rec.Order, Done: true}, nil
	case attemptPending:
		return orders.CheckoutAttempt{PendingSince: rec.Since}, nil
	default:
		return orders.CheckoutAttempt{}, fmt.Errorf("unmarshal checkout: unknown state %q", rec.State)
	}
}

// Remember records the order key produced.
func (l *CheckoutLedger) Remember(ctx context.Context, key string, o orders.Order) error {
	b, err := json.Marshal(attemptRecord{State: attemptDone, Since: l.now().UTC(), Order: o})
	if err != nil {
		return fmt.Errorf("marshal checkout: %w", err)
	}
	if err := l.rdb.Set(ctx, CheckoutKey(key), b, TTLIdempotency).Err(); err != nil {
		return fmt.Errorf("redis set checkout: %w", err)
	}
	return nil
}

// Release drops the claim on key. Used when the backend refused the order outright.
func (l *CheckoutLedger) Release(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, CheckoutKey(key)).Err(); err != nil {
		return fmt.Errorf("redis release checkout: %w", err)
	}
	return nil
}
