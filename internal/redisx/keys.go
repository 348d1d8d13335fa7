package redisx

import (
	"fmt"
	"time"
)

const (
	// Console session: session:{session_id} -> Session JSON
	KeySession = "session:%s"

	// Checkout idempotency: idem:checkout:{idempotency_key} -> Order JSON
	KeyIdemCheckout = "idem:checkout:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)

func SessionKey(id string) string        { return fmt.Sprintf(KeySession, id) }
func CheckoutKey(key string) string      { return fmt.Sprintf(KeyIdemCheckout, key) }
func DedupKey(service, id string) string { return fmt.Sprintf(KeyDedup, service, id) }
