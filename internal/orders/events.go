package orders

import (
	"encoding/json"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/money"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID        string      `json:"order_id"`
	StoreID        string      `json:"store_id"`
	IdempotencyKey string      `json:"idempotency_key"`
	CustomerEmail  string      `json:"customer_email"`
	Items          []Item      `json:"items"`
	Total          money.Money `json:"total"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
	ActorID string `json:"actor_id,omitempty"`
}
