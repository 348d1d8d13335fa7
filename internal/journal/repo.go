package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one order event as recorded in order_events.
type Entry struct {
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OrderID    string          `json:"orderId"`
	StoreID    string          `json:"storeId,omitempty"`
	FromStatus orders.Status   `json:"fromStatus,omitempty"`
	ToStatus   orders.Status   `json:"toStatus,omitempty"`
	TotalCents *int64          `json:"totalCents,omitempty"`
	Producer   string          `json:"producer"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
	RecordedAt time.Time       `json:"recordedAt"`
}

const schema = `
CREATE TABLE IF NOT EXISTS order_events (
	event_id    TEXT PRIMARY KEY,
	event_type  TEXT NOT NULL,
	order_id    TEXT NOT NULL,
	store_id    TEXT,
	from_status TEXT,
	to_status   TEXT,
	total_cents BIGINT,
	producer    TEXT NOT NULL,
	payload     JSONB NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS order_events_order_idx ON order_events (order_id, occurred_at);
`

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create order_events: %w", err)
	}
	return nil
}

// Append is idempotent on event_id; it reports whether a row was written.
func (r *Repo) Append(ctx context.Context, e Entry) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO order_events(event_id, event_type, order_id, store_id, from_status, to_status,
		                         total_cents, producer, payload, occurred_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10)
		ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, e.EventType, e.OrderID, e.StoreID, string(e.FromStatus), string(e.ToStatus),
		e.TotalCents, e.Producer, []byte(e.Payload), e.OccurredAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert order event %s: %w", e.EventID, err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) Timeline(ctx context.Context, orderID string) ([]Entry, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT event_id, event_type, order_id, COALESCE(store_id, ''), COALESCE(from_status, ''),
		       COALESCE(to_status, ''), total_cents, producer, payload, occurred_at, recorded_at
		FROM order_events WHERE order_id = $1 ORDER BY occurred_at, recorded_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var (
			e        Entry
			from, to string
			payload  []byte
		)
		err := row.Scan(&e.EventID, &e.EventType, &e.OrderID, &e.StoreID, &from, &to,
			&e.TotalCents, &e.Producer, &payload, &e.OccurredAt, &e.RecordedAt)
		e.FromStatus, e.ToStatus = orders.Status(from), orders.Status(to)
		e.Payload = payload
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan timeline: %w", err)
	}
	return out, nil
}
