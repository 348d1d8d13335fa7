package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkax "github.com/ariefcatur/go-shopora-console/internal/kafka"
	"github.com/ariefcatur/go-shopora-console/internal/orders"
	"github.com/ariefcatur/go-shopora-console/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type Appender interface {
	Append(ctx context.Context, e Entry) (bool, error)
}

// Service records order events consumed from Kafka.
type Service struct {
	Repo        Appender
	Redis       *redis.Client
	ServiceName string
	Log         *slog.Logger
}

// HandleOrderEvent is installed as the consumer handler.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message: log and let it be committed
		s.log().Error("undecodable event", "topic", m.Topic, "offset", m.Offset, "error", err)
		return nil
	}

	entry, ok, err := toEntry(env)
	if err != nil {
		s.log().Error("undecodable payload", "event_id", env.EventID, "event_type", env.EventType, "error", err)
		return nil
	}
	if !ok {
		return nil // not ours
	}

	dkey := redisx.DedupKey(s.ServiceName, env.EventID)
	won, err := redisx.Claim(ctx, s.Redis, dkey, redisx.TTLDedup)
	if err != nil {
		s.log().Warn("dedup unavailable, relying on event_id constraint", "error", err)
		won = true
	}
	if !won {
		return nil
	}

	inserted, err := s.Repo.Append(ctx, entry)
	if err != nil {
		// release the claim so the redelivered message is processed
		_ = s.Redis.Del(ctx, dkey).Err()
		return err
	}
	s.log().Info("order event recorded", "event_id", entry.EventID, "event_type", entry.EventType,
		"order_id", entry.OrderID, "inserted", inserted)
	return nil
}

func toEntry(env orders.Envelope) (Entry, bool, error) {
	e := Entry{
		EventID:    env.EventID,
		EventType:  env.EventType,
		OrderID:    env.CorrelationID,
		Producer:   env.Producer,
		Payload:    env.Payload,
		OccurredAt: env.OccurredAt,
	}
	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return Entry{}, false, err
		}
		total := p.Total.Cents()
		e.OrderID, e.StoreID, e.TotalCents = p.OrderID, p.StoreID, &total
		e.ToStatus = orders.StatusPending
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return Entry{}, false, err
		}
		e.OrderID, e.FromStatus, e.ToStatus = p.OrderID, p.From, p.To
	default:
		return Entry{}, false, nil
	}
	if e.OrderID == "" {
		return Entry{}, false, fmt.Errorf("event %s has no order id", env.EventID)
	}
	return e, true, nil
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
