package kafka

import (
	"github.com/ariefcatur/go-shopora-console/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher is satisfied by *Producer; handlers depend on it so tests can record events.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// Emit wraps payload in an envelope and publishes it keyed by order id.
func Emit(p Publisher, topic, eventType, producer, traceID, orderID string, payload any) orders.Envelope {
	ev := NewEnvelope(eventType, producer, traceID, orderID, payload)
	p.Publish(topic, orders.PartitionKey(orderID), MustMarshal(ev), Headers(eventType)...)
	return ev
}
