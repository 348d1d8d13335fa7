package orders

const (
	TopicOrderPlaced        = "shop.order.placed"
	TopicOrderStatusChanged = "shop.order.status_changed"
)

// Topics consumed by the journal.
var Topics = []string{TopicOrderPlaced, TopicOrderStatusChanged}

// Partition key = order id so every event of one order stays in sequence.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
