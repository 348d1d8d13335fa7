package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	kafkax "github.com/ariefcatur/go-shopora-console/internal/kafka"
	"github.com/ariefcatur/go-shopora-console/internal/money"
	"github.com/ariefcatur/go-shopora-console/internal/orders"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	entries []Entry
	err     error
}

func (f *fakeRepo) Append(ctx context.Context, e Entry) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.entries = append(f.entries, e)
	return true, nil
}

func setup(t *testing.T) (*Service, *fakeRepo, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	repo := &fakeRepo{}
	return &Service{Repo: repo, Redis: rdb, ServiceName: "journal"}, repo, mr
}

func message(ev orders.Envelope) kafkago.Message {
	return kafkago.Message{Topic: orders.TopicOrderPlaced, Value: kafkax.MustMarshal(ev)}
}

func TestHandleOrderPlaced(t *testing.T) {
	svc, repo, _ := setup(t)
	ev := kafkax.NewEnvelope(orders.EventOrderPlaced, "console", "", "o1", orders.OrderPlacedPayload{
		OrderID: "o1", StoreID: "s1", Total: money.MustParse("25.50"),
	})

	require.NoError(t, svc.HandleOrderEvent(context.Background(), message(ev)))
	require.Len(t, repo.entries, 1)
	e := repo.entries[0]
	assert.Equal(t, ev.EventID, e.EventID)
	assert.Equal(t, "s1", e.StoreID)
	require.NotNil(t, e.TotalCents)
	assert.Equal(t, int64(2550), *e.TotalCents)
	assert.Equal(t, orders.StatusPending, e.ToStatus)

	// redelivery is deduplicated
	require.NoError(t, svc.HandleOrderEvent(context.Background(), message(ev)))
	assert.Len(t, repo.entries, 1)
}

func TestHandleStatusChanged(t *testing.T) {
	svc, repo, _ := setup(t)
	ev := kafkax.NewEnvelope(orders.EventOrderStatusChanged, "console", "", "o1", orders.OrderStatusChangedPayload{
		OrderID: "o1", From: orders.StatusPending, To: orders.StatusConfirmed,
	})
	require.NoError(t, svc.HandleOrderEvent(context.Background(), message(ev)))
	require.Len(t, repo.entries, 1)
	assert.Equal(t, orders.StatusPending, repo.entries[0].FromStatus)
	assert.Equal(t, orders.StatusConfirmed, repo.entries[0].ToStatus)
}

func TestHandle_IgnoresForeignAndBrokenEvents(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.HandleOrderEvent(ctx, kafkago.Message{Value: []byte("{oops")}))
	foreign := kafkax.NewEnvelope("InventoryCounted", "wms", "", "o1", map[string]int{"n": 1})
	require.NoError(t, svc.HandleOrderEvent(ctx, message(foreign)))
	assert.Empty(t, repo.entries)
}

func TestHandle_RepoFailureReleasesClaim(t *testing.T) {
	svc, repo, mr := setup(t)
	repo.err = errors.New("db down")
	ev := kafkax.NewEnvelope(orders.EventOrderStatusChanged, "console", "", "o1", orders.OrderStatusChangedPayload{
		OrderID: "o1", From: orders.StatusConfirmed, To: orders.StatusProcessing,
	})

	err := svc.HandleOrderEvent(context.Background(), message(ev))
	require.Error(t, err)
	assert.False(t, mr.Exists("dedup:journal:"+ev.EventID))

	repo.err = nil
	require.NoError(t, svc.HandleOrderEvent(context.Background(), message(ev)))
	assert.Len(t, repo.entries, 1)
}
