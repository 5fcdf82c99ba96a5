package memory

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

func enqueueOrders(t *testing.T, repo *OutboxRepository, n int) []domain.OutboxMessage {
	t.Helper()
	out := make([]domain.OutboxMessage, 0, n)
	for i := 1; i <= n; i++ {
		msg, err := repo.Enqueue(domain.OutboxMessage{
			AggregateType: domain.AggregateOrder,
			AggregateID:   strconv.Itoa(i),
			EventType:     domain.EventOrderCreated,
		})
		require.NoError(t, err)
		require.NotEmpty(t, msg.ID)
		out = append(out, msg)
	}
	return out
}

func TestOutboxRepository_DeliveryOrder(t *testing.T) {
	repo := NewOutboxRepository()
	queued := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return queued }
	msgs := enqueueOrders(t, repo, 4)

	batch, err := repo.PullPending(2)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, []string{batch[0].AggregateID, batch[1].AggregateID})

	require.NoError(t, repo.MarkSent(msgs[0].ID))
	batch, err = repo.PullPending(2)
	require.NoError(t, err)
	require.Equal(t, "2", batch[0].AggregateID)

	stats, err := repo.Stats()
	require.NoError(t, err)
	require.Equal(t, 3, stats.PendingCount)
	require.Equal(t, queued, stats.OldestPendingAt)
}

func TestOutboxRepository_Settle(t *testing.T) {
	repo := NewOutboxRepository()
	msgs := enqueueOrders(t, repo, 2)

	require.NoError(t, repo.MarkSent(msgs[0].ID))
	require.NoError(t, repo.MarkFailed(msgs[1].ID))
	require.ErrorIs(t, repo.MarkSent("missing"), domain.ErrOutboxPublish)

	require.Empty(t, repo.AllPending())
	stats, err := repo.Stats()
	require.NoError(t, err)
	require.Zero(t, stats.PendingCount)
	require.True(t, stats.OldestPendingAt.IsZero())
	require.Equal(t, 1, repo.byID[msgs[1].ID].attempts)
}

func TestOutboxRepository_PayloadIsCopied(t *testing.T) {
	repo := NewOutboxRepository()
	payload := []byte(`{"orderId":1}`)
	_, err := repo.Enqueue(domain.OutboxMessage{EventType: domain.EventOrderCreated, Payload: payload})
	require.NoError(t, err)

	payload[2] = 'X'
	require.JSONEq(t, `{"orderId":1}`, string(repo.AllPending()[0].Payload))
}
