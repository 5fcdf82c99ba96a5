package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

func TestTimelineRepository_AppendAndList(t *testing.T) {
	repo := NewTimelineRepository()
	base := time.Now().UTC()

	require.NoError(t, repo.Append(domain.TimelineEvent{OrderID: 1, Type: domain.EventOrderStatusChanged, Occurred: base.Add(time.Second)}))
	require.NoError(t, repo.Append(domain.TimelineEvent{OrderID: 1, Type: domain.EventOrderCreated, Occurred: base}))
	require.NoError(t, repo.Append(domain.TimelineEvent{OrderID: 2, Type: domain.EventOrderCreated}))

	events, err := repo.List(1)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, domain.EventOrderCreated, events[0].Type)
	require.Equal(t, domain.EventOrderStatusChanged, events[1].Type)

	other, err := repo.List(2)
	require.NoError(t, err)
	require.Len(t, other, 1)
	require.False(t, other[0].Occurred.IsZero())

	empty, err := repo.List(3)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestTimelineRepository_SameInstantKeepsWriteOrder(t *testing.T) {
	repo := NewTimelineRepository()
	at := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)

	for _, typ := range []string{domain.EventOrderCreated, domain.EventOrderStatusChanged, domain.EventOrderCancelled} {
		require.NoError(t, repo.Append(domain.TimelineEvent{OrderID: 5, Type: typ, Occurred: at}))
	}

	events, err := repo.List(5)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, domain.EventOrderCreated, events[0].Type)
	require.Equal(t, domain.EventOrderCancelled, events[2].Type)

	// Копия: изменения не видны хранилищу.
	events[0].Reason = "changed"
	again, _ := repo.List(5)
	require.Empty(t, again[0].Reason)
}
