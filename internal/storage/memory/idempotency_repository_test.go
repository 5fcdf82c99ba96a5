package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestIdempotency() (*IdempotencyRepository, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
	return newIdempotencyRepository(clock.now), clock
}

func TestIdempotency_ReserveConflictAndReplay(t *testing.T) {
	repo, clock := newTestIdempotency()
	ttl := clock.t.Add(time.Hour)

	rec, err := repo.CreateProcessing("order-key", "hash-a", ttl)
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusProcessing, rec.Status)

	rec, err = repo.CreateProcessing("order-key", "hash-a", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	require.False(t, rec.Completed())

	_, err = repo.CreateProcessing("order-key", "hash-b", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)

	body := []byte(`{"id":1}`)
	require.NoError(t, repo.MarkDone("order-key", body, 201))
	body[0] = 'x'

	rec, err = repo.CreateProcessing("order-key", "hash-a", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	require.True(t, rec.Completed())
	require.Equal(t, 201, rec.HTTPStatus)
	require.JSONEq(t, `{"id":1}`, string(rec.ResponseBody))
}

func TestIdempotency_FailedResponseIsKept(t *testing.T) {
	repo, clock := newTestIdempotency()
	_, err := repo.CreateProcessing("k", "h", clock.t.Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, repo.MarkFailed("k", []byte(`{"statusCode":400}`), 400))
	rec, err := repo.Get("k")
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusFailed, rec.Status)
	require.Equal(t, 400, rec.HTTPStatus)

	require.ErrorIs(t, repo.MarkDone("missing", nil, 200), domain.ErrIdempotencyKeyNotFound)
}

func TestIdempotency_Validation(t *testing.T) {
	repo, _ := newTestIdempotency()

	_, err := repo.CreateProcessing("", "h", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
	_, err = repo.CreateProcessing("k", "", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyRequestHashRequired)
}

func TestIdempotency_ExpiryAndCleanup(t *testing.T) {
	repo, clock := newTestIdempotency()

	_, err := repo.CreateProcessing("old", "h1", clock.t.Add(time.Minute))
	require.NoError(t, err)
	_, err = repo.CreateProcessing("older", "h2", clock.t.Add(30*time.Second))
	require.NoError(t, err)
	_, err = repo.CreateProcessing("fresh", "h3", time.Time{})
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Minute)

	_, err = repo.Get("old")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)

	// Просроченный ключ можно занять заново с другим телом.
	rec, err := repo.CreateProcessing("old", "h-new", clock.t.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, "h-new", rec.RequestHash)

	removed, err := repo.DeleteExpired(clock.t, 1)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Len(t, repo.records, 2)
	require.NotContains(t, repo.records, "older")

	_, err = repo.Get("fresh")
	require.NoError(t, err)
}
