package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

type outboxState uint8

const (
	outboxPending outboxState = iota
	outboxSent
	outboxFailed
)

type outboxEntry struct {
	msg      domain.OutboxMessage
	state    outboxState
	attempts int
	queuedAt time.Time
}

// OutboxRepository: журнал событий в памяти. Порядок записи и есть порядок доставки.
type OutboxRepository struct {
	mu    sync.RWMutex
	log   []*outboxEntry
	byID  map[string]*outboxEntry
	clock func() time.Time
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{
		byID:  make(map[string]*outboxEntry),
		clock: func() time.Time { return time.Now().UTC() },
	}
}

func (r *OutboxRepository) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Payload = append([]byte(nil), msg.Payload...)

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &outboxEntry{msg: msg, queuedAt: r.clock()}
	r.log = append(r.log, entry)
	r.byID[msg.ID] = entry
	return msg, nil
}

// PullPending: limit<=0 означает 100.
func (r *OutboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.collect(limit, nil), nil
}

func (r *OutboxRepository) Stats() (domain.OutboxStats, error) {
	var stats domain.OutboxStats
	r.collect(0, func(e *outboxEntry) {
		if stats.PendingCount == 0 {
			stats.OldestPendingAt = e.queuedAt
		}
		stats.PendingCount++
	})
	return stats, nil
}

func (r *OutboxRepository) MarkSent(id string) error   { return r.settle(id, outboxSent) }
func (r *OutboxRepository) MarkFailed(id string) error { return r.settle(id, outboxFailed) }

// AllPending отдаёт весь backlog, тесты смотрят по нему, какие события записаны.
func (r *OutboxRepository) AllPending() []domain.OutboxMessage {
	return r.collect(0, nil)
}

func (r *OutboxRepository) settle(id string, state outboxState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byID[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	entry.state = state
	entry.attempts++
	return nil
}

// collect проходит pending-записи по порядку; limit<=0 снимает ограничение.
func (r *OutboxRepository) collect(limit int, visit func(*outboxEntry)) []domain.OutboxMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.OutboxMessage{}
	for _, e := range r.log {
		if e.state != outboxPending {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		if visit != nil {
			visit(e)
		}
		out = append(out, e.msg)
	}
	return out
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
