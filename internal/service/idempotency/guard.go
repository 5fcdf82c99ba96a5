// Package idempotency реализует повтор запросов по Idempotency-Key и очистку просроченных ключей.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

const defaultTTL = 24 * time.Hour

var (
	// ErrInFlight: запрос с тем же ключом ещё выполняется.
	ErrInFlight = errors.New("request with the same idempotency key is already processing")
	// ErrPayloadMismatch: ключ уже использован с другим телом запроса.
	ErrPayloadMismatch = errors.New("idempotency key is already used with a different request payload")
)

// Replay: сохранённый ответ на ранее выполненный запрос.
type Replay struct {
	Status int
	Body   []byte
}

// Guard связывает ключ идемпотентности с результатом первого выполнения запроса.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	logger *log.Entry
	now    func() time.Time
}

// NewGuard создаёт Guard; ttl<=0 заменяется на 24 часа.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry) *Guard {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency")
	}
	return &Guard{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RequestHash считает отпечаток запроса по методу, пути и телу.
func RequestHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Begin занимает ключ. Если запрос уже выполнялся, возвращает сохранённый ответ.
func (g *Guard) Begin(key, requestHash string) (*Replay, error) {
	record, err := g.repo.CreateProcessing(key, requestHash, g.now().Add(g.ttl))
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return nil, ErrPayloadMismatch
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		switch {
		case record.Completed():
			status := record.HTTPStatus
			if status == 0 {
				status = http.StatusOK
			}
			return &Replay{Status: status, Body: record.ResponseBody}, nil
		case record.Status == domain.IdempotencyStatusProcessing:
			return nil, ErrInFlight
		default:
			return nil, fmt.Errorf("unknown idempotency status %q", record.Status)
		}
	default:
		return nil, fmt.Errorf("reserve idempotency key: %w", err)
	}
}

// Finish сохраняет ответ. Ответы 2xx помечаются done, остальные failed.
func (g *Guard) Finish(key string, status int, body []byte) {
	var err error
	if status >= 200 && status < 300 {
		err = g.repo.MarkDone(key, body, status)
	} else {
		err = g.repo.MarkFailed(key, body, status)
	}
	if err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}
}
