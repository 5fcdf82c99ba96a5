package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

const idempotencyDefaultTTL = 24 * time.Hour

// idempotencyRepository хранит ответы POST /orders в idempotency_keys.
// Живость ключа решает база (ttl_at против NOW()), а не часы процесса.
type idempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(store *Store) domain.IdempotencyRepository {
	return &idempotencyRepository{db: store.DB()}
}

// reserveSQL вставляет ключ или перезаписывает только просроченный.
// Для живого ключа WHERE не срабатывает и RETURNING пуст.
const reserveSQL = `
	INSERT INTO idempotency_keys (key, request_hash, status, ttl_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (key) DO UPDATE SET
		request_hash = EXCLUDED.request_hash,
		status = EXCLUDED.status,
		ttl_at = EXCLUDED.ttl_at,
		response_body = NULL,
		http_status = NULL,
		created_at = NOW(),
		updated_at = NOW()
	WHERE idempotency_keys.ttl_at <= NOW()
	RETURNING created_at, updated_at`

func (r *idempotencyRepository) CreateProcessing(key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key, requestHash = strings.TrimSpace(key), strings.TrimSpace(requestHash)
	switch {
	case key == "":
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	case requestHash == "":
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}
	if ttlAt.IsZero() {
		ttlAt = time.Now().Add(idempotencyDefaultTTL)
	}

	rec := domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt.UTC(),
	}

	ctx, cancel := withTimeout(context.Background())
	defer cancel()

	err := r.db.QueryRowContext(ctx, reserveSQL, key, requestHash, string(rec.Status), rec.TTLAt).
		Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err == nil {
		rec.CreatedAt, rec.UpdatedAt = rec.CreatedAt.UTC(), rec.UpdatedAt.UTC()
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) && !isUniqueViolation(err) {
		return domain.IdempotencyRecord{}, fmt.Errorf("reserve idempotency key: %w", err)
	}

	// Ключ держит живая запись. Если она успела истечь между запросами, отвечаем конфликтом.
	held, err := r.Get(key)
	switch {
	case err != nil:
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
	case held.RequestHash != requestHash:
		return held, domain.ErrIdempotencyHashMismatch
	default:
		return held, domain.ErrIdempotencyKeyAlreadyExists
	}
}

func (r *idempotencyRepository) Get(key string) (domain.IdempotencyRecord, error) {
	if key = strings.TrimSpace(key); key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := withTimeout(context.Background())
	defer cancel()

	rec, err := scanIdempotency(r.db.QueryRowContext(ctx, `
		SELECT key, request_hash, status, http_status, response_body, ttl_at, created_at, updated_at
		FROM idempotency_keys
		WHERE key = $1 AND ttl_at > NOW()`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	return rec, err
}

func scanIdempotency(row rowScanner) (domain.IdempotencyRecord, error) {
	var (
		rec        domain.IdempotencyRecord
		status     string
		httpStatus sql.NullInt64
		body       []byte
	)
	if err := row.Scan(&rec.Key, &rec.RequestHash, &status, &httpStatus, &body,
		&rec.TTLAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan idempotency key: %w", err)
	}

	rec.Status = domain.IdempotencyStatus(status)
	if !rec.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("idempotency key %s has unknown status %q", rec.Key, status)
	}
	rec.HTTPStatus = int(httpStatus.Int64)
	rec.ResponseBody = body
	rec.TTLAt = rec.TTLAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

func (r *idempotencyRepository) MarkDone(key string, responseBody []byte, httpStatus int) error {
	return r.complete(key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *idempotencyRepository) MarkFailed(key string, responseBody []byte, httpStatus int) error {
	return r.complete(key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

func (r *idempotencyRepository) complete(key string, status domain.IdempotencyStatus, body []byte, httpStatus int) error {
	if key = strings.TrimSpace(key); key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := withTimeout(context.Background())
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE idempotency_keys
		SET status = $2, http_status = $3, response_body = $4, updated_at = NOW()
		WHERE key = $1`, key, string(status), httpStatus, body)
	if err != nil {
		return fmt.Errorf("store %s response for idempotency key: %w", status, err)
	}
	return expectRow(res, domain.ErrIdempotencyKeyNotFound)
}

// DeleteExpired удаляет самые старые истёкшие ключи; limit<=0 снимает ограничение.
func (r *idempotencyRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = time.Now()
	}

	ctx, cancel := withTimeout(context.Background())
	defer cancel()

	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	// LIMIT NULL в PostgreSQL означает отсутствие ограничения.
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM idempotency_keys
		WHERE key IN (
			SELECT key FROM idempotency_keys
			WHERE ttl_at <= $1
			ORDER BY ttl_at
			LIMIT $2
		)`, before.UTC(), lim)
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency keys: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
