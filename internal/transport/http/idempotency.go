package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/idempotency"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 128
)

// captureWriter копирует тело ответа, чтобы сохранить его под ключом идемпотентности.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// idempotent повторяет сохранённый ответ для уже выполненного ключа.
// Без заголовка Idempotency-Key запрос обрабатывается как обычно.
func (s *Server) idempotent() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(headerIdempotencyKey)
		if s.guard == nil || key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			badRequest(c, "Idempotency-Key is too long.")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			badRequest(c, "Request body is too large or unreadable.")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		replay, err := s.guard.Begin(key, idempotency.RequestHash(c.Request.Method, c.Request.URL.Path, body))
		switch {
		case errors.Is(err, idempotency.ErrInFlight):
			writeError(c, domain.Remote(domain.KindInvalidInput, http.StatusConflict, err.Error()))
			return
		case errors.Is(err, idempotency.ErrPayloadMismatch):
			writeError(c, domain.Remote(domain.KindInvalidInput, http.StatusUnprocessableEntity, err.Error()))
			return
		case err != nil:
			writeError(c, domain.Unavailable("idempotency store is unavailable", err))
			return
		case replay != nil:
			s.logger.WithFields(log.Fields{
				"request_id":      c.GetString(ctxRequestID),
				"idempotency_key": key,
			}).Debug("replaying stored response")
			c.Header(headerReplayed, "true")
			c.Data(replay.Status, "application/json; charset=utf-8", replay.Body)
			c.Abort()
			return
		}

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		defer func() {
			// Паника обработчика не должна оставить ключ в processing навсегда:
			// ключ закрывается ответом 500, паника уходит дальше в recovery.
			if p := recover(); p != nil {
				s.guard.Finish(key, http.StatusInternalServerError, panicResponseBody())
				panic(p)
			}
		}()
		c.Next()
		s.guard.Finish(key, writer.Status(), writer.body.Bytes())
	}
}

func panicResponseBody() []byte {
	body, _ := json.Marshal(errorResponse{
		StatusCode: http.StatusInternalServerError,
		Error:      http.StatusText(http.StatusInternalServerError),
		Message:    internalErrorMessage,
	})
	return body
}
