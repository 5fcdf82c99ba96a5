package rpc

import (
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// Classify разделяет три исхода удалённого вызова: ответ (err == nil),
// доменную ошибку сервиса и сбой транспорта.
//
// Сбой транспорта (недоступность, таймаут, битый ответ) становится ServiceUnavailable.
// Доменная ошибка сохраняет сообщение сервиса и его статус.
func Classify(dependency string, err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return domain.Unavailable(fmt.Sprintf("failed to reach %s", dependency), err)
	}

	switch st.Code() {
	case codes.NotFound:
		return domain.Remote(domain.KindNotFound, http.StatusNotFound, st.Message())
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return domain.Remote(domain.KindInvalidInput, http.StatusBadRequest, st.Message())
	case codes.AlreadyExists, codes.Aborted:
		return domain.Remote(domain.KindInvalidInput, http.StatusConflict, st.Message())
	case codes.PermissionDenied:
		return domain.Remote(domain.KindInvalidInput, http.StatusForbidden, st.Message())
	case codes.Unauthenticated:
		return domain.Remote(domain.KindInvalidInput, http.StatusUnauthorized, st.Message())
	default:
		// Unavailable, DeadlineExceeded, Canceled, Internal (в т.ч. ошибка разбора ответа),
		// ResourceExhausted, Unimplemented, Unknown.
		return domain.Unavailable(fmt.Sprintf("failed to reach %s", dependency), err)
	}
}

// IsTransport сообщает о сбое транспорта: сервис недоступен или не ответил вовремя.
func IsTransport(err error) bool {
	return domain.KindOf(err) == domain.KindServiceUnavailable
}

// NotDelivered сообщает, что запрос не дошёл до сервиса (codes.Unavailable).
// Таймаут сюда не относится: после него изменение могло быть применено.
func NotDelivered(err error) bool {
	return IsTransport(err) && status.Code(err) == codes.Unavailable
}
