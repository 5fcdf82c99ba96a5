package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствующего адреса доставки.
	ErrShippingAddressRequired = errors.New("shipping_address is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total_amount must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match items sum")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired: пустой ключ идемпотентности.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired: пустой хэш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyNotFound: запись по ключу отсутствует.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyKeyAlreadyExists: ключ уже занят запросом с тем же телом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch: ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
)

// Kind: класс ошибки, видимый вызывающей стороне.
type Kind string

const (
	KindInvalidInput       Kind = "invalid_input"
	KindNotFound           Kind = "not_found"
	KindServiceUnavailable Kind = "service_unavailable"
	KindInternal           Kind = "internal"
)

// Сентинелы для errors.Is по классу ошибки.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInternal           = errors.New("internal error")
)

// Коды, по которым клиент может отличить конкретную причину.
const (
	CodePaymentMethodNotSupported = "payment_method_not_supported"
	CodeInsufficientStock         = "insufficient_stock"
	CodeAddressNotValid           = "shipping_address_not_valid"
	CodeStockAdjustmentFailed     = "stock_adjustment_failed"
	CodeInvalidStatus             = "invalid_status"
	CodeInvalidTransition         = "invalid_status_transition"
)

// Error: типизированная ошибка домена.
//
// Status заполняется, если ошибка пришла от удалённого сервиса и её HTTP-статус
// нужно пробросить клиенту как есть.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is позволяет сравнивать с сентинелами класса: errors.Is(err, ErrNotFound).
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrServiceUnavailable:
		return e.Kind == KindServiceUnavailable
	case ErrInternal:
		return e.Kind == KindInternal
	}
	return false
}

// InvalidInput создаёт ошибку некорректного запроса.
func InvalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

// NotFound создаёт ошибку отсутствующей сущности.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Unavailable создаёт ошибку недоступности зависимости.
func Unavailable(msg string, cause error) *Error {
	return &Error{Kind: KindServiceUnavailable, Message: msg, Err: cause}
}

// Internal создаёт внутреннюю ошибку.
func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: cause}
}

// Remote создаёт ошибку, пришедшую от удалённого сервиса со своим статусом.
func Remote(kind Kind, status int, msg string) *Error {
	return &Error{Kind: kind, Status: status, Message: msg}
}

// WithCode возвращает копию ошибки с машинным кодом.
func (e *Error) WithCode(code string) *Error {
	cp := *e
	cp.Code = code
	return &cp
}

// AsError извлекает *Error из цепочки.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf возвращает класс ошибки; всё нетипизированное считается внутренним.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if de, ok := AsError(err); ok {
		return de.Kind
	}
	if errors.Is(err, ErrOrderNotFound) {
		return KindNotFound
	}
	return KindInternal
}

// Classify приводит любую ошибку к типизированной. Типизированные проходят без изменений.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	if errors.Is(err, ErrOrderNotFound) {
		return &Error{Kind: KindNotFound, Message: err.Error(), Err: err}
	}
	return Internal(err.Error(), err)
}

// HTTPStatus сопоставляет ошибку HTTP-статусу ответа.
func HTTPStatus(err error) int {
	if de, ok := AsError(err); ok && de.Status != 0 {
		return de.Status
	}
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
