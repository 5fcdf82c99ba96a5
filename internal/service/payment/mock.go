package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// MethodMock: единственный поддерживаемый способ оплаты.
const MethodMock = "MockPayment"

// MockService: заглушка платёжного шлюза: любое списание через MockPayment успешно.
//
// ChargeErr/RefundErr позволяют в тестах сымитировать отказ шлюза.
type MockService struct {
	mu sync.Mutex

	ChargeErr error
	RefundErr error

	ChargeCalls int
	RefundCalls int

	issued   map[string]struct{}
	refunded map[string]decimal.Decimal
	now      func() time.Time
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{
		issued:   make(map[string]struct{}),
		refunded: make(map[string]decimal.Decimal),
		now:      time.Now,
	}
}

// Charge проверяет способ оплаты и выдаёт идентификатор транзакции вида TXN-<ms>-<0..999>.
func (m *MockService) Charge(_ context.Context, method string, amount decimal.Decimal) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ChargeCalls++
	if method != MethodMock {
		return "", domain.InvalidInput(fmt.Sprintf("Payment method %s not supported.", method)).
			WithCode(domain.CodePaymentMethodNotSupported)
	}
	if amount.IsNegative() {
		return "", domain.InvalidInput("payment amount must be non-negative")
	}
	if m.ChargeErr != nil {
		return "", m.ChargeErr
	}

	// Идентификатор уникален в пределах процесса: при совпадении генерируем заново.
	for {
		id := fmt.Sprintf("TXN-%d-%d", m.now().UnixMilli(), rand.IntN(1000))
		if _, dup := m.issued[id]; !dup {
			m.issued[id] = struct{}{}
			return id, nil
		}
	}
}

// Refund возвращает средства по транзакции. Повторный возврат той же транзакции не выполняется.
func (m *MockService) Refund(_ context.Context, transactionID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RefundCalls++
	if m.RefundErr != nil {
		return m.RefundErr
	}
	if _, ok := m.issued[transactionID]; !ok {
		return domain.NotFound(fmt.Sprintf("transaction %s not found", transactionID))
	}
	if _, done := m.refunded[transactionID]; done {
		return nil
	}
	m.refunded[transactionID] = amount
	return nil
}

// Refunded сообщает, был ли выполнен возврат по транзакции.
func (m *MockService) Refunded(transactionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.refunded[transactionID]
	return ok
}

// Calls возвращает счётчики вызовов.
func (m *MockService) Calls() (charge, refund int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ChargeCalls, m.RefundCalls
}

var _ domain.PaymentProcessor = (*MockService)(nil)
