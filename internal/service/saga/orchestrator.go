// Package saga реализует оформление заказа: пользователь и адрес, цены и остатки,
// оплата, локальная запись и списание остатков с компенсациями.
package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/messaging"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
	"github.com/vladislavdragonenkov/ordersvc/internal/rpc"
)

// ItemRequest: позиция в запросе на создание заказа.
type ItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int32 `json:"quantity"`
}

// CreateOrderRequest: входные данные createOrder.
type CreateOrderRequest struct {
	UserID            int64         `json:"userId"`
	ShippingAddressID int64         `json:"shippingAddressId"`
	PaymentMethod     string        `json:"paymentMethod"`
	Items             []ItemRequest `json:"items"`
}

// Validate проверяет форму запроса до обращения к зависимостям.
func (r CreateOrderRequest) Validate() error {
	var problems []string
	if r.UserID <= 0 {
		problems = append(problems, "userId must be a positive integer")
	}
	if r.ShippingAddressID <= 0 {
		problems = append(problems, "shippingAddressId must be a positive integer")
	}
	if strings.TrimSpace(r.PaymentMethod) == "" {
		problems = append(problems, "paymentMethod is required")
	}
	if len(r.Items) == 0 {
		problems = append(problems, "items must contain at least one item")
	}
	for i, item := range r.Items {
		if item.ProductID <= 0 {
			problems = append(problems, fmt.Sprintf("items[%d].productId must be a positive integer", i))
		}
		if item.Quantity < 1 {
			problems = append(problems, fmt.Sprintf("items[%d].quantity must be at least 1", i))
		}
	}
	if len(problems) > 0 {
		return domain.InvalidInput(strings.Join(problems, "; "))
	}
	return nil
}

// Orchestrator координирует createOrder.
type Orchestrator struct {
	users     domain.UserDirectory
	inventory domain.Inventory
	payments  domain.PaymentProcessor
	orders    domain.OrderRepository

	events     *messaging.Recorder
	metrics    *metrics.SagaMetrics
	logger     *log.Entry
	stockRetry *retrier
	compensate bool
}

// Option настраивает оркестратор.
type Option func(*Orchestrator)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics включает метрики саги.
func WithMetrics(m *metrics.SagaMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithEvents включает запись событий в outbox и timeline.
func WithEvents(r *messaging.Recorder) Option {
	return func(o *Orchestrator) {
		o.events = r
	}
}

// WithStockRetry задаёт повторы списания остатков, когда запрос не дошёл до каталога.
func WithStockRetry(cfg RetryConfig) Option {
	return func(o *Orchestrator) {
		o.stockRetry.config = cfg.withDefaults()
	}
}

// WithCompensations включает (по умолчанию) или отключает компенсации.
// Без компенсаций сбой списания оставляет заказ в PROCESSING и оплату списанной.
func WithCompensations(enabled bool) Option {
	return func(o *Orchestrator) {
		o.compensate = enabled
	}
}

// NewOrchestrator создаёт оркестратор.
func NewOrchestrator(
	users domain.UserDirectory,
	inventory domain.Inventory,
	payments domain.PaymentProcessor,
	orders domain.OrderRepository,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		users:      users,
		inventory:  inventory,
		payments:   payments,
		orders:     orders,
		logger:     log.New().WithField("component", "saga"),
		compensate: true,
	}
	o.stockRetry = newRetrier(DefaultRetryConfig(), rpc.NotDelivered, o.logger)
	for _, opt := range opts {
		opt(o)
	}
	o.stockRetry.logger = o.logger
	return o
}

// CreateOrder выполняет сагу и возвращает сохранённый заказ с позициями.
//
// Отмена ctx вызывающей стороной не прерывает сагу: начатая сага доходит до
// результата или до ошибки. Ошибки всегда типизированы (*domain.Error).
// При сбое после фиксации вместе с ошибкой возвращается зафиксированный заказ
// (отменённый, если компенсации включены).
func (o *Orchestrator) CreateOrder(ctx context.Context, req CreateOrderRequest) (domain.Order, error) {
	if err := req.Validate(); err != nil {
		return domain.Order{}, err
	}
	ctx = context.WithoutCancel(ctx)

	run := &sagaRun{
		o:     o,
		req:   req,
		start: time.Now(),
		logger: o.logger.WithFields(log.Fields{
			"user_id":        req.UserID,
			"payment_method": req.PaymentMethod,
			"items":          len(req.Items),
		}),
	}
	if o.metrics != nil {
		o.metrics.SagaStarted()
	}
	return run.execute(ctx)
}

// sagaRun: состояние одного выполнения createOrder.
type sagaRun struct {
	o      *Orchestrator
	req    CreateOrderRequest
	start  time.Time
	logger *log.Entry

	address       string
	items         []domain.OrderItem
	total         decimal.Decimal
	transactionID string
	order         domain.Order
	applied       []domain.StockAdjustment
	// inDoubt: списание, исход которого неизвестен (таймаут после отправки).
	inDoubt *domain.StockAdjustment
}

func (s *sagaRun) execute(ctx context.Context) (domain.Order, error) {
	if err := s.step(domain.SagaStepLoadUser, func() error { return s.resolveAddress(ctx) }); err != nil {
		return domain.Order{}, s.fail(domain.SagaStepLoadUser, err)
	}
	if err := s.step(domain.SagaStepCheckStock, func() error { return s.priceItems(ctx) }); err != nil {
		return domain.Order{}, s.fail(domain.SagaStepCheckStock, err)
	}

	draft := domain.Order{
		UserID:          s.req.UserID,
		TotalAmount:     s.total,
		Status:          domain.OrderStatusProcessing,
		ShippingAddress: s.address,
		PaymentMethod:   s.req.PaymentMethod,
		Items:           s.items,
	}
	if problems := draft.ValidateInvariants(); len(problems) > 0 {
		return domain.Order{}, s.fail(domain.SagaStepCheckStock,
			domain.Internal("order invariants violated", errors.Join(problems...)))
	}

	if err := s.step(domain.SagaStepCharge, func() error { return s.charge(ctx) }); err != nil {
		return domain.Order{}, s.fail(domain.SagaStepCharge, err)
	}
	draft.TransactionID = s.transactionID

	// Запись атомарна: при ошибке хранилище уже откатило транзакцию, компенсируем только оплату.
	err := s.step(domain.SagaStepPersist, func() error {
		saved, err := s.o.orders.CreateWithItems(ctx, draft)
		s.order = saved
		return err
	})
	if err != nil {
		s.refund(ctx)
		return domain.Order{}, s.fail(domain.SagaStepPersist, err)
	}
	s.logger = s.logger.WithField("order_id", s.order.ID)

	// Точка невозврата: заказ зафиксирован, дальше только компенсации.
	if err := s.step(domain.SagaStepAdjustStock, func() error { return s.adjustStock(ctx) }); err != nil {
		return s.order, s.abortAfterCommit(ctx, err)
	}

	s.o.events.Record(domain.EventOrderCreated, s.order, "")
	if s.o.metrics != nil {
		s.o.metrics.SagaCompleted(time.Since(s.start))
	}
	s.logger.WithFields(log.Fields{
		"total_amount":   s.order.TotalAmount.StringFixed(domain.MoneyScale),
		"transaction_id": s.order.TransactionID,
	}).Info("order created")
	return s.order, nil
}

func (s *sagaRun) resolveAddress(ctx context.Context) error {
	user, err := s.o.users.GetUser(ctx, s.req.UserID)
	if err != nil {
		return err
	}
	if user.Addresses == nil {
		return domain.NotFound("User or addresses not found.")
	}
	addr, ok := user.Address(s.req.ShippingAddressID)
	if !ok {
		return domain.InvalidInput("Shipping address not valid for this user.").WithCode(domain.CodeAddressNotValid)
	}
	s.address = addr.Snapshot()
	return nil
}

// priceItems запрашивает товары строго по одному и фиксирует снимки цен.
func (s *sagaRun) priceItems(ctx context.Context) error {
	s.total = decimal.Zero
	s.items = make([]domain.OrderItem, 0, len(s.req.Items))
	for _, item := range s.req.Items {
		product, err := s.o.inventory.GetProduct(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if item.Quantity > product.StockQuantity {
			return domain.InvalidInput(fmt.Sprintf("Insufficient stock for %s.", product.Name)).
				WithCode(domain.CodeInsufficientStock)
		}
		line := domain.OrderItem{
			ProductID:    item.ProductID,
			ProductName:  product.Name,
			Quantity:     item.Quantity,
			// Цена хранится с точностью до копейки, итог считается по уже округлённым ценам.
			PricePerUnit: product.Price.Round(domain.MoneyScale),
		}
		s.total = s.total.Add(line.LineTotal())
		s.items = append(s.items, line)
	}
	return nil
}

func (s *sagaRun) charge(ctx context.Context) error {
	txn, err := s.o.payments.Charge(ctx, s.req.PaymentMethod, s.total)
	if err != nil {
		return err
	}
	if txn == "" {
		return domain.Internal("payment gateway returned empty transaction id", nil)
	}
	s.transactionID = txn
	return nil
}

// adjustStock списывает остатки по одной позиции. Повторяется только запрос,
// не дошедший до каталога. После таймаута списание могло примениться, такая
// позиция запоминается в inDoubt и разбирается при компенсации.
func (s *sagaRun) adjustStock(ctx context.Context) error {
	for i, item := range s.order.Items {
		adj := domain.StockAdjustment{
			ProductID:      item.ProductID,
			QuantityChange: -item.Quantity,
			IdempotencyKey: stockKey(s.order.ID, item.ProductID, i),
		}
		err := s.o.stockRetry.do(ctx, string(domain.SagaStepAdjustStock), func() error {
			_, err := s.o.inventory.AdjustStock(ctx, adj)
			return err
		})
		if err != nil {
			if rpc.IsTransport(err) && !rpc.NotDelivered(err) {
				s.inDoubt = &adj
			}
			return err
		}
		s.applied = append(s.applied, adj)
	}
	return nil
}

// settleInDoubt повторяет неподтверждённое списание с тем же ключом. Каталог
// применяет ключ не более одного раза, поэтому успешный ответ означает, что
// списание есть ровно одно и его можно вернуть.
func (s *sagaRun) settleInDoubt(ctx context.Context) {
	if s.inDoubt == nil {
		return
	}
	adj := *s.inDoubt
	s.inDoubt = nil
	if _, err := s.o.inventory.AdjustStock(ctx, adj); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"product_id":      adj.ProductID,
			"idempotency_key": adj.IdempotencyKey,
		}).Error("stock adjustment outcome unknown, manual reconciliation required")
		return
	}
	s.applied = append(s.applied, adj)
}

// abortAfterCommit обрабатывает сбой списания после фиксации заказа.
// Зафиксированная транзакция не откатывается: вместо отката выполняются компенсации.
func (s *sagaRun) abortAfterCommit(ctx context.Context, cause error) error {
	classified, _ := domain.AsError(domain.Classify(cause))

	if !s.o.compensate {
		s.logger.WithError(cause).Error("stock adjustment failed after commit, order left in PROCESSING")
		if s.o.metrics != nil {
			s.o.metrics.SagaFailed(string(domain.SagaStepAdjustStock), string(classified.Kind), time.Since(s.start))
		}
		return classified
	}

	s.settleInDoubt(ctx)
	s.restoreStock(ctx)
	s.refund(ctx)

	err := s.compensation(domain.SagaStepCancel, func() error {
		cancelled, err := s.o.orders.UpdateStatus(ctx, s.order.ID, domain.OrderStatusCancelled)
		if err == nil {
			s.order = cancelled
		}
		return err
	})
	message := fmt.Sprintf("Order %d cancelled: %s", s.order.ID, classified.Message)
	if err != nil {
		s.logger.WithError(err).Error("failed to cancel order after stock adjustment failure")
		message = fmt.Sprintf("Order %d could not be cancelled and remains %s: %s",
			s.order.ID, s.order.Status, classified.Message)
	}
	s.o.events.Record(domain.EventOrderSagaFailed, s.order, classified.Message)

	out := &domain.Error{
		Kind:    classified.Kind,
		Code:    domain.CodeStockAdjustmentFailed,
		Message: message,
		Status:  classified.Status,
		Err:     cause,
	}
	if s.o.metrics != nil {
		s.o.metrics.SagaFailed(string(domain.SagaStepAdjustStock), string(out.Kind), time.Since(s.start))
	}
	s.logger.WithError(cause).Warn("order saga compensated")
	return out
}

// restoreStock возвращает уже списанные остатки в обратном порядке.
func (s *sagaRun) restoreStock(ctx context.Context) {
	for i := len(s.applied) - 1; i >= 0; i-- {
		adj := s.applied[i]
		restore := domain.StockAdjustment{
			ProductID:      adj.ProductID,
			QuantityChange: -adj.QuantityChange,
			IdempotencyKey: adj.IdempotencyKey + "-restore",
		}
		err := s.compensation(domain.SagaStepRestoreStock, func() error {
			return s.o.stockRetry.do(ctx, string(domain.SagaStepRestoreStock), func() error {
				_, err := s.o.inventory.AdjustStock(ctx, restore)
				return err
			})
		})
		if err != nil {
			s.logger.WithError(err).WithField("product_id", adj.ProductID).Error("stock restore failed")
			continue
		}
		s.o.events.Record(domain.EventStockCompensated, s.order,
			fmt.Sprintf("product %d restored by %d", restore.ProductID, restore.QuantityChange))
	}
}

func (s *sagaRun) refund(ctx context.Context) {
	if !s.o.compensate || s.transactionID == "" {
		return
	}
	err := s.compensation(domain.SagaStepRefund, func() error {
		return s.o.payments.Refund(ctx, s.transactionID, s.total)
	})
	if err != nil {
		s.logger.WithError(err).WithField("transaction_id", s.transactionID).Error("payment refund failed")
		return
	}
	if s.order.ID != 0 {
		s.o.events.Record(domain.EventPaymentRefunded, s.order, s.transactionID)
	}
}

func (s *sagaRun) step(name domain.SagaStep, fn func() error) error {
	started := time.Now()
	err := fn()
	if s.o.metrics != nil {
		s.o.metrics.StepObserved(string(name), err, time.Since(started))
	}
	return err
}

func (s *sagaRun) compensation(name domain.SagaStep, fn func() error) error {
	err := fn()
	if s.o.metrics != nil {
		s.o.metrics.Compensation(string(name), err)
	}
	return err
}

// fail классифицирует ошибку шага до фиксации заказа.
func (s *sagaRun) fail(step domain.SagaStep, err error) error {
	err = domain.Classify(err)
	kind := domain.KindOf(err)
	if s.o.metrics != nil {
		s.o.metrics.SagaFailed(string(step), string(kind), time.Since(s.start))
	}
	entry := s.logger.WithError(err).WithField("step", step)
	if kind == domain.KindInvalidInput || kind == domain.KindNotFound {
		entry.Info("order rejected")
	} else {
		entry.Warn("order saga failed")
	}
	return err
}

func stockKey(orderID, productID int64, index int) string {
	return fmt.Sprintf("order-%d-product-%d-%d", orderID, productID, index)
}
