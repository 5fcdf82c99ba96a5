package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// orderRepositoryInMemory: in-memory реализация OrderRepository.
// Заказ и позиции записываются под одной блокировкой, что даёт ту же атомарность, что и транзакция.
type orderRepositoryInMemory struct {
	mu        sync.RWMutex
	orders    map[int64]domain.Order
	nextOrder int64
	nextItem  int64
	now       func() time.Time
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return newOrderRepository(func() time.Time { return time.Now().UTC() })
}

func newOrderRepository(now func() time.Time) *orderRepositoryInMemory {
	return &orderRepositoryInMemory{
		orders: make(map[int64]domain.Order),
		now:    now,
	}
}

// CreateWithItems назначает идентификаторы и сохраняет заказ вместе с позициями.
func (r *orderRepositoryInMemory) CreateWithItems(_ context.Context, order domain.Order) (domain.Order, error) {
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errs[0]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextOrder++
	stored := order.Clone()
	stored.ID = r.nextOrder
	stored.TotalAmount = stored.TotalAmount.Round(domain.MoneyScale)
	now := r.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	for i := range stored.Items {
		r.nextItem++
		stored.Items[i].ID = r.nextItem
		stored.Items[i].OrderID = stored.ID
	}

	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.orders[stored.ID] = stored
	return stored.Clone(), nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id int64) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

// ListByUser возвращает заказы пользователя, новые первыми.
func (r *orderRepositoryInMemory) ListByUser(_ context.Context, userID int64) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, order := range r.orders {
		if order.UserID != userID {
			continue
		}
		result = append(result, order.Clone())
	}
	sortNewestFirst(result)
	return result, nil
}

// List возвращает страницу заказов с учётом фильтра по статусу.
func (r *orderRepositoryInMemory) List(_ context.Context, filter domain.ListFilter) ([]domain.Order, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		matched = append(matched, order)
	}
	sortNewestFirst(matched)

	total := len(matched)
	start := filter.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	page := make([]domain.Order, 0, end-start)
	for _, order := range matched[start:end] {
		page = append(page, order.Clone())
	}
	return page, total, nil
}

// Items возвращает позиции заказа; для несуществующего заказа: пустой список.
func (r *orderRepositoryInMemory) Items(_ context.Context, orderID int64) ([]domain.OrderItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[orderID]
	if !ok {
		return []domain.OrderItem{}, nil
	}
	return order.Clone().Items, nil
}

// UpdateStatus меняет статус заказа.
func (r *orderRepositoryInMemory) UpdateStatus(_ context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = r.now()
	r.orders[id] = order
	return order.Clone(), nil
}

// Delete удаляет заказ вместе с позициями.
func (r *orderRepositoryInMemory) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[id]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(r.orders, id)
	return nil
}

// Statistics считает агрегаты по всем заказам.
func (r *orderRepositoryInMemory) Statistics(_ context.Context) (domain.Statistics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := domain.Statistics{TotalRevenue: decimal.Zero, AverageOrderValue: decimal.Zero}
	for _, order := range r.orders {
		stats.TotalOrders++
		stats.TotalRevenue = stats.TotalRevenue.Add(order.TotalAmount)
		switch order.Status {
		case domain.OrderStatusPending:
			stats.PendingOrders++
		case domain.OrderStatusDelivered:
			stats.CompletedOrders++
		}
	}
	if stats.TotalOrders > 0 {
		stats.AverageOrderValue = stats.TotalRevenue.Div(decimal.NewFromInt(int64(stats.TotalOrders)))
	}
	return stats, nil
}

func sortNewestFirst(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
