// Package orders содержит операции над уже созданными заказами:
// чтение, списки, смена статуса, отмена, удаление и статистика.
package orders

import (
	"context"
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/messaging"
)

// MaxPageLimit ограничивает размер одной страницы списка.
const MaxPageLimit = 100

// Page: страница списка заказов.
type Page struct {
	Orders     []domain.Order
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// Service реализует операции над заказами вне саги.
type Service struct {
	repo     domain.OrderRepository
	timeline domain.TimelineRepository
	events   *messaging.Recorder
	logger   *log.Entry
	strict   bool
}

// Option настраивает сервис.
type Option func(*Service)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEvents включает запись событий смены статуса и удаления.
func WithEvents(r *messaging.Recorder) Option {
	return func(s *Service) {
		s.events = r
	}
}

// WithStrictTransitions включает проверку допустимости переходов статусов.
// По умолчанию принимается любой статус из перечисления.
func WithStrictTransitions(strict bool) Option {
	return func(s *Service) {
		s.strict = strict
	}
}

// NewService конструирует сервис. timeline может быть nil.
func NewService(repo domain.OrderRepository, timeline domain.TimelineRepository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		timeline: timeline,
		logger:   log.New().WithField("component", "orders"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get возвращает заказ с позициями.
func (s *Service) Get(ctx context.Context, id int64) (domain.Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Order{}, s.mapError(id, err)
	}
	return order, nil
}

// ListByUser возвращает заказы пользователя, новые первыми.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	if userID <= 0 {
		return nil, domain.InvalidInput("userId must be a positive integer")
	}
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.Classify(err)
	}
	return orders, nil
}

// List возвращает страницу заказов. Пустой status означает все статусы.
func (s *Service) List(ctx context.Context, page, limit int, status string) (Page, error) {
	if page < 1 {
		return Page{}, domain.InvalidInput("page must be a positive integer")
	}
	if limit < 1 {
		return Page{}, domain.InvalidInput("limit must be a positive integer")
	}
	if limit > MaxPageLimit {
		return Page{}, domain.InvalidInput(fmt.Sprintf("limit must not exceed %d", MaxPageLimit))
	}
	// offset = (page-1)*limit не должен переполнять int.
	if page-1 > math.MaxInt/limit {
		return Page{}, domain.InvalidInput("page is out of range")
	}

	filter := domain.ListFilter{Offset: (page - 1) * limit, Limit: limit}
	if status != "" {
		st, err := domain.ParseOrderStatus(status)
		if err != nil {
			return Page{}, err
		}
		filter.Status = &st
	}

	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return Page{}, domain.Classify(err)
	}
	return Page{
		Orders:     orders,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

func totalPages(total, limit int) int {
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return pages
}

// Cancel переводит заказ в CANCELLED. Повторная отмена возвращает заказ без изменений.
func (s *Service) Cancel(ctx context.Context, id int64) (domain.Order, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Order{}, s.mapError(id, err)
	}
	if current.Status == domain.OrderStatusCancelled {
		return current, nil
	}
	if err := s.checkTransition(current.Status, domain.OrderStatusCancelled); err != nil {
		return domain.Order{}, err
	}

	updated, err := s.repo.UpdateStatus(ctx, id, domain.OrderStatusCancelled)
	if err != nil {
		return domain.Order{}, s.mapError(id, err)
	}
	s.events.Record(domain.EventOrderCancelled, updated, fmt.Sprintf("%s -> %s", current.Status, updated.Status))
	s.logger.WithFields(log.Fields{
		"order_id": id,
		"from":     current.Status,
	}).Info("order cancelled")
	return updated, nil
}

// UpdateStatus устанавливает статус из перечисления.
func (s *Service) UpdateStatus(ctx context.Context, id int64, raw string) (domain.Order, error) {
	status, err := domain.ParseOrderStatus(raw)
	if err != nil {
		return domain.Order{}, err
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Order{}, s.mapError(id, err)
	}
	if err := s.checkTransition(current.Status, status); err != nil {
		return domain.Order{}, err
	}

	updated, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return domain.Order{}, s.mapError(id, err)
	}
	if current.Status != status {
		s.events.Record(domain.EventOrderStatusChanged, updated, fmt.Sprintf("%s -> %s", current.Status, status))
	}
	s.logger.WithFields(log.Fields{
		"order_id": id,
		"from":     current.Status,
		"to":       status,
	}).Info("order status updated")
	return updated, nil
}

// Delete удаляет заказ вместе с позициями.
func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return s.mapError(id, err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapError(id, err)
	}
	s.events.Record(domain.EventOrderDeleted, current, "")
	s.logger.WithField("order_id", id).Info("order deleted")
	return nil
}

// Statistics возвращает агрегаты по всем заказам.
func (s *Service) Statistics(ctx context.Context) (domain.Statistics, error) {
	stats, err := s.repo.Statistics(ctx)
	if err != nil {
		return domain.Statistics{}, domain.Classify(err)
	}
	return stats, nil
}

// Timeline возвращает историю событий заказа. Для удалённого заказа история недоступна.
func (s *Service) Timeline(ctx context.Context, id int64) ([]domain.TimelineEvent, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, s.mapError(id, err)
	}
	if s.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	events, err := s.timeline.List(id)
	if err != nil {
		return nil, domain.Classify(err)
	}
	return events, nil
}

func (s *Service) checkTransition(from, to domain.OrderStatus) error {
	if !s.strict || domain.CanTransition(from, to) {
		return nil
	}
	return domain.InvalidInput(fmt.Sprintf("Cannot change order status from %s to %s.", from, to)).
		WithCode(domain.CodeInvalidTransition)
}

func (s *Service) mapError(id int64, err error) error {
	if errors.Is(err, domain.ErrOrderNotFound) {
		return domain.NotFound(fmt.Sprintf("Order ID %d not found.", id))
	}
	return domain.Classify(err)
}
