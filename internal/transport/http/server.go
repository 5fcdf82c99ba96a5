// Package httpapi поднимает HTTP API сервиса заказов на gin.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/idempotency"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/orders"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/saga"
)

// maxBodyBytes ограничивает размер тела запроса.
const maxBodyBytes = 1 << 20

// OrderCreator запускает сагу создания заказа.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req saga.CreateOrderRequest) (domain.Order, error)
}

// OrderQueries: операции над существующими заказами.
type OrderQueries interface {
	Get(ctx context.Context, id int64) (domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
	List(ctx context.Context, page, limit int, status string) (orders.Page, error)
	Cancel(ctx context.Context, id int64) (domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, status string) (domain.Order, error)
	Delete(ctx context.Context, id int64) error
	Statistics(ctx context.Context) (domain.Statistics, error)
	Timeline(ctx context.Context, id int64) ([]domain.TimelineEvent, error)
}

// Server собирает маршруты и middleware.
type Server struct {
	engine  *gin.Engine
	creator OrderCreator
	queries OrderQueries
	guard   *idempotency.Guard
	admin   *AdminAuth
	metrics *metrics.HTTPMetrics
	logger  *log.Entry
}

// Option настраивает сервер.
type Option func(*Server)

// WithLogger задаёт логгер access-лога и ошибок.
func WithLogger(logger *log.Entry) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIdempotency включает обработку заголовка Idempotency-Key на POST /orders.
func WithIdempotency(g *idempotency.Guard) Option {
	return func(s *Server) {
		s.guard = g
	}
}

// WithAdminAuth закрывает /admin JWT-проверкой. Без неё админские маршруты открыты.
func WithAdminAuth(a *AdminAuth) Option {
	return func(s *Server) {
		s.admin = a
	}
}

// WithMetrics включает метрики запросов.
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer создаёт сервер с маршрутами.
func NewServer(creator OrderCreator, queries OrderQueries, opts ...Option) *Server {
	s := &Server{
		creator: creator,
		queries: queries,
		logger:  log.New().WithField("component", "http"),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(s.requestLogger(), s.recovery())
	if s.metrics != nil {
		r.Use(s.observe())
	}
	r.NoRoute(func(c *gin.Context) {
		writeError(c, &domain.Error{
			Kind:    domain.KindNotFound,
			Status:  http.StatusNotFound,
			Message: "Cannot " + c.Request.Method + " " + c.Request.URL.Path,
		})
	})
	s.engine = r
	s.registerRoutes()
	return s
}

// Handler возвращает http.Handler для http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) registerRoutes() {
	ordersGroup := s.engine.Group("/orders")
	{
		ordersGroup.GET("", s.listOrders)
		ordersGroup.POST("", s.idempotent(), s.createOrder)
		ordersGroup.GET("/user/:userId", s.listUserOrders)
		ordersGroup.GET("/:id", s.getOrder)
		ordersGroup.GET("/:id/timeline", s.orderTimeline)
		ordersGroup.PATCH("/:id/cancel", s.cancelOrder)
	}

	admin := s.engine.Group("/admin/orders")
	if s.admin != nil {
		admin.Use(s.admin.Require())
	}
	{
		admin.GET("/statistics", s.adminStatistics)
		admin.GET("", s.adminListOrders)
		admin.GET("/:id", s.adminGetOrder)
		admin.PATCH("/:id/status", s.adminUpdateStatus)
		admin.DELETE("/:id", s.adminDeleteOrder)
	}
}
