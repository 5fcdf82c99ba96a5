package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/memory"
)

// OrderLifecycleTestSuite проходит жизненный цикл заказа через собранное приложение.
type OrderLifecycleTestSuite struct {
	suite.Suite
	app *App
}

func TestOrderLifecycle(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	a, err := New(context.Background(), memoryConfig(), quietLogger())
	s.Require().NoError(err)
	s.app = a
}

func (s *OrderLifecycleTestSuite) TearDownTest() {
	s.Require().NoError(s.app.Close())
}

func (s *OrderLifecycleTestSuite) call(method, path, body string) (int, map[string]any) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.app.Handler().ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func (s *OrderLifecycleTestSuite) createOrder(productID, quantity int) int64 {
	body := fmt.Sprintf(`{"userId":1,"shippingAddressId":5,"paymentMethod":"MockPayment","items":[{"productId":%d,"quantity":%d}]}`, productID, quantity)
	code, resp := s.call(http.MethodPost, "/orders", body)
	s.Require().Equal(http.StatusCreated, code, resp)
	return int64(resp["id"].(float64))
}

func (s *OrderLifecycleTestSuite) events() []string {
	repo, ok := s.app.deps.Outbox.(*memory.OutboxRepository)
	s.Require().True(ok)
	var types []string
	for _, msg := range repo.AllPending() {
		types = append(types, msg.EventType)
	}
	return types
}

func (s *OrderLifecycleTestSuite) TestShipAndDeliver() {
	id := s.createOrder(11, 2)

	for _, status := range []domain.OrderStatus{domain.OrderStatusShipped, domain.OrderStatusDelivered} {
		code, resp := s.call(http.MethodPatch, fmt.Sprintf("/admin/orders/%d/status", id), fmt.Sprintf(`{"status":%q}`, status))
		s.Require().Equal(http.StatusOK, code, resp)
		s.Equal(string(status), resp["data"].(map[string]any)["status"])
	}

	code, resp := s.call(http.MethodGet, "/admin/orders/statistics", "")
	s.Require().Equal(http.StatusOK, code)
	stats := resp["data"].(map[string]any)
	s.Equal(float64(1), stats["totalOrders"])
	s.Equal(float64(1), stats["completedOrders"])
	s.Equal("49.00", stats["totalRevenue"])

	s.Equal([]string{
		domain.EventOrderCreated,
		domain.EventOrderStatusChanged,
		domain.EventOrderStatusChanged,
	}, s.events())
}

func (s *OrderLifecycleTestSuite) TestCancelAndDelete() {
	id := s.createOrder(10, 1)

	code, resp := s.call(http.MethodPatch, fmt.Sprintf("/orders/%d/cancel", id), "")
	s.Require().Equal(http.StatusOK, code, resp)
	s.Equal(true, resp["success"])

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/orders/%d/timeline", id), nil)
	w := httptest.NewRecorder()
	s.app.Handler().ServeHTTP(w, req)
	s.Require().Equal(http.StatusOK, w.Code)
	var timeline []map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &timeline))
	s.Require().Len(timeline, 2)
	s.Equal(domain.EventOrderCreated, timeline[0]["type"])
	s.Equal(domain.EventOrderCancelled, timeline[1]["type"])

	code, _ = s.call(http.MethodDelete, fmt.Sprintf("/admin/orders/%d", id), "")
	s.Require().Equal(http.StatusOK, code)

	code, resp = s.call(http.MethodGet, fmt.Sprintf("/orders/%d", id), "")
	s.Equal(http.StatusNotFound, code)
	s.Equal(fmt.Sprintf("Order ID %d not found.", id), resp["message"])
	s.Contains(s.events(), domain.EventOrderDeleted)
}

func (s *OrderLifecycleTestSuite) TestRejectedOrderLeavesNoTrace() {
	code, resp := s.call(http.MethodPost, "/orders",
		`{"userId":1,"shippingAddressId":99,"paymentMethod":"MockPayment","items":[{"productId":10,"quantity":1}]}`)
	s.Require().Equal(http.StatusBadRequest, code)
	s.Equal(domain.CodeAddressNotValid, resp["code"])

	code, resp = s.call(http.MethodGet, "/orders", "")
	s.Require().Equal(http.StatusOK, code)
	s.Equal(float64(0), resp["total"])
	require.Empty(s.T(), s.events())
}
