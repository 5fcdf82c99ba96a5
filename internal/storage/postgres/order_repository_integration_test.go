package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

func TestOrderRepository_PostgresCreateGetAndList(t *testing.T) {
	store := freshStore(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	first, err := repo.CreateWithItems(ctx, sampleOrder(1))
	if err != nil {
		t.Fatalf("create first order: %v", err)
	}
	second, err := repo.CreateWithItems(ctx, sampleOrder(1))
	if err != nil {
		t.Fatalf("create second order: %v", err)
	}
	if _, err := repo.CreateWithItems(ctx, sampleOrder(2)); err != nil {
		t.Fatalf("create order for other user: %v", err)
	}

	if first.ID == 0 || first.Items[0].ID == 0 || first.Items[0].OrderID != first.ID {
		t.Fatalf("expected assigned ids, got %+v", first)
	}

	got, err := repo.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if !got.TotalAmount.Equal(decimal.RequireFromString("44.48")) {
		t.Fatalf("unexpected total: %s", got.TotalAmount)
	}
	if got.TransactionID != "TXN-1" || got.Status != domain.OrderStatusProcessing {
		t.Fatalf("unexpected order: %+v", got)
	}
	if len(got.Items) != 2 || !got.Items[0].PricePerUnit.Equal(decimal.RequireFromString("9.99")) {
		t.Fatalf("unexpected items: %+v", got.Items)
	}

	byUser, err := repo.ListByUser(ctx, 1)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(byUser) != 2 || byUser[0].ID != second.ID {
		t.Fatalf("expected newest first for user 1, got %+v", byUser)
	}

	page, total, err := repo.List(ctx, domain.ListFilter{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if total != 3 || len(page) != 1 || page[0].ID != second.ID {
		t.Fatalf("unexpected page: total=%d page=%+v", total, page)
	}

	items, err := repo.Items(ctx, first.ID)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestOrderRepository_PostgresStatusFilterAndStatistics(t *testing.T) {
	store := freshStore(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	a, err := repo.CreateWithItems(ctx, sampleOrder(1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err := repo.CreateWithItems(ctx, sampleOrder(1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := repo.UpdateStatus(ctx, a.ID, domain.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != domain.OrderStatusDelivered || len(updated.Items) != 2 {
		t.Fatalf("unexpected updated order: %+v", updated)
	}
	if _, err := repo.UpdateStatus(ctx, b.ID, domain.OrderStatusPending); err != nil {
		t.Fatalf("update status: %v", err)
	}

	delivered := domain.OrderStatusDelivered
	page, total, err := repo.List(ctx, domain.ListFilter{Status: &delivered, Limit: 10})
	if err != nil {
		t.Fatalf("list delivered: %v", err)
	}
	if total != 1 || len(page) != 1 || page[0].ID != a.ID {
		t.Fatalf("unexpected delivered page: total=%d %+v", total, page)
	}

	stats, err := repo.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalOrders != 2 || stats.PendingOrders != 1 || stats.CompletedOrders != 1 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
	if !stats.TotalRevenue.Equal(decimal.RequireFromString("88.96")) ||
		!stats.AverageOrderValue.Equal(decimal.RequireFromString("44.48")) {
		t.Fatalf("unexpected revenue: %+v", stats)
	}

	if _, err := repo.UpdateStatus(ctx, 999, domain.OrderStatusShipped); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_PostgresDeleteRemovesItems(t *testing.T) {
	store := freshStore(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	order, err := repo.CreateWithItems(ctx, sampleOrder(1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Delete(ctx, order.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound after delete, got %v", err)
	}

	var left int
	if err := store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM order_items WHERE order_id = $1`, order.ID).Scan(&left); err != nil {
		t.Fatalf("count items: %v", err)
	}
	if left != 0 {
		t.Fatalf("expected items to be removed, %d left", left)
	}

	if err := repo.Delete(ctx, order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on repeated delete, got %v", err)
	}
}

func TestOrderRepository_PostgresCreateIsAtomic(t *testing.T) {
	store := freshStore(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	// Цена позиции не помещается в NUMERIC(10,2): вставка позиции падает, заказ не должен остаться.
	order := sampleOrder(1)
	order.Items = []domain.OrderItem{{
		ProductID:    10,
		ProductName:  "Huge",
		Quantity:     1,
		PricePerUnit: decimal.RequireFromString("123456789.00"),
	}}
	order.TotalAmount = order.ItemsTotal()

	if _, err := repo.CreateWithItems(ctx, order); err == nil {
		t.Fatal("expected create error for overflowing price")
	}

	var orders int
	if err := store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&orders); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orders != 0 {
		t.Fatalf("expected rollback of order row, found %d", orders)
	}
}

func TestOrderRepository_PostgresContextDeadline(t *testing.T) {
	store := freshStore(t)
	repo := NewOrderRepository(store)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	if _, err := repo.Get(ctx, 1); err == nil {
		t.Fatal("expected error for expired context")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected 23505 to be unique violation")
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Fatal("plain error is not unique violation")
	}
}

func sampleOrder(userID int64) domain.Order {
	order := domain.Order{
		UserID:          userID,
		Status:          domain.OrderStatusProcessing,
		ShippingAddress: "12 Oak St, Springfield, IL 62704",
		PaymentMethod:   "MockPayment",
		TransactionID:   "TXN-1",
		Items: []domain.OrderItem{
			{ProductID: 10, ProductName: "Widget", Quantity: 2, PricePerUnit: decimal.RequireFromString("9.99")},
			{ProductID: 11, ProductName: "Gadget", Quantity: 1, PricePerUnit: decimal.RequireFromString("24.50")},
		},
	}
	order.TotalAmount = order.ItemsTotal()
	return order
}
