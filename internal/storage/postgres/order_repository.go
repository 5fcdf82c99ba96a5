package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	orderColumns = `id, user_id, total_amount, status, shipping_address, payment_method,
		transaction_id, created_at, updated_at`
)

type orderRepository struct {
	store *Store
	db    *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{store: store, db: store.DB()}
}

// withTimeout ограничивает операцию opTimeout, не снимая дедлайн вызывающего.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}

// CreateWithItems пишет заказ и его позиции атомарно: либо всё, либо ничего.
func (r *orderRepository) CreateWithItems(ctx context.Context, order domain.Order) (domain.Order, error) {
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errs[0]
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	created := order.Clone()
	created.TotalAmount = created.TotalAmount.Round(domain.MoneyScale)
	err := r.store.inTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO orders (
				user_id, total_amount, status, shipping_address, payment_method, transaction_id
			) VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id, created_at, updated_at
		`,
			created.UserID, created.TotalAmount, string(created.Status), created.ShippingAddress,
			created.PaymentMethod, nullString(created.TransactionID),
		).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return insertItems(ctx, tx, created.ID, created.Items)
	})
	if err != nil {
		return domain.Order{}, err
	}
	created.CreatedAt = created.CreatedAt.UTC()
	created.UpdatedAt = created.UpdatedAt.UTC()
	return created, nil
}

// insertItems проставляет позициям order_id и id, выданные базой.
func insertItems(ctx context.Context, tx *sql.Tx, orderID int64, items []domain.OrderItem) error {
	for i := range items {
		item := &items[i]
		item.OrderID = orderID
		item.PricePerUnit = item.PricePerUnit.Round(domain.MoneyScale)
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, price_per_unit)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id
		`, orderID, item.ProductID, item.ProductName, item.Quantity, item.PricePerUnit).Scan(&item.ID); err != nil {
			return fmt.Errorf("insert order item %d: %w", item.ProductID, err)
		}
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, []int64{order.ID})
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items[order.ID]
	return order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user orders: %w", err)
	}
	return r.collectOrders(ctx, rows)
}

func (r *orderRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Order, int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var (
		where string
		args  []any
	)
	if filter.Status != nil {
		where = "WHERE status = $1"
		args = append(args, string(*filter.Status))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders ` + where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	orders, err := r.collectOrders(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) Items(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	items, err := r.loadItems(ctx, []int64{orderID})
	if err != nil {
		return nil, err
	}
	if items[orderID] == nil {
		return []domain.OrderItem{}, nil
	}
	return items[orderID], nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $1,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING `+orderColumns,
		string(status), id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}

	items, err := r.loadItems(ctx, []int64{order.ID})
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items[order.ID]
	return order, nil
}

// Delete удаляет позиции и заказ одной транзакцией, не полагаясь только на ON DELETE CASCADE.
func (r *orderRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return r.store.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		return expectRow(res, domain.ErrOrderNotFound)
	})
}

func (r *orderRepository) Statistics(ctx context.Context) (domain.Statistics, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var (
		stats   domain.Statistics
		revenue decimal.Decimal
	)
	if err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'PENDING'),
			COUNT(*) FILTER (WHERE status = 'DELIVERED'),
			COALESCE(SUM(total_amount), 0)
		FROM orders
	`).Scan(&stats.TotalOrders, &stats.PendingOrders, &stats.CompletedOrders, &revenue); err != nil {
		return domain.Statistics{}, fmt.Errorf("order statistics: %w", err)
	}

	stats.TotalRevenue = revenue
	stats.AverageOrderValue = decimal.Zero
	if stats.TotalOrders > 0 {
		stats.AverageOrderValue = revenue.Div(decimal.NewFromInt(int64(stats.TotalOrders)))
	}
	return stats, nil
}

func (r *orderRepository) collectOrders(ctx context.Context, rows *sql.Rows) ([]domain.Order, error) {
	defer rows.Close()

	orders := make([]domain.Order, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

// loadItems загружает позиции сразу для набора заказов одним запросом.
func (r *orderRepository) loadItems(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	placeholders := make([]string, len(orderIDs))
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, price_per_unit
		FROM order_items
		WHERE order_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY order_id, id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.PricePerUnit,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		result[item.OrderID] = append(result[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order  domain.Order
		status string
		txn    sql.NullString
	)
	if err := row.Scan(
		&order.ID, &order.UserID, &order.TotalAmount, &status, &order.ShippingAddress,
		&order.PaymentMethod, &txn, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	order.TransactionID = txn.String
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
