// Package inventory содержит встроенный каталог товаров для локального запуска и тестов.
package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// Catalog хранит товары в памяти и реализует domain.Inventory.
//
// По умолчанию списание условное: изменение, после которого остаток стал бы
// отрицательным, отклоняется целиком. WithAllowNegative отключает проверку.
type Catalog struct {
	mu            sync.Mutex
	products      map[int64]domain.Product
	applied       map[string]domain.Product
	adjustments   []domain.StockAdjustment
	allowNegative bool

	// FailAdjust, если задан, вызывается перед применением изменения и может вернуть ошибку.
	FailAdjust func(adj domain.StockAdjustment) error
}

// Option настраивает каталог.
type Option func(*Catalog)

// WithAllowNegative разрешает уход остатка в минус (безусловное списание).
func WithAllowNegative(allow bool) Option {
	return func(c *Catalog) {
		c.allowNegative = allow
	}
}

// NewCatalog создаёт каталог с переданными товарами.
func NewCatalog(products []domain.Product, opts ...Option) *Catalog {
	c := &Catalog{
		products: make(map[int64]domain.Product, len(products)),
		applied:  make(map[string]domain.Product),
	}
	for _, p := range products {
		c.products[p.ID] = p
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultProducts: набор товаров для локального режима.
func DefaultProducts() []domain.Product {
	return []domain.Product{
		{ID: 10, Name: "Widget", Price: decimal.RequireFromString("9.99"), StockQuantity: 5},
		{ID: 11, Name: "Gadget", Price: decimal.RequireFromString("24.50"), StockQuantity: 20},
		{ID: 12, Name: "Gizmo", Price: decimal.RequireFromString("0.10"), StockQuantity: 100},
	}
}

// GetProduct возвращает товар по идентификатору.
func (c *Catalog) GetProduct(_ context.Context, productID int64) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[productID]
	if !ok {
		return domain.Product{}, domain.NotFound(fmt.Sprintf("Product ID %d not found.", productID))
	}
	return p, nil
}

// AdjustStock атомарно применяет изменение остатка.
func (c *Catalog) AdjustStock(_ context.Context, adj domain.StockAdjustment) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if adj.IdempotencyKey != "" {
		if res, ok := c.applied[adj.IdempotencyKey]; ok {
			return res, nil
		}
	}
	if c.FailAdjust != nil {
		if err := c.FailAdjust(adj); err != nil {
			return domain.Product{}, err
		}
	}

	p, ok := c.products[adj.ProductID]
	if !ok {
		return domain.Product{}, domain.NotFound(fmt.Sprintf("Product ID %d not found.", adj.ProductID))
	}
	next := p.StockQuantity + adj.QuantityChange
	if next < 0 && !c.allowNegative {
		return domain.Product{}, domain.InvalidInput(fmt.Sprintf("Insufficient stock for %s.", p.Name)).
			WithCode(domain.CodeInsufficientStock)
	}
	p.StockQuantity = next
	c.products[p.ID] = p
	c.adjustments = append(c.adjustments, adj)
	if adj.IdempotencyKey != "" {
		c.applied[adj.IdempotencyKey] = p
	}
	return p, nil
}

// Adjustments возвращает применённые изменения в порядке применения.
func (c *Catalog) Adjustments() []domain.StockAdjustment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.StockAdjustment, len(c.adjustments))
	copy(out, c.adjustments)
	return out
}

// Stock возвращает текущий остаток товара.
func (c *Catalog) Stock(productID int64) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.products[productID].StockQuantity
}

var _ domain.Inventory = (*Catalog)(nil)
