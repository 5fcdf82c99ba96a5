// Package inventory реализует клиент каталога товаров.
package inventory

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/rpc"
)

const (
	// ServiceName используется в сообщениях об ошибках транспорта.
	ServiceName = "product-service"
	// GRPCService: полное имя удалённого сервиса.
	GRPCService = "products.v1.ProductService"

	methodFindOne     = "/" + GRPCService + "/FindOne"
	methodUpdateStock = "/" + GRPCService + "/UpdateStock"
)

// FindOneRequest: запрос товара по идентификатору.
type FindOneRequest struct {
	ID int64 `json:"id"`
}

// Client реализует domain.Inventory поверх gRPC.
type Client struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

// NewClient создаёт клиента; timeout ограничивает каждый вызов.
func NewClient(conn grpc.ClientConnInterface, timeout time.Duration) *Client {
	return &Client{conn: conn, timeout: timeout}
}

// GetProduct возвращает товар с ценой и остатком.
func (c *Client) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reply *domain.Product
	if err := c.conn.Invoke(ctx, methodFindOne, &FindOneRequest{ID: productID}, &reply); err != nil {
		return domain.Product{}, rpc.Classify(ServiceName, err)
	}
	if reply == nil {
		return domain.Product{}, domain.NotFound(fmt.Sprintf("Product ID %d not found.", productID))
	}
	return *reply, nil
}

// AdjustStock применяет изменение остатка. Сервис каталога отклоняет списание,
// после которого остаток стал бы отрицательным (FailedPrecondition).
func (c *Client) AdjustStock(ctx context.Context, adj domain.StockAdjustment) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reply *domain.Product
	if err := c.conn.Invoke(ctx, methodUpdateStock, &adj, &reply); err != nil {
		return domain.Product{}, rpc.Classify(ServiceName, err)
	}
	if reply == nil {
		// Пустой ответ: подтверждение без тела.
		return domain.Product{ID: adj.ProductID}, nil
	}
	return *reply, nil
}

var _ domain.Inventory = (*Client)(nil)
