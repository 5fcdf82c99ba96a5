// Package directory реализует клиент сервиса пользователей.
package directory

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/rpc"
)

const (
	// ServiceName используется в сообщениях об ошибках транспорта.
	ServiceName = "user-service"
	// GRPCService: полное имя удалённого сервиса.
	GRPCService = "users.v1.UserService"

	methodFindOne = "/" + GRPCService + "/FindOne"
)

// FindOneRequest: запрос пользователя по идентификатору.
type FindOneRequest struct {
	ID int64 `json:"id"`
}

// Client реализует domain.UserDirectory поверх gRPC.
type Client struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

// NewClient создаёт клиента; timeout ограничивает каждый вызов.
func NewClient(conn grpc.ClientConnInterface, timeout time.Duration) *Client {
	return &Client{conn: conn, timeout: timeout}
}

// GetUser возвращает пользователя с адресами.
func (c *Client) GetUser(ctx context.Context, userID int64) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reply *domain.User
	if err := c.conn.Invoke(ctx, methodFindOne, &FindOneRequest{ID: userID}, &reply); err != nil {
		return domain.User{}, rpc.Classify(ServiceName, err)
	}
	// null в ответе или отсутствующий список адресов означает, что пользователя нет.
	if reply == nil || reply.Addresses == nil {
		return domain.User{}, domain.NotFound("User or addresses not found.")
	}
	return *reply, nil
}

var _ domain.UserDirectory = (*Client)(nil)
