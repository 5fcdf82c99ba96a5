package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/rpc/rpctest"
)

func TestGetProduct_Success(t *testing.T) {
	srv := rpctest.Start(t, GRPCService, map[string]rpctest.Handler{
		"FindOne": func(_ context.Context, decode func(any) error) (any, error) {
			var req FindOneRequest
			if err := decode(&req); err != nil {
				return nil, err
			}
			// Цена приходит строкой, как её отдаёт decimal-колонка каталога.
			return map[string]any{"id": req.ID, "name": "Widget", "price": "9.99", "stockQuantity": 5}, nil
		},
	})

	product, err := NewClient(srv.Conn, time.Second).GetProduct(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, int64(10), product.ID)
	require.Equal(t, "Widget", product.Name)
	require.True(t, product.Price.Equal(decimal.RequireFromString("9.99")))
	require.Equal(t, int32(5), product.StockQuantity)
}

func TestGetProduct_Absent(t *testing.T) {
	srv := rpctest.Start(t, GRPCService, map[string]rpctest.Handler{
		"FindOne": func(_ context.Context, decode func(any) error) (any, error) {
			return nil, decode(&FindOneRequest{})
		},
	})

	_, err := NewClient(srv.Conn, time.Second).GetProduct(context.Background(), 42)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Equal(t, "Product ID 42 not found.", err.Error())
}

func TestAdjustStock_SendsSignedChange(t *testing.T) {
	var got domain.StockAdjustment
	srv := rpctest.Start(t, GRPCService, map[string]rpctest.Handler{
		"UpdateStock": func(_ context.Context, decode func(any) error) (any, error) {
			if err := decode(&got); err != nil {
				return nil, err
			}
			return map[string]any{"id": got.ProductID, "name": "Widget", "price": 9.99, "stockQuantity": 3}, nil
		},
	})

	product, err := NewClient(srv.Conn, time.Second).AdjustStock(context.Background(), domain.StockAdjustment{
		ProductID:      10,
		QuantityChange: -2,
		IdempotencyKey: "order-1-product-10-0",
	})
	require.NoError(t, err)
	require.Equal(t, int64(10), got.ProductID)
	require.Equal(t, int32(-2), got.QuantityChange)
	require.Equal(t, "order-1-product-10-0", got.IdempotencyKey)
	require.Equal(t, int32(3), product.StockQuantity)
}

func TestAdjustStock_RemoteRejection(t *testing.T) {
	srv := rpctest.Start(t, GRPCService, map[string]rpctest.Handler{
		"UpdateStock": func(context.Context, func(any) error) (any, error) {
			return nil, status.Error(codes.FailedPrecondition, "stock would become negative")
		},
	})

	_, err := NewClient(srv.Conn, time.Second).AdjustStock(context.Background(), domain.StockAdjustment{ProductID: 10, QuantityChange: -9})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	require.Equal(t, 400, domain.HTTPStatus(err))
}

func TestAdjustStock_Unavailable(t *testing.T) {
	srv := rpctest.Start(t, GRPCService, map[string]rpctest.Handler{
		"UpdateStock": func(context.Context, func(any) error) (any, error) {
			return nil, status.Error(codes.Unavailable, "connection refused")
		},
	})

	_, err := NewClient(srv.Conn, time.Second).AdjustStock(context.Background(), domain.StockAdjustment{ProductID: 10, QuantityChange: -1})
	require.ErrorIs(t, err, domain.ErrServiceUnavailable)
	require.Contains(t, err.Error(), "failed to reach product-service")
}
