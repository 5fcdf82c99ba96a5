// Package rpctest поднимает in-process gRPC-сервер поверх bufconn для тестов клиентов.
package rpctest

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vladislavdragonenkov/ordersvc/internal/rpc"
)

const bufSize = 1 << 20

// Handler обрабатывает один unary-метод: decode читает запрос через JSON-кодек.
type Handler func(ctx context.Context, decode func(any) error) (any, error)

// Server: запущенный тестовый сервер.
type Server struct {
	Conn *grpc.ClientConn
	srv  *grpc.Server
}

// Stop останавливает сервер, соединение клиента остаётся открытым.
func (s *Server) Stop() {
	s.srv.Stop()
}

// Start регистрирует методы сервиса и возвращает клиентское соединение к нему.
// methods: имя метода -> обработчик.
func Start(t *testing.T, serviceName string, methods map[string]Handler) *Server {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	srv := grpc.NewServer()

	desc := grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*any)(nil),
	}
	for name, h := range methods {
		h := h
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler: func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				return h(ctx, dec)
			},
		})
	}
	srv.RegisterService(&desc, struct{}{})

	go func() {
		_ = srv.Serve(lis)
	}()

	conn, err := rpc.Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})
	return &Server{Conn: conn, srv: srv}
}
