package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// CreateWithItems атомарно сохраняет заказ и позиции, назначая идентификаторы.
	// При любой ошибке не остаётся ни заказа, ни позиций.
	CreateWithItems(ctx context.Context, order Order) (Order, error)
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(ctx context.Context, id int64) (Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми.
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	// List возвращает страницу заказов и общее количество с учётом фильтра.
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
	// Items возвращает позиции заказа.
	Items(ctx context.Context, orderID int64) ([]OrderItem, error)
	// UpdateStatus меняет статус и возвращает обновлённый заказ.
	UpdateStatus(ctx context.Context, id int64, status OrderStatus) (Order, error)
	// Delete удаляет заказ вместе с позициями.
	Delete(ctx context.Context, id int64) error
	// Statistics считает агрегаты по всем заказам.
	Statistics(ctx context.Context) (Statistics, error)
}
