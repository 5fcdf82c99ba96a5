package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending: заказ принят, но ещё не обработан.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusProcessing: оплата прошла, заказ сохранён и передан в обработку.
	OrderStatusProcessing OrderStatus = "PROCESSING"
	// OrderStatusShipped: заказ передан в доставку.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusDelivered: заказ доставлен покупателю.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled: заказ отменён.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// MoneyScale: количество знаков после запятой для денежных сумм.
const MoneyScale = 2

var allStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid проверяет, что статус входит в перечисление.
func (s OrderStatus) Valid() bool {
	for _, st := range allStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// ParseOrderStatus разбирает строковое значение статуса.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", InvalidInput(fmt.Sprintf("Invalid status: %s", raw)).WithCode(CodeInvalidStatus)
	}
	return s, nil
}

// transitions используется только в строгом режиме смены статусов.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CanTransition сообщает, допустим ли переход from -> to в строгом режиме.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	ID      int64
	OrderID int64
	// ProductID: идентификатор товара в каталоге.
	ProductID int64
	// ProductName: снимок названия на момент заказа.
	ProductName string
	Quantity    int32
	// PricePerUnit: снимок цены на момент заказа.
	PricePerUnit decimal.Decimal
}

// LineTotal возвращает quantity * pricePerUnit.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.PricePerUnit.Mul(decimal.NewFromInt32(i.Quantity))
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID          int64
	UserID      int64
	TotalAmount decimal.Decimal
	Status      OrderStatus
	// ShippingAddress: снимок адреса, отвязанный от профиля пользователя.
	ShippingAddress string
	PaymentMethod   string
	// TransactionID пустой, пока оплата не проведена.
	TransactionID string
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ItemsTotal возвращает сумму позиций.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID <= 0 {
		errs = append(errs, ErrUserRequired)
	}
	if o.ShippingAddress == "" {
		errs = append(errs, ErrShippingAddressRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalAmount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}

	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PricePerUnit.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}
	if !o.ItemsTotal().Round(MoneyScale).Equal(o.TotalAmount.Round(MoneyScale)) {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// Clone возвращает глубокую копию заказа.
func (o Order) Clone() Order {
	cp := o
	if o.Items != nil {
		cp.Items = make([]OrderItem, len(o.Items))
		copy(cp.Items, o.Items)
	}
	return cp
}

// ListFilter задаёт параметры выборки заказов для администрирования.
type ListFilter struct {
	Status *OrderStatus
	Offset int
	Limit  int
}

// Statistics: агрегаты по всем заказам.
type Statistics struct {
	TotalOrders       int
	PendingOrders     int
	CompletedOrders   int
	TotalRevenue      decimal.Decimal
	AverageOrderValue decimal.Decimal
}
