package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

type orderItemResponse struct {
	ID           int64  `json:"id"`
	OrderID      int64  `json:"orderId"`
	ProductID    int64  `json:"productId"`
	ProductName  string `json:"productName"`
	Quantity     int32  `json:"quantity"`
	PricePerUnit string `json:"pricePerUnit"`
}

type orderResponse struct {
	ID              int64               `json:"id"`
	UserID          int64               `json:"userId"`
	TotalAmount     string              `json:"totalAmount"`
	Status          domain.OrderStatus  `json:"status"`
	ShippingAddress string              `json:"shippingAddress"`
	PaymentMethod   string              `json:"paymentMethod"`
	TransactionID   *string             `json:"transactionId"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	Items           []orderItemResponse `json:"items"`
}

// Суммы отдаются строкой с двумя знаками, как decimal-колонки в исходном API.
func toOrderResponse(o domain.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		TotalAmount:     o.TotalAmount.StringFixed(domain.MoneyScale),
		Status:          o.Status,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           make([]orderItemResponse, 0, len(o.Items)),
	}
	if o.TransactionID != "" {
		txn := o.TransactionID
		resp.TransactionID = &txn
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:           item.ID,
			OrderID:      item.OrderID,
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Quantity:     item.Quantity,
			PricePerUnit: item.PricePerUnit.StringFixed(domain.MoneyScale),
		})
	}
	return resp
}

func toOrderResponses(list []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderResponse(o))
	}
	return out
}

type pageResponse struct {
	Data       []orderResponse `json:"data"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
}

type pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalCount  int `json:"totalCount"`
	Limit       int `json:"limit"`
}

type adminPage struct {
	Orders     []orderResponse `json:"orders"`
	Pagination pagination      `json:"pagination"`
}

type statisticsResponse struct {
	TotalOrders       int    `json:"totalOrders"`
	PendingOrders     int    `json:"pendingOrders"`
	CompletedOrders   int    `json:"completedOrders"`
	TotalRevenue      string `json:"totalRevenue"`
	AverageOrderValue string `json:"averageOrderValue"`
}

type timelineEventResponse struct {
	Type       string    `json:"type"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// envelope: обёртка {success, message, data} административных ответов.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}
