package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Address: адрес пользователя из сервиса профилей.
type Address struct {
	ID      int64  `json:"id"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
}

// Snapshot форматирует адрес для сохранения в заказе.
func (a Address) Snapshot() string {
	return fmt.Sprintf("%s, %s, %s %s", a.Street, a.City, a.State, a.ZipCode)
}

// User: пользователь с набором адресов доставки.
type User struct {
	ID        int64     `json:"id"`
	Addresses []Address `json:"addresses"`
}

// Address ищет адрес пользователя по идентификатору.
func (u User) Address(id int64) (Address, bool) {
	for _, a := range u.Addresses {
		if a.ID == id {
			return a, true
		}
	}
	return Address{}, false
}

// Product: товар из каталога.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int32           `json:"stockQuantity"`
}

// StockAdjustment: изменение остатка товара.
//
// Отрицательное QuantityChange списывает остаток, положительное возвращает.
type StockAdjustment struct {
	ProductID      int64  `json:"productId"`
	QuantityChange int32  `json:"quantityChange"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}
