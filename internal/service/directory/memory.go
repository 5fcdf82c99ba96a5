// Package directory содержит встроенный справочник пользователей для локального запуска и тестов.
package directory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// Memory хранит пользователей в памяти и реализует domain.UserDirectory.
type Memory struct {
	mu    sync.RWMutex
	users map[int64]domain.User
}

// NewMemory создаёт справочник с переданными пользователями.
func NewMemory(users []domain.User) *Memory {
	m := &Memory{users: make(map[int64]domain.User, len(users))}
	for _, u := range users {
		m.Put(u)
	}
	return m
}

// DefaultUsers: пользователи для локального режима.
func DefaultUsers() []domain.User {
	return []domain.User{
		{
			ID: 1,
			Addresses: []domain.Address{
				{ID: 5, Street: "12 Oak St", City: "Springfield", State: "IL", ZipCode: "62704"},
				{ID: 6, Street: "400 Elm Ave", City: "Shelbyville", State: "IL", ZipCode: "62565"},
			},
		},
		{ID: 2, Addresses: []domain.Address{}},
	}
}

// Put добавляет или заменяет пользователя.
func (m *Memory) Put(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := u
	cp.Addresses = append([]domain.Address(nil), u.Addresses...)
	if u.Addresses != nil && cp.Addresses == nil {
		cp.Addresses = []domain.Address{}
	}
	m.users[u.ID] = cp
}

// GetUser возвращает пользователя или NotFound.
func (m *Memory) GetUser(_ context.Context, userID int64) (domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[userID]
	if !ok || u.Addresses == nil {
		return domain.User{}, domain.NotFound("User or addresses not found.")
	}
	cp := u
	cp.Addresses = append([]domain.Address{}, u.Addresses...)
	return cp, nil
}

var _ domain.UserDirectory = (*Memory)(nil)
