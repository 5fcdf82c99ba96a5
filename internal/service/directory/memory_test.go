package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

func TestMemory_GetUser(t *testing.T) {
	dir := NewMemory(DefaultUsers())

	user, err := dir.GetUser(context.Background(), 1)
	require.NoError(t, err)
	addr, ok := user.Address(5)
	require.True(t, ok)
	require.Equal(t, "12 Oak St, Springfield, IL 62704", addr.Snapshot())

	// Пустой список адресов: пользователь найден, адреса нет.
	user, err = dir.GetUser(context.Background(), 2)
	require.NoError(t, err)
	require.Empty(t, user.Addresses)

	_, err = dir.GetUser(context.Background(), 99)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_UserWithoutAddressList(t *testing.T) {
	dir := NewMemory([]domain.User{{ID: 3}})

	_, err := dir.GetUser(context.Background(), 3)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	dir := NewMemory(DefaultUsers())

	user, err := dir.GetUser(context.Background(), 1)
	require.NoError(t, err)
	user.Addresses[0].Street = "changed"

	again, err := dir.GetUser(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "12 Oak St", again.Addresses[0].Street)
}
