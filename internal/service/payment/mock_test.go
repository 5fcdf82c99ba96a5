package payment

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

var txnPattern = regexp.MustCompile(`^TXN-\d+-\d{1,3}$`)

func TestMockService_Charge(t *testing.T) {
	mock := NewMockService()
	ctx := context.Background()

	txn, err := mock.Charge(ctx, MethodMock, decimal.RequireFromString("19.98"))
	if err != nil {
		t.Fatalf("unexpected charge error: %v", err)
	}
	if !txnPattern.MatchString(txn) {
		t.Fatalf("unexpected transaction id %q", txn)
	}

	_, err = mock.Charge(ctx, "CreditCard", decimal.NewFromInt(1))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unsupported method, got %v", err)
	}
	de, _ := domain.AsError(err)
	if de.Code != domain.CodePaymentMethodNotSupported {
		t.Fatalf("unexpected code %q", de.Code)
	}

	if charges, _ := mock.Calls(); charges != 2 {
		t.Fatalf("unexpected charge calls: %d", charges)
	}
}

func TestMockService_UniqueIDsWithinSameMillisecond(t *testing.T) {
	mock := NewMockService()
	fixed := time.UnixMilli(1700000000000)
	mock.now = func() time.Time { return fixed }

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		txn, err := mock.Charge(context.Background(), MethodMock, decimal.NewFromInt(1))
		if err != nil {
			t.Fatalf("charge %d: %v", i, err)
		}
		if _, dup := seen[txn]; dup {
			t.Fatalf("duplicate transaction id %s", txn)
		}
		seen[txn] = struct{}{}
	}
}

func TestMockService_Refund(t *testing.T) {
	mock := NewMockService()
	ctx := context.Background()

	txn, err := mock.Charge(ctx, MethodMock, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("unexpected charge error: %v", err)
	}
	if err := mock.Refund(ctx, txn, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("unexpected refund error: %v", err)
	}
	// Повторный возврат: no-op.
	if err := mock.Refund(ctx, txn, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("unexpected repeated refund error: %v", err)
	}
	if !mock.Refunded(txn) {
		t.Fatal("expected transaction to be refunded")
	}

	if err := mock.Refund(ctx, "TXN-unknown", decimal.NewFromInt(1)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown transaction, got %v", err)
	}

	mock.RefundErr = errors.New("gateway down")
	if err := mock.Refund(ctx, txn, decimal.NewFromInt(1)); err == nil {
		t.Fatal("expected refund error")
	}
}
