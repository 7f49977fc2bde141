//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/repository"
)

func TestOrderNumberCollision(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	number := fmt.Sprintf("fixed-%d", time.Now().UnixNano())
	var generated int
	store := repository.NewStore(pool,
		repository.WithNumberGenerator(func(time.Time) string {
			generated++
			return number
		}),
		repository.WithNumberAttempts(3),
	)
	pending := order.NewOrder{
		Contact: order.Contact{
			Email:      "collide@example.com",
			Country:    "US",
			Region:     "CA",
			Address1:   "1 Main St",
			PostalCode: "94000",
			Phone:      "+15550100",
		},
		Currency: "USD",
		Total:    decimal.RequireFromString("14.50"),
	}

	errRollback := errors.New("rollback")
	err = store.WithinTx(ctx, func(ctx context.Context, tx checkout.Tx) error {
		first, err := tx.CreatePending(ctx, pending)
		if err != nil {
			return fmt.Errorf("first create: %w", err)
		}
		if first.Number != number {
			t.Errorf("number = %q, want %q", first.Number, number)
		}

		if _, err := tx.CreatePending(ctx, pending); !errors.Is(err, order.ErrOrderNumberExhausted) {
			return fmt.Errorf("second create: got %v, want ErrOrderNumberExhausted", err)
		}
		if generated != 4 {
			t.Errorf("generated %d numbers, want 4", generated)
		}

		// The transaction is still usable after the failed savepoints.
		got, err := tx.FindByNumber(ctx, number)
		if err != nil {
			return fmt.Errorf("find after collision: %w", err)
		}
		if got.ID != first.ID || got.Status != order.StatusPending {
			t.Errorf("found order %d (%s), want %d (PENDING)", got.ID, got.Status, first.ID)
		}
		if err := tx.AppendEvent(ctx, order.NewEvent(order.EventCreated, got, "")); err != nil {
			return fmt.Errorf("append event after collision: %w", err)
		}
		return errRollback
	})
	if !errors.Is(err, errRollback) {
		t.Fatalf("WithinTx: %v", err)
	}

	if _, err := store.FindByNumber(ctx, number); !errors.Is(err, order.ErrNotFound) {
		t.Errorf("order after rollback: got %v, want ErrNotFound", err)
	}
}
