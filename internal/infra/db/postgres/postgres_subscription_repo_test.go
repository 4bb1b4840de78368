//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"chat-subscription-payments/internal/domain"
	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/repository"
)

func TestSubscriptionRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewSubscriptionRepo(testPool, fastPolicy())
	tm := NewTxManager(testPool, fastPolicy())
	userID := uuid.NewString()

	t.Run("upgrade leaves exactly one active subscription", func(t *testing.T) {
		cleanup(t)
		basic := seedPlan(t, "Basic", 50000, 100)
		pro := seedPlan(t, "Pro", 100000, 500)

		first, _ := model.NewActiveSubscription(uuid.NewString(), userID, basic.ID, time.Now())
		if err := repo.Save(ctx, nil, first); err != nil {
			t.Fatalf("save first: %v", err)
		}

		second, _ := model.NewActiveSubscription(uuid.NewString(), userID, pro.ID, time.Now())
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := repo.LockUser(ctx, tx, userID); err != nil {
				return err
			}
			n, err := repo.DeactivateActiveByUser(ctx, tx, userID, time.Now())
			if err != nil {
				return err
			}
			if n != 1 {
				t.Errorf("want 1 deactivated row, got %d", n)
			}
			return repo.Save(ctx, tx, second)
		})
		if err != nil {
			t.Fatalf("upgrade tx: %v", err)
		}

		count, err := repo.CountActiveByUser(ctx, nil, userID)
		if err != nil || count != 1 {
			t.Fatalf("CountActiveByUser = %d, %v", count, err)
		}
		active, err := repo.FindActiveByUser(ctx, nil, userID)
		if err != nil || active.PlanID != pro.ID || active.MessagesUsed != 0 {
			t.Fatalf("FindActiveByUser = %+v, %v", active, err)
		}
	})

	t.Run("second active row violates the partial unique index", func(t *testing.T) {
		cleanup(t)
		pro := seedPlan(t, "Pro", 100000, 500)

		a, _ := model.NewActiveSubscription(uuid.NewString(), userID, pro.ID, time.Now())
		b, _ := model.NewActiveSubscription(uuid.NewString(), userID, pro.ID, time.Now())
		if err := repo.Save(ctx, nil, a); err != nil {
			t.Fatalf("save a: %v", err)
		}
		if err := repo.Save(ctx, nil, b); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("want ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("rolled back upgrade keeps the old subscription", func(t *testing.T) {
		cleanup(t)
		pro := seedPlan(t, "Pro", 100000, 500)
		old, _ := model.NewActiveSubscription(uuid.NewString(), userID, pro.ID, time.Now())
		if err := repo.Save(ctx, nil, old); err != nil {
			t.Fatalf("save: %v", err)
		}

		boom := errors.New("boom")
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if _, err := repo.DeactivateActiveByUser(ctx, tx, userID, time.Now()); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("want boom, got %v", err)
		}

		active, err := repo.FindActiveByUser(ctx, nil, userID)
		if err != nil || active.ID != old.ID {
			t.Fatalf("old subscription should survive rollback: %+v, %v", active, err)
		}
	})

	t.Run("LockUser requires a transaction", func(t *testing.T) {
		if err := repo.LockUser(ctx, nil, userID); !errors.Is(err, domain.ErrInvalidExecContext) {
			t.Fatalf("want ErrInvalidExecContext, got %v", err)
		}
	})

	t.Run("no active subscription is ErrNotFound", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.FindActiveByUser(ctx, nil, uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})
}
