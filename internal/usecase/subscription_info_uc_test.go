//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/usecase"
)

func TestSubscriptionInfoUseCase_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("reads through the cache", func(t *testing.T) {
		h := newHarness()
		h.subs.rows = []model.Subscription{{ID: "s1", UserID: "user-1", PlanID: "plan-pro", IsActive: true, MessagesUsed: 120}}
		uc := usecase.NewSubscriptionInfoUseCase(h.subs, h.plans, h.cache, newTestLogger())

		info, err := uc.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 380, info.RemainingMessages)
		assert.Equal(t, "Premium", info.Plan.Name)

		// served from cache: the store change is not visible yet
		h.subs.rows[0].MessagesUsed = 500
		again, err := uc.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 380, again.RemainingMessages)
		assert.Equal(t, 1, h.plans.calls)
	})

	t.Run("settlement invalidates the cached entry", func(t *testing.T) {
		p := pendingIntent("p1", "TXNQ4R8M", 100000, testNow.Add(-time.Hour))
		h := newHarness(p)
		uc := usecase.NewSubscriptionInfoUseCase(h.subs, h.plans, h.cache, newTestLogger())

		before, err := uc.Get(ctx, "user-p1")
		require.NoError(t, err)
		assert.Nil(t, before.Subscription)

		_, err = h.settlement.Settle(ctx, usecase.SettleRequest{IntentID: "p1", MatchMethod: "amount_match"})
		require.NoError(t, err)

		after, err := uc.Get(ctx, "user-p1")
		require.NoError(t, err)
		require.NotNil(t, after.Subscription)
		assert.Equal(t, "plan-pro", after.Subscription.PlanID)
		assert.Equal(t, 500, after.RemainingMessages)
	})

	t.Run("cache failure degrades to the store", func(t *testing.T) {
		h := newHarness()
		h.cache.getErr = errStoreDown
		uc := usecase.NewSubscriptionInfoUseCase(h.subs, h.plans, h.cache, newTestLogger())

		info, err := uc.Get(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, "user-1", info.UserID)
		assert.Nil(t, info.Subscription)
	})
}
