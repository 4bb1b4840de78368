// File: internal/usecase/upgrader.go
package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/repository"
	"chat-subscription-payments/internal/infra/metrics"
)

// SubscriptionUpgrader swaps a user's active subscription for a new one.
// It must run inside the caller's transaction; it does not guard against
// being invoked twice for the same payment.
type SubscriptionUpgrader struct {
	subs repository.SubscriptionRepository
	log  *zerolog.Logger
	now  model.Clock
}

func NewSubscriptionUpgrader(subs repository.SubscriptionRepository, logger *zerolog.Logger, now model.Clock) *SubscriptionUpgrader {
	if now == nil {
		now = model.MarketNow
	}
	return &SubscriptionUpgrader{subs: subs, log: logger, now: now}
}

func (u *SubscriptionUpgrader) Upgrade(ctx context.Context, tx repository.Tx, userID, planID string) (*model.Subscription, error) {
	if err := u.subs.LockUser(ctx, tx, userID); err != nil {
		return nil, fmt.Errorf("lock user subscriptions: %w", err)
	}

	now := u.now()
	n, err := u.subs.DeactivateActiveByUser(ctx, tx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("deactivate subscriptions: %w", err)
	}

	sub, err := model.NewActiveSubscription(uuid.NewString(), userID, planID, now)
	if err != nil {
		return nil, err
	}
	if err := u.subs.Save(ctx, tx, sub); err != nil {
		return nil, fmt.Errorf("failed to upgrade subscription: %w", err)
	}

	metrics.AddSubscriptionsDeactivated(n)
	u.log.Info().Str("user_id", userID).Str("plan_id", planID).Int64("deactivated", n).Msg("subscription upgraded")
	return sub, nil
}
