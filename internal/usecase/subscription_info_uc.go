// File: internal/usecase/subscription_info_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/domain"
	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/adapter"
	"chat-subscription-payments/internal/domain/ports/repository"
)

// Compile-time check
var _ SubscriptionInfoUseCase = (*subscriptionInfoUC)(nil)

type SubscriptionInfoUseCase interface {
	Get(ctx context.Context, userID string) (*model.SubscriptionInfo, error)
}

type subscriptionInfoUC struct {
	subs  repository.SubscriptionRepository
	plans repository.SubscriptionPlanRepository
	cache adapter.SubscriptionInfoCache
	log   *zerolog.Logger
}

func NewSubscriptionInfoUseCase(subs repository.SubscriptionRepository, plans repository.SubscriptionPlanRepository, cache adapter.SubscriptionInfoCache, logger *zerolog.Logger) *subscriptionInfoUC {
	return &subscriptionInfoUC{subs: subs, plans: plans, cache: cache, log: logger}
}

// Get reads through the cache. Cache failures degrade to a store read.
func (u *subscriptionInfoUC) Get(ctx context.Context, userID string) (*model.SubscriptionInfo, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if info, ok, err := u.cache.Get(ctx, userID); err != nil {
		u.log.Warn().Err(err).Str("user_id", userID).Msg("subscription info cache read failed")
	} else if ok {
		return info, nil
	}

	info := &model.SubscriptionInfo{UserID: userID}
	sub, err := u.subs.FindActiveByUser(ctx, nil, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		info.Subscription = sub
		plan, err := u.plans.FindByID(ctx, nil, sub.PlanID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if err == nil {
			info.Plan = plan
			if left := plan.MessageLimit - sub.MessagesUsed; left > 0 {
				info.RemainingMessages = left
			}
		}
	}

	if err := u.cache.Set(ctx, info); err != nil {
		u.log.Warn().Err(err).Str("user_id", userID).Msg("subscription info cache write failed")
	}
	return info, nil
}
