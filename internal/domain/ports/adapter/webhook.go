package adapter

import (
	"context"
	"time"

	"chat-subscription-payments/internal/domain/model"
)

// WebhookValidator authenticates an inbound bank notification. Implementations
// are provider specific; returning an error rejects the delivery.
type WebhookValidator interface {
	Name() string
	Validate(ctx context.Context, payload *model.WebhookPayload, signature string) error
}

// OperatorNotifier tells humans that a payment needs manual triage.
type OperatorNotifier interface {
	NotifyUnresolved(ctx context.Context, u *model.UnresolvedPayment) error
}

// Locker guards a resource across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// SubscriptionInfoCache is the short-lived, advisory per-user read cache.
// A miss is reported as (nil, false, nil).
type SubscriptionInfoCache interface {
	Get(ctx context.Context, userID string) (*model.SubscriptionInfo, bool, error)
	Set(ctx context.Context, info *model.SubscriptionInfo) error
	Invalidate(ctx context.Context, userID string) error
}
