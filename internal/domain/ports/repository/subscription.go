package repository

import (
	"context"
	"time"

	"chat-subscription-payments/internal/domain/model"
)

// SubscriptionRepository is the port for user subscriptions.
type SubscriptionRepository interface {
	// LockUser serialises subscription changes for one user for the life of tx.
	LockUser(ctx context.Context, tx Tx, userID string) error
	DeactivateActiveByUser(ctx context.Context, tx Tx, userID string, at time.Time) (int64, error)
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	CountActiveByUser(ctx context.Context, tx Tx, userID string) (int, error)
}
