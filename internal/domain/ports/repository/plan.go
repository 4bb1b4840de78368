package repository

import (
	"context"

	"chat-subscription-payments/internal/domain/model"
)

// SubscriptionPlanRepository is the read port for the plan catalog.
type SubscriptionPlanRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.SubscriptionPlan, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.SubscriptionPlan, error)
}
