package repository

import (
	"context"
	"time"

	"chat-subscription-payments/internal/domain/model"
)

// UnresolvedPaymentRepository is the sink for webhooks no matching tier could bind.
type UnresolvedPaymentRepository interface {
	Save(ctx context.Context, tx Tx, u *model.UnresolvedPayment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.UnresolvedPayment, error)
	// ListUnresolved returns status=unresolved rows, newest first.
	ListUnresolved(ctx context.Context, tx Tx) ([]*model.UnresolvedPayment, error)
	CountUnresolved(ctx context.Context, tx Tx) (int, error)
	// MarkResolvedIfUnresolved binds the row to an intent; false when it was already resolved.
	MarkResolvedIfUnresolved(ctx context.Context, tx Tx, id, transactionID string, at time.Time) (bool, error)
}
