package repository

import (
	"context"
	"time"

	"chat-subscription-payments/internal/domain/model"
)

// -----------------------------
// Payment intents
// -----------------------------

// PaymentIntentRepository is the port for pending/completed transfer intents.
// Finder methods return domain.ErrNotFound when nothing matches.
type PaymentIntentRepository interface {
	// Ping is the liveness probe run before a webhook is processed.
	Ping(ctx context.Context) error

	Save(ctx context.Context, tx Tx, p *model.PaymentIntent) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentIntent, error)
	FindByReference(ctx context.Context, tx Tx, reference string) (*model.PaymentIntent, error)
	FindPendingByUserAndPlan(ctx context.Context, tx Tx, userID, planID string) (*model.PaymentIntent, error)

	// Matcher queries, all restricted to status=pending.
	FindPendingByReference(ctx context.Context, tx Tx, reference string) (*model.PaymentIntent, error)
	FindPendingByReferenceContains(ctx context.Context, tx Tx, fragment string) (*model.PaymentIntent, error)
	ListPendingByReferencePrefix(ctx context.Context, tx Tx, prefix string, limit int) ([]*model.PaymentIntent, error)
	ListPendingByAmountSince(ctx context.Context, tx Tx, amount int64, since time.Time, limit int) ([]*model.PaymentIntent, error)
	ListPendingByAmount(ctx context.Context, tx Tx, amount int64, limit int) ([]*model.PaymentIntent, error)
	CountPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time) (int, error)

	// AnnotateWebhook records the bank reference and match method on a matched intent.
	AnnotateWebhook(ctx context.Context, tx Tx, id string, bankReference *string, receivedAt time.Time, matchMethod string) error
	// CompleteIfPending flips pending -> completed and reports whether this call did the flip.
	CompleteIfPending(ctx context.Context, tx Tx, id string, upd model.CompletionUpdate) (bool, error)
}
