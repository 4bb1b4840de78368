package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/adapter"
	"chat-subscription-payments/internal/infra/worker"
)

var _ adapter.OperatorNotifier = (*AsyncNotifier)(nil)

// AsyncNotifier hands notifications to the worker pool so the webhook
// response never waits on Telegram.
type AsyncNotifier struct {
	inner adapter.OperatorNotifier
	pool  *worker.Pool
	log   *zerolog.Logger
}

func NewAsyncNotifier(inner adapter.OperatorNotifier, pool *worker.Pool, logger *zerolog.Logger) *AsyncNotifier {
	return &AsyncNotifier{inner: inner, pool: pool, log: logger}
}

func (n *AsyncNotifier) NotifyUnresolved(ctx context.Context, u *model.UnresolvedPayment) error {
	cp := *u
	return n.pool.Submit(func(ctx context.Context) error {
		return n.inner.NotifyUnresolved(ctx, &cp)
	})
}
