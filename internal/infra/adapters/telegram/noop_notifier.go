package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/adapter"
)

var _ adapter.OperatorNotifier = (*NoopNotifier)(nil)

// NoopNotifier logs instead of messaging. Used when no bot token is configured.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	return &NoopNotifier{log: logger}
}

func (n *NoopNotifier) NotifyUnresolved(ctx context.Context, u *model.UnresolvedPayment) error {
	n.log.Info().Str("unresolved_id", u.ID).Int64("amount", u.Amount).Msg("[noop-notifier] unresolved payment")
	return nil
}
