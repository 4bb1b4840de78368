package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/config"
	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/adapter"
	"chat-subscription-payments/internal/infra/i18n"
	"chat-subscription-payments/internal/infra/metrics"
)

var _ adapter.OperatorNotifier = (*OperatorNotifier)(nil)

// sender is the slice of tgbotapi.BotAPI the notifier needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// OperatorNotifier DMs every configured admin chat when a payment lands in
// the unresolved sink.
type OperatorNotifier struct {
	bot      sender
	adminIDs []int64
	tr       *i18n.Translator
	log      *zerolog.Logger
}

func NewOperatorNotifier(cfg *config.TelegramNotifyConfig, logger *zerolog.Logger) (*OperatorNotifier, error) {
	if cfg == nil || cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if len(cfg.AdminIDs) == 0 {
		return nil, errors.New("no telegram admin ids configured")
	}
	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Lang)
	if err != nil {
		return nil, err
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newOperatorNotifier(bot, cfg.AdminIDs, tr, logger), nil
}

func newOperatorNotifier(bot sender, adminIDs []int64, tr *i18n.Translator, logger *zerolog.Logger) *OperatorNotifier {
	if tr == nil {
		tr = i18n.MustDefault()
	}
	return &OperatorNotifier{bot: bot, adminIDs: adminIDs, tr: tr, log: logger}
}

func (n *OperatorNotifier) NotifyUnresolved(ctx context.Context, u *model.UnresolvedPayment) error {
	text := unresolvedMessage(n.tr, u)
	var errs []error
	for _, id := range n.adminIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(id, text)
		msg.DisableWebPagePreview = true
		if _, err := n.bot.Send(msg); err != nil {
			metrics.IncOperatorNotification("error")
			n.log.Warn().Err(err).Int64("chat_id", id).Str("unresolved_id", u.ID).Msg("telegram send failed")
			errs = append(errs, err)
			continue
		}
		metrics.IncOperatorNotification("sent")
	}
	return errors.Join(errs...)
}

func unresolvedMessage(tr *i18n.Translator, u *model.UnresolvedPayment) string {
	lines := []string{
		tr.T("unresolved_title"),
		tr.T("unresolved_id", u.ID),
		tr.T("unresolved_amount", u.Amount),
		tr.T("unresolved_received", u.ReceivedAt.In(model.MarketZone).Format("2006-01-02 15:04:05 -07:00")),
	}
	if len(u.PotentialReferences) == 0 {
		lines = append(lines, tr.T("unresolved_no_candidates"))
	} else {
		lines = append(lines, tr.T("unresolved_candidates"))
		for _, c := range u.PotentialReferences {
			lines = append(lines, tr.T("unresolved_candidate_line", c.Priority, c.Ref, c.Method))
		}
	}
	lines = append(lines, tr.T("unresolved_hint"))
	return strings.Join(lines, "\n")
}
