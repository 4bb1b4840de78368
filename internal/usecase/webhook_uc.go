// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/domain"
	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/adapter"
	"chat-subscription-payments/internal/domain/ports/repository"
	"chat-subscription-payments/internal/infra/logging"
	"chat-subscription-payments/internal/infra/metrics"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

type WebhookUseCase interface {
	// Handle reconciles one bank notification. A miss is not an error: the
	// outcome carries the persisted unresolved record instead.
	Handle(ctx context.Context, payload *model.WebhookPayload, signature string) (*WebhookOutcome, error)
}

type WebhookOutcome struct {
	Matched          bool
	AlreadyProcessed bool
	MatchMethod      string
	Intent           *model.PaymentIntent
	PlanName         string

	// set on a miss
	Candidates []model.CandidateReference
	Amount     int64
	Unresolved *model.UnresolvedPayment
	Saved      bool
}

type webhookUC struct {
	validator  adapter.WebhookValidator
	intents    repository.PaymentIntentRepository
	unresolved repository.UnresolvedPaymentRepository
	matcher    *Matcher
	settlement *Settlement
	notifier   adapter.OperatorNotifier
	log        *zerolog.Logger
	now        model.Clock
	dev        bool
}

func NewWebhookUseCase(
	validator adapter.WebhookValidator,
	intents repository.PaymentIntentRepository,
	unresolved repository.UnresolvedPaymentRepository,
	matcher *Matcher,
	settlement *Settlement,
	notifier adapter.OperatorNotifier,
	logger *zerolog.Logger,
	now model.Clock,
) *webhookUC {
	if now == nil {
		now = model.MarketNow
	}
	return &webhookUC{
		validator:  validator,
		intents:    intents,
		unresolved: unresolved,
		matcher:    matcher,
		settlement: settlement,
		notifier:   notifier,
		log:        logger,
		now:        now,
	}
}

// SetDev logs bank narration unredacted.
func (u *webhookUC) SetDev(dev bool) { u.dev = dev }

func (u *webhookUC) Handle(ctx context.Context, payload *model.WebhookPayload, signature string) (*WebhookOutcome, error) {
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "WebhookUC.Handle")()

	if err := u.intents.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if err := u.validator.Validate(ctx, payload, signature); err != nil {
		log.Warn().Err(err).Str("validator", u.validator.Name()).Msg("webhook rejected")
		return nil, fmt.Errorf("%w: %v", domain.ErrPayloadRejected, err)
	}

	cands := ExtractReferences(payload)
	amount := payload.DeclaredAmount()
	log.Debug().Interface("candidates", cands).Int64("amount", amount).Msg("extracted references")

	match := u.matcher.Match(ctx, cands, amount)
	if match == nil {
		return u.sink(ctx, log, payload, cands, amount), nil
	}

	intent := match.Intent
	log.Info().Str("intent_id", intent.ID).Str("reference", intent.Reference).Str("match_method", match.Method).Msg("webhook matched")
	if err := u.intents.AnnotateWebhook(ctx, nil, intent.ID, payload.BankReference(), u.now(), match.Method); err != nil {
		// annotation is audit data only
		log.Warn().Err(err).Str("intent_id", intent.ID).Msg("failed to annotate intent with bank reference")
	}

	res, err := u.settlement.Settle(ctx, SettleRequest{
		IntentID:       intent.ID,
		MatchMethod:    match.Method,
		PaymentDetails: payload.Raw,
		BankReference:  payload.BankReference(),
	})
	if errors.Is(err, domain.ErrIntentAlreadyCompleted) {
		return &WebhookOutcome{
			Matched:          true,
			AlreadyProcessed: true,
			MatchMethod:      match.Method,
			Intent:           intent,
			PlanName:         u.settlement.planName(ctx, intent.PlanID),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settle intent %s: %w", intent.ID, err)
	}

	metrics.IncWebhookMatch(match.Method)
	return &WebhookOutcome{
		Matched:     true,
		MatchMethod: match.Method,
		Intent:      res.Intent,
		PlanName:    res.PlanName,
	}, nil
}

// sink stores the miss for manual triage. A failed save is logged and
// reported through Saved; the caller still gets the diagnostic outcome.
func (u *webhookUC) sink(ctx context.Context, log *zerolog.Logger, payload *model.WebhookPayload, cands []model.CandidateReference, amount int64) *WebhookOutcome {
	out := &WebhookOutcome{
		MatchMethod: PrimaryMethod(cands),
		Candidates:  cands,
		Amount:      amount,
	}
	if out.Candidates == nil {
		out.Candidates = []model.CandidateReference{}
	}

	now := u.now()
	rec := &model.UnresolvedPayment{
		ID:                  ulid.Make().String(),
		WebhookData:         payload.Raw,
		PotentialReferences: out.Candidates,
		Amount:              amount,
		ReceivedAt:          now,
		Status:              model.UnresolvedStatusUnresolved,
	}
	if err := u.unresolved.Save(ctx, nil, rec); err != nil {
		log.Error().Err(err).Msg("failed to save unresolved payment")
		return out
	}
	out.Unresolved = rec
	out.Saved = true
	log.Warn().
		Str("unresolved_id", rec.ID).
		Int64("amount", amount).
		Int("candidates", len(cands)).
		Str("content", logging.Redact(payload.Content, u.dev)).
		Msg("no intent matched; saved for manual resolution")

	if err := u.notifier.NotifyUnresolved(ctx, rec); err != nil {
		log.Warn().Err(err).Str("unresolved_id", rec.ID).Msg("failed to notify operators")
	}
	return out
}
