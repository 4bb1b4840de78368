// File: internal/usecase/settlement.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/domain"
	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/adapter"
	"chat-subscription-payments/internal/domain/ports/repository"
	"chat-subscription-payments/internal/infra/metrics"
)

// SettleRequest describes one intent completion.
type SettleRequest struct {
	IntentID       string
	MatchMethod    string
	PaymentDetails json.RawMessage
	BankReference  *string
	// UnresolvedID, when set, is marked resolved in the same transaction.
	UnresolvedID string
}

type SettleResult struct {
	Intent       *model.PaymentIntent
	Subscription *model.Subscription
	PlanName     string
}

// Settlement completes an intent and upgrades the subscription as one unit.
// The pending->completed flip is a conditional write, so concurrent callers
// for the same intent see exactly one winner; the losers get
// domain.ErrIntentAlreadyCompleted and nothing else is written.
type Settlement struct {
	tm         repository.TransactionManager
	intents    repository.PaymentIntentRepository
	unresolved repository.UnresolvedPaymentRepository
	plans      repository.SubscriptionPlanRepository
	upgrader   *SubscriptionUpgrader
	cache      adapter.SubscriptionInfoCache
	currency   string
	fallback   string
	log        *zerolog.Logger
	now        model.Clock
}

type SettlementConfig struct {
	Currency        string
	DefaultPlanName string
}

func NewSettlement(
	tm repository.TransactionManager,
	intents repository.PaymentIntentRepository,
	unresolved repository.UnresolvedPaymentRepository,
	plans repository.SubscriptionPlanRepository,
	upgrader *SubscriptionUpgrader,
	cache adapter.SubscriptionInfoCache,
	cfg SettlementConfig,
	logger *zerolog.Logger,
	now model.Clock,
) *Settlement {
	if now == nil {
		now = model.MarketNow
	}
	if cfg.DefaultPlanName == "" {
		cfg.DefaultPlanName = "Pro"
	}
	return &Settlement{
		tm:         tm,
		intents:    intents,
		unresolved: unresolved,
		plans:      plans,
		upgrader:   upgrader,
		cache:      cache,
		currency:   cfg.Currency,
		fallback:   cfg.DefaultPlanName,
		log:        logger,
		now:        now,
	}
}

func (s *Settlement) Settle(ctx context.Context, req SettleRequest) (*SettleResult, error) {
	var res SettleResult
	err := s.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		intent, err := s.intents.FindByID(ctx, tx, req.IntentID)
		if err != nil {
			return err
		}
		if intent.UserID == "" || intent.PlanID == "" {
			return domain.ErrIntentIncomplete
		}
		if !intent.IsPending() {
			return domain.ErrIntentAlreadyCompleted
		}

		now := s.now()
		upd := model.CompletionUpdate{
			CompletedAt:    now,
			MatchMethod:    req.MatchMethod,
			PaymentDetails: req.PaymentDetails,
			BankReference:  req.BankReference,
		}
		ok, err := s.intents.CompleteIfPending(ctx, tx, intent.ID, upd)
		if err != nil {
			return fmt.Errorf("complete intent: %w", err)
		}
		if !ok {
			return domain.ErrIntentAlreadyCompleted
		}

		sub, err := s.upgrader.Upgrade(ctx, tx, intent.UserID, intent.PlanID)
		if err != nil {
			return err
		}

		if req.UnresolvedID != "" {
			ok, err := s.unresolved.MarkResolvedIfUnresolved(ctx, tx, req.UnresolvedID, intent.ID, now)
			if err != nil {
				return fmt.Errorf("mark unresolved payment: %w", err)
			}
			if !ok {
				return domain.ErrAlreadyResolved
			}
		}

		intent.Status = model.PaymentStatusCompleted
		intent.CompletedAt = &now
		intent.MatchMethod = req.MatchMethod
		intent.PaymentDetails = req.PaymentDetails
		if req.BankReference != nil {
			intent.BankReference = req.BankReference
		}
		res.Intent = intent
		res.Subscription = sub
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrIntentAlreadyCompleted) {
			s.log.Info().Str("intent_id", req.IntentID).Msg("intent already completed; skipping upgrade")
		}
		return nil, err
	}

	res.PlanName = s.planName(ctx, res.Intent.PlanID)
	if err := s.cache.Invalidate(ctx, res.Intent.UserID); err != nil {
		s.log.Warn().Err(err).Str("user_id", res.Intent.UserID).Msg("failed to invalidate subscription info cache")
	}

	status := "completed"
	if req.MatchMethod == model.MatchMethodManual {
		status = "manual"
	}
	metrics.IncPayment(status)
	metrics.AddPaymentRevenue(s.currency, res.Intent.Amount)
	metrics.IncSubscriptionUpgraded(res.PlanName)
	return &res, nil
}

func (s *Settlement) planName(ctx context.Context, planID string) string {
	plan, err := s.plans.FindByID(ctx, nil, planID)
	if err != nil || plan.IsZero() || plan.Name == "" {
		if err != nil {
			s.log.Warn().Err(err).Str("plan_id", planID).Msg("plan lookup failed; using default name")
		}
		return s.fallback
	}
	return plan.Name
}
