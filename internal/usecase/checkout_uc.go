// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/domain"
	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/repository"
	"chat-subscription-payments/internal/infra/logging"
	"chat-subscription-payments/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

const maxReferenceAttempts = 5

type CheckoutUseCase interface {
	// Begin returns the user's pending intent for the plan, creating one if needed.
	Begin(ctx context.Context, userID, planID string) (*CheckoutResult, error)
	// Status reports an intent the user owns, looked up by reference.
	Status(ctx context.Context, userID, reference string) (*model.PaymentIntent, error)
}

type CheckoutResult struct {
	Intent *model.PaymentIntent
	Plan   *model.SubscriptionPlan
	QRURL  string
	Reused bool
}

type checkoutUC struct {
	intents    repository.PaymentIntentRepository
	plans      repository.SubscriptionPlanRepository
	gen        *ReferenceGenerator
	qrTemplate string
	log        *zerolog.Logger
	now        model.Clock
}

func NewCheckoutUseCase(
	intents repository.PaymentIntentRepository,
	plans repository.SubscriptionPlanRepository,
	gen *ReferenceGenerator,
	qrTemplate string,
	logger *zerolog.Logger,
	now model.Clock,
) *checkoutUC {
	if now == nil {
		now = model.MarketNow
	}
	return &checkoutUC{
		intents:    intents,
		plans:      plans,
		gen:        gen,
		qrTemplate: qrTemplate,
		log:        logger,
		now:        now,
	}
}

func (u *checkoutUC) Begin(ctx context.Context, userID, planID string) (*CheckoutResult, error) {
	if userID == "" || planID == "" {
		return nil, domain.ErrInvalidArgument
	}
	plan, err := u.plans.FindByID(ctx, nil, planID)
	if err != nil {
		return nil, err
	}

	existing, err := u.intents.FindPendingByUserAndPlan(ctx, nil, userID, planID)
	switch {
	case err == nil:
		return &CheckoutResult{Intent: existing, Plan: plan, QRURL: u.qrURL(existing), Reused: true}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	// The unique index on reference is the collision detector.
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		ref, err := u.gen.Generate()
		if err != nil {
			return nil, err
		}
		intent, err := model.NewPaymentIntent(uuid.NewString(), ref, userID, planID, plan.Price, u.now())
		if err != nil {
			return nil, err
		}
		err = u.intents.Save(ctx, nil, intent)
		if errors.Is(err, domain.ErrAlreadyExists) {
			u.log.Debug().Str("reference", ref).Msg("reference collision; regenerating")
			continue
		}
		if err != nil {
			return nil, err
		}

		metrics.IncPayment("initiated")
		logging.With(logging.WithReference(ctx, ref), u.log).Info().Str("plan_id", planID).Int64("amount", plan.Price).Msg("payment intent created")
		return &CheckoutResult{Intent: intent, Plan: plan, QRURL: u.qrURL(intent)}, nil
	}
	return nil, domain.ErrReferenceCollision
}

func (u *checkoutUC) Status(ctx context.Context, userID, reference string) (*model.PaymentIntent, error) {
	intent, err := u.intents.FindByReference(ctx, nil, reference)
	if err != nil {
		return nil, err
	}
	// other users' intents look absent
	if intent.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return intent, nil
}

func (u *checkoutUC) qrURL(p *model.PaymentIntent) string {
	if u.qrTemplate == "" {
		return ""
	}
	r := strings.NewReplacer(
		"{reference}", url.QueryEscape(p.Reference),
		"{amount}", strconv.FormatInt(p.Amount, 10),
	)
	return r.Replace(u.qrTemplate)
}
