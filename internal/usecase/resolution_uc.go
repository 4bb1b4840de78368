// File: internal/usecase/resolution_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/domain"
	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/adapter"
	"chat-subscription-payments/internal/domain/ports/repository"
	"chat-subscription-payments/internal/infra/logging"
)

// Compile-time check
var _ ResolutionUseCase = (*resolutionUC)(nil)

var (
	ErrUnresolvedPaymentNotFound = errors.New("unresolved payment not found")
	ErrTransactionNotFound       = errors.New("transaction not found")
)

const (
	resolutionCandidateLimit = 10
	resolutionLockTTL        = 60 * time.Second
)

type ResolutionUseCase interface {
	// List returns every unresolved payment, newest first.
	List(ctx context.Context) ([]*model.UnresolvedPayment, error)
	// Get returns one unresolved payment and pending intents of the same amount.
	Get(ctx context.Context, unresolvedID string) (*model.UnresolvedPayment, []*model.PaymentIntent, error)
	// Resolve binds an unresolved payment to an intent and settles it.
	Resolve(ctx context.Context, unresolvedID, intentID string) (*SettleResult, error)
}

type resolutionUC struct {
	unresolved repository.UnresolvedPaymentRepository
	intents    repository.PaymentIntentRepository
	settlement *Settlement
	locker     adapter.Locker
	log        *zerolog.Logger
}

func NewResolutionUseCase(
	unresolved repository.UnresolvedPaymentRepository,
	intents repository.PaymentIntentRepository,
	settlement *Settlement,
	locker adapter.Locker,
	logger *zerolog.Logger,
) *resolutionUC {
	return &resolutionUC{
		unresolved: unresolved,
		intents:    intents,
		settlement: settlement,
		locker:     locker,
		log:        logger,
	}
}

func (u *resolutionUC) List(ctx context.Context) ([]*model.UnresolvedPayment, error) {
	list, err := u.unresolved.ListUnresolved(ctx, nil)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*model.UnresolvedPayment{}
	}
	return list, nil
}

func (u *resolutionUC) Get(ctx context.Context, unresolvedID string) (*model.UnresolvedPayment, []*model.PaymentIntent, error) {
	rec, err := u.unresolved.FindByID(ctx, nil, unresolvedID)
	if err != nil {
		return nil, nil, err
	}
	cands, err := u.intents.ListPendingByAmount(ctx, nil, rec.Amount, resolutionCandidateLimit)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, err
	}
	if cands == nil {
		cands = []*model.PaymentIntent{}
	}
	return rec, cands, nil
}

func (u *resolutionUC) Resolve(ctx context.Context, unresolvedID, intentID string) (*SettleResult, error) {
	if unresolvedID == "" || intentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	log := logging.With(ctx, u.log)

	key := "lock:resolution:" + unresolvedID
	token, err := u.locker.TryLock(ctx, key, resolutionLockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to release resolution lock")
		}
	}()

	rec, err := u.unresolved.FindByID(ctx, nil, unresolvedID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrUnresolvedPaymentNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("unresolved payment: %w", err)
	}
	if rec.Status == model.UnresolvedStatusResolved {
		return nil, domain.ErrAlreadyResolved
	}
	if _, err := u.intents.FindByID(ctx, nil, intentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrTransactionNotFound, err)
		}
		return nil, fmt.Errorf("transaction: %w", err)
	}

	res, err := u.settlement.Settle(ctx, SettleRequest{
		IntentID:       intentID,
		MatchMethod:    model.MatchMethodManual,
		PaymentDetails: rec.WebhookData,
		BankReference:  rec.ReferenceCode(),
		UnresolvedID:   rec.ID,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("unresolved_id", rec.ID).Str("intent_id", intentID).Msg("payment manually resolved")
	return res, nil
}
