// File: internal/usecase/matcher.go
package usecase

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/domain"
	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/repository"
)

const (
	MatchAmount          = "amount_match"
	MatchTxnPrefix       = "txn_prefix_match"
	MatchTxnPrefixAmount = "txn_prefix_amount_match"

	minPartialLen   = 5
	prefixTierLimit = 5
	amountWindow    = 24 * time.Hour
)

// MatchResult is the intent a webhook was bound to and the tier that bound it.
type MatchResult struct {
	Intent *model.PaymentIntent
	Method string
}

// Matcher binds a webhook to a pending intent through four tiers, cheapest
// and most specific first. A store error inside a tier only ends that tier.
type Matcher struct {
	intents repository.PaymentIntentRepository
	log     *zerolog.Logger
	now     model.Clock
}

func NewMatcher(intents repository.PaymentIntentRepository, logger *zerolog.Logger, now model.Clock) *Matcher {
	if now == nil {
		now = model.MarketNow
	}
	return &Matcher{intents: intents, log: logger, now: now}
}

// Match returns nil when every tier misses.
func (m *Matcher) Match(ctx context.Context, cands []model.CandidateReference, amount int64) *MatchResult {
	if r := m.exact(ctx, cands); r != nil {
		return r
	}
	if r := m.partial(ctx, cands); r != nil {
		return r
	}
	if len(cands) > 0 {
		if r := m.prefix(ctx, amount); r != nil {
			return r
		}
	}
	return m.byAmount(ctx, amount)
}

func (m *Matcher) exact(ctx context.Context, cands []model.CandidateReference) *MatchResult {
	for _, c := range cands {
		p, err := m.intents.FindPendingByReference(ctx, nil, c.Ref)
		if err != nil {
			m.tierError("exact", c.Ref, err)
			continue
		}
		return &MatchResult{Intent: p, Method: "exact_match_" + c.Method}
	}
	return nil
}

func (m *Matcher) partial(ctx context.Context, cands []model.CandidateReference) *MatchResult {
	for _, c := range cands {
		if utf8.RuneCountInString(c.Ref) < minPartialLen {
			continue
		}
		p, err := m.intents.FindPendingByReferenceContains(ctx, nil, c.Ref)
		if err != nil {
			m.tierError("partial", c.Ref, err)
			continue
		}
		return &MatchResult{Intent: p, Method: "partial_match_" + c.Method}
	}
	return nil
}

func (m *Matcher) prefix(ctx context.Context, amount int64) *MatchResult {
	list, err := m.intents.ListPendingByReferencePrefix(ctx, nil, ReferencePrefix, prefixTierLimit)
	if err != nil {
		m.tierError("prefix", ReferencePrefix, err)
		return nil
	}
	if len(list) == 0 {
		return nil
	}
	for _, p := range list {
		if p.Amount == amount {
			return &MatchResult{Intent: p, Method: MatchTxnPrefixAmount}
		}
	}
	return &MatchResult{Intent: list[0], Method: MatchTxnPrefix}
}

func (m *Matcher) byAmount(ctx context.Context, amount int64) *MatchResult {
	if amount <= 0 {
		return nil
	}
	list, err := m.intents.ListPendingByAmountSince(ctx, nil, amount, m.now().Add(-amountWindow), 1)
	if err != nil {
		m.tierError("amount", "", err)
		return nil
	}
	if len(list) == 0 {
		return nil
	}
	return &MatchResult{Intent: list[0], Method: MatchAmount}
}

func (m *Matcher) tierError(tier, ref string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	m.log.Warn().Err(err).Str("tier", tier).Str("candidate", ref).Msg("matcher tier failed; treating as miss")
}
