package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/domain/ports/repository"
	"chat-subscription-payments/internal/infra/db/postgres"
	"chat-subscription-payments/internal/infra/metrics"
)

// BacklogReporter periodically publishes how much reconciliation work is
// waiting on humans: unresolved payments, and pending intents old enough
// that their transfer probably went astray.
type BacklogReporter struct {
	intents    repository.PaymentIntentRepository
	unresolved repository.UnresolvedPaymentRepository
	pool       *pgxpool.Pool
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending intent must be to count as stale
	log        *zerolog.Logger
	now        func() time.Time
}

func NewBacklogReporter(intents repository.PaymentIntentRepository, unresolved repository.UnresolvedPaymentRepository, pool *pgxpool.Pool, interval, staleAfter time.Duration, logger *zerolog.Logger) *BacklogReporter {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	return &BacklogReporter{
		intents:    intents,
		unresolved: unresolved,
		pool:       pool,
		interval:   interval,
		staleAfter: staleAfter,
		log:        logger,
		now:        time.Now,
	}
}

func (w *BacklogReporter) Start(ctx context.Context) {
	w.tick(ctx)
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *BacklogReporter) tick(ctx context.Context) {
	if n, err := w.unresolved.CountUnresolved(ctx, nil); err != nil {
		w.log.Warn().Err(err).Msg("backlog-reporter: count unresolved failed")
	} else {
		metrics.SetUnresolvedBacklog(n)
		if n > 0 {
			w.log.Info().Int("unresolved", n).Msg("backlog-reporter: payments awaiting manual resolution")
		}
	}

	cutoff := w.now().Add(-w.staleAfter)
	if n, err := w.intents.CountPendingOlderThan(ctx, nil, cutoff); err != nil {
		w.log.Warn().Err(err).Msg("backlog-reporter: count stale intents failed")
	} else {
		metrics.SetStalePendingIntents(n)
	}

	if w.pool != nil {
		postgres.ReportPoolStats(w.pool)
	}
}
