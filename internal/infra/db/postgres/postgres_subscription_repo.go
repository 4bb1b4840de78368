package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"chat-subscription-payments/internal/domain"
	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/repository"
	"chat-subscription-payments/internal/infra/retry"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool   *pgxpool.Pool
	policy retry.Policy
}

func NewSubscriptionRepo(pool *pgxpool.Pool, policy retry.Policy) *subscriptionRepo {
	return &subscriptionRepo{pool: pool, policy: policy}
}

// LockUser takes a transaction-scoped advisory lock keyed by the user id.
func (r *subscriptionRepo) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	t, ok := tx.(pgx.Tx)
	if !ok {
		return domain.ErrInvalidExecContext
	}
	if _, err := t.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64("subscription:"+userID)); err != nil {
		return wrapOpErr(err)
	}
	return nil
}

func (r *subscriptionRepo) DeactivateActiveByUser(ctx context.Context, tx repository.Tx, userID string, at time.Time) (int64, error) {
	const q = `UPDATE user_subscriptions SET is_active=false, updated_at=$2 WHERE user_id=$1 AND is_active=true;`
	var n int64
	err := run(ctx, r.policy, tx, func(ctx context.Context) error {
		cmd, err := execSQL(ctx, r.pool, tx, q, userID, at)
		if err != nil {
			return classify(err)
		}
		n = cmd.RowsAffected()
		return nil
	})
	return n, finish(err)
}

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO user_subscriptions (
  id, user_id, plan_id, start_date, is_active, messages_used, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  user_id=$2, plan_id=$3, start_date=$4, is_active=$5, messages_used=$6, updated_at=$8;`

	return finish(run(ctx, r.policy, tx, func(ctx context.Context) error {
		_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.UserID, s.PlanID, s.StartDate, s.IsActive, s.MessagesUsed, s.CreatedAt, s.UpdatedAt)
		return classify(err)
	}))
}

func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	const q = `
SELECT id, user_id, plan_id, start_date, is_active, messages_used, created_at, updated_at
  FROM user_subscriptions
 WHERE user_id=$1 AND is_active=true
 ORDER BY created_at DESC
 LIMIT 1;`
	var s *model.Subscription
	err := run(ctx, r.policy, tx, func(ctx context.Context) error {
		row, err := pickRow(ctx, r.pool, tx, q, userID)
		if err != nil {
			return classify(err)
		}
		s = &model.Subscription{}
		if err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.StartDate, &s.IsActive, &s.MessagesUsed, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return classify(err)
		}
		inMarket(&s.StartDate, &s.CreatedAt, &s.UpdatedAt)
		return nil
	})
	if err != nil {
		return nil, finish(err)
	}
	return s, nil
}

func (r *subscriptionRepo) CountActiveByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	const q = `SELECT COUNT(*) FROM user_subscriptions WHERE user_id=$1 AND is_active=true;`
	var n int
	err := run(ctx, r.policy, tx, func(ctx context.Context) error {
		row, err := pickRow(ctx, r.pool, tx, q, userID)
		if err != nil {
			return classify(err)
		}
		return classify(row.Scan(&n))
	})
	return n, finish(err)
}
