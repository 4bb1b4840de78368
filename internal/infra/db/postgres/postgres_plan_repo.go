package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/repository"
	"chat-subscription-payments/internal/infra/retry"
)

// Ensure interface compliance
var _ repository.SubscriptionPlanRepository = (*PostgresPlanRepo)(nil)

type PostgresPlanRepo struct {
	pool   *pgxpool.Pool
	policy retry.Policy
}

func NewPostgresPlanRepo(pool *pgxpool.Pool, policy retry.Policy) *PostgresPlanRepo {
	return &PostgresPlanRepo{pool: pool, policy: policy}
}

func (r *PostgresPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	const sql = `
SELECT id, name, COALESCE(description, ''), price, message_limit
  FROM subscription_plans
 WHERE id = $1;
`
	var p model.SubscriptionPlan
	err := run(ctx, r.policy, tx, func(ctx context.Context) error {
		row, err := pickRow(ctx, r.pool, tx, sql, id)
		if err != nil {
			return classify(err)
		}
		return classify(row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.MessageLimit))
	})
	if err != nil {
		return nil, finish(err)
	}
	return &p, nil
}

func (r *PostgresPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPlan, error) {
	const sql = `
SELECT id, name, COALESCE(description, ''), price, message_limit
  FROM subscription_plans
 ORDER BY price ASC;
`
	var out []*model.SubscriptionPlan
	err := run(ctx, r.policy, tx, func(ctx context.Context) error {
		out = out[:0]
		rows, err := queryRows(ctx, r.pool, tx, sql)
		if err != nil {
			return classify(err)
		}
		defer rows.Close()
		for rows.Next() {
			var p model.SubscriptionPlan
			if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.MessageLimit); err != nil {
				return classify(err)
			}
			out = append(out, &p)
		}
		return classify(rows.Err())
	})
	if err != nil {
		return nil, finish(err)
	}
	return out, nil
}
