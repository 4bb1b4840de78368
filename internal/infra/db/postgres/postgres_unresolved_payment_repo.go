package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/repository"
	"chat-subscription-payments/internal/infra/retry"
)

var _ repository.UnresolvedPaymentRepository = (*unresolvedPaymentRepo)(nil)

const unresolvedColumns = `id, webhook_data::text, COALESCE(potential_references::text, '[]'), amount, received_at, status, resolved_at, resolved_transaction_id`

type unresolvedPaymentRepo struct {
	pool   *pgxpool.Pool
	policy retry.Policy
}

func NewUnresolvedPaymentRepo(pool *pgxpool.Pool, policy retry.Policy) *unresolvedPaymentRepo {
	return &unresolvedPaymentRepo{pool: pool, policy: policy}
}

func (r *unresolvedPaymentRepo) Save(ctx context.Context, tx repository.Tx, u *model.UnresolvedPayment) error {
	refs, err := json.Marshal(u.PotentialReferences)
	if err != nil {
		return err
	}
	webhook := u.WebhookData
	if len(webhook) == 0 {
		webhook = json.RawMessage(`{}`)
	}
	const q = `
INSERT INTO unresolved_payments (
  id, webhook_data, potential_references, amount, received_at, status, resolved_at, resolved_transaction_id
) VALUES ($1,$2::jsonb,$3::jsonb,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  status=$6, resolved_at=$7, resolved_transaction_id=$8;`

	return finish(run(ctx, r.policy, tx, func(ctx context.Context) error {
		_, err := execSQL(ctx, r.pool, tx, q, u.ID, string(webhook), string(refs), u.Amount, u.ReceivedAt, string(u.Status), u.ResolvedAt, u.ResolvedTransactionID)
		return classify(err)
	}))
}

func (r *unresolvedPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.UnresolvedPayment, error) {
	q := `SELECT ` + unresolvedColumns + ` FROM unresolved_payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	var u *model.UnresolvedPayment
	err := run(ctx, r.policy, tx, func(ctx context.Context) error {
		row, err := pickRow(ctx, r.pool, tx, q+";", id)
		if err != nil {
			return classify(err)
		}
		u, err = scanUnresolved(row)
		return classify(err)
	})
	if err != nil {
		return nil, finish(err)
	}
	return u, nil
}

func (r *unresolvedPaymentRepo) ListUnresolved(ctx context.Context, tx repository.Tx) ([]*model.UnresolvedPayment, error) {
	const q = `SELECT ` + unresolvedColumns + ` FROM unresolved_payments WHERE status='unresolved' ORDER BY received_at DESC;`
	var out []*model.UnresolvedPayment
	err := run(ctx, r.policy, tx, func(ctx context.Context) error {
		out = out[:0]
		rows, err := queryRows(ctx, r.pool, tx, q)
		if err != nil {
			return classify(err)
		}
		defer rows.Close()
		for rows.Next() {
			u, err := scanUnresolved(rows)
			if err != nil {
				return classify(err)
			}
			out = append(out, u)
		}
		return classify(rows.Err())
	})
	if err != nil {
		return nil, finish(err)
	}
	return out, nil
}

func (r *unresolvedPaymentRepo) CountUnresolved(ctx context.Context, tx repository.Tx) (int, error) {
	const q = `SELECT COUNT(*) FROM unresolved_payments WHERE status='unresolved';`
	var n int
	err := run(ctx, r.policy, tx, func(ctx context.Context) error {
		row, err := pickRow(ctx, r.pool, tx, q)
		if err != nil {
			return classify(err)
		}
		return classify(row.Scan(&n))
	})
	return n, finish(err)
}

func (r *unresolvedPaymentRepo) MarkResolvedIfUnresolved(ctx context.Context, tx repository.Tx, id, transactionID string, at time.Time) (bool, error) {
	const q = `
UPDATE unresolved_payments
   SET status = 'resolved',
       resolved_at = $3,
       resolved_transaction_id = $2
 WHERE id = $1
   AND status = 'unresolved'`

	var affected int64
	err := run(ctx, r.policy, tx, func(ctx context.Context) error {
		cmd, err := execSQL(ctx, r.pool, tx, q, id, transactionID, at)
		if err != nil {
			return classify(err)
		}
		affected = cmd.RowsAffected()
		return nil
	})
	if err != nil {
		return false, finish(err)
	}
	return affected == 1, nil
}

func scanUnresolved(row pgx.Row) (*model.UnresolvedPayment, error) {
	u := &model.UnresolvedPayment{}
	var webhook, refs, status string
	if err := row.Scan(&u.ID, &webhook, &refs, &u.Amount, &u.ReceivedAt, &status, &u.ResolvedAt, &u.ResolvedTransactionID); err != nil {
		return nil, err
	}
	u.WebhookData = json.RawMessage(webhook)
	u.Status = model.UnresolvedStatus(status)
	inMarket(&u.ReceivedAt, u.ResolvedAt)
	if err := json.Unmarshal([]byte(refs), &u.PotentialReferences); err != nil {
		return nil, err
	}
	return u, nil
}
