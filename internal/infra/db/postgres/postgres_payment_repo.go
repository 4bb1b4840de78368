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

var _ repository.PaymentIntentRepository = (*paymentIntentRepo)(nil)

const intentColumns = `id, reference, user_id, plan_id, amount, status, created_at, completed_at, webhook_received_at, bank_reference, COALESCE(match_method, ''), COALESCE(payment_details::text, '')`

type paymentIntentRepo struct {
	pool   *pgxpool.Pool
	policy retry.Policy
}

func NewPaymentIntentRepo(pool *pgxpool.Pool, policy retry.Policy) *paymentIntentRepo {
	return &paymentIntentRepo{pool: pool, policy: policy}
}

func (r *paymentIntentRepo) Ping(ctx context.Context) error {
	const q = `SELECT COUNT(*) FROM payment_transactions WHERE false;`
	return finish(r.policy.Do(ctx, func(ctx context.Context) error {
		var n int
		row, err := pickRow(ctx, r.pool, nil, q)
		if err != nil {
			return classify(err)
		}
		return classify(row.Scan(&n))
	}))
}

func (r *paymentIntentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error {
	const q = `
INSERT INTO payment_transactions (
  id, reference, user_id, plan_id, amount, status, created_at, completed_at, webhook_received_at, bank_reference, match_method, payment_details
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,''),$12::jsonb
) ON CONFLICT (id) DO UPDATE SET
  reference=$2, user_id=$3, plan_id=$4, amount=$5, status=$6, completed_at=$8, webhook_received_at=$9, bank_reference=$10, match_method=NULLIF($11,''), payment_details=$12::jsonb;`

	return finish(run(ctx, r.policy, tx, func(ctx context.Context) error {
		_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Reference, p.UserID, p.PlanID, p.Amount, string(p.Status), p.CreatedAt, p.CompletedAt, p.WebhookReceivedAt, p.BankReference, p.MatchMethod, jsonParam(p.PaymentDetails))
		return classify(err)
	}))
}

func (r *paymentIntentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentIntent, error) {
	q := `SELECT ` + intentColumns + ` FROM payment_transactions WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	return r.queryOne(ctx, tx, q+";", id)
}

func (r *paymentIntentRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.PaymentIntent, error) {
	const q = `SELECT ` + intentColumns + ` FROM payment_transactions WHERE reference=$1 LIMIT 1;`
	return r.queryOne(ctx, tx, q, reference)
}

func (r *paymentIntentRepo) FindPendingByUserAndPlan(ctx context.Context, tx repository.Tx, userID, planID string) (*model.PaymentIntent, error) {
	const q = `
SELECT ` + intentColumns + `
  FROM payment_transactions
 WHERE user_id=$1 AND plan_id=$2 AND status='pending'
 ORDER BY created_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, userID, planID)
}

func (r *paymentIntentRepo) FindPendingByReference(ctx context.Context, tx repository.Tx, reference string) (*model.PaymentIntent, error) {
	const q = `SELECT ` + intentColumns + ` FROM payment_transactions WHERE reference=$1 AND status='pending' LIMIT 1;`
	return r.queryOne(ctx, tx, q, reference)
}

func (r *paymentIntentRepo) FindPendingByReferenceContains(ctx context.Context, tx repository.Tx, fragment string) (*model.PaymentIntent, error) {
	const q = `
SELECT ` + intentColumns + `
  FROM payment_transactions
 WHERE reference ILIKE '%' || $1 || '%' AND status='pending'
 ORDER BY created_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, escapeLike(fragment))
}

func (r *paymentIntentRepo) ListPendingByReferencePrefix(ctx context.Context, tx repository.Tx, prefix string, limit int) ([]*model.PaymentIntent, error) {
	const q = `
SELECT ` + intentColumns + `
  FROM payment_transactions
 WHERE reference ILIKE $1 || '%' AND status='pending'
 ORDER BY created_at DESC
 LIMIT $2;`
	return r.queryMany(ctx, tx, q, escapeLike(prefix), normLimit(limit))
}

func (r *paymentIntentRepo) ListPendingByAmountSince(ctx context.Context, tx repository.Tx, amount int64, since time.Time, limit int) ([]*model.PaymentIntent, error) {
	const q = `
SELECT ` + intentColumns + `
  FROM payment_transactions
 WHERE amount=$1 AND status='pending' AND created_at > $2
 ORDER BY created_at DESC
 LIMIT $3;`
	return r.queryMany(ctx, tx, q, amount, since, normLimit(limit))
}

func (r *paymentIntentRepo) ListPendingByAmount(ctx context.Context, tx repository.Tx, amount int64, limit int) ([]*model.PaymentIntent, error) {
	const q = `
SELECT ` + intentColumns + `
  FROM payment_transactions
 WHERE amount=$1 AND status='pending'
 ORDER BY created_at DESC
 LIMIT $2;`
	return r.queryMany(ctx, tx, q, amount, normLimit(limit))
}

func (r *paymentIntentRepo) CountPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM payment_transactions WHERE status='pending' AND created_at < $1;`
	var n int
	err := run(ctx, r.policy, tx, func(ctx context.Context) error {
		row, err := pickRow(ctx, r.pool, tx, q, olderThan)
		if err != nil {
			return classify(err)
		}
		return classify(row.Scan(&n))
	})
	return n, finish(err)
}

// AnnotateWebhook only touches pending intents; a completed row keeps the audit
// fields of whichever path settled it.
func (r *paymentIntentRepo) AnnotateWebhook(ctx context.Context, tx repository.Tx, id string, bankReference *string, receivedAt time.Time, matchMethod string) error {
	const q = `UPDATE payment_transactions SET bank_reference=$2, webhook_received_at=$3, match_method=$4 WHERE id=$1 AND status='pending';`
	return finish(run(ctx, r.policy, tx, func(ctx context.Context) error {
		_, err := execSQL(ctx, r.pool, tx, q, id, bankReference, receivedAt, matchMethod)
		return classify(err)
	}))
}

// CompleteIfPending atomically completes the intent only when it is still pending.
// Under concurrent callers Postgres row locking lets exactly one UPDATE see 'pending'.
func (r *paymentIntentRepo) CompleteIfPending(ctx context.Context, tx repository.Tx, id string, upd model.CompletionUpdate) (bool, error) {
	const q = `
UPDATE payment_transactions
   SET status = 'completed',
       completed_at = $2,
       match_method = $3,
       payment_details = $4::jsonb,
       bank_reference = COALESCE($5, bank_reference)
 WHERE id = $1
   AND status = 'pending'`

	var affected int64
	err := run(ctx, r.policy, tx, func(ctx context.Context) error {
		cmd, err := execSQL(ctx, r.pool, tx, q, id, upd.CompletedAt, upd.MatchMethod, jsonParam(upd.PaymentDetails), upd.BankReference)
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

func (r *paymentIntentRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.PaymentIntent, error) {
	var p *model.PaymentIntent
	err := run(ctx, r.policy, tx, func(ctx context.Context) error {
		row, err := pickRow(ctx, r.pool, tx, q, args...)
		if err != nil {
			return classify(err)
		}
		p, err = scanIntent(row)
		return classify(err)
	})
	if err != nil {
		return nil, finish(err)
	}
	return p, nil
}

func (r *paymentIntentRepo) queryMany(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.PaymentIntent, error) {
	var out []*model.PaymentIntent
	err := run(ctx, r.policy, tx, func(ctx context.Context) error {
		out = out[:0]
		rows, err := queryRows(ctx, r.pool, tx, q, args...)
		if err != nil {
			return classify(err)
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanIntent(rows)
			if err != nil {
				return classify(err)
			}
			out = append(out, p)
		}
		return classify(rows.Err())
	})
	if err != nil {
		return nil, finish(err)
	}
	return out, nil
}

func scanIntent(row pgx.Row) (*model.PaymentIntent, error) {
	p := &model.PaymentIntent{}
	var status, details string
	if err := row.Scan(&p.ID, &p.Reference, &p.UserID, &p.PlanID, &p.Amount, &status, &p.CreatedAt, &p.CompletedAt, &p.WebhookReceivedAt, &p.BankReference, &p.MatchMethod, &details); err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	inMarket(&p.CreatedAt, p.CompletedAt, p.WebhookReceivedAt)
	if details != "" {
		p.PaymentDetails = json.RawMessage(details)
	}
	return p, nil
}

func normLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
