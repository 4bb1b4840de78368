package postgres

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"chat-subscription-payments/internal/domain"
	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/repository"
	"chat-subscription-payments/internal/infra/retry"
)

const pgUniqueViolation = "23505"

func execSQL(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, q string, args ...interface{}) (pgconn.CommandTag, error) {
	ex, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	return ex.Exec(ctx, q, args...)
}

func pickRow(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, q string, args ...interface{}) (pgx.Row, error) {
	ex, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	return ex.QueryRow(ctx, q, args...), nil
}

func queryRows(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, q string, args ...interface{}) (pgx.Rows, error) {
	ex, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	return ex.Query(ctx, q, args...)
}

// run executes fn under the retry policy when it goes straight to the pool.
// Inside a transaction a failed statement aborts the tx, so there is one attempt.
func run(ctx context.Context, policy retry.Policy, tx repository.Tx, fn func(ctx context.Context) error) error {
	if _, inTx := tx.(pgx.Tx); inTx {
		return fn(ctx)
	}
	return policy.Do(ctx, fn)
}

// classify maps driver errors onto domain errors. Errors that retrying cannot
// fix are marked permanent.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return retry.Permanent(domain.ErrNotFound)
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
		return retry.Permanent(err)
	case isUniqueViolation(err):
		return retry.Permanent(fmt.Errorf("%w: %v", domain.ErrAlreadyExists, err))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && !retryableClass(pgErr.Code) {
		// constraint, syntax and data errors will fail the same way again
		return retry.Permanent(wrapOpErr(err))
	}
	return err
}

// finish turns whatever run returned into the repository's error contract.
func finish(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidExecContext),
		errors.Is(err, domain.ErrOperationFailed),
		errors.Is(err, domain.ErrReadDatabaseRow):
		return err
	default:
		return wrapOpErr(err)
	}
}

func wrapOpErr(err error) error {
	if err == nil || errors.Is(err, domain.ErrOperationFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
}

// retryableClass reports SQLSTATE classes worth another attempt:
// connection exceptions, operator intervention and transaction rollbacks.
func retryableClass(code string) bool {
	return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57") || strings.HasPrefix(code, "40")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// escapeLike quotes LIKE metacharacters so fragment matches literally.
func escapeLike(fragment string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(fragment)
}

// inMarket rewrites scanned timestamps into the market zone; pgx hands
// timestamptz back in time.Local. Nil pointers are skipped.
func inMarket(ts ...*time.Time) {
	for _, t := range ts {
		if t != nil && !t.IsZero() {
			*t = t.In(model.MarketZone)
		}
	}
}

func hashToInt64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & ((1 << 63) - 1))
}

func jsonParam(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
