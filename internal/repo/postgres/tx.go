package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
	if pool == nil {
		return errors.New("postgres pool is nil")
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// AcquirePairLock serializes writers touching the same unordered user pair
// for the rest of the transaction. Both orderings map to the same key, so
// two concurrent reciprocal likes cannot both miss the other's row.
func AcquirePairLock(ctx context.Context, tx pgx.Tx, userA, userB int64) error {
	if tx == nil {
		return errors.New("transaction is required")
	}

	a, b := userA, userB
	if a > b {
		a, b = b, a
	}

	key := fmt.Sprintf("pair:%d:%d", a, b)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("acquire pair lock: %w", err)
	}

	return nil
}

// AcquireConversationLock serializes message writes and tail repairs for
// one conversation for the rest of the transaction.
func AcquireConversationLock(ctx context.Context, tx pgx.Tx, conversationID int64) error {
	if tx == nil {
		return errors.New("transaction is required")
	}

	key := fmt.Sprintf("conversation:%d", conversationID)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("acquire conversation lock: %w", err)
	}

	return nil
}
