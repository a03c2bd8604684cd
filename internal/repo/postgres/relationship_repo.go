package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	RelationLike    = "like"
	RelationDislike = "dislike"
)

// RelationshipRepo stores the directed discovery edges. A pair (actor,
// target) holds at most one edge, so a target is never both liked and
// disliked by the same user.
type RelationshipRepo struct {
	pool *pgxpool.Pool
}

type RelationshipRecord struct {
	ActorID   int64
	TargetID  int64
	Kind      string
	CreatedAt time.Time
}

func NewRelationshipRepo(pool *pgxpool.Pool) *RelationshipRepo {
	return &RelationshipRepo{pool: pool}
}

func (r *RelationshipRepo) Get(ctx context.Context, tx pgx.Tx, actorID, targetID int64) (RelationshipRecord, bool, error) {
	if actorID <= 0 || targetID <= 0 {
		return RelationshipRecord{}, false, fmt.Errorf("invalid relationship lookup payload")
	}
	if tx == nil {
		return RelationshipRecord{}, false, fmt.Errorf("transaction is required")
	}

	var rec RelationshipRecord
	err := tx.QueryRow(ctx, `
SELECT actor_id, target_id, kind, created_at
FROM relationships
WHERE actor_id = $1 AND target_id = $2
`, actorID, targetID).Scan(&rec.ActorID, &rec.TargetID, &rec.Kind, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RelationshipRecord{}, false, nil
		}
		return RelationshipRecord{}, false, fmt.Errorf("lookup relationship: %w", err)
	}

	return rec, true, nil
}

func (r *RelationshipRepo) Insert(ctx context.Context, tx pgx.Tx, actorID, targetID int64, kind string) error {
	if actorID <= 0 || targetID <= 0 || actorID == targetID {
		return fmt.Errorf("invalid relationship payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO relationships (actor_id, target_id, kind, created_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (actor_id, target_id) DO NOTHING
`, actorID, targetID, kind); err != nil {
		return fmt.Errorf("insert relationship: %w", err)
	}

	return nil
}

// UpdateKind flips an existing edge, e.g. a dislike the user reversed
// into a like.
func (r *RelationshipRepo) UpdateKind(ctx context.Context, tx pgx.Tx, actorID, targetID int64, kind string) error {
	if actorID <= 0 || targetID <= 0 {
		return fmt.Errorf("invalid relationship payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
UPDATE relationships
SET kind = $3, created_at = NOW()
WHERE actor_id = $1 AND target_id = $2
`, actorID, targetID, kind); err != nil {
		return fmt.Errorf("update relationship kind: %w", err)
	}

	return nil
}

// DeleteLikesBetween removes the like edges in both directions. Used on
// unmatch so the pair can rediscover each other from a clean slate.
func (r *RelationshipRepo) DeleteLikesBetween(ctx context.Context, tx pgx.Tx, userID, otherID int64) error {
	if userID <= 0 || otherID <= 0 {
		return fmt.Errorf("invalid relationship delete payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
DELETE FROM relationships
WHERE kind = 'like'
  AND ((actor_id = $1 AND target_id = $2) OR (actor_id = $2 AND target_id = $1))
`, userID, otherID); err != nil {
		return fmt.Errorf("delete like edges: %w", err)
	}

	return nil
}

// DeleteDislikesOlderThan drops dislike edges older than the cutoff so
// passed-over profiles eventually re-enter each other's candidate feed.
func (r *RelationshipRepo) DeleteDislikesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, nil
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM relationships
WHERE kind = 'dislike' AND created_at < $1
`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale dislikes: %w", err)
	}

	return tag.RowsAffected(), nil
}
