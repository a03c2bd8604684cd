package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrConversationNotFound = errors.New("conversation not found")

type ConversationRepo struct {
	pool *pgxpool.Pool
}

type ConversationRecord struct {
	ID                  int64
	UserAID             int64
	UserBID             int64
	IsActive            bool
	LastMessageContent  *string
	LastMessageSenderID *int64
	LastMessageAt       *time.Time
	CreatedAt           time.Time
}

// ConversationListRecord carries the counterpart card alongside the
// conversation for the inbox view.
type ConversationListRecord struct {
	ConversationRecord
	CounterpartID        int64
	CounterpartFirstName string
	CounterpartLastName  string
	CounterpartPhotoURL  *string
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (c ConversationRecord) HasParticipant(userID int64) bool {
	return c.UserAID == userID || c.UserBID == userID
}

func (c ConversationRecord) CounterpartOf(userID int64) int64 {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

// GetOrCreate returns the pair's conversation, inserting the normalized
// row on first contact. The unique pair index makes a concurrent double
// create converge on one row.
func (r *ConversationRepo) GetOrCreate(ctx context.Context, tx pgx.Tx, userID, otherID int64) (ConversationRecord, bool, error) {
	if userID <= 0 || otherID <= 0 || userID == otherID {
		return ConversationRecord{}, false, fmt.Errorf("invalid conversation pair")
	}
	if tx == nil {
		return ConversationRecord{}, false, fmt.Errorf("transaction is required")
	}

	userA, userB := normalizePair(userID, otherID)

	var conv ConversationRecord
	err := tx.QueryRow(ctx, `
INSERT INTO conversations (user_a_id, user_b_id, created_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_a_id, user_b_id) DO NOTHING
RETURNING id, user_a_id, user_b_id, is_active,
          last_message_content, last_message_sender_id, last_message_at, created_at
`, userA, userB).Scan(
		&conv.ID, &conv.UserAID, &conv.UserBID, &conv.IsActive,
		&conv.LastMessageContent, &conv.LastMessageSenderID, &conv.LastMessageAt, &conv.CreatedAt,
	)
	if err == nil {
		return conv, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return ConversationRecord{}, false, fmt.Errorf("create conversation: %w", err)
	}

	err = tx.QueryRow(ctx, `
SELECT id, user_a_id, user_b_id, is_active,
       last_message_content, last_message_sender_id, last_message_at, created_at
FROM conversations
WHERE user_a_id = $1 AND user_b_id = $2
`, userA, userB).Scan(
		&conv.ID, &conv.UserAID, &conv.UserBID, &conv.IsActive,
		&conv.LastMessageContent, &conv.LastMessageSenderID, &conv.LastMessageAt, &conv.CreatedAt,
	)
	if err != nil {
		return ConversationRecord{}, false, fmt.Errorf("get conversation by pair: %w", err)
	}

	return conv, false, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, conversationID int64) (ConversationRecord, error) {
	if conversationID <= 0 {
		return ConversationRecord{}, fmt.Errorf("invalid conversation id")
	}
	if r.pool == nil {
		return ConversationRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var conv ConversationRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, user_a_id, user_b_id, is_active,
       last_message_content, last_message_sender_id, last_message_at, created_at
FROM conversations
WHERE id = $1
`, conversationID).Scan(
		&conv.ID, &conv.UserAID, &conv.UserBID, &conv.IsActive,
		&conv.LastMessageContent, &conv.LastMessageSenderID, &conv.LastMessageAt, &conv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConversationRecord{}, ErrConversationNotFound
		}
		return ConversationRecord{}, fmt.Errorf("get conversation: %w", err)
	}

	return conv, nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64, limit int) ([]ConversationListRecord, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 100
	}
	if r.pool == nil {
		return []ConversationListRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	c.id, c.user_a_id, c.user_b_id, c.is_active,
	c.last_message_content, c.last_message_sender_id, c.last_message_at, c.created_at,
	p.user_id,
	p.first_name,
	p.last_name,
	(SELECT ph.url FROM photos ph WHERE ph.user_id = p.user_id AND ph.is_main LIMIT 1)
FROM conversations c
JOIN profiles p ON p.user_id = CASE WHEN c.user_a_id = $1 THEN c.user_b_id ELSE c.user_a_id END
WHERE (c.user_a_id = $1 OR c.user_b_id = $1)
  AND c.is_active
ORDER BY COALESCE(c.last_message_at, c.created_at) DESC, c.id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	items := make([]ConversationListRecord, 0, limit)
	for rows.Next() {
		var item ConversationListRecord
		if err := rows.Scan(
			&item.ID, &item.UserAID, &item.UserBID, &item.IsActive,
			&item.LastMessageContent, &item.LastMessageSenderID, &item.LastMessageAt, &item.CreatedAt,
			&item.CounterpartID,
			&item.CounterpartFirstName,
			&item.CounterpartLastName,
			&item.CounterpartPhotoURL,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate conversations: %w", rows.Err())
	}

	return items, nil
}

// RecomputeLastMessage rebuilds the denormalized tail from the messages
// table. Every write path that can move the tail goes through this one
// statement instead of hand-assembling the preview.
func (r *ConversationRepo) RecomputeLastMessage(ctx context.Context, tx pgx.Tx, conversationID int64) error {
	if conversationID <= 0 {
		return fmt.Errorf("invalid conversation id")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
UPDATE conversations SET
	last_message_content = tail.content,
	last_message_sender_id = tail.sender_id,
	last_message_at = tail.created_at
FROM (
	SELECT
		(SELECT m.content    FROM messages m WHERE m.conversation_id = $1 ORDER BY m.created_at DESC, m.id DESC LIMIT 1) AS content,
		(SELECT m.sender_id  FROM messages m WHERE m.conversation_id = $1 ORDER BY m.created_at DESC, m.id DESC LIMIT 1) AS sender_id,
		(SELECT m.created_at FROM messages m WHERE m.conversation_id = $1 ORDER BY m.created_at DESC, m.id DESC LIMIT 1) AS created_at
) AS tail
WHERE conversations.id = $1
`, conversationID); err != nil {
		return fmt.Errorf("recompute conversation tail: %w", err)
	}

	return nil
}

// Reactivate reopens a conversation that an earlier unmatch closed.
func (r *ConversationRepo) Reactivate(ctx context.Context, tx pgx.Tx, conversationID int64) error {
	if conversationID <= 0 {
		return fmt.Errorf("invalid conversation id")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
UPDATE conversations
SET is_active = TRUE
WHERE id = $1
`, conversationID); err != nil {
		return fmt.Errorf("reactivate conversation: %w", err)
	}

	return nil
}

func (r *ConversationRepo) Deactivate(ctx context.Context, tx pgx.Tx, userID, otherID int64) error {
	if userID <= 0 || otherID <= 0 {
		return fmt.Errorf("invalid conversation pair")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	userA, userB := normalizePair(userID, otherID)

	if _, err := tx.Exec(ctx, `
UPDATE conversations
SET is_active = FALSE
WHERE user_a_id = $1 AND user_b_id = $2
`, userA, userB); err != nil {
		return fmt.Errorf("deactivate conversation: %w", err)
	}

	return nil
}

// PurgeInactiveOlderThan drops the message history of conversations
// that were closed by an unmatch and saw no activity since the cutoff.
// The conversation row itself survives, keeping the pair-unique
// identity so a re-match reopens a clean chat. Receipts cascade from
// the deleted messages.
func (r *ConversationRepo) PurgeInactiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, nil
	}

	tag, err := r.pool.Exec(ctx, `
WITH purged AS (
	DELETE FROM messages
	WHERE conversation_id IN (
		SELECT id FROM conversations
		WHERE is_active = FALSE
		  AND COALESCE(last_message_at, created_at) < $1
	)
	RETURNING conversation_id
)
UPDATE conversations
SET last_message_content = NULL,
    last_message_sender_id = NULL,
    last_message_at = NULL
WHERE id IN (SELECT DISTINCT conversation_id FROM purged)
`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge inactive conversations: %w", err)
	}

	return tag.RowsAffected(), nil
}
