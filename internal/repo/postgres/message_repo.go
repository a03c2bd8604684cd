package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrMessageNotFound = errors.New("message not found")

type MessageRepo struct {
	pool *pgxpool.Pool
}

type MessageRecord struct {
	ID             uuid.UUID
	ConversationID int64
	SenderID       int64
	Content        string
	Type           string
	CreatedAt      time.Time
}

type ReadReceipt struct {
	MessageID uuid.UUID
	UserID    int64
	ReadAt    time.Time
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Insert(ctx context.Context, tx pgx.Tx, rec MessageRecord) error {
	if rec.ConversationID <= 0 || rec.SenderID <= 0 {
		return fmt.Errorf("invalid message payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO messages (id, conversation_id, sender_id, content, type, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, rec.ID, rec.ConversationID, rec.SenderID, rec.Content, rec.Type, rec.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return nil
}

func (r *MessageRepo) Get(ctx context.Context, tx pgx.Tx, conversationID int64, messageID uuid.UUID) (MessageRecord, error) {
	if conversationID <= 0 {
		return MessageRecord{}, fmt.Errorf("invalid conversation id")
	}
	if tx == nil {
		return MessageRecord{}, fmt.Errorf("transaction is required")
	}

	var rec MessageRecord
	err := tx.QueryRow(ctx, `
SELECT id, conversation_id, sender_id, content, type, created_at
FROM messages
WHERE id = $1 AND conversation_id = $2
`, messageID, conversationID).Scan(
		&rec.ID, &rec.ConversationID, &rec.SenderID, &rec.Content, &rec.Type, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MessageRecord{}, ErrMessageNotFound
		}
		return MessageRecord{}, fmt.Errorf("get message: %w", err)
	}

	return rec, nil
}

func (r *MessageRepo) Delete(ctx context.Context, tx pgx.Tx, conversationID int64, messageID uuid.UUID) (bool, error) {
	if conversationID <= 0 {
		return false, fmt.Errorf("invalid conversation id")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
DELETE FROM messages
WHERE id = $1 AND conversation_id = $2
`, messageID, conversationID)
	if err != nil {
		return false, fmt.Errorf("delete message: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *MessageRepo) Count(ctx context.Context, conversationID int64) (int, error) {
	if conversationID <= 0 {
		return 0, fmt.Errorf("invalid conversation id")
	}
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var n int
	if err := r.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM messages WHERE conversation_id = $1
`, conversationID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}

	return n, nil
}

// ListPage returns one page of messages newest first. Callers reverse it
// for chronological display.
func (r *MessageRepo) ListPage(ctx context.Context, conversationID int64, offset, limit int) ([]MessageRecord, error) {
	if conversationID <= 0 {
		return nil, fmt.Errorf("invalid conversation id")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if r.pool == nil {
		return []MessageRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, conversation_id, sender_id, content, type, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY created_at DESC, id DESC
OFFSET $2
LIMIT $3
`, conversationID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list message page: %w", err)
	}
	defer rows.Close()

	items := make([]MessageRecord, 0, limit)
	for rows.Next() {
		var rec MessageRecord
		if err := rows.Scan(
			&rec.ID, &rec.ConversationID, &rec.SenderID, &rec.Content, &rec.Type, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, rec)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate messages: %w", rows.Err())
	}

	return items, nil
}

func (r *MessageRepo) ListReceipts(ctx context.Context, messageIDs []uuid.UUID) ([]ReadReceipt, error) {
	if len(messageIDs) == 0 {
		return []ReadReceipt{}, nil
	}
	if r.pool == nil {
		return []ReadReceipt{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT message_id, user_id, read_at
FROM message_reads
WHERE message_id = ANY($1)
`, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("list read receipts: %w", err)
	}
	defer rows.Close()

	var items []ReadReceipt
	for rows.Next() {
		var rec ReadReceipt
		if err := rows.Scan(&rec.MessageID, &rec.UserID, &rec.ReadAt); err != nil {
			return nil, fmt.Errorf("scan read receipt: %w", err)
		}
		items = append(items, rec)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate read receipts: %w", rows.Err())
	}

	return items, nil
}

func (r *MessageRepo) InsertReceipt(ctx context.Context, tx pgx.Tx, messageID uuid.UUID, userID int64, at time.Time) error {
	if userID <= 0 {
		return fmt.Errorf("invalid receipt payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO message_reads (message_id, user_id, read_at)
VALUES ($1, $2, $3)
ON CONFLICT (message_id, user_id) DO NOTHING
`, messageID, userID, at.UTC()); err != nil {
		return fmt.Errorf("insert read receipt: %w", err)
	}

	return nil
}

// MarkAllRead stamps every message in the conversation for the reader.
// Re-reads are absorbed by the primary key, so the call is idempotent
// and reports only newly stamped rows.
func (r *MessageRepo) MarkAllRead(ctx context.Context, tx pgx.Tx, conversationID, userID int64, at time.Time) (int, error) {
	if conversationID <= 0 || userID <= 0 {
		return 0, fmt.Errorf("invalid mark read payload")
	}
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
INSERT INTO message_reads (message_id, user_id, read_at)
SELECT m.id, $2, $3
FROM messages m
WHERE m.conversation_id = $1
ON CONFLICT (message_id, user_id) DO NOTHING
`, conversationID, userID, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}

	return int(result.RowsAffected()), nil
}
