package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrPhotoNotFound = errors.New("photo not found")

type PhotoRepo struct {
	pool *pgxpool.Pool
}

type PhotoRecord struct {
	ID       int64
	UserID   int64
	URL      string
	IsMain   bool
	Position int
}

func NewPhotoRepo(pool *pgxpool.Pool) *PhotoRepo {
	return &PhotoRepo{pool: pool}
}

func (r *PhotoRepo) ListForUser(ctx context.Context, userID int64) ([]PhotoRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, url, is_main, position
FROM photos
WHERE user_id = $1
ORDER BY position, id
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var out []PhotoRecord
	for rows.Next() {
		var p PhotoRecord
		if err := rows.Scan(&p.ID, &p.UserID, &p.URL, &p.IsMain, &p.Position); err != nil {
			return nil, fmt.Errorf("scan photo row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photo rows: %w", err)
	}

	return out, nil
}

func (r *PhotoRepo) CountForUser(ctx context.Context, userID int64) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var n int
	if err := r.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM photos WHERE user_id = $1
`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}

	return n, nil
}

func (r *PhotoRepo) CountInTx(ctx context.Context, tx pgx.Tx, userID int64) (int, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	var n int
	if err := tx.QueryRow(ctx, `
SELECT COUNT(*) FROM photos WHERE user_id = $1
`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}

	return n, nil
}

func (r *PhotoRepo) Add(ctx context.Context, tx pgx.Tx, userID int64, url string, isMain bool, position int) (PhotoRecord, error) {
	if tx == nil {
		return PhotoRecord{}, fmt.Errorf("transaction is required")
	}

	var p PhotoRecord
	err := tx.QueryRow(ctx, `
INSERT INTO photos (user_id, url, is_main, position)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, url, is_main, position
`, userID, url, isMain, position).Scan(&p.ID, &p.UserID, &p.URL, &p.IsMain, &p.Position)
	if err != nil {
		return PhotoRecord{}, fmt.Errorf("add photo: %w", err)
	}

	return p, nil
}

func (r *PhotoRepo) Remove(ctx context.Context, tx pgx.Tx, userID, photoID int64) (PhotoRecord, error) {
	if tx == nil {
		return PhotoRecord{}, fmt.Errorf("transaction is required")
	}

	var p PhotoRecord
	err := tx.QueryRow(ctx, `
DELETE FROM photos
WHERE id = $1 AND user_id = $2
RETURNING id, user_id, url, is_main, position
`, photoID, userID).Scan(&p.ID, &p.UserID, &p.URL, &p.IsMain, &p.Position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PhotoRecord{}, ErrPhotoNotFound
		}
		return PhotoRecord{}, fmt.Errorf("remove photo: %w", err)
	}

	return p, nil
}

func (r *PhotoRepo) ClearMain(ctx context.Context, tx pgx.Tx, userID int64) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
UPDATE photos SET is_main = FALSE
WHERE user_id = $1 AND is_main
`, userID); err != nil {
		return fmt.Errorf("clear main photo: %w", err)
	}

	return nil
}

func (r *PhotoRepo) SetMain(ctx context.Context, tx pgx.Tx, userID, photoID int64) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	tag, err := tx.Exec(ctx, `
UPDATE photos SET is_main = TRUE
WHERE id = $1 AND user_id = $2
`, photoID, userID)
	if err != nil {
		return fmt.Errorf("set main photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPhotoNotFound
	}

	return nil
}

// PromoteFirst makes the earliest remaining photo the main one when the
// previous main was removed. No-op when the user has no photos.
func (r *PhotoRepo) PromoteFirst(ctx context.Context, tx pgx.Tx, userID int64) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
UPDATE photos SET is_main = TRUE
WHERE id = (
	SELECT id FROM photos
	WHERE user_id = $1
	ORDER BY position, id
	LIMIT 1
)
`, userID); err != nil {
		return fmt.Errorf("promote first photo: %w", err)
	}

	return nil
}
