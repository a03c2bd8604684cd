package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type dislikeCleaner interface {
	DeleteDislikesOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type conversationCleaner interface {
	PurgeInactiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job runs the periodic retention sweep: stale dislike edges are dropped
// so their targets rejoin the candidate feed, and conversations closed
// by an unmatch lose their message history after a grace period. The
// conversation rows stay, so a later re-match starts from a clean chat.
type Job struct {
	dislikes          dislikeCleaner
	conversations     conversationCleaner
	dislikeRetention  time.Duration
	inactiveRetention time.Duration
	now               func() time.Time
	logger            *zap.Logger
}

func New(dislikes dislikeCleaner, conversations conversationCleaner, dislikeRetention, inactiveRetention time.Duration, logger *zap.Logger) *Job {
	if dislikeRetention <= 0 {
		dislikeRetention = 90 * 24 * time.Hour
	}
	if inactiveRetention <= 0 {
		inactiveRetention = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		dislikes:          dislikes,
		conversations:     conversations,
		dislikeRetention:  dislikeRetention,
		inactiveRetention: inactiveRetention,
		now:               time.Now,
		logger:            logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.dislikes != nil {
		cutoff := j.now().Add(-j.dislikeRetention)
		rows, err := j.dislikes.DeleteDislikesOlderThan(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("cleanup stale dislikes: %w", err)
		}
		if rows > 0 {
			j.logger.Info("cleanup stale dislikes completed", zap.Int64("deleted", rows))
		}
	}

	if j.conversations != nil {
		cutoff := j.now().Add(-j.inactiveRetention)
		rows, err := j.conversations.PurgeInactiveOlderThan(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("cleanup inactive conversations: %w", err)
		}
		if rows > 0 {
			j.logger.Info("cleanup inactive conversations completed", zap.Int64("purged", rows))
		}
	}

	return nil
}
