package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	authsvc "github.com/campusmatch/backend/internal/services/auth"
)

const verificationPrefix = "email_verify:"

// VerificationRepo keeps pending email confirmation codes. A code maps
// to exactly one user and disappears on first use or expiry.
type VerificationRepo struct {
	client *goredis.Client
}

func NewVerificationRepo(client *goredis.Client) *VerificationRepo {
	return &VerificationRepo{client: client}
}

func (r *VerificationRepo) CreateCode(ctx context.Context, code string, userID int64, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(code) == "" || userID <= 0 || ttl <= 0 {
		return authsvc.ErrInvalidInput
	}

	if err := r.client.Set(ctx, verificationKey(code), userID, ttl).Err(); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}
	return nil
}

func (r *VerificationRepo) ConsumeCode(ctx context.Context, code string) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	value, err := r.client.GetDel(ctx, verificationKey(code)).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, authsvc.ErrVerificationNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("consume verification code: %w", err)
	}

	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil || userID <= 0 {
		return 0, authsvc.ErrVerificationNotFound
	}
	return userID, nil
}

func verificationKey(code string) string {
	return verificationPrefix + code
}
