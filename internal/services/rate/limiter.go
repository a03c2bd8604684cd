package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	WindowState(ctx context.Context, key string) (int64, time.Duration, error)
}

type window struct {
	prefix string
	span   time.Duration
	max    int
}

// Limiter throttles like bursts with fixed redis windows. A zero max
// disables that window.
type Limiter struct {
	store   WindowStore
	windows []window
}

func NewLimiter(store WindowStore, perMinute, per10Sec int) *Limiter {
	l := &Limiter{store: store}
	if perMinute > 0 {
		l.windows = append(l.windows, window{prefix: "rate:likes:min:", span: time.Minute, max: perMinute})
	}
	if per10Sec > 0 {
		l.windows = append(l.windows, window{prefix: "rate:likes:10s:", span: 10 * time.Second, max: per10Sec})
	}
	return l
}

// AllowLike consumes one slot in every window. When any window is over
// its cap it returns the longest wait in seconds and false.
func (l *Limiter) AllowLike(ctx context.Context, userID int64) (int64, bool, error) {
	if userID <= 0 {
		return 0, false, fmt.Errorf("invalid user id")
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)
	for _, w := range l.windows {
		count, ttl, err := l.store.IncrementWindow(ctx, w.prefix+strconv.FormatInt(userID, 10), w.span)
		if err != nil {
			return 0, false, err
		}
		if count > int64(w.max) {
			if sec := ceilSeconds(ttl); sec > retryAfterSec {
				retryAfterSec = sec
			}
		}
	}

	if retryAfterSec > 0 {
		return retryAfterSec, false, nil
	}

	return 0, true, nil
}

// RetryAfterLike reports how long the user has to wait without consuming
// a slot.
func (l *Limiter) RetryAfterLike(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	if l.store == nil {
		return 0, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)
	for _, w := range l.windows {
		count, ttl, err := l.store.WindowState(ctx, w.prefix+strconv.FormatInt(userID, 10))
		if err != nil {
			return 0, err
		}
		if count >= int64(w.max) {
			if sec := ceilSeconds(ttl); sec > retryAfterSec {
				retryAfterSec = sec
			}
		}
	}

	return retryAfterSec, nil
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}
