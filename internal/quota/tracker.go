// Package quota tracks per-user message volume and storage usage
// against fixed limits.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mindvault/backend/pkg/logger"
)

// ErrQuotaExceeded is the one quota error surfaced synchronously to
// callers; handlers translate it into a 403 with an upgrade prompt.
var ErrQuotaExceeded = errors.New("quota exceeded")

// counterTTL is the self-expiry set on a period's counter at first
// write. Stale periods vanish on their own; there is no explicit reset.
const counterTTL = 30 * 24 * time.Hour

// Counters is the expiring-counter store backing the message quota.
type Counters interface {
	GetCounter(ctx context.Context, key string) (int64, error)
	IncrementCounter(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// UsageStore reports a user's persisted storage footprint.
type UsageStore interface {
	SumDocumentSizes(ctx context.Context, userID string) (int64, error)
}

type Tracker struct {
	counters          Counters
	usage             UsageStore
	messageLimit      int
	storageLimitBytes int64
	now               func() time.Time
}

func NewTracker(counters Counters, usage UsageStore, messageLimit int, storageLimitBytes int64) *Tracker {
	return &Tracker{
		counters:          counters,
		usage:             usage,
		messageLimit:      messageLimit,
		storageLimitBytes: storageLimitBytes,
		now:               time.Now,
	}
}

// messageKey buckets counters by calendar month, e.g.
// "usage:msg:user_123:2026-9".
func (t *Tracker) messageKey(userID string) string {
	now := t.now()
	return fmt.Sprintf("usage:msg:%s:%d-%d", userID, now.Year(), int(now.Month()))
}

func (t *Tracker) MessageCount(ctx context.Context, userID string) (int, error) {
	count, err := t.counters.GetCounter(ctx, t.messageKey(userID))
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (t *Tracker) IncrementMessages(ctx context.Context, userID string) (int, error) {
	count, err := t.counters.IncrementCounter(ctx, t.messageKey(userID), counterTTL)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// CheckMessageLimit reports whether the user may send another message.
// The check and the subsequent increment are not atomic: concurrent
// sends from one user can both pass before either increment lands,
// allowing a transient overshoot of the limit.
func (t *Tracker) CheckMessageLimit(ctx context.Context, userID string) (bool, error) {
	count, err := t.MessageCount(ctx, userID)
	if err != nil {
		return false, err
	}

	allowed := count < t.messageLimit
	if !allowed {
		logger.Debug("Message quota exhausted",
			zap.String("user_id", userID),
			zap.Int("count", count),
			zap.Int("limit", t.messageLimit),
		)
	}

	return allowed, nil
}

func (t *Tracker) UsedStorage(ctx context.Context, userID string) (int64, error) {
	return t.usage.SumDocumentSizes(ctx, userID)
}

// CheckStorageLimit reports whether a candidate upload of the given
// size fits within the user's storage allowance. Subject to the same
// check-then-act window as the message quota.
func (t *Tracker) CheckStorageLimit(ctx context.Context, userID string, candidateBytes int64) (bool, error) {
	used, err := t.usage.SumDocumentSizes(ctx, userID)
	if err != nil {
		return false, err
	}

	allowed := used+candidateBytes <= t.storageLimitBytes
	if !allowed {
		logger.Debug("Storage quota exhausted",
			zap.String("user_id", userID),
			zap.Int64("used", used),
			zap.Int64("candidate", candidateBytes),
			zap.Int64("limit", t.storageLimitBytes),
		)
	}

	return allowed, nil
}
