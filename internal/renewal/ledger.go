package renewal

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ladtc/ladtc/internal/membership"
)

// DefaultLedgerTTL keeps claims long enough to outlive any reminder window.
const DefaultLedgerTTL = 90 * 24 * time.Hour

const ledgerPrefix = "ladtc:renewal:reminded:"

// Ledger remembers which reminders were already handed to the mail queue.
type Ledger interface {
	// Claim records key and reports whether it was new.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets key so a later run can retry it.
	Release(ctx context.Context, key string) error
}

// ReminderKey identifies one reminder per membership and renewal cycle.
func ReminderKey(m membership.Membership) string {
	if m.RenewalDate == nil {
		return m.ID.String()
	}
	return m.ID.String() + ":" + m.RenewalDate.UTC().Format("2006-01-02")
}

// RedisLedger stores claims as expiring Redis keys.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLedger constructs the ledger. ttl <= 0 uses DefaultLedgerTTL.
func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}
	return &RedisLedger{client: client, ttl: ttl}
}

// Claim implements Ledger.
func (l *RedisLedger) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, ledgerPrefix+key, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("renewal: claim %s: %w", key, err)
	}
	return ok, nil
}

// Release implements Ledger.
func (l *RedisLedger) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, ledgerPrefix+key).Err(); err != nil {
		return fmt.Errorf("renewal: release %s: %w", key, err)
	}
	return nil
}
