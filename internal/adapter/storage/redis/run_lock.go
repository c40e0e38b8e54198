package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// RunLock implements ports.RunLock using Redis SET NX. The lease value is a
// random token so a slow holder cannot release a lease that has already
// expired and been re-acquired by someone else.
type RunLock struct {
	client *goredis.Client
	key    string
	token  string
}

// NewRunLock creates a Redis-backed billing run lease.
func NewRunLock(client *goredis.Client) *RunLock {
	return &RunLock{
		client: client,
		key:    "billing:run_lease",
		token:  uuid.NewString(),
	}
}

// Acquire obtains the lease. Returns false when another process holds it.
func (l *RunLock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	result, err := l.client.SetArgs(ctx, l.key, l.token, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists — lease held elsewhere
			return false, nil
		}
		return false, fmt.Errorf("redis lease acquire: %w", err)
	}
	return result == "OK", nil
}

// releaseScript deletes the lease only when this process still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Release frees the lease if this process still holds it.
func (l *RunLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("redis lease release: %w", err)
	}
	return nil
}
