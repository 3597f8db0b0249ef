package redis

import (
	"context"
	"fmt"
	"time"

	apporder "github.com/Zhima-Mochi/minishop-coordinator/internal/application/order"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// KEYS[1]: lock key, ARGV[1]: owner token
var unlockScript = goredis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`)

// Locker grants a lease held until unlock or TTL expiry. Unlock only removes a
// lease still owned by the caller.
type Locker struct {
	client goredis.UniversalClient
	prefix string
}

var _ apporder.Locker = (*Locker)(nil)

func NewLocker(client goredis.UniversalClient, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	rk := key(l.prefix, "lock", name)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, rk, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis: lock %q: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func(ctx context.Context) error {
		if err := unlockScript.Run(ctx, l.client, []string{rk}, token).Err(); err != nil {
			return fmt.Errorf("redis: unlock %q: %w", name, err)
		}
		return nil
	}
	return unlock, true, nil
}
