package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Lease is a best-effort exclusive lock held until Release or expiry.
type Lease struct {
	store *Store
	key   string
	owner string
}

// Acquire tries to take the lease on key for ttl. ok is false when another owner holds it.
func (s *Store) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, bool, error) {
	owner := uuid.NewString()
	ok, err := s.SetNX(ctx, key, owner, ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	return &Lease{store: s, key: key, owner: owner}, true, nil
}

// Release drops the lease if it is still owned by the caller.
func (l *Lease) Release(ctx context.Context) error {
	ctx, cancel := l.store.bounded(ctx)
	defer cancel()
	return releaseScript.Run(ctx, l.store.client, []string{l.key}, l.owner).Err()
}
