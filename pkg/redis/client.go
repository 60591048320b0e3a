package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultOpTimeout bounds every call made through a Store.
const DefaultOpTimeout = 250 * time.Millisecond

var pingClient = func(ctx context.Context, c *redis.Client) error {
	return c.Ping(ctx).Err()
}

// Open parses url, applies password and verifies the server answers.
func Open(url, password string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	if password != "" {
		opts.Password = password
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pingClient(ctx, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Store is a thin, timeout-bounded wrapper used as the shared cache tier and for leases.
type Store struct {
	client    *redis.Client
	opTimeout time.Duration
}

// NewStore wraps client. A non-positive timeout selects DefaultOpTimeout.
func NewStore(client *redis.Client, opTimeout time.Duration) *Store {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &Store{client: client, opTimeout: opTimeout}
}

func (s *Store) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// GetWithTTL returns the value for key and its remaining TTL. found is false on a miss.
// A key without expiry reports ttl 0.
func (s *Store) GetWithTTL(ctx context.Context, key string) (value []byte, ttl time.Duration, found bool, err error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, err
	}

	value, err = getCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}

	ttl = ttlCmd.Val()
	if ttl < 0 {
		ttl = 0
	}
	return value, ttl, true, nil
}

// Set stores a key-value pair with expiration
func (s *Store) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.client.Set(ctx, key, value, expiration).Err()
}

// Del removes keys
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.client.Del(ctx, keys...).Err()
}

// SetNX sets a key only if it does not exist
func (s *Store) SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.client.SetNX(ctx, key, value, expiration).Result()
}
