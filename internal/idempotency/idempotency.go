package idempotency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const Header = "Idempotency-Key"

const pending = "pending"

// ErrInFlight is returned by Reserve while another request holding the same
// key has not finished yet.
var ErrInFlight = errors.New("request with this idempotency key is in progress")

// Key extracts the client supplied idempotency key.
func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

// NewClient builds a Redis client from a redis:// URL.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Store remembers which idempotency keys produced which result. Keys are
// scoped so two users cannot collide on the same client generated value.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func redisKey(scope, key string) string {
	return "uglies:idem:" + scope + ":" + key
}

// Reserve claims key. When a previous request with the key completed, its
// result is returned with replay set and nothing is claimed.
func (s *Store) Reserve(ctx context.Context, scope, key string) (result string, replay bool, err error) {
	k := redisKey(scope, key)
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, k, pending, s.ttl).Result()
		if err != nil {
			return "", false, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if ok {
			return "", false, nil
		}

		val, err := s.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("read idempotency key: %w", err)
		}
		if val == pending {
			return "", false, ErrInFlight
		}
		return val, true, nil
	}
	return "", false, ErrInFlight
}

// Complete stores the result for key so later requests replay it.
func (s *Store) Complete(ctx context.Context, scope, key, result string) error {
	if err := s.client.Set(ctx, redisKey(scope, key), result, s.ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release drops a reservation so the client may retry after a failure.
func (s *Store) Release(ctx context.Context, scope, key string) error {
	if err := s.client.Del(ctx, redisKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
