// Package idempotency replays the first successful response for a repeated
// Idempotency-Key so a retried checkout does not place a second order.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	DefaultKeyPrefix  = "storefront:idem"
	DefaultTTL        = 24 * time.Hour
	DefaultPendingTTL = time.Minute

	pendingMarker = "pending"
)

var ErrInFlight = errors.New("idempotency: request with this key is in progress")

type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type Store interface {
	// Begin claims key. It returns the stored response when the key already
	// completed, or ErrInFlight while another request holds it.
	Begin(ctx context.Context, key string) (*Response, error)
	Complete(ctx context.Context, key string, resp Response) error
	Release(ctx context.Context, key string) error
}

type RedisStore struct {
	Client     *redis.Client
	Prefix     string
	TTL        time.Duration
	PendingTTL time.Duration
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client, Prefix: DefaultKeyPrefix, TTL: DefaultTTL, PendingTTL: DefaultPendingTTL}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

func (s *RedisStore) key(k string) string {
	return s.Prefix + ":" + k
}

func (s *RedisStore) Begin(ctx context.Context, key string) (*Response, error) {
	ok, err := s.Client.SetNX(ctx, s.key(key), pendingMarker, s.PendingTTL).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}

	raw, err := s.Client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; try once more
		ok, err = s.Client.SetNX(ctx, s.key(key), pendingMarker, s.PendingTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, nil
		}
		return nil, ErrInFlight
	}
	if err != nil {
		return nil, err
	}
	if raw == pendingMarker {
		return nil, ErrInFlight
	}

	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("idempotency: decode stored response: %w", err)
	}
	return &resp, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, s.key(key), data, s.TTL).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.Client.Del(ctx, s.key(key)).Err()
}
