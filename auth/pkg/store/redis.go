package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the credential under <prefix>:<profile>:token and
// <prefix>:<profile>:refresh_token so several client instances can share it.
type RedisStore struct {
	client *redis.Client
	prefix string
	owned  bool
}

// NewRedisStore uses an existing client. Close does not close client.
func NewRedisStore(client *redis.Client, keyPrefix, profile string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "phoenix"
	}
	return &RedisStore{client: client, prefix: keyPrefix + ":" + profile}
}

// NewRedisStoreFromURL connects using a redis:// URL.
func NewRedisStoreFromURL(url, keyPrefix, profile string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	s := NewRedisStore(redis.NewClient(opts), keyPrefix, profile)
	s.owned = true
	return s, nil
}

func (s *RedisStore) key(name string) string {
	return s.prefix + ":" + name
}

func (s *RedisStore) Load(ctx context.Context) (Credential, error) {
	vals, err := s.client.MGet(ctx, s.key(KeyToken), s.key(KeyRefreshToken)).Result()
	if err != nil {
		return Credential{}, fmt.Errorf("loading credential: %w", err)
	}
	return Credential{
		AccessToken:  stringValue(vals[0]),
		RefreshToken: stringValue(vals[1]),
	}, nil
}

// Save writes both keys in a MULTI/EXEC transaction.
func (s *RedisStore) Save(ctx context.Context, cred Credential) error {
	if cred.IsZero() {
		return ErrEmptyCredential
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(KeyToken), cred.AccessToken, 0)
		if cred.RefreshToken == "" {
			pipe.Del(ctx, s.key(KeyRefreshToken))
		} else {
			pipe.Set(ctx, s.key(KeyRefreshToken), cred.RefreshToken, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	err := s.client.Del(ctx, s.key(KeyToken), s.key(KeyRefreshToken)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("clearing credential: %w", err)
	}
	return nil
}

// Close closes the client if the store created it.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

func stringValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
