// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"context"
	"errors"
	"strconv"

	apperrors "storefront/cli/internal/errors"

	"github.com/redis/go-redis/v9"
)

// RedisKey is where RedisStore keeps the flag.
const RedisKey = Namespace + ":" + KeyLoggedIn

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps the flag in Redis so several terminals on a shared host see
// the same state. The key has no TTL.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(opts RedisOptions) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})}
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Read(ctx context.Context) (bool, error) {
	v, err := s.client.Get(ctx, RedisKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(apperrors.StoreUnavailable, "read session flag", err)
	}
	return parseFlag(v), nil
}

func (s *RedisStore) Write(ctx context.Context, loggedIn bool) error {
	if err := s.client.Set(ctx, RedisKey, strconv.FormatBool(loggedIn), 0).Err(); err != nil {
		return apperrors.Wrap(apperrors.StoreUnavailable, "write session flag", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
