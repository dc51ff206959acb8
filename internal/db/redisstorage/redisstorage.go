// Package redisstorage keeps session states in Redis as JSON documents
// that expire on their own after the configured TTL.
package redisstorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/patric-chuzhbe/signup/internal/session"
)

const keyPrefix = "signup:session:"

type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis at addr and checks the connection within connectTimeout.
func New(ctx context.Context, addr string, ttl, connectTimeout time.Duration) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("in internal/db/redisstorage/redisstorage.go/New(): error while `client.Ping()` calling: %w", err)
	}

	return NewWithClient(client, ttl), nil
}

func NewWithClient(client *redis.Client, ttl time.Duration) *RedisStorage {
	return &RedisStorage{
		client: client,
		ttl:    ttl,
	}
}

func key(id string) string {
	return keyPrefix + id
}

func (r *RedisStorage) Load(ctx context.Context, id string) (*session.State, error) {
	raw, err := r.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("in internal/db/redisstorage/redisstorage.go/Load(): error while `client.Get()` calling: %w", err)
	}

	state := &session.State{}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("in internal/db/redisstorage/redisstorage.go/Load(): error while `json.Unmarshal()` calling: %w", err)
	}

	return state, nil
}

func (r *RedisStorage) Save(ctx context.Context, state *session.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("in internal/db/redisstorage/redisstorage.go/Save(): error while `json.Marshal()` calling: %w", err)
	}

	if err := r.client.Set(ctx, key(state.ID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("in internal/db/redisstorage/redisstorage.go/Save(): error while `client.Set()` calling: %w", err)
	}

	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, key(id)).Err()
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
