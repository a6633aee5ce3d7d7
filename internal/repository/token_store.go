package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound is returned when a key is unknown or has expired.
var ErrTokenNotFound = errors.New("token not found")

// TokenStore is implemented by RedisTokenStore and MemoryTokenStore.
type TokenStore interface {
	Save(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Load(ctx context.Context, key string, dest interface{}) error
	Take(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
}

// NewTokenStore returns a Redis-backed store when client is set, otherwise a process-local one.
func NewTokenStore(client *redis.Client, prefix string) TokenStore {
	if client == nil {
		return NewMemoryTokenStore()
	}
	return NewRedisTokenStore(client, prefix)
}

// RedisTokenStore keeps short-lived JSON values (promotion plans, reset confirmations) in Redis.
type RedisTokenStore struct {
	client *redis.Client
	prefix string
}

// NewRedisTokenStore builds a store namespacing keys under prefix.
func NewRedisTokenStore(client *redis.Client, prefix string) *RedisTokenStore {
	return &RedisTokenStore{client: client, prefix: prefix}
}

// Save stores value under key for ttl.
func (s *RedisTokenStore) Save(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.prefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Load reads the value under key without consuming it.
func (s *RedisTokenStore) Load(ctx context.Context, key string, dest interface{}) error {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	return s.decode(key, raw, err, dest)
}

// Take reads and deletes the value under key in one round-trip, so only one caller can consume it.
func (s *RedisTokenStore) Take(ctx context.Context, key string, dest interface{}) error {
	raw, err := s.client.GetDel(ctx, s.prefix+key).Bytes()
	return s.decode(key, raw, err, dest)
}

// Delete removes key. Deleting an unknown key reports ErrTokenNotFound.
func (s *RedisTokenStore) Delete(ctx context.Context, key string) error {
	removed, err := s.client.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	if removed == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (s *RedisTokenStore) decode(key string, raw []byte, err error, dest interface{}) error {
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

type memoryToken struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryTokenStore is the in-process fallback used when Redis is disabled.
type MemoryTokenStore struct {
	mu    sync.Mutex
	items map[string]memoryToken
	now   func() time.Time
}

// NewMemoryTokenStore builds an empty store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{items: make(map[string]memoryToken), now: time.Now}
}

// Save stores value under key for ttl.
func (s *MemoryTokenStore) Save(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.items[key] = memoryToken{payload: payload, expiresAt: s.now().Add(ttl)}
	return nil
}

// Load reads the value under key without consuming it.
func (s *MemoryTokenStore) Load(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	item, ok := s.lookup(key)
	s.mu.Unlock()
	if !ok {
		return ErrTokenNotFound
	}
	return json.Unmarshal(item.payload, dest)
}

// Take reads and deletes the value under key.
func (s *MemoryTokenStore) Take(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	item, ok := s.lookup(key)
	if ok {
		delete(s.items, key)
	}
	s.mu.Unlock()
	if !ok {
		return ErrTokenNotFound
	}
	return json.Unmarshal(item.payload, dest)
}

// Delete removes key.
func (s *MemoryTokenStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(key); !ok {
		return ErrTokenNotFound
	}
	delete(s.items, key)
	return nil
}

// lookup must be called with mu held.
func (s *MemoryTokenStore) lookup(key string) (memoryToken, bool) {
	item, ok := s.items[key]
	if !ok {
		return memoryToken{}, false
	}
	if !s.now().Before(item.expiresAt) {
		delete(s.items, key)
		return memoryToken{}, false
	}
	return item, true
}

func (s *MemoryTokenStore) sweep() {
	now := s.now()
	for key, item := range s.items {
		if !now.Before(item.expiresAt) {
			delete(s.items, key)
		}
	}
}
