package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IntentStore keeps intents for their lifetime. Get returns (nil, nil) for
// unknown or expired intents.
type IntentStore interface {
	Save(ctx context.Context, intent *Intent) error
	Get(ctx context.Context, id string) (*Intent, error)
	Delete(ctx context.Context, id string) error
}

// RedisIntentStore keeps intents as JSON under checkout:intent:{id}, expiring
// with the intent.
type RedisIntentStore struct {
	rdb     redis.Cmdable
	nowFunc func() time.Time
}

func NewRedisIntentStore(rdb redis.Cmdable) *RedisIntentStore {
	return &RedisIntentStore{rdb: rdb, nowFunc: time.Now}
}

func intentKey(id string) string {
	return "checkout:intent:" + id
}

func (s *RedisIntentStore) Save(ctx context.Context, intent *Intent) error {
	ttl := intent.ExpiresAt.Sub(s.nowFunc())
	if ttl <= 0 {
		return s.Delete(ctx, intent.ID)
	}
	b, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}
	return s.rdb.Set(ctx, intentKey(intent.ID), b, ttl).Err()
}

func (s *RedisIntentStore) Get(ctx context.Context, id string) (*Intent, error) {
	b, err := s.rdb.Get(ctx, intentKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get intent %s: %w", id, err)
	}
	var intent Intent
	if err := json.Unmarshal(b, &intent); err != nil {
		return nil, fmt.Errorf("decode intent %s: %w", id, err)
	}
	return &intent, nil
}

func (s *RedisIntentStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, intentKey(id)).Err()
}

// MemoryIntentStore is an in-process IntentStore; expired intents are dropped on read.
type MemoryIntentStore struct {
	mu      sync.Mutex
	intents map[string]Intent
	nowFunc func() time.Time
}

func NewMemoryIntentStore() *MemoryIntentStore {
	return &MemoryIntentStore{intents: map[string]Intent{}, nowFunc: time.Now}
}

func (s *MemoryIntentStore) Save(_ context.Context, intent *Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[intent.ID] = *intent
	return nil
}

func (s *MemoryIntentStore) Get(_ context.Context, id string) (*Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return nil, nil
	}
	if !s.nowFunc().Before(intent.ExpiresAt) {
		delete(s.intents, id)
		return nil, nil
	}
	return &intent, nil
}

func (s *MemoryIntentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.intents, id)
	return nil
}

var (
	_ IntentStore = (*RedisIntentStore)(nil)
	_ IntentStore = (*MemoryIntentStore)(nil)
)
