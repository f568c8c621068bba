package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps idempotency records in process. Used by the local
// backend and by handler tests.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]Record
	ttlWindow time.Duration
	nowFunc   func() time.Time
}

func NewMemoryStore(ttlWindow time.Duration) *MemoryStore {
	return &MemoryStore{
		records:   map[string]Record{},
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

func (m *MemoryStore) CreateIfNotExists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFunc()
	if rec, ok := m.records[key]; ok && rec.ExpiresAt >= now.Unix() {
		return false, nil
	}
	m.records[key] = Record{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(m.ttlWindow).Unix(),
	}
	return true, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok || rec.ExpiresAt < m.nowFunc().Unix() {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) Retry(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok || rec.Status != StatusFailed {
		return false, nil
	}
	rec.Status = StatusInProgress
	rec.UpdatedAt = m.nowFunc()
	m.records[key] = rec
	return true, nil
}

func (m *MemoryStore) MarkDone(_ context.Context, key string, orderID int64, responseBody string, responseStatus int) error {
	return m.update(key, func(rec *Record) {
		rec.Status = StatusDone
		rec.OrderID = orderID
		rec.ResponseBody = responseBody
		rec.ResponseStatus = responseStatus
	})
}

func (m *MemoryStore) MarkFailed(_ context.Context, key, note string) error {
	return m.update(key, func(rec *Record) {
		rec.Status = StatusFailed
		rec.Note = note
	})
}

func (m *MemoryStore) update(key string, fn func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return fmt.Errorf("idempotency record %q not found", key)
	}
	fn(&rec)
	rec.UpdatedAt = m.nowFunc()
	m.records[key] = rec
	return nil
}
