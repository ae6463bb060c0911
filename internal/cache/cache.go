// Package cache provides the process-scoped key/value cache handed to extractors, so that expensive lookups (session
// tokens, API metadata) are shared between extractor instances and optionally persisted between runs.
package cache

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

var ErrClosed = errors.New("cache closed")

type Cache interface {
	// Get decodes the cached value into value, returning false if there is no unexpired entry.
	Get(namespace, key string, value any) (bool, error)
	// Set stores value, expiring after ttl (0 means never).
	Set(namespace, key string, value any, ttl time.Duration) error
	Delete(namespace, key string) error
	Close() error
}

type entry struct {
	Expires int64           `json:"expires,omitempty"`
	Value   json.RawMessage `json:"value"`
}

func newEntry(value any, ttl time.Duration, now time.Time) (entry, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return entry{}, err
	}
	e := entry{Value: data}
	if ttl > 0 {
		e.Expires = now.Add(ttl).Unix()
	}
	return e, nil
}

func (e entry) expired(now time.Time) bool {
	return e.Expires != 0 && now.Unix() >= e.Expires
}

type memoryKey struct {
	namespace string
	key       string
}

type memory struct {
	mu      sync.Mutex
	entries map[memoryKey]entry
	closed  bool
	now     func() time.Time
}

// NewMemory returns a Cache that lives only as long as the process.
func NewMemory() Cache {
	return &memory{entries: make(map[memoryKey]entry), now: time.Now}
}

func (m *memory) Get(namespace, key string, value any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	k := memoryKey{namespace, key}
	e, ok := m.entries[k]
	if !ok {
		return false, nil
	}
	if e.expired(m.now()) {
		delete(m.entries, k)
		return false, nil
	}
	return true, json.Unmarshal(e.Value, value)
}

func (m *memory) Set(namespace, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	e, err := newEntry(value, ttl, m.now())
	if err != nil {
		return err
	}
	m.entries[memoryKey{namespace, key}] = e
	return nil
}

func (m *memory) Delete(namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.entries, memoryKey{namespace, key})
	return nil
}

func (m *memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = nil
	return nil
}
