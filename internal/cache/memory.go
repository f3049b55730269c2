package cache

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process cache backed by a sturdyc client. sturdyc applies
// a single TTL to every entry, so entries also carry their own expiry and
// shorter TTLs are enforced on read.
type Memory struct {
	client *sturdyc.Client[memoryEntry]
	ttl    time.Duration
	now    func() time.Time
}

func NewMemory(cfg Config) *Memory {
	return &Memory{
		client: sturdyc.New[memoryEntry](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage),
		ttl:    cfg.TTL,
		now:    time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := m.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		m.client.Delete(key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 || ttl > m.ttl {
		ttl = m.ttl
	}
	m.client.Set(key, memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: m.now().Add(ttl),
	})
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.client.Delete(key)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
