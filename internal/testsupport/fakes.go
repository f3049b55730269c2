// Package testsupport holds in-memory collaborators for tests: a note
// store, a byte cache and an event publisher that record how they were
// called and can be told to fail.
package testsupport

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mrshanahan/notes-service/pkg/notes"
)

type MemoryStore struct {
	mu    sync.Mutex
	notes map[uuid.UUID]*notes.Note

	// Err, when set, is returned by every operation.
	Err error

	Creates, Gets, Updates, Deletes, Counts, Lists int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{notes: map[uuid.UUID]*notes.Note{}}
}

func (s *MemoryStore) Create(_ context.Context, n *notes.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Creates++
	if s.Err != nil {
		return s.Err
	}
	c := *n
	s.notes[n.ID] = &c
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*notes.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gets++
	if s.Err != nil {
		return nil, s.Err
	}
	n, ok := s.notes[id]
	if !ok {
		return nil, nil
	}
	c := *n
	return &c, nil
}

func (s *MemoryStore) Update(_ context.Context, n *notes.Note) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Updates++
	if s.Err != nil {
		return false, s.Err
	}
	if _, ok := s.notes[n.ID]; !ok {
		return false, nil
	}
	c := *n
	s.notes[n.ID] = &c
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deletes++
	if s.Err != nil {
		return false, s.Err
	}
	if _, ok := s.notes[id]; !ok {
		return false, nil
	}
	delete(s.notes, id)
	return true, nil
}

func (s *MemoryStore) Count(_ context.Context, owner *uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Counts++
	if s.Err != nil {
		return 0, s.Err
	}
	return int64(len(s.scoped(owner))), nil
}

func (s *MemoryStore) List(_ context.Context, owner *uuid.UUID, skip, limit int) ([]*notes.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Lists++
	if s.Err != nil {
		return nil, s.Err
	}
	all := s.scoped(owner)
	if skip >= len(all) {
		return []*notes.Note{}, nil
	}
	end := len(all)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return all[skip:end], nil
}

// Put stores n directly, bypassing the counters.
func (s *MemoryStore) Put(n *notes.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *n
	s.notes[n.ID] = &c
}

// Len returns the number of stored notes.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes)
}

func (s *MemoryStore) scoped(owner *uuid.UUID) []*notes.Note {
	out := []*notes.Note{}
	for _, n := range s.notes {
		if owner != nil && n.OwnerID != *owner {
			continue
		}
		c := *n
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

type MapCache struct {
	mu      sync.Mutex
	entries map[string][]byte

	GetErr, SetErr, DeleteErr error

	Hits, Misses, Sets, Deletes int
	LastTTL                     time.Duration
}

func NewMapCache() *MapCache {
	return &MapCache{entries: map[string][]byte{}}
}

func (c *MapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return nil, false, c.GetErr
	}
	v, ok := c.entries[key]
	if !ok {
		c.Misses++
		return nil, false, nil
	}
	c.Hits++
	return append([]byte(nil), v...), true, nil
}

func (c *MapCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sets++
	c.LastTTL = ttl
	if c.SetErr != nil {
		return c.SetErr
	}
	c.entries[key] = append([]byte(nil), value...)
	return nil
}

func (c *MapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Deletes++
	if c.DeleteErr != nil {
		return c.DeleteErr
	}
	delete(c.entries, key)
	return nil
}

func (c *MapCache) Close() error { return nil }

// Has reports whether key is present.
func (c *MapCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Put stores raw bytes under key, bypassing the counters.
func (c *MapCache) Put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

type PublishedEvent struct {
	Topic   string
	Payload any
}

type RecordingPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent

	// Err, when set, is returned by Publish and the event is not recorded.
	Err error
	// OnPublish, when set, runs at the start of every Publish so tests can
	// observe store and cache state at the moment an event goes out.
	OnPublish func(topic string, payload any)
}

func (p *RecordingPublisher) Publish(_ context.Context, topic string, payload any) error {
	if p.OnPublish != nil {
		p.OnPublish(topic, payload)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, PublishedEvent{Topic: topic, Payload: payload})
	return nil
}

func (p *RecordingPublisher) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedEvent(nil), p.events...)
}

func (p *RecordingPublisher) Count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Topic == topic {
			n++
		}
	}
	return n
}
