// Package repository layers a best-effort cache over a note document store.
//
// Reads by id follow cache-aside: the cache is consulted first, a miss reads
// the store and populates the cache with a fixed TTL. Writes go straight to
// the store and then delete the cached snapshot instead of rewriting it.
// Cache failures are logged and absorbed; store failures are returned as
// *notes.PersistenceError.
package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mrshanahan/notes-service/internal/cache"
	"github.com/mrshanahan/notes-service/pkg/notes"
)

// DefaultTTL is used when no positive TTL is configured.
const DefaultTTL = time.Hour

// Store is the durable system of record for notes. Get returns (nil, nil)
// when no note has the id; Update and Delete report whether a document was
// matched.
type Store interface {
	Create(ctx context.Context, n *notes.Note) error
	Get(ctx context.Context, id uuid.UUID) (*notes.Note, error)
	Update(ctx context.Context, n *notes.Note) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	// Count and List are scoped to owner, or to every owner when nil.
	Count(ctx context.Context, owner *uuid.UUID) (int64, error)
	List(ctx context.Context, owner *uuid.UUID, skip, limit int) ([]*notes.Note, error)
}

type Repository struct {
	store  Store
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// New wraps store with c. A nil cache disables the read-aside tier.
func New(store Store, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Repository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Repository{
		store:  store,
		cache:  c,
		ttl:    ttl,
		logger: logger.With("component", "NoteRepository"),
	}
}

// Get returns the note with id, serving it from the cache when possible.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*notes.Note, error) {
	key := notes.CacheKey(id)
	if n, ok := r.cached(ctx, key); ok {
		return n, nil
	}

	n, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, &notes.PersistenceError{Op: "get", Err: err}
	}
	if n == nil {
		r.logger.Debug("note not found", "note_id", id, "request_id", notes.RequestID(ctx))
		return nil, nil
	}
	r.populate(ctx, key, n)
	return n, nil
}

// GetFresh reads the note from the store, bypassing the cache.
func (r *Repository) GetFresh(ctx context.Context, id uuid.UUID) (*notes.Note, error) {
	n, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, &notes.PersistenceError{Op: "get", Err: err}
	}
	return n, nil
}

func (r *Repository) Create(ctx context.Context, n *notes.Note) error {
	if err := r.store.Create(ctx, n); err != nil {
		return &notes.PersistenceError{Op: "create", Err: err}
	}
	return nil
}

// Update replaces the stored note and invalidates its cache entry. It
// reports false when the note no longer exists.
func (r *Repository) Update(ctx context.Context, n *notes.Note) (bool, error) {
	found, err := r.store.Update(ctx, n)
	if err != nil {
		return false, &notes.PersistenceError{Op: "update", Err: err}
	}
	r.invalidate(ctx, n.ID)
	return found, nil
}

// Delete removes the note and invalidates its cache entry. It reports false
// when the note no longer exists.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	found, err := r.store.Delete(ctx, id)
	if err != nil {
		return false, &notes.PersistenceError{Op: "delete", Err: err}
	}
	r.invalidate(ctx, id)
	return found, nil
}

func (r *Repository) Count(ctx context.Context, owner *uuid.UUID) (int64, error) {
	count, err := r.store.Count(ctx, owner)
	if err != nil {
		return 0, &notes.PersistenceError{Op: "count", Err: err}
	}
	return count, nil
}

func (r *Repository) List(ctx context.Context, owner *uuid.UUID, skip, limit int) ([]*notes.Note, error) {
	found, err := r.store.List(ctx, owner, skip, limit)
	if err != nil {
		return nil, &notes.PersistenceError{Op: "list", Err: err}
	}
	return found, nil
}

func (r *Repository) cached(ctx context.Context, key string) (*notes.Note, bool) {
	if r.cache == nil {
		return nil, false
	}
	logger := r.logger.With("key", key, "request_id", notes.RequestID(ctx))

	raw, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache get failed; reading store", "err", err)
		return nil, false
	}
	if !ok {
		logger.Debug("cache miss")
		return nil, false
	}

	n := &notes.Note{}
	if err := json.Unmarshal(raw, n); err != nil || n.ID == uuid.Nil {
		logger.Warn("discarding unreadable cache entry", "err", err)
		if err := r.cache.Delete(ctx, key); err != nil {
			logger.Warn("cache delete failed", "err", err)
		}
		return nil, false
	}
	logger.Debug("cache hit")
	return n, true
}

func (r *Repository) populate(ctx context.Context, key string, n *notes.Note) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(n)
	if err != nil {
		r.logger.Warn("could not encode note for cache", "key", key, "err", err)
		return
	}
	if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
		r.logger.Warn("cache set failed", "key", key, "err", err, "request_id", notes.RequestID(ctx))
	}
}

func (r *Repository) invalidate(ctx context.Context, id uuid.UUID) {
	if r.cache == nil {
		return
	}
	key := notes.CacheKey(id)
	// The store write has committed; a cancelled caller must not leave the
	// old snapshot behind.
	if err := r.cache.Delete(context.WithoutCancel(ctx), key); err != nil {
		r.logger.Warn("cache invalidation failed; entry will expire by TTL",
			"key", key,
			"ttl", r.ttl,
			"err", err,
			"request_id", notes.RequestID(ctx))
	}
}
