package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alem-hub/studentdb/internal/domain/student"
)

// RosterCache implements student.RosterCache on top of Cache.
type RosterCache struct {
	cache *Cache
}

// NewRosterCache creates a new RosterCache.
func NewRosterCache(cache *Cache) *RosterCache {
	return &RosterCache{
		cache: cache,
	}
}

// GetRoster returns the snapshot stored under key.
// A missing key is reported as ErrCacheMiss.
func (r *RosterCache) GetRoster(ctx context.Context, key string) ([]student.Student, error) {
	var raw json.RawMessage
	if err := r.cache.Get(ctx, RosterKey(key), &raw); err != nil {
		return nil, err
	}
	return decodeRoster(raw)
}

// SetRoster stores a snapshot under key for ttl. A zero ttl keeps it forever.
func (r *RosterCache) SetRoster(ctx context.Context, key string, students []student.Student, ttl time.Duration) error {
	raw, err := encodeRoster(students)
	if err != nil {
		return err
	}
	return r.cache.Set(ctx, RosterKey(key), raw, ttl)
}

// Invalidate drops every roster snapshot.
func (r *RosterCache) Invalidate(ctx context.Context) error {
	return r.cache.DeleteByPattern(ctx, PrefixRoster+"*")
}

// ─────────────────────────────────────────────────────────────────────────────
// Snapshot encoding
// ─────────────────────────────────────────────────────────────────────────────

// encodeRoster stores a nil roster as [] so an empty snapshot is still a hit.
func encodeRoster(students []student.Student) (json.RawMessage, error) {
	if students == nil {
		students = []student.Student{}
	}
	data, err := json.Marshal(students)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return data, nil
}

// decodeRoster never returns a nil slice for a valid snapshot.
func decodeRoster(raw json.RawMessage) ([]student.Student, error) {
	var students []student.Student
	if err := json.Unmarshal(raw, &students); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	if students == nil {
		students = []student.Student{}
	}
	return students, nil
}
