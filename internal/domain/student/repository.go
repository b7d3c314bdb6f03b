package student

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence and infrastructure/external.
// ══════════════════════════════════════════════════════════════════════════════

// Roster supplies already-valid student records.
type Roster interface {
	// ListAll returns every student ordered by ID.
	ListAll(ctx context.Context) ([]Student, error)

	// ListByGroup returns the students of one group ordered by ID.
	// An unknown group yields an empty slice, not an error.
	ListByGroup(ctx context.Context, group GroupName) ([]Student, error)
}

// RosterCache keeps roster snapshots close to the query service.
type RosterCache interface {
	// GetRoster returns the cached snapshot stored under key.
	// A miss is reported as an error; callers fall back to the Roster.
	GetRoster(ctx context.Context, key string) ([]Student, error)

	// SetRoster stores a snapshot under key for ttl.
	SetRoster(ctx context.Context, key string, students []Student, ttl time.Duration) error

	// Invalidate drops every cached snapshot.
	Invalidate(ctx context.Context) error
}

// Cache keys used by the query service.
const (
	RosterKeyAll = "all"
)

// RosterKeyForGroup returns the cache key of a single group's snapshot.
func RosterKeyForGroup(group GroupName) string {
	return "group:" + string(group)
}
