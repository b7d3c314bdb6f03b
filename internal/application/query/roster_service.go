package query

import (
	"context"
	"time"

	"github.com/alem-hub/studentdb/internal/domain/shared"
	"github.com/alem-hub/studentdb/internal/domain/student"
	"github.com/alem-hub/studentdb/pkg/circuitbreaker"
	"github.com/alem-hub/studentdb/pkg/logger"
	"github.com/alem-hub/studentdb/pkg/retry"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUESTS
// ══════════════════════════════════════════════════════════════════════════════

// NameQuery selects students by an exact first or last name.
type NameQuery struct {
	Name string
}

// Validate проверяет корректность параметров запроса.
func (q NameQuery) Validate() error {
	if q.Name == "" {
		return shared.ErrMissingName
	}
	return nil
}

// GroupQuery selects the members of one group.
type GroupQuery struct {
	Group student.GroupName
}

// Validate проверяет корректность параметров запроса.
func (q GroupQuery) Validate() error {
	if q.Group == "" {
		return shared.ErrMissingGroup
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// RosterServiceConfig tunes roster loading.
type RosterServiceConfig struct {
	// CacheTTL is how long roster snapshots live in the cache.
	CacheTTL time.Duration

	// LoadAttempts bounds roster load attempts on transient failures.
	LoadAttempts int

	// BreakerThreshold is the number of consecutive transient failures
	// after which loads fail fast for BreakerCooldown.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// DefaultRosterServiceConfig returns sensible defaults.
func DefaultRosterServiceConfig() RosterServiceConfig {
	return RosterServiceConfig{
		CacheTTL:         5 * time.Minute,
		LoadAttempts:     3,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

// RosterService loads students from a Roster and answers queries with an
// Engine. The cache is optional.
type RosterService struct {
	roster  student.Roster
	cache   student.RosterCache
	engine  *Engine
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	cfg     RosterServiceConfig
	log     *logger.Logger
}

// NewRosterService creates a new RosterService. cache may be nil.
func NewRosterService(
	roster student.Roster,
	cache student.RosterCache,
	engine *Engine,
	log *logger.Logger,
	cfg RosterServiceConfig,
) *RosterService {
	if engine == nil {
		engine = NewEngine(DefaultEngineConfig())
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("roster_service"))

	if cfg.LoadAttempts < 1 {
		cfg.LoadAttempts = 1
	}

	return &RosterService{
		roster: roster,
		cache:  cache,
		engine: engine,
		retrier: retry.RosterRetrier(cfg.LoadAttempts, shared.IsRetryable, func(attempt int, err error, delay time.Duration) {
			log.Warn("roster load failed, retrying",
				logger.Int("attempt", attempt),
				logger.Err(err),
				logger.Duration("delay", delay),
			)
		}),
		breaker: circuitbreaker.RosterBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, shared.IsRetryable,
			func(name string, from, to circuitbreaker.State) {
				log.Warn("roster circuit state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			}),
		cfg: cfg,
		log: log,
	}
}

// Engine returns the engine used by the service.
func (s *RosterService) Engine() *Engine {
	return s.engine
}

// ─────────────────────────────────────────────────────────────────────────────
// Projections
// ─────────────────────────────────────────────────────────────────────────────

// FirstNames returns every first name in roster order.
func (s *RosterService) FirstNames(ctx context.Context) ([]string, error) {
	return runAll(ctx, s, "FirstNames", s.engine.GetFirstNames)
}

// LastNames returns every last name in roster order.
func (s *RosterService) LastNames(ctx context.Context) ([]string, error) {
	return runAll(ctx, s, "LastNames", s.engine.GetLastNames)
}

// GroupNames returns every student's group in roster order.
func (s *RosterService) GroupNames(ctx context.Context) ([]string, error) {
	return runAll(ctx, s, "GroupNames", s.engine.GetGroups)
}

// FullNames returns every full name in roster order.
func (s *RosterService) FullNames(ctx context.Context) ([]string, error) {
	return runAll(ctx, s, "FullNames", s.engine.GetFullNames)
}

// DistinctFirstNames returns the sorted set of first names.
func (s *RosterService) DistinctFirstNames(ctx context.Context) ([]string, error) {
	return runAll(ctx, s, "DistinctFirstNames", s.engine.GetDistinctFirstNames)
}

// MinStudentFirstName returns the first name of the lowest-ID student.
func (s *RosterService) MinStudentFirstName(ctx context.Context) (string, error) {
	return runAll(ctx, s, "MinStudentFirstName", s.engine.GetMinStudentFirstName)
}

// ─────────────────────────────────────────────────────────────────────────────
// Sorting
// ─────────────────────────────────────────────────────────────────────────────

// StudentsByID returns the roster ordered by ID.
func (s *RosterService) StudentsByID(ctx context.Context) ([]student.Student, error) {
	return runAll(ctx, s, "StudentsByID", s.engine.SortStudentsByID)
}

// StudentsByName returns the roster ordered by name.
func (s *RosterService) StudentsByName(ctx context.Context) ([]student.Student, error) {
	return runAll(ctx, s, "StudentsByName", s.engine.SortStudentsByName)
}

// ─────────────────────────────────────────────────────────────────────────────
// Filters
// ─────────────────────────────────────────────────────────────────────────────

// FindByFirstName returns students with exactly q.Name as first name.
func (s *RosterService) FindByFirstName(ctx context.Context, q NameQuery) ([]student.Student, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return runAll(ctx, s, "FindByFirstName", func(students []student.Student) []student.Student {
		return s.engine.FindStudentsByFirstName(students, q.Name)
	})
}

// FindByLastName returns students with exactly q.Name as last name.
func (s *RosterService) FindByLastName(ctx context.Context, q NameQuery) ([]student.Student, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return runAll(ctx, s, "FindByLastName", func(students []student.Student) []student.Student {
		return s.engine.FindStudentsByLastName(students, q.Name)
	})
}

// FindByGroup returns the members of q.Group sorted by name.
func (s *RosterService) FindByGroup(ctx context.Context, q GroupQuery) ([]student.Student, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return runGroup(ctx, s, "FindByGroup", q.Group, func(students []student.Student) []student.Student {
		return s.engine.FindStudentsByGroup(students, q.Group)
	})
}

// NamesByGroup maps last name to the smallest first name within q.Group.
func (s *RosterService) NamesByGroup(ctx context.Context, q GroupQuery) (map[string]string, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return runGroup(ctx, s, "NamesByGroup", q.Group, func(students []student.Student) map[string]string {
		return s.engine.FindStudentNamesByGroup(students, q.Group)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Groups
// ─────────────────────────────────────────────────────────────────────────────

// GroupsByName returns all groups with members ordered by name.
func (s *RosterService) GroupsByName(ctx context.Context) ([]student.Group, error) {
	return runAll(ctx, s, "GroupsByName", s.engine.GetGroupsByName)
}

// GroupsByID returns all groups with members ordered by ID.
func (s *RosterService) GroupsByID(ctx context.Context) ([]student.Group, error) {
	return runAll(ctx, s, "GroupsByID", s.engine.GetGroupsByID)
}

// LargestGroup returns the group with the most members.
func (s *RosterService) LargestGroup(ctx context.Context) (student.GroupName, error) {
	return runAll(ctx, s, "LargestGroup", s.engine.GetLargestGroup)
}

// LargestGroupFirstName returns the group with the most distinct first names.
func (s *RosterService) LargestGroupFirstName(ctx context.Context) (student.GroupName, error) {
	return runAll(ctx, s, "LargestGroupFirstName", s.engine.GetLargestGroupFirstName)
}

// InvalidateCache drops cached roster snapshots.
func (s *RosterService) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// EXECUTION
// ══════════════════════════════════════════════════════════════════════════════

func runAll[T any](ctx context.Context, s *RosterService, op string, fn func([]student.Student) T) (T, error) {
	return execute(ctx, s, op, student.RosterKeyAll, s.roster.ListAll, fn)
}

func runGroup[T any](ctx context.Context, s *RosterService, op string, group student.GroupName, fn func([]student.Student) T) (T, error) {
	load := func(ctx context.Context) ([]student.Student, error) {
		return s.roster.ListByGroup(ctx, group)
	}
	return execute(ctx, s, op, student.RosterKeyForGroup(group), load, fn)
}

// execute loads the roster snapshot for key, applies fn and logs the call.
func execute[T any](
	ctx context.Context,
	s *RosterService,
	op string,
	key string,
	load func(context.Context) ([]student.Student, error),
	fn func([]student.Student) T,
) (T, error) {
	var zero T
	start := time.Now()
	log := s.log.WithRequestID(uuid.NewString()).With(logger.Operation(op))

	students, err := s.load(logger.WithContext(ctx, log), key, load)
	if err != nil {
		log.Error("query failed", logger.Err(err), logger.Latency(time.Since(start)))
		return zero, err
	}

	result := fn(students)
	log.Debug("query completed",
		logger.StudentCount(len(students)),
		logger.Latency(time.Since(start)),
	)
	return result, nil
}

// load returns the snapshot for key from the cache, falling back to the
// roster. Cache errors never fail the query.
func (s *RosterService) load(
	ctx context.Context,
	key string,
	load func(context.Context) ([]student.Student, error),
) ([]student.Student, error) {
	log := logger.FromContext(ctx)

	if s.cache != nil {
		cached, err := s.cache.GetRoster(ctx, key)
		if err == nil {
			log.Debug("roster cache hit", logger.CacheKey(key))
			return cached, nil
		}
		log.Debug("roster cache miss", logger.CacheKey(key), logger.Err(err))
	}

	students, err := retry.Run(ctx, s.retrier, func(ctx context.Context) ([]student.Student, error) {
		var students []student.Student
		err := s.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			students, err = load(ctx)
			return err
		})
		return students, err
	})
	if err != nil {
		return nil, shared.WrapError("query", "LoadRoster", shared.ErrExternalService, "failed to load roster", err)
	}

	if s.cache != nil && s.cfg.CacheTTL > 0 {
		if err := s.cache.SetRoster(ctx, key, students, s.cfg.CacheTTL); err != nil {
			log.Warn("failed to cache roster", logger.CacheKey(key), logger.Err(err))
		}
	}

	return students, nil
}
