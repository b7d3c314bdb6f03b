// Package query contains read operations over a student roster.
// Queries never modify state - they only read and return data.
//
// Engine holds the pure query operations. RosterService loads a roster
// through the student.Roster port and delegates to an Engine.
package query

import (
	"runtime"
	"slices"

	"github.com/alem-hub/studentdb/internal/domain/student"

	"golang.org/x/sync/errgroup"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// EngineConfig controls how the engine splits large inputs.
type EngineConfig struct {
	// ParallelThreshold is the input size from which projections, filters
	// and partitioning run on several goroutines. Zero disables parallelism.
	ParallelThreshold int

	// Workers bounds the number of goroutines per query.
	Workers int
}

// DefaultEngineConfig returns the settings used by cmd/report.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ParallelThreshold: 50_000,
		Workers:           runtime.GOMAXPROCS(0),
	}
}

// Engine answers queries over an in-memory slice of students.
// It holds no mutable state and is safe for concurrent use. Inputs are never
// modified; every result is freshly allocated.
type Engine struct {
	cfg EngineConfig
}

// NewEngine creates a new Engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ParallelThreshold < 0 {
		cfg.ParallelThreshold = 0
	}
	return &Engine{cfg: cfg}
}

// Sequential returns an engine that never fans out.
func Sequential() *Engine {
	return NewEngine(EngineConfig{Workers: 1})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROJECTIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetFirstNames returns one first name per student, in input order.
func (e *Engine) GetFirstNames(students []student.Student) []string {
	return e.project(students, student.FirstNameOf)
}

// GetLastNames returns one last name per student, in input order.
func (e *Engine) GetLastNames(students []student.Student) []string {
	return e.project(students, student.LastNameOf)
}

// GetGroups returns one group name per student, in input order.
func (e *Engine) GetGroups(students []student.Student) []string {
	return e.project(students, student.GroupOf)
}

// GetFullNames returns "FirstName LastName" per student, in input order.
func (e *Engine) GetFullNames(students []student.Student) []string {
	return e.project(students, student.FullNameOf)
}

// GetDistinctFirstNames returns the set of first names in ascending order.
func (e *Engine) GetDistinctFirstNames(students []student.Student) []string {
	names := e.GetFirstNames(students)
	slices.Sort(names)
	return slices.Compact(names)
}

// GetMinStudentFirstName returns the first name of the student with the
// smallest ID, or "" for an empty roster.
func (e *Engine) GetMinStudentFirstName(students []student.Student) string {
	if len(students) == 0 {
		return ""
	}
	return slices.MinFunc(students, student.CompareByID).FirstName
}

// ══════════════════════════════════════════════════════════════════════════════
// SORTING
// ══════════════════════════════════════════════════════════════════════════════

// SortStudentsByID returns a copy of students ordered by ID.
func (e *Engine) SortStudentsByID(students []student.Student) []student.Student {
	return sortedCopy(students, student.CompareByID)
}

// SortStudentsByName returns a copy of students ordered by last name,
// first name and ID.
func (e *Engine) SortStudentsByName(students []student.Student) []student.Student {
	return sortedCopy(students, student.CompareByName)
}

// ══════════════════════════════════════════════════════════════════════════════
// FILTERS
// ══════════════════════════════════════════════════════════════════════════════

// FindStudentsByFirstName returns students with exactly this first name,
// sorted by name.
func (e *Engine) FindStudentsByFirstName(students []student.Student, name string) []student.Student {
	return e.findSortedByName(students, student.FirstNameOf, name)
}

// FindStudentsByLastName returns students with exactly this last name,
// sorted by name.
func (e *Engine) FindStudentsByLastName(students []student.Student, name string) []student.Student {
	return e.findSortedByName(students, student.LastNameOf, name)
}

// FindStudentsByGroup returns the members of group sorted by name.
func (e *Engine) FindStudentsByGroup(students []student.Student, group student.GroupName) []student.Student {
	return e.findSortedByName(students, student.GroupOf, string(group))
}

// FindStudentNamesByGroup maps last name to first name for the members of
// group. Namesakes collapse to the smallest first name.
func (e *Engine) FindStudentNamesByGroup(students []student.Student, group student.GroupName) map[string]string {
	names := make(map[string]string)
	for _, s := range e.filter(students, student.GroupOf, string(group)) {
		if first, ok := names[s.LastName]; ok && first <= s.FirstName {
			continue
		}
		names[s.LastName] = s.FirstName
	}
	return names
}

// ══════════════════════════════════════════════════════════════════════════════
// GROUPS
// ══════════════════════════════════════════════════════════════════════════════

// GetGroupsByName returns every group with members sorted by name.
// Groups are ordered by group name.
func (e *Engine) GetGroupsByName(students []student.Student) []student.Group {
	return e.groups(students, student.CompareByName)
}

// GetGroupsByID returns every group with members sorted by ID.
// Groups are ordered by group name.
func (e *Engine) GetGroupsByID(students []student.Student) []student.Group {
	return e.groups(students, student.CompareByID)
}

// GetLargestGroup returns the group with the most members. Ties go to the
// smallest group name; an empty roster yields "".
func (e *Engine) GetLargestGroup(students []student.Student) student.GroupName {
	return e.largestGroup(students, memberCount)
}

// GetLargestGroupFirstName returns the group with the most distinct first
// names. Ties go to the smallest group name; an empty roster yields "".
func (e *Engine) GetLargestGroupFirstName(students []student.Student) student.GroupName {
	return e.largestGroup(students, DistinctFirstNameCount)
}

// DistinctFirstNameCount counts the distinct first names among members.
func DistinctFirstNameCount(members []student.Student) int {
	seen := make(map[string]struct{}, len(members))
	for _, s := range members {
		seen[s.FirstName] = struct{}{}
	}
	return len(seen)
}

func memberCount(members []student.Student) int {
	return len(members)
}

// ══════════════════════════════════════════════════════════════════════════════
// BUILDING BLOCKS
// ══════════════════════════════════════════════════════════════════════════════

// extractor reads one string field of a student.
type extractor func(student.Student) string

func (e *Engine) project(students []student.Student, field extractor) []string {
	out := make([]string, len(students))
	e.chunked(len(students), func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = field(students[i])
		}
	})
	return out
}

func (e *Engine) filter(students []student.Student, field extractor, key string) []student.Student {
	parts := make([][]student.Student, e.chunkCount(len(students)))
	e.chunked(len(students), func(c, lo, hi int) {
		var matched []student.Student
		for _, s := range students[lo:hi] {
			if field(s) == key {
				matched = append(matched, s)
			}
		}
		parts[c] = matched
	})
	return slices.Concat(parts...)
}

func (e *Engine) findSortedByName(students []student.Student, field extractor, key string) []student.Student {
	found := e.filter(students, field, key)
	if found == nil {
		return []student.Student{}
	}
	slices.SortStableFunc(found, student.CompareByName)
	return found
}

// partition splits students by group. Members keep input order, and the
// returned names are sorted ascending.
func (e *Engine) partition(students []student.Student) (map[student.GroupName][]student.Student, []student.GroupName) {
	parts := make([]map[student.GroupName][]student.Student, e.chunkCount(len(students)))
	e.chunked(len(students), func(c, lo, hi int) {
		local := make(map[student.GroupName][]student.Student)
		for _, s := range students[lo:hi] {
			local[s.Group] = append(local[s.Group], s)
		}
		parts[c] = local
	})

	var byGroup map[student.GroupName][]student.Student
	if len(parts) == 1 {
		byGroup = parts[0]
	} else {
		byGroup = make(map[student.GroupName][]student.Student)
		for _, local := range parts {
			for name, members := range local {
				byGroup[name] = append(byGroup[name], members...)
			}
		}
	}

	names := make([]student.GroupName, 0, len(byGroup))
	for name := range byGroup {
		names = append(names, name)
	}
	slices.Sort(names)
	return byGroup, names
}

func (e *Engine) groups(students []student.Student, order student.Comparator) []student.Group {
	byGroup, names := e.partition(students)
	out := make([]student.Group, 0, len(names))
	for _, name := range names {
		members := byGroup[name]
		slices.SortStableFunc(members, order)
		out = append(out, student.Group{Name: name, Students: members})
	}
	return out
}

// largestGroup folds over groups in name order and keeps the first strict
// maximum of metric.
func (e *Engine) largestGroup(students []student.Student, metric func([]student.Student) int) student.GroupName {
	byGroup, names := e.partition(students)

	var (
		best      student.GroupName
		bestValue = -1
	)
	for _, name := range names {
		if v := metric(byGroup[name]); v > bestValue {
			best, bestValue = name, v
		}
	}
	return best
}

func sortedCopy(students []student.Student, order student.Comparator) []student.Student {
	out := make([]student.Student, len(students))
	copy(out, students)
	slices.SortStableFunc(out, order)
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// CHUNKING
// ══════════════════════════════════════════════════════════════════════════════

func (e *Engine) parallel(n int) bool {
	return e.cfg.ParallelThreshold > 0 && e.cfg.Workers > 1 && n >= e.cfg.ParallelThreshold
}

func (e *Engine) chunkCount(n int) int {
	if !e.parallel(n) {
		return 1
	}
	return e.cfg.Workers
}

// chunked calls fn for contiguous index ranges covering [0, n). Chunk c
// always covers indexes before chunk c+1, so callers can merge per-chunk
// results in chunk order to keep input order.
func (e *Engine) chunked(n int, fn func(chunk, lo, hi int)) {
	chunks := e.chunkCount(n)
	if chunks == 1 {
		fn(0, 0, n)
		return
	}

	size := (n + chunks - 1) / chunks
	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for c := 0; c < chunks; c++ {
		lo := min(c*size, n)
		hi := min(lo+size, n)
		g.Go(func() error {
			fn(c, lo, hi)
			return nil
		})
	}
	// fn cannot fail, so Wait only joins the goroutines.
	_ = g.Wait()
}
