package query

import (
	"context"
	"time"

	"github.com/alem-hub/studentdb/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GROUP REPORT
// Сводка по всем группам: размеры, уникальные имена и самые большие группы.
// ══════════════════════════════════════════════════════════════════════════════

// GroupSummaryDTO describes one group in a report.
type GroupSummaryDTO struct {
	Name               string            `json:"name"`
	Size               int               `json:"size"`
	DistinctFirstNames int               `json:"distinct_first_names"`
	Students           []student.Student `json:"students"`
}

// GroupReport is the result of RosterService.Report.
type GroupReport struct {
	TotalStudents         int               `json:"total_students"`
	Groups                []GroupSummaryDTO `json:"groups"`
	DistinctFirstNames    []string          `json:"distinct_first_names"`
	LargestGroup          string            `json:"largest_group"`
	LargestGroupFirstName string            `json:"largest_group_first_name"`
	GeneratedAt           time.Time         `json:"generated_at"`
}

// BuildGroupReport summarises a roster. Groups are ordered by name and their
// members by student name.
func (e *Engine) BuildGroupReport(students []student.Student) *GroupReport {
	groups := e.GetGroupsByName(students)

	summaries := make([]GroupSummaryDTO, len(groups))
	for i, g := range groups {
		summaries[i] = GroupSummaryDTO{
			Name:               string(g.Name),
			Size:               g.Size(),
			DistinctFirstNames: DistinctFirstNameCount(g.Students),
			Students:           g.Students,
		}
	}

	return &GroupReport{
		TotalStudents:         len(students),
		Groups:                summaries,
		DistinctFirstNames:    e.GetDistinctFirstNames(students),
		LargestGroup:          string(e.GetLargestGroup(students)),
		LargestGroupFirstName: string(e.GetLargestGroupFirstName(students)),
		GeneratedAt:           time.Now().UTC(),
	}
}

// Report loads the roster once and builds a GroupReport from it.
func (s *RosterService) Report(ctx context.Context) (*GroupReport, error) {
	return runAll(ctx, s, "Report", s.engine.BuildGroupReport)
}
