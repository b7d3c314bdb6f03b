package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/studentdb/internal/domain/shared"
	"github.com/alem-hub/studentdb/internal/domain/student"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Roster for PostgreSQL.
type StudentRepository struct {
	conn         *Connection
	queryTimeout time.Duration
}

// NewStudentRepository creates a new StudentRepository.
// Every statement is bounded by queryTimeout; zero leaves ctx as is.
func NewStudentRepository(conn *Connection, queryTimeout time.Duration) *StudentRepository {
	return &StudentRepository{conn: conn, queryTimeout: queryTimeout}
}

func (r *StudentRepository) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

const selectStudents = `
	SELECT id, first_name, last_name, group_name
	FROM students
`

// ListAll returns every student ordered by ID.
func (r *StudentRepository) ListAll(ctx context.Context) ([]student.Student, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, selectStudents+` ORDER BY id`)
	if err != nil {
		return nil, wrapQueryError("ListAll", err)
	}
	return collectStudents("ListAll", rows)
}

// ListByGroup returns the students of one group ordered by ID.
func (r *StudentRepository) ListByGroup(ctx context.Context, group student.GroupName) ([]student.Student, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, selectStudents+` WHERE group_name = $1 ORDER BY id`, string(group))
	if err != nil {
		return nil, wrapQueryError("ListByGroup", err)
	}
	return collectStudents("ListByGroup", rows)
}

// Count returns the number of stored students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var count int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM students`).Scan(&count); err != nil {
		return 0, wrapQueryError("Count", err)
	}
	return count, nil
}

// Upsert inserts or replaces students in a single transaction.
// Used to seed the table from an external roster.
func (r *StudentRepository) Upsert(ctx context.Context, students []student.Student) error {
	if len(students) == 0 {
		return nil
	}

	query := `
		INSERT INTO students (id, first_name, last_name, group_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			group_name = EXCLUDED.group_name,
			updated_at = NOW()
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range students {
			batch.Queue(query, s.ID, s.FirstName, s.LastName, string(s.Group))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return wrapQueryError("Upsert", err)
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

// studentRow mirrors the students table columns.
type studentRow struct {
	ID        int    `db:"id"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	GroupName string `db:"group_name"`
}

func (row studentRow) toDomain() student.Student {
	return student.Student{
		ID:        row.ID,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Group:     student.GroupName(row.GroupName),
	}
}

func collectStudents(op string, rows pgx.Rows) ([]student.Student, error) {
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[studentRow])
	if err != nil {
		return nil, wrapQueryError(op, err)
	}

	students := make([]student.Student, len(records))
	for i, rec := range records {
		students[i] = rec.toDomain()
	}
	return students, nil
}

// wrapQueryError classifies a database error so callers know whether a
// retry can help. A cancelled or expired context counts as a timeout.
func wrapQueryError(op string, err error) error {
	kind := shared.ErrExternalService
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = shared.ErrTimeout
	case IsTransient(err):
		kind = shared.ErrServiceUnavailable
	}
	return shared.WrapError("roster", op, kind, fmt.Sprintf("postgres %s failed", op), err)
}
