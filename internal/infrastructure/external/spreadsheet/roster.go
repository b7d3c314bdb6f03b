// Package spreadsheet reads the student roster from an .xlsx workbook.
//
// The first non-empty row of the sheet is the header. It must name the
// columns id, first_name, last_name and group in any order and any case.
// Every following non-blank row is one student.
package spreadsheet

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/alem-hub/studentdb/internal/domain/shared"
	"github.com/alem-hub/studentdb/internal/domain/student"

	"github.com/xuri/excelize/v2"
)

// Column headers recognised in the header row.
const (
	ColumnID        = "id"
	ColumnFirstName = "first_name"
	ColumnLastName  = "last_name"
	ColumnGroup     = "group"
)

var requiredColumns = []string{ColumnID, ColumnFirstName, ColumnLastName, ColumnGroup}

// Roster implements student.Roster over an xlsx workbook.
// The workbook is re-read on every call so edits to the file are picked up.
type Roster struct {
	open  func() (*excelize.File, error)
	sheet string
	label string
}

// NewRoster reads the workbook at path. An empty sheet selects the first one.
func NewRoster(path, sheet string) *Roster {
	return &Roster{
		open:  func() (*excelize.File, error) { return excelize.OpenFile(path) },
		sheet: sheet,
		label: path,
	}
}

// NewRosterFromBytes reads an in-memory workbook.
func NewRosterFromBytes(data []byte, sheet string) *Roster {
	return &Roster{
		open:  func() (*excelize.File, error) { return excelize.OpenReader(bytes.NewReader(data)) },
		sheet: sheet,
		label: "<memory>",
	}
}

// ListAll returns every student in the sheet ordered by ID.
func (r *Roster) ListAll(ctx context.Context) ([]student.Student, error) {
	return r.load(ctx, "ListAll", nil)
}

// ListByGroup returns the students of one group ordered by ID.
func (r *Roster) ListByGroup(ctx context.Context, group student.GroupName) ([]student.Student, error) {
	return r.load(ctx, "ListByGroup", func(s student.Student) bool {
		return s.Group == group
	})
}

func (r *Roster) load(ctx context.Context, op string, keep func(student.Student) bool) ([]student.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.WrapError("roster", op, shared.ErrTimeout, "spreadsheet read cancelled", err)
	}

	f, err := r.open()
	if err != nil {
		return nil, shared.WrapError("roster", op, shared.ErrExternalService,
			fmt.Sprintf("open workbook %s", r.label), err)
	}
	defer func() { _ = f.Close() }()

	sheet := r.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" || !slices.Contains(f.GetSheetList(), sheet) {
		return nil, shared.WrapError("roster", op, shared.ErrSheetNotFound,
			fmt.Sprintf("sheet %q in %s", sheet, r.label), nil)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, shared.WrapError("roster", op, shared.ErrExternalService,
			fmt.Sprintf("read rows from sheet %q", sheet), err)
	}

	students, err := parseRows(rows)
	if err != nil {
		return nil, shared.WrapError("roster", op, shared.ErrRosterMalformed,
			fmt.Sprintf("sheet %q", sheet), err)
	}

	if keep != nil {
		students = slices.DeleteFunc(students, func(s student.Student) bool { return !keep(s) })
	}

	slices.SortStableFunc(students, student.CompareByID)
	return students, nil
}

// parseRows maps raw sheet rows to students. Row numbers in errors are
// 1-based, matching what a spreadsheet editor shows.
func parseRows(rows [][]string) ([]student.Student, error) {
	headerAt := slices.IndexFunc(rows, func(row []string) bool { return !isBlank(row) })
	if headerAt < 0 {
		return []student.Student{}, nil
	}

	columns, err := mapHeader(rows[headerAt])
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", headerAt+1, err)
	}

	students := make([]student.Student, 0, len(rows)-headerAt-1)
	seen := make(map[int]int, len(rows))

	for i := headerAt + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		rowNum := i + 1

		rawID := cell(row, columns[ColumnID])
		id, err := strconv.Atoi(rawID)
		if err != nil {
			return nil, fmt.Errorf("row %d: id %q is not an integer", rowNum, rawID)
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("row %d: id %d already used on row %d", rowNum, id, prev)
		}
		seen[id] = rowNum

		students = append(students, student.Student{
			ID:        id,
			FirstName: cell(row, columns[ColumnFirstName]),
			LastName:  cell(row, columns[ColumnLastName]),
			Group:     student.GroupName(cell(row, columns[ColumnGroup])),
		})
	}

	return students, nil
}

func mapHeader(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(requiredColumns))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := columns[key]; dup && slices.Contains(requiredColumns, key) {
			return nil, fmt.Errorf("column %q appears twice", key)
		}
		columns[key] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}

	return columns, nil
}

// cell returns the trimmed value at idx; GetRows drops trailing empty cells.
func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// WriteRoster writes students to w as a workbook with a single sheet in
// the layout Roster reads.
func WriteRoster(w io.Writer, sheet string, students []student.Student) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = "Students"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := []any{ColumnID, ColumnFirstName, ColumnLastName, ColumnGroup}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, s := range students {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{s.ID, s.FirstName, s.LastName, string(s.Group)}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
