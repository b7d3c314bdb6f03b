package student

import (
	"cmp"
	"strconv"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// GroupName identifies the study group a student belongs to (e.g. "M3239").
type GroupName string

// String returns the group name as a plain string.
func (g GroupName) String() string {
	return string(g)
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student is a read-only roster record. Records are owned by whoever loaded
// them; query code only reads them.
type Student struct {
	// ID is unique within one roster.
	ID int `json:"id"`

	// FirstName is the given name.
	FirstName string `json:"first_name"`

	// LastName is the family name.
	LastName string `json:"last_name"`

	// Group is the study group the student is enrolled in.
	Group GroupName `json:"group"`
}

// FullName returns "FirstName LastName" separated by a single space.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// String is used in log output and test failure messages.
func (s Student) String() string {
	return "#" + strconv.Itoa(s.ID) + " " + s.FullName() + " (" + string(s.Group) + ")"
}

// Field extractors used by projections and filters.
func FirstNameOf(s Student) string { return s.FirstName }
func LastNameOf(s Student) string  { return s.LastName }
func GroupOf(s Student) string     { return string(s.Group) }
func FullNameOf(s Student) string  { return s.FullName() }

// ══════════════════════════════════════════════════════════════════════════════
// ORDERINGS
// ══════════════════════════════════════════════════════════════════════════════

// Comparator returns a negative number when a sorts before b, zero when they
// are equal and a positive number otherwise.
type Comparator func(a, b Student) int

// CompareByID orders students by ascending ID.
func CompareByID(a, b Student) int {
	return cmp.Compare(a.ID, b.ID)
}

// CompareByName orders students by last name, then first name, then ID.
// The ID tiebreak makes this a total order even for namesakes.
func CompareByName(a, b Student) int {
	if c := cmp.Compare(a.LastName, b.LastName); c != 0 {
		return c
	}
	if c := cmp.Compare(a.FirstName, b.FirstName); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// ══════════════════════════════════════════════════════════════════════════════
// DERIVED AGGREGATE: GROUP
// ══════════════════════════════════════════════════════════════════════════════

// Group is a query result: every student of one group in a declared order.
type Group struct {
	Name     GroupName `json:"name"`
	Students []Student `json:"students"`
}

// Size returns the number of members.
func (g Group) Size() int {
	return len(g.Students)
}
