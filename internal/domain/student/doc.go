// Package student contains the roster domain model.
//
// The package defines:
//
//   - Student: an immutable roster record (ID, first name, last name, group)
//   - Group: a derived aggregate of students sharing a group name
//   - Comparators: CompareByID and CompareByName, the two orderings every
//     query result is expressed in
//   - Repository interfaces: Roster and RosterCache, implemented in infrastructure
//
// # Orderings
//
// CompareByName sorts by last name, then first name, then ID:
//
//	slices.SortStableFunc(students, student.CompareByName)
//
// String comparisons are ordinal (byte-wise), so "Zoe" sorts before "adam".
//
// The package has no dependencies outside the standard library.
package student
