package models

import "time"

// RosterAssignment is the authoritative record of which instructor is
// responsible for which student. Owned by external roster management; the
// workflow engine only reads it.
type RosterAssignment struct {
	ID           string    `db:"id" json:"id"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
