package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// RosterRepository reads the instructor-student roster. The table is owned by
// external roster management; the engine never writes it.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// IsActiveAssignment reports whether the instructor is currently assigned to
// the student.
func (r *RosterRepository) IsActiveAssignment(ctx context.Context, instructorID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM instructor_student_assignments
        WHERE instructor_id = $1 AND student_id = $2 AND active = TRUE LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, instructorID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check roster assignment: %w", err)
	}
	return true, nil
}
