package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gradlink/gradlink-api/internal/models"
)

// Sentinel errors surfaced by transactional re-checks. Services map them onto
// the workflow error taxonomy.
var (
	// ErrNotPending signals the compare-and-set on status = 'draft' matched
	// no row: the project already left draft.
	ErrNotPending = errors.New("project not in pending status")
	// ErrAdvisorUnchanged signals a no-op advisor reassignment detected
	// against the row as locked at write time.
	ErrAdvisorUnchanged = errors.New("advisor unchanged")
	// ErrNoAdvisor signals removal when no advisor is assigned.
	ErrNoAdvisor = errors.New("no advisor assigned")
)

// ProjectRepository handles persistence of projects and the multi-statement
// transitions that must commit together with their notifications.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs the repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, student_id, instructor_id, advisor_id, assigned_by, assigned_at,
        title, description, status, submitted_at, approved_at, rejected_at, created_at, updated_at`

const projectDetailQuery = `SELECT p.id, p.student_id, p.instructor_id, p.advisor_id, p.assigned_by, p.assigned_at,
        p.title, p.description, p.status, p.submitted_at, p.approved_at, p.rejected_at, p.created_at, p.updated_at,
        s.full_name AS student_name, s.department_id AS student_department_id,
        i.full_name AS instructor_name, a.full_name AS advisor_name
        FROM projects p
        JOIN users s ON s.id = p.student_id
        JOIN users i ON i.id = p.instructor_id
        LEFT JOIN users a ON a.id = p.advisor_id`

// Create persists a new project in draft status.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now
	if project.Status == "" {
		project.Status = models.ProjectStatusDraft
	}
	if project.SubmittedAt == nil {
		project.SubmittedAt = &now
	}
	const query = `INSERT INTO projects (id, student_id, instructor_id, title, description, status, submitted_at, created_at, updated_at)
        VALUES (:id, :student_id, :instructor_id, :title, :description, :status, :submitted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// FindByID returns a project by its ID.
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*models.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1`, projectColumns)
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		return nil, err
	}
	return &project, nil
}

// FindDetailByID returns a project with participant names and the student's
// department.
func (r *ProjectRepository) FindDetailByID(ctx context.Context, id string) (*models.ProjectDetail, error) {
	query := projectDetailQuery + ` WHERE p.id = $1`
	var detail models.ProjectDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByStudentAndTitle checks for a duplicate title submission (exact match).
func (r *ProjectRepository) ExistsByStudentAndTitle(ctx context.Context, studentID, title string) (bool, error) {
	const query = `SELECT 1 FROM projects WHERE student_id = $1 AND title = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, title); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check duplicate title: %w", err)
	}
	return true, nil
}

// DecideTitle performs the draft -> approved/rejected transition as an atomic
// compare-and-set on status = 'draft', inserting the student notification in
// the same transaction. Two racing decisions cannot both succeed; the loser
// gets ErrNotPending.
func (r *ProjectRepository) DecideTitle(ctx context.Context, projectID string, status models.ProjectStatus, decidedAt time.Time, notice models.Notification) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin title decision: %w", err)
	}

	var query string
	switch status {
	case models.ProjectStatusApproved:
		query = `UPDATE projects SET status = $2, approved_at = $3, updated_at = $3 WHERE id = $1 AND status = 'draft'`
	case models.ProjectStatusRejected:
		query = `UPDATE projects SET status = $2, rejected_at = $3, updated_at = $3 WHERE id = $1 AND status = 'draft'`
	default:
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("invalid title decision status %q", status)
	}

	result, err := tx.ExecContext(ctx, query, projectID, status, decidedAt)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("decide title: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("decide title result: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return ErrNotPending
	}

	if err := insertNotificationsTx(ctx, tx, []models.Notification{notice}); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit title decision: %w", err)
	}
	return nil
}

// AdvisorAssignmentParams holds values written by an advisor assignment.
type AdvisorAssignmentParams struct {
	ProjectID  string
	AdvisorID  string
	AssignedBy string
	AssignedAt time.Time
}

// AssignAdvisor sets the advisor columns and writes both notifications in one
// transaction. The no-op condition is re-checked against the row as locked at
// write time so a concurrent removal or reassignment cannot be silently
// overwritten.
func (r *ProjectRepository) AssignAdvisor(ctx context.Context, params AdvisorAssignmentParams, notices []models.Notification) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin advisor assignment: %w", err)
	}

	var current sql.NullString
	if err := tx.GetContext(ctx, &current, `SELECT advisor_id FROM projects WHERE id = $1 FOR UPDATE`, params.ProjectID); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if current.Valid && current.String == params.AdvisorID {
		tx.Rollback() //nolint:errcheck
		return ErrAdvisorUnchanged
	}

	// Column-scoped update: the lifecycle manager owns the status columns on
	// this row and must not be clobbered.
	const query = `UPDATE projects SET advisor_id = $2, assigned_by = $3, assigned_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, params.ProjectID, params.AdvisorID, params.AssignedBy, params.AssignedAt); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("assign advisor: %w", err)
	}

	if err := insertNotificationsTx(ctx, tx, notices); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit advisor assignment: %w", err)
	}
	return nil
}

// RemoveAdvisor clears the advisor columns and writes both notifications in
// one transaction. Returns ErrNoAdvisor when the row, as locked, has none.
func (r *ProjectRepository) RemoveAdvisor(ctx context.Context, projectID string, removedAt time.Time, notices []models.Notification) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin advisor removal: %w", err)
	}

	var current sql.NullString
	if err := tx.GetContext(ctx, &current, `SELECT advisor_id FROM projects WHERE id = $1 FOR UPDATE`, projectID); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if !current.Valid {
		tx.Rollback() //nolint:errcheck
		return ErrNoAdvisor
	}

	const query = `UPDATE projects SET advisor_id = NULL, assigned_by = NULL, assigned_at = NULL, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, projectID, removedAt); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("remove advisor: %w", err)
	}

	if err := insertNotificationsTx(ctx, tx, notices); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit advisor removal: %w", err)
	}
	return nil
}

// ListByStudent returns the student's projects, newest first.
func (r *ProjectRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ProjectDetail, error) {
	query := projectDetailQuery + ` WHERE p.student_id = $1 ORDER BY p.created_at DESC`
	var projects []models.ProjectDetail
	if err := r.db.SelectContext(ctx, &projects, query, studentID); err != nil {
		return nil, fmt.Errorf("list student projects: %w", err)
	}
	return projects, nil
}

// ListByInstructor returns projects awaiting or decided by the title-approval
// instructor, newest first.
func (r *ProjectRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.ProjectDetail, error) {
	query := projectDetailQuery + ` WHERE p.instructor_id = $1 ORDER BY p.created_at DESC`
	var projects []models.ProjectDetail
	if err := r.db.SelectContext(ctx, &projects, query, instructorID); err != nil {
		return nil, fmt.Errorf("list instructor projects: %w", err)
	}
	return projects, nil
}

// ListUnassignedByDepartment returns approved projects of a department that
// have no advisor yet.
func (r *ProjectRepository) ListUnassignedByDepartment(ctx context.Context, departmentID string) ([]models.ProjectDetail, error) {
	query := projectDetailQuery + ` WHERE s.department_id = $1 AND p.status = $2 AND p.advisor_id IS NULL ORDER BY p.approved_at ASC`
	var projects []models.ProjectDetail
	if err := r.db.SelectContext(ctx, &projects, query, departmentID, models.ProjectStatusApproved); err != nil {
		return nil, fmt.Errorf("list unassigned projects: %w", err)
	}
	return projects, nil
}

// ListWithAdvisorsByDepartment returns a department's projects that have an
// advisor assigned.
func (r *ProjectRepository) ListWithAdvisorsByDepartment(ctx context.Context, departmentID string) ([]models.ProjectDetail, error) {
	query := projectDetailQuery + ` WHERE s.department_id = $1 AND p.advisor_id IS NOT NULL ORDER BY p.assigned_at DESC`
	var projects []models.ProjectDetail
	if err := r.db.SelectContext(ctx, &projects, query, departmentID); err != nil {
		return nil, fmt.Errorf("list advised projects: %w", err)
	}
	return projects, nil
}

// insertNotificationsTx writes workflow notifications inside the caller's
// transaction so they commit with the state change or not at all.
func insertNotificationsTx(ctx context.Context, tx *sqlx.Tx, notices []models.Notification) error {
	const query = `INSERT INTO notifications (id, user_id, title, message, type, is_read, created_at)
        VALUES (:id, :user_id, :title, :message, :type, :is_read, :created_at)`
	for i := range notices {
		if notices[i].ID == "" {
			notices[i].ID = uuid.NewString()
		}
		if notices[i].CreatedAt.IsZero() {
			notices[i].CreatedAt = time.Now().UTC()
		}
		if _, err := tx.NamedExecContext(ctx, query, notices[i]); err != nil {
			return fmt.Errorf("insert workflow notification: %w", err)
		}
	}
	return nil
}
