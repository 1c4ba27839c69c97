package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gradlink/gradlink-api/internal/models"
)

// EvaluationRepository handles persistence of evaluations.
type EvaluationRepository struct {
	db *sqlx.DB
}

// NewEvaluationRepository constructs the repository.
func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

const evaluationColumns = `id, project_id, student_id, instructor_id, evaluation_type, score, feedback, recommendation, status, created_at`

// Create persists a new evaluation.
func (r *EvaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	if evaluation.ID == "" {
		evaluation.ID = uuid.NewString()
	}
	if evaluation.CreatedAt.IsZero() {
		evaluation.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO evaluations (id, project_id, student_id, instructor_id, evaluation_type, score, feedback, recommendation, status, created_at)
        VALUES (:id, :project_id, :student_id, :instructor_id, :evaluation_type, :score, :feedback, :recommendation, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, evaluation); err != nil {
		return fmt.Errorf("create evaluation: %w", err)
	}
	return nil
}

// FindByID returns an evaluation by its ID.
func (r *EvaluationRepository) FindByID(ctx context.Context, id string) (*models.Evaluation, error) {
	query := fmt.Sprintf(`SELECT %s FROM evaluations WHERE id = $1`, evaluationColumns)
	var evaluation models.Evaluation
	if err := r.db.GetContext(ctx, &evaluation, query, id); err != nil {
		return nil, err
	}
	return &evaluation, nil
}

// Update rewrites the mutable fields of an evaluation. Identity fields
// (project, student, instructor) stay fixed after creation.
func (r *EvaluationRepository) Update(ctx context.Context, evaluation *models.Evaluation) error {
	const query = `UPDATE evaluations SET evaluation_type = :evaluation_type, score = :score,
        feedback = :feedback, recommendation = :recommendation, status = :status WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, evaluation); err != nil {
		return fmt.Errorf("update evaluation: %w", err)
	}
	return nil
}

// Delete removes an evaluation.
func (r *EvaluationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM evaluations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete evaluation: %w", err)
	}
	return nil
}

// ListByProject returns a project's evaluations, newest first.
func (r *EvaluationRepository) ListByProject(ctx context.Context, projectID string) ([]models.Evaluation, error) {
	query := fmt.Sprintf(`SELECT %s FROM evaluations WHERE project_id = $1 ORDER BY created_at DESC`, evaluationColumns)
	var evaluations []models.Evaluation
	if err := r.db.SelectContext(ctx, &evaluations, query, projectID); err != nil {
		return nil, fmt.Errorf("list project evaluations: %w", err)
	}
	return evaluations, nil
}

// ListByInstructor returns evaluations recorded by an instructor, newest first.
func (r *EvaluationRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.Evaluation, error) {
	query := fmt.Sprintf(`SELECT %s FROM evaluations WHERE instructor_id = $1 ORDER BY created_at DESC`, evaluationColumns)
	var evaluations []models.Evaluation
	if err := r.db.SelectContext(ctx, &evaluations, query, instructorID); err != nil {
		return nil, fmt.Errorf("list instructor evaluations: %w", err)
	}
	return evaluations, nil
}
