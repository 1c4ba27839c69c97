package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gradlink/gradlink-api/internal/models"
	appErrors "github.com/gradlink/gradlink-api/pkg/errors"
	"github.com/gradlink/gradlink-api/pkg/export"
)

type evaluationRepository interface {
	Create(ctx context.Context, evaluation *models.Evaluation) error
	FindByID(ctx context.Context, id string) (*models.Evaluation, error)
	Update(ctx context.Context, evaluation *models.Evaluation) error
	Delete(ctx context.Context, id string) error
	ListByProject(ctx context.Context, projectID string) ([]models.Evaluation, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.Evaluation, error)
}

type projectReader interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
}

// CreateEvaluationRequest describes an evaluation creation payload.
type CreateEvaluationRequest struct {
	ProjectID      string  `json:"project_id" validate:"required"`
	EvaluationType string  `json:"evaluation_type" validate:"required"`
	Score          float64 `json:"score"`
	Feedback       string  `json:"feedback" validate:"required"`
	Recommendation string  `json:"recommendation" validate:"required"`
	Status         string  `json:"status" validate:"required"`
}

// EvaluationService validates and records scored assessments, gated by the
// roster assignment between instructor and the project's student.
type EvaluationService struct {
	repo      evaluationRepository
	projects  projectReader
	roster    rosterReader
	notifier  notifier
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEvaluationService constructs EvaluationService.
func NewEvaluationService(repo evaluationRepository, projects projectReader, roster rosterReader, notifier notifier, validate *validator.Validate, logger *zap.Logger) *EvaluationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationService{
		repo:      repo,
		projects:  projects,
		roster:    roster,
		notifier:  notifier,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

// Create records an evaluation against a project. The roster check uses the
// project's student, independent of who approved the title or advises it.
func (s *EvaluationService) Create(ctx context.Context, instructorID string, req CreateEvaluationRequest) (*models.Evaluation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evaluation payload")
	}

	project, err := s.projects.FindByID(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}

	assigned, err := s.roster.IsActiveAssignment(ctx, instructorID, project.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check roster assignment")
	}
	if !assigned {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "instructor is not assigned to this student")
	}

	evaluation := &models.Evaluation{
		ProjectID:      req.ProjectID,
		StudentID:      project.StudentID,
		InstructorID:   instructorID,
		EvaluationType: models.EvaluationType(req.EvaluationType),
		Score:          req.Score,
		Feedback:       req.Feedback,
		Recommendation: req.Recommendation,
		Status:         models.EvaluationStatus(req.Status),
	}
	if err := validateEvaluationFields(evaluation); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, evaluation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create evaluation")
	}

	if err := s.notifier.Notify(ctx, evaluation.StudentID, "New evaluation recorded",
		fmt.Sprintf("A %s evaluation was recorded for your project: %s.", evaluation.EvaluationType, evaluation.Status),
		models.NotificationTypeEvaluation); err != nil {
		s.logger.Warn("failed to notify student of evaluation", zap.Error(err), zap.String("evaluation_id", evaluation.ID))
	}

	return evaluation, nil
}

// Update patches an evaluation, re-validating only the fields present.
func (s *EvaluationService) Update(ctx context.Context, id string, patch models.EvaluationPatch) (*models.Evaluation, error) {
	evaluation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
	}

	if patch.EvaluationType != nil {
		evaluation.EvaluationType = *patch.EvaluationType
	}
	if patch.Score != nil {
		evaluation.Score = *patch.Score
	}
	if patch.Feedback != nil {
		evaluation.Feedback = *patch.Feedback
	}
	if patch.Recommendation != nil {
		evaluation.Recommendation = *patch.Recommendation
	}
	if patch.Status != nil {
		evaluation.Status = *patch.Status
	}
	if err := validateEvaluationPatch(evaluation, patch); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, evaluation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update evaluation")
	}
	return evaluation, nil
}

// Delete removes an evaluation.
func (s *EvaluationService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete evaluation")
	}
	return nil
}

// ListByProject returns a project's evaluations.
func (s *EvaluationService) ListByProject(ctx context.Context, projectID string) ([]models.Evaluation, error) {
	evaluations, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evaluations")
	}
	return evaluations, nil
}

// ListByInstructor returns evaluations recorded by the instructor.
func (s *EvaluationService) ListByInstructor(ctx context.Context, instructorID string) ([]models.Evaluation, error) {
	evaluations, err := s.repo.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evaluations")
	}
	return evaluations, nil
}

// ExportProjectReport renders a project's evaluations as CSV or PDF bytes.
func (s *EvaluationService) ExportProjectReport(ctx context.Context, projectID, format string) ([]byte, string, error) {
	evaluations, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evaluations")
	}

	report := export.Report{
		Title:   "Evaluation Report",
		Columns: []string{"Type", "Score", "Status", "Recommendation", "Recorded"},
	}
	for _, e := range evaluations {
		report.Rows = append(report.Rows, map[string]string{
			"Type":           string(e.EvaluationType),
			"Score":          strconv.FormatFloat(e.Score, 'f', 1, 64),
			"Status":         string(e.Status),
			"Recommendation": e.Recommendation,
			"Recorded":       e.CreatedAt.Format("2006-01-02"),
		})
	}

	switch strings.ToLower(format) {
	case "pdf":
		data, err := s.pdf.Render(report)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return data, "application/pdf", nil
	case "", "csv":
		data, err := s.csv.Render(report)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return data, "text/csv", nil
	default:
		return nil, "", appErrors.Validationf("format must be one of [csv pdf], got %q", format)
	}
}

// validateEvaluationFields applies the creation rules to every field.
func validateEvaluationFields(e *models.Evaluation) error {
	if e.Score < 0 || e.Score > 100 {
		return appErrors.Validationf("score must be between 0 and 100, got %g", e.Score)
	}
	if len(e.Feedback) < 10 {
		return appErrors.Validationf("feedback must be at least 10 characters")
	}
	if strings.TrimSpace(e.Recommendation) == "" {
		return appErrors.Validationf("recommendation must not be empty")
	}
	if !models.ValidEvaluationType(e.EvaluationType) {
		return appErrors.Validationf("evaluation_type must be one of %v, got %q", models.EvaluationTypes, e.EvaluationType)
	}
	if !models.ValidEvaluationStatus(e.Status) {
		return appErrors.Validationf("status must be one of %v, got %q", models.EvaluationStatuses, e.Status)
	}
	return nil
}

// validateEvaluationPatch re-validates only the fields the patch touched.
func validateEvaluationPatch(e *models.Evaluation, patch models.EvaluationPatch) error {
	if patch.Score != nil && (e.Score < 0 || e.Score > 100) {
		return appErrors.Validationf("score must be between 0 and 100, got %g", e.Score)
	}
	if patch.Feedback != nil && len(e.Feedback) < 10 {
		return appErrors.Validationf("feedback must be at least 10 characters")
	}
	if patch.Recommendation != nil && strings.TrimSpace(e.Recommendation) == "" {
		return appErrors.Validationf("recommendation must not be empty")
	}
	if patch.EvaluationType != nil && !models.ValidEvaluationType(e.EvaluationType) {
		return appErrors.Validationf("evaluation_type must be one of %v, got %q", models.EvaluationTypes, e.EvaluationType)
	}
	if patch.Status != nil && !models.ValidEvaluationStatus(e.Status) {
		return appErrors.Validationf("status must be one of %v, got %q", models.EvaluationStatuses, e.Status)
	}
	return nil
}
