package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gradlink/gradlink-api/internal/models"
	"github.com/gradlink/gradlink-api/internal/repository"
	appErrors "github.com/gradlink/gradlink-api/pkg/errors"
)

type projectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	FindByID(ctx context.Context, id string) (*models.Project, error)
	FindDetailByID(ctx context.Context, id string) (*models.ProjectDetail, error)
	ExistsByStudentAndTitle(ctx context.Context, studentID, title string) (bool, error)
	DecideTitle(ctx context.Context, projectID string, status models.ProjectStatus, decidedAt time.Time, notice models.Notification) error
	ListByStudent(ctx context.Context, studentID string) ([]models.ProjectDetail, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.ProjectDetail, error)
}

type rosterReader interface {
	IsActiveAssignment(ctx context.Context, instructorID, studentID string) (bool, error)
}

type notifier interface {
	Notify(ctx context.Context, userID, title, message, notificationType string) error
}

// SubmitTitleRequest describes a title submission payload.
type SubmitTitleRequest struct {
	InstructorID string `json:"instructor_id" validate:"required"`
	Title        string `json:"title" validate:"required,max=255"`
	Description  string `json:"description" validate:"required"`
}

// ProjectService owns the title approval lifecycle: draft is the only
// non-terminal state; approved and rejected are terminal for the cycle.
type ProjectService struct {
	repo      projectRepository
	roster    rosterReader
	notifier  notifier
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewProjectService constructs ProjectService.
func NewProjectService(repo projectRepository, roster rosterReader, notifier notifier, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *ProjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectService{repo: repo, roster: roster, notifier: notifier, validator: validate, logger: logger, metrics: metrics}
}

// SubmitTitle creates a draft project for the student and pings the chosen
// title-approval instructor.
func (s *ProjectService) SubmitTitle(ctx context.Context, studentID string, req SubmitTitleRequest) (*models.ProjectDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid title submission payload")
	}

	assigned, err := s.roster.IsActiveAssignment(ctx, req.InstructorID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check roster assignment")
	}
	if !assigned {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "instructor is not assigned to this student")
	}

	exists, err := s.repo.ExistsByStudentAndTitle(ctx, studentID, req.Title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check duplicate title")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "duplicate project title")
	}

	project := &models.Project{
		StudentID:    studentID,
		InstructorID: req.InstructorID,
		Title:        req.Title,
		Description:  req.Description,
		Status:       models.ProjectStatusDraft,
	}
	if err := s.repo.Create(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create project")
	}

	if err := s.notifier.Notify(ctx, req.InstructorID, "New project title submitted",
		fmt.Sprintf("A student submitted the project title %q for your approval.", req.Title),
		models.NotificationTypeTitleSubmitted); err != nil {
		s.logger.Warn("failed to notify instructor of title submission", zap.Error(err), zap.String("project_id", project.ID))
	}

	detail, err := s.repo.FindDetailByID(ctx, project.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project detail")
	}
	s.countTransition("submitted")
	return detail, nil
}

// ApproveTitle moves a draft project to approved. The transition is a
// compare-and-set; a project already out of draft yields Forbidden.
func (s *ProjectService) ApproveTitle(ctx context.Context, projectID, instructorID string) (*models.ProjectDetail, error) {
	return s.decideTitle(ctx, projectID, instructorID, models.ProjectStatusApproved, "")
}

// RejectTitle moves a draft project to rejected, relaying the optional reason
// to the student.
func (s *ProjectService) RejectTitle(ctx context.Context, projectID, instructorID, reason string) (*models.ProjectDetail, error) {
	return s.decideTitle(ctx, projectID, instructorID, models.ProjectStatusRejected, reason)
}

func (s *ProjectService) decideTitle(ctx context.Context, projectID, instructorID string, status models.ProjectStatus, reason string) (*models.ProjectDetail, error) {
	project, err := s.repo.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if project.InstructorID != instructorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "project belongs to another instructor")
	}
	if project.Status != models.ProjectStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "project is not in pending status")
	}

	notice := s.decisionNotice(project, status, reason)
	if err := s.repo.DecideTitle(ctx, projectID, status, time.Now().UTC(), notice); err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			// Lost the race against a concurrent decision.
			return nil, appErrors.Clone(appErrors.ErrForbidden, "project is not in pending status")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record title decision")
	}

	detail, err := s.repo.FindDetailByID(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project detail")
	}
	s.countTransition(string(status))
	return detail, nil
}

func (s *ProjectService) decisionNotice(project *models.Project, status models.ProjectStatus, reason string) models.Notification {
	if status == models.ProjectStatusApproved {
		return models.Notification{
			UserID:  project.StudentID,
			Title:   "Project title approved",
			Message: fmt.Sprintf("Your project title %q has been approved.", project.Title),
			Type:    models.NotificationTypeTitleApproved,
		}
	}
	message := fmt.Sprintf("Your project title %q has been rejected.", project.Title)
	if strings.TrimSpace(reason) != "" {
		message = fmt.Sprintf("%s Reason: %s", message, strings.TrimSpace(reason))
	}
	return models.Notification{
		UserID:  project.StudentID,
		Title:   "Project title rejected",
		Message: message,
		Type:    models.NotificationTypeTitleRejected,
	}
}

// GetProjectStatus returns the project for its owning student.
func (s *ProjectService) GetProjectStatus(ctx context.Context, projectID, studentID string) (*models.ProjectDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if detail.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student does not own this project")
	}
	return detail, nil
}

// ListByStudent returns the student's own projects.
func (s *ProjectService) ListByStudent(ctx context.Context, studentID string) ([]models.ProjectDetail, error) {
	projects, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}
	return projects, nil
}

// ListByInstructor returns projects whose title approval belongs to the
// instructor.
func (s *ProjectService) ListByInstructor(ctx context.Context, instructorID string) ([]models.ProjectDetail, error) {
	projects, err := s.repo.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}
	return projects, nil
}

func (s *ProjectService) countTransition(transition string) {
	if s.metrics != nil {
		s.metrics.CountProjectTransition(transition)
	}
}
