package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gradlink/gradlink-api/internal/models"
	"github.com/gradlink/gradlink-api/internal/repository"
	appErrors "github.com/gradlink/gradlink-api/pkg/errors"
)

type advisorProjectRepository interface {
	FindDetailByID(ctx context.Context, id string) (*models.ProjectDetail, error)
	AssignAdvisor(ctx context.Context, params repository.AdvisorAssignmentParams, notices []models.Notification) error
	RemoveAdvisor(ctx context.Context, projectID string, removedAt time.Time, notices []models.Notification) error
	ListUnassignedByDepartment(ctx context.Context, departmentID string) ([]models.ProjectDetail, error)
	ListWithAdvisorsByDepartment(ctx context.Context, departmentID string) ([]models.ProjectDetail, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListInstructorsByLoad(ctx context.Context, departmentID string) ([]models.InstructorLoad, error)
}

// AdvisorService performs the transactional reassignment of a project's
// advising instructor, independent of the title-approval instructor.
type AdvisorService struct {
	projects advisorProjectRepository
	users    userReader
	logger   *zap.Logger
	metrics  *MetricsService
}

// NewAdvisorService constructs AdvisorService.
func NewAdvisorService(projects advisorProjectRepository, users userReader, logger *zap.Logger, metrics *MetricsService) *AdvisorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdvisorService{projects: projects, users: users, logger: logger, metrics: metrics}
}

// AssignAdvisor sets a department-scoped advisor on a project. Project write
// and both notifications commit in one transaction; no partial application is
// observable.
func (s *AdvisorService) AssignAdvisor(ctx context.Context, projectID, advisorID, headID string) (*models.ProjectDetail, error) {
	project, err := s.projects.FindDetailByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}

	candidate, err := s.users.FindByID(ctx, advisorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}

	if candidate.Role != models.RoleInstructor {
		return nil, appErrors.Validationf("advisor candidate is not an instructor (role %q)", candidate.Role)
	}
	if candidate.DepartmentID == nil || project.StudentDepartmentID == nil ||
		*candidate.DepartmentID != *project.StudentDepartmentID {
		return nil, appErrors.Validationf("advisor must be in the same department as the student")
	}
	if project.AdvisorID != nil && *project.AdvisorID == advisorID {
		return nil, appErrors.Clone(appErrors.ErrConflict, "advisor already assigned to this project")
	}

	now := time.Now().UTC()
	notices := []models.Notification{
		{
			UserID:  advisorID,
			Title:   "Advising assignment",
			Message: fmt.Sprintf("You have been assigned as advisor for the project %q.", project.Title),
			Type:    models.NotificationTypeAdvisorAssigned,
		},
		{
			UserID:  project.StudentID,
			Title:   "Advisor assigned",
			Message: fmt.Sprintf("%s has been assigned as advisor for your project %q.", candidate.FullName, project.Title),
			Type:    models.NotificationTypeAdvisorAssigned,
		},
	}

	params := repository.AdvisorAssignmentParams{
		ProjectID:  projectID,
		AdvisorID:  advisorID,
		AssignedBy: headID,
		AssignedAt: now,
	}
	if err := s.projects.AssignAdvisor(ctx, params, notices); err != nil {
		switch {
		case errors.Is(err, repository.ErrAdvisorUnchanged):
			return nil, appErrors.Clone(appErrors.ErrConflict, "advisor already assigned to this project")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign advisor")
		}
	}

	detail, err := s.projects.FindDetailByID(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project detail")
	}
	if s.metrics != nil {
		s.metrics.CountAdvisorChange("assigned")
	}
	return detail, nil
}

// RemoveAdvisor clears a project's advisor, notifying the former advisor and
// the student in the same transaction.
func (s *AdvisorService) RemoveAdvisor(ctx context.Context, projectID, headID string) (*models.ProjectDetail, error) {
	project, err := s.projects.FindDetailByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if project.AdvisorID == nil {
		return nil, appErrors.Validationf("no advisor assigned to this project")
	}

	notices := []models.Notification{
		{
			UserID:  *project.AdvisorID,
			Title:   "Advising assignment removed",
			Message: fmt.Sprintf("You are no longer the advisor for the project %q.", project.Title),
			Type:    models.NotificationTypeAdvisorRemoved,
		},
		{
			UserID:  project.StudentID,
			Title:   "Advisor removed",
			Message: fmt.Sprintf("The advisor for your project %q has been removed.", project.Title),
			Type:    models.NotificationTypeAdvisorRemoved,
		},
	}

	if err := s.projects.RemoveAdvisor(ctx, projectID, time.Now().UTC(), notices); err != nil {
		switch {
		case errors.Is(err, repository.ErrNoAdvisor):
			return nil, appErrors.Validationf("no advisor assigned to this project")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove advisor")
		}
	}

	detail, err := s.projects.FindDetailByID(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project detail")
	}
	if s.metrics != nil {
		s.metrics.CountAdvisorChange("removed")
	}
	return detail, nil
}

// GetAvailableInstructors lists the head's department instructors ranked by
// ascending advising load. As a monitoring view it degrades to an empty list
// on storage failure.
func (s *AdvisorService) GetAvailableInstructors(ctx context.Context, headID string) ([]models.InstructorLoad, error) {
	departmentID, err := s.resolveDepartment(ctx, headID)
	if err != nil {
		return nil, err
	}
	instructors, err := s.users.ListInstructorsByLoad(ctx, departmentID)
	if err != nil {
		s.logger.Warn("instructor load query failed, returning empty view", zap.Error(err), zap.String("department_id", departmentID))
		return []models.InstructorLoad{}, nil
	}
	return instructors, nil
}

// GetUnassignedProjects lists approved projects of the head's department that
// still need an advisor.
func (s *AdvisorService) GetUnassignedProjects(ctx context.Context, headID string) ([]models.ProjectDetail, error) {
	departmentID, err := s.resolveDepartment(ctx, headID)
	if err != nil {
		return nil, err
	}
	projects, err := s.projects.ListUnassignedByDepartment(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unassigned projects")
	}
	return projects, nil
}

// GetProjectsWithAdvisors lists the head's department projects with advisors.
func (s *AdvisorService) GetProjectsWithAdvisors(ctx context.Context, headID string) ([]models.ProjectDetail, error) {
	departmentID, err := s.resolveDepartment(ctx, headID)
	if err != nil {
		return nil, err
	}
	projects, err := s.projects.ListWithAdvisorsByDepartment(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list advised projects")
	}
	return projects, nil
}

// resolveDepartment reads the department from the head's own row; it is never
// taken from the caller's request.
func (s *AdvisorService) resolveDepartment(ctx context.Context, headID string) (string, error) {
	head, err := s.users.FindByID(ctx, headID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "department head not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department head")
	}
	if head.DepartmentID == nil {
		return "", appErrors.Clone(appErrors.ErrForbidden, "caller has no department")
	}
	return *head.DepartmentID, nil
}
