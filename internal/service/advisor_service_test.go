package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradlink/gradlink-api/internal/models"
	"github.com/gradlink/gradlink-api/internal/repository"
	appErrors "github.com/gradlink/gradlink-api/pkg/errors"
)

type mockAdvisorProjectRepo struct {
	detail      *models.ProjectDetail
	assignErr   error
	removeErr   error
	assigned    *repository.AdvisorAssignmentParams
	notices     []models.Notification
	removeCalls int
}

func (m *mockAdvisorProjectRepo) FindDetailByID(ctx context.Context, id string) (*models.ProjectDetail, error) {
	if m.detail == nil {
		return nil, sql.ErrNoRows
	}
	copied := *m.detail
	return &copied, nil
}

func (m *mockAdvisorProjectRepo) AssignAdvisor(ctx context.Context, params repository.AdvisorAssignmentParams, notices []models.Notification) error {
	if m.assignErr != nil {
		return m.assignErr
	}
	m.assigned = &params
	m.notices = notices
	m.detail.AdvisorID = &params.AdvisorID
	return nil
}

func (m *mockAdvisorProjectRepo) RemoveAdvisor(ctx context.Context, projectID string, removedAt time.Time, notices []models.Notification) error {
	m.removeCalls++
	if m.removeErr != nil {
		return m.removeErr
	}
	m.notices = notices
	m.detail.AdvisorID = nil
	return nil
}

func (m *mockAdvisorProjectRepo) ListUnassignedByDepartment(ctx context.Context, departmentID string) ([]models.ProjectDetail, error) {
	return []models.ProjectDetail{*m.detail}, nil
}

func (m *mockAdvisorProjectRepo) ListWithAdvisorsByDepartment(ctx context.Context, departmentID string) ([]models.ProjectDetail, error) {
	return []models.ProjectDetail{*m.detail}, nil
}

type mockUserReader struct {
	users   map[string]*models.User
	loads   []models.InstructorLoad
	loadErr error
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserReader) ListInstructorsByLoad(ctx context.Context, departmentID string) ([]models.InstructorLoad, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.loads, nil
}

func strPtr(s string) *string { return &s }

func advisorFixtures() (*mockAdvisorProjectRepo, *mockUserReader) {
	dept := "dept-cs"
	repo := &mockAdvisorProjectRepo{
		detail: &models.ProjectDetail{
			Project: models.Project{
				ID:           "proj-1",
				StudentID:    "student-1",
				InstructorID: "instr-1",
				Title:        "Stream Processing at Scale",
				Status:       models.ProjectStatusApproved,
			},
			StudentDepartmentID: &dept,
		},
	}
	users := &mockUserReader{users: map[string]*models.User{
		"head-1":  {ID: "head-1", Role: models.RoleDepartmentHead, DepartmentID: strPtr("dept-cs"), FullName: "Dr. Chair"},
		"instr-2": {ID: "instr-2", Role: models.RoleInstructor, DepartmentID: strPtr("dept-cs"), FullName: "Dr. Advisor"},
		"instr-3": {ID: "instr-3", Role: models.RoleInstructor, DepartmentID: strPtr("dept-ee"), FullName: "Dr. Elsewhere"},
		"stud-9":  {ID: "stud-9", Role: models.RoleStudent, DepartmentID: strPtr("dept-cs"), FullName: "Not An Instructor"},
	}}
	return repo, users
}

func TestAssignAdvisorNotifiesBothParties(t *testing.T) {
	repo, users := advisorFixtures()
	svc := NewAdvisorService(repo, users, nil, nil)

	detail, err := svc.AssignAdvisor(context.Background(), "proj-1", "instr-2", "head-1")
	require.NoError(t, err)
	require.NotNil(t, detail.AdvisorID)
	assert.Equal(t, "instr-2", *detail.AdvisorID)

	require.NotNil(t, repo.assigned)
	assert.Equal(t, "head-1", repo.assigned.AssignedBy)

	require.Len(t, repo.notices, 2)
	assert.Equal(t, "instr-2", repo.notices[0].UserID)
	assert.Equal(t, "student-1", repo.notices[1].UserID)
	assert.Equal(t, models.NotificationTypeAdvisorAssigned, repo.notices[0].Type)
}

func TestAssignAdvisorRejectsNonInstructor(t *testing.T) {
	repo, users := advisorFixtures()
	svc := NewAdvisorService(repo, users, nil, nil)

	_, err := svc.AssignAdvisor(context.Background(), "proj-1", "stud-9", "head-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Nil(t, repo.assigned)
}

func TestAssignAdvisorRejectsCrossDepartment(t *testing.T) {
	repo, users := advisorFixtures()
	svc := NewAdvisorService(repo, users, nil, nil)

	_, err := svc.AssignAdvisor(context.Background(), "proj-1", "instr-3", "head-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "same department")
}

func TestAssignAdvisorNoOpReassignmentConflicts(t *testing.T) {
	repo, users := advisorFixtures()
	repo.detail.AdvisorID = strPtr("instr-2")
	svc := NewAdvisorService(repo, users, nil, nil)

	_, err := svc.AssignAdvisor(context.Background(), "proj-1", "instr-2", "head-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestAssignAdvisorMapsRaceToConflict(t *testing.T) {
	repo, users := advisorFixtures()
	repo.assignErr = repository.ErrAdvisorUnchanged
	svc := NewAdvisorService(repo, users, nil, nil)

	_, err := svc.AssignAdvisor(context.Background(), "proj-1", "instr-2", "head-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestAssignAdvisorUnknownProject(t *testing.T) {
	repo, users := advisorFixtures()
	repo.detail = nil
	svc := NewAdvisorService(repo, users, nil, nil)

	_, err := svc.AssignAdvisor(context.Background(), "proj-missing", "instr-2", "head-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestRemoveAdvisorClearsAssignment(t *testing.T) {
	repo, users := advisorFixtures()
	repo.detail.AdvisorID = strPtr("instr-2")
	svc := NewAdvisorService(repo, users, nil, nil)

	detail, err := svc.RemoveAdvisor(context.Background(), "proj-1", "head-1")
	require.NoError(t, err)
	assert.Nil(t, detail.AdvisorID)
	require.Len(t, repo.notices, 2)
	assert.Equal(t, models.NotificationTypeAdvisorRemoved, repo.notices[0].Type)
}

func TestRemoveAdvisorWithoutAdvisorFails(t *testing.T) {
	repo, users := advisorFixtures()
	svc := NewAdvisorService(repo, users, nil, nil)

	_, err := svc.RemoveAdvisor(context.Background(), "proj-1", "head-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Zero(t, repo.removeCalls)
}

func TestGetAvailableInstructorsScopedToHeadDepartment(t *testing.T) {
	repo, users := advisorFixtures()
	users.loads = []models.InstructorLoad{
		{ID: "instr-2", FullName: "Dr. Advisor", AdvisedCount: 1},
		{ID: "instr-4", FullName: "Dr. Busy", AdvisedCount: 7},
	}
	svc := NewAdvisorService(repo, users, nil, nil)

	loads, err := svc.GetAvailableInstructors(context.Background(), "head-1")
	require.NoError(t, err)
	require.Len(t, loads, 2)
	assert.Equal(t, "instr-2", loads[0].ID)
}

func TestGetAvailableInstructorsDegradesToEmpty(t *testing.T) {
	repo, users := advisorFixtures()
	users.loadErr = errors.New("query timeout")
	svc := NewAdvisorService(repo, users, nil, nil)

	loads, err := svc.GetAvailableInstructors(context.Background(), "head-1")
	require.NoError(t, err)
	assert.Empty(t, loads)
}

func TestMonitoringViewsRequireDepartment(t *testing.T) {
	repo, users := advisorFixtures()
	users.users["head-1"].DepartmentID = nil
	svc := NewAdvisorService(repo, users, nil, nil)

	_, err := svc.GetUnassignedProjects(context.Background(), "head-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
