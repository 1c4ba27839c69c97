package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradlink/gradlink-api/internal/models"
	appErrors "github.com/gradlink/gradlink-api/pkg/errors"
)

type mockEvaluationRepo struct {
	evaluations map[string]*models.Evaluation
	created     int
	updated     *models.Evaluation
	deleted     []string
}

func newMockEvaluationRepo() *mockEvaluationRepo {
	return &mockEvaluationRepo{evaluations: make(map[string]*models.Evaluation)}
}

func (m *mockEvaluationRepo) Create(ctx context.Context, evaluation *models.Evaluation) error {
	m.created++
	evaluation.ID = "eval-1"
	m.evaluations[evaluation.ID] = evaluation
	return nil
}

func (m *mockEvaluationRepo) FindByID(ctx context.Context, id string) (*models.Evaluation, error) {
	evaluation, ok := m.evaluations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *evaluation
	return &copied, nil
}

func (m *mockEvaluationRepo) Update(ctx context.Context, evaluation *models.Evaluation) error {
	m.updated = evaluation
	m.evaluations[evaluation.ID] = evaluation
	return nil
}

func (m *mockEvaluationRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.evaluations, id)
	return nil
}

func (m *mockEvaluationRepo) ListByProject(ctx context.Context, projectID string) ([]models.Evaluation, error) {
	var out []models.Evaluation
	for _, e := range m.evaluations {
		if e.ProjectID == projectID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockEvaluationRepo) ListByInstructor(ctx context.Context, instructorID string) ([]models.Evaluation, error) {
	var out []models.Evaluation
	for _, e := range m.evaluations {
		if e.InstructorID == instructorID {
			out = append(out, *e)
		}
	}
	return out, nil
}

type stubProjectReader struct {
	project *models.Project
}

func (s *stubProjectReader) FindByID(ctx context.Context, id string) (*models.Project, error) {
	if s.project == nil || s.project.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.project, nil
}

func validCreateRequest() CreateEvaluationRequest {
	return CreateEvaluationRequest{
		ProjectID:      "proj-1",
		EvaluationType: string(models.EvaluationTypeProposal),
		Score:          87.5,
		Feedback:       "Strong proposal with a clear evaluation plan.",
		Recommendation: "Proceed to implementation phase.",
		Status:         string(models.EvaluationStatusApproved),
	}
}

func evaluationFixtures() (*mockEvaluationRepo, *stubProjectReader, *mockNotifier, *EvaluationService) {
	repo := newMockEvaluationRepo()
	projects := &stubProjectReader{project: &models.Project{ID: "proj-1", StudentID: "student-1", Status: models.ProjectStatusApproved}}
	notifier := &mockNotifier{}
	svc := NewEvaluationService(repo, projects, &mockRoster{assigned: true}, notifier, nil, nil)
	return repo, projects, notifier, svc
}

func TestCreateEvaluationRecordsAndNotifies(t *testing.T) {
	repo, _, notifier, svc := evaluationFixtures()

	evaluation, err := svc.Create(context.Background(), "instr-1", validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, "student-1", evaluation.StudentID)
	assert.Equal(t, models.EvaluationTypeProposal, evaluation.EvaluationType)
	assert.Equal(t, 1, repo.created)

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "student-1", notifier.calls[0].UserID)
	assert.Equal(t, models.NotificationTypeEvaluation, notifier.calls[0].Type)
}

func TestCreateEvaluationRequiresRosterAssignment(t *testing.T) {
	repo := newMockEvaluationRepo()
	projects := &stubProjectReader{project: &models.Project{ID: "proj-1", StudentID: "student-1"}}
	svc := NewEvaluationService(repo, projects, &mockRoster{assigned: false}, &mockNotifier{}, nil, nil)

	_, err := svc.Create(context.Background(), "instr-1", validCreateRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Zero(t, repo.created)
}

func TestCreateEvaluationFieldRules(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*CreateEvaluationRequest)
		message string
	}{
		{"score above bound", func(r *CreateEvaluationRequest) { r.Score = 100.5 }, "score"},
		{"score below bound", func(r *CreateEvaluationRequest) { r.Score = -1 }, "score"},
		{"short feedback", func(r *CreateEvaluationRequest) { r.Feedback = "too short" }, "feedback"},
		{"blank recommendation", func(r *CreateEvaluationRequest) { r.Recommendation = "   " }, "recommendation"},
		{"unknown type", func(r *CreateEvaluationRequest) { r.EvaluationType = "vibe_check" }, "evaluation_type"},
		{"unknown status", func(r *CreateEvaluationRequest) { r.Status = "Meh" }, "status"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, svc := evaluationFixtures()
			req := validCreateRequest()
			tc.mutate(&req)

			_, err := svc.Create(context.Background(), "instr-1", req)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
			assert.True(t, strings.Contains(appErr.Message, tc.message), "message %q should name %q", appErr.Message, tc.message)
		})
	}
}

func TestCreateEvaluationCountsFeedbackLengthAsSubmitted(t *testing.T) {
	repo, _, _, svc := evaluationFixtures()
	req := validCreateRequest()
	req.Feedback = "  solid.  " // 10 characters, spaces included

	_, err := svc.Create(context.Background(), "instr-1", req)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.created)
}

func TestUpdateEvaluationPatchesOnlyProvidedFields(t *testing.T) {
	repo, _, _, svc := evaluationFixtures()
	created, err := svc.Create(context.Background(), "instr-1", validCreateRequest())
	require.NoError(t, err)

	score := 92.0
	updated, err := svc.Update(context.Background(), created.ID, models.EvaluationPatch{Score: &score})
	require.NoError(t, err)
	assert.Equal(t, 92.0, updated.Score)
	assert.Equal(t, created.Feedback, updated.Feedback)
	assert.Equal(t, created.Recommendation, updated.Recommendation)
	require.NotNil(t, repo.updated)
}

func TestUpdateEvaluationRevalidatesPatchedFields(t *testing.T) {
	_, _, _, svc := evaluationFixtures()
	created, err := svc.Create(context.Background(), "instr-1", validCreateRequest())
	require.NoError(t, err)

	bad := 140.0
	_, err = svc.Update(context.Background(), created.ID, models.EvaluationPatch{Score: &bad})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	short := "nope"
	_, err = svc.Update(context.Background(), created.ID, models.EvaluationPatch{Feedback: &short})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestUpdateEvaluationNotFound(t *testing.T) {
	_, _, _, svc := evaluationFixtures()
	score := 50.0
	_, err := svc.Update(context.Background(), "eval-missing", models.EvaluationPatch{Score: &score})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestDeleteEvaluation(t *testing.T) {
	repo, _, _, svc := evaluationFixtures()
	created, err := svc.Create(context.Background(), "instr-1", validCreateRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	assert.Equal(t, []string{created.ID}, repo.deleted)

	err = svc.Delete(context.Background(), created.ID)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestExportProjectReportFormats(t *testing.T) {
	_, _, _, svc := evaluationFixtures()
	_, err := svc.Create(context.Background(), "instr-1", validCreateRequest())
	require.NoError(t, err)

	data, contentType, err := svc.ExportProjectReport(context.Background(), "proj-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(data), "proposal")

	data, contentType, err = svc.ExportProjectReport(context.Background(), "proj-1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.NotEmpty(t, data)

	_, _, err = svc.ExportProjectReport(context.Background(), "proj-1", "xlsx")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
