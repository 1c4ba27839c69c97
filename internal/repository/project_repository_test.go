package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/gradlink/gradlink-api/internal/models"
)

func newProjectRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func studentNotice() models.Notification {
	return models.Notification{
		UserID:  "student-1",
		Title:   "Project title approved",
		Message: "Your project title has been approved.",
		Type:    models.NotificationTypeTitleApproved,
	}
}

func TestProjectRepositoryDecideTitleApproves(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)
	decidedAt := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE projects SET status = $2, approved_at = $3, updated_at = $3 WHERE id = $1 AND status = 'draft'`)).
		WithArgs("proj-1", models.ProjectStatusApproved, decidedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notifications").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.DecideTitle(context.Background(), "proj-1", models.ProjectStatusApproved, decidedAt, studentNotice())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryDecideTitleLosesCompareAndSet(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)
	decidedAt := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE projects SET status = $2, rejected_at = $3, updated_at = $3 WHERE id = $1 AND status = 'draft'`)).
		WithArgs("proj-1", models.ProjectStatusRejected, decidedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.DecideTitle(context.Background(), "proj-1", models.ProjectStatusRejected, decidedAt, studentNotice())
	require.ErrorIs(t, err, ErrNotPending)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryDecideTitleRejectsInvalidStatus(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := repo.DecideTitle(context.Background(), "proj-1", models.ProjectStatusDraft, time.Now(), studentNotice())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotPending)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryAssignAdvisorCommitsOnce(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)
	assignedAt := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT advisor_id FROM projects WHERE id = $1 FOR UPDATE`)).
		WithArgs("proj-1").
		WillReturnRows(sqlmock.NewRows([]string{"advisor_id"}).AddRow(nil))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE projects SET advisor_id = $2, assigned_by = $3, assigned_at = $4, updated_at = $4 WHERE id = $1`)).
		WithArgs("proj-1", "instr-2", "head-1", assignedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notifications").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notifications").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	params := AdvisorAssignmentParams{ProjectID: "proj-1", AdvisorID: "instr-2", AssignedBy: "head-1", AssignedAt: assignedAt}
	notices := []models.Notification{
		{UserID: "instr-2", Title: "Advising assignment", Type: models.NotificationTypeAdvisorAssigned},
		{UserID: "student-1", Title: "Advisor assigned", Type: models.NotificationTypeAdvisorAssigned},
	}
	err := repo.AssignAdvisor(context.Background(), params, notices)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryAssignAdvisorNoOpRollsBack(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT advisor_id FROM projects WHERE id = $1 FOR UPDATE`)).
		WithArgs("proj-1").
		WillReturnRows(sqlmock.NewRows([]string{"advisor_id"}).AddRow("instr-2"))
	mock.ExpectRollback()

	params := AdvisorAssignmentParams{ProjectID: "proj-1", AdvisorID: "instr-2", AssignedBy: "head-1", AssignedAt: time.Now()}
	err := repo.AssignAdvisor(context.Background(), params, nil)
	require.ErrorIs(t, err, ErrAdvisorUnchanged)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryAssignAdvisorRollsBackOnNoticeFailure(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)
	assignedAt := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT advisor_id FROM projects WHERE id = $1 FOR UPDATE`)).
		WithArgs("proj-1").
		WillReturnRows(sqlmock.NewRows([]string{"advisor_id"}).AddRow(nil))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE projects SET advisor_id = $2, assigned_by = $3, assigned_at = $4, updated_at = $4 WHERE id = $1`)).
		WithArgs("proj-1", "instr-2", "head-1", assignedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notifications").
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	params := AdvisorAssignmentParams{ProjectID: "proj-1", AdvisorID: "instr-2", AssignedBy: "head-1", AssignedAt: assignedAt}
	notices := []models.Notification{{UserID: "instr-2", Title: "Advising assignment", Type: models.NotificationTypeAdvisorAssigned}}
	err := repo.AssignAdvisor(context.Background(), params, notices)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryRemoveAdvisorWithoutAdvisor(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT advisor_id FROM projects WHERE id = $1 FOR UPDATE`)).
		WithArgs("proj-1").
		WillReturnRows(sqlmock.NewRows([]string{"advisor_id"}).AddRow(nil))
	mock.ExpectRollback()

	err := repo.RemoveAdvisor(context.Background(), "proj-1", time.Now(), nil)
	require.ErrorIs(t, err, ErrNoAdvisor)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryExistsByStudentAndTitle(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM projects WHERE student_id = $1 AND title = $2 LIMIT 1`)).
		WithArgs("student-1", "Taken Title").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	exists, err := repo.ExistsByStudentAndTitle(context.Background(), "student-1", "Taken Title")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM projects WHERE student_id = $1 AND title = $2 LIMIT 1`)).
		WithArgs("student-1", "Fresh Title").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	exists, err = repo.ExistsByStudentAndTitle(context.Background(), "student-1", "Fresh Title")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
