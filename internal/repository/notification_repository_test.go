package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestNotificationRepositoryListByUserPaginates(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "title", "message", "type", "is_read", "created_at"}).
		AddRow("notif-1", "student-1", "Project title approved", "Your title was approved.", "title_approved", false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, title, message, type, is_read, created_at
        FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 20`)).
		WithArgs("student-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM notifications WHERE user_id = $1`)).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))

	notifications, total, err := repo.ListByUser(context.Background(), "student-1", 2, 20)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, 21, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkReadScopedToOwner(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`)).
		WithArgs("notif-1", "student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	updated, err := repo.MarkRead(context.Background(), "notif-1", "student-1")
	require.NoError(t, err)
	require.True(t, updated)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`)).
		WithArgs("notif-1", "student-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	updated, err = repo.MarkRead(context.Background(), "notif-1", "student-2")
	require.NoError(t, err)
	require.False(t, updated)

	require.NoError(t, mock.ExpectationsWereMet())
}
