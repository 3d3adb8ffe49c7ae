package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/univlab/campus-api/internal/models"
)

func newNotificationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestNotificationRepositoryBulkCreate(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	expires := time.Now().Add(30 * 24 * time.Hour)
	batch := []models.Notification{
		{RecipientID: "user-1", Title: "New grade", Message: "m", Type: models.NotificationTypeGrade, ExpiresAt: expires},
		{RecipientID: "user-2", Title: "New grade", Message: "m", Type: models.NotificationTypeGrade, ExpiresAt: expires},
		{RecipientID: "user-3", Title: "New grade", Message: "m", Type: models.NotificationTypeGrade, ExpiresAt: expires},
	}
	count, err := repo.BulkCreate(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, 3, count)
	for _, n := range batch {
		require.NotEmpty(t, n.ID)
		require.False(t, n.CreatedAt.IsZero())
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryBulkCreateEmpty(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	count, err := repo.BulkCreate(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkReadScopedToRecipient(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read = TRUE")).
		WithArgs("notif-1", "user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.MarkRead(context.Background(), "notif-1", "user-1")
	require.NoError(t, err)
	require.True(t, ok)

	// Somebody else's notification matches zero rows.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read = TRUE")).
		WithArgs("notif-1", "user-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.MarkRead(context.Background(), "notif-1", "user-2")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryDeleteExpired(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notifications WHERE expires_at <= NOW()")).
		WillReturnResult(sqlmock.NewResult(0, 12))

	purged, err := repo.DeleteExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12, purged)
	require.NoError(t, mock.ExpectationsWereMet())
}
