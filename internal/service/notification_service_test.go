package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/univlab/campus-api/internal/models"
	appErrors "github.com/univlab/campus-api/pkg/errors"
)

type mockNotificationRepo struct {
	mu      sync.Mutex
	stored  []models.Notification
	readIDs []string
}

func (m *mockNotificationRepo) BulkCreate(ctx context.Context, notifications []models.Notification) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, notifications...)
	return len(notifications), nil
}

func (m *mockNotificationRepo) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Notification
	for _, n := range m.stored {
		if n.RecipientID != filter.RecipientID {
			continue
		}
		if filter.UnreadOnly && n.Read {
			continue
		}
		result = append(result, n)
	}
	return result, nil
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.stored {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.stored {
		if n.ID == id && n.RecipientID == recipientID && !n.Read {
			m.stored[i].Read = true
			m.readIDs = append(m.readIDs, id)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for i, n := range m.stored {
		if n.RecipientID == recipientID && !n.Read {
			m.stored[i].Read = true
			count++
		}
	}
	return count, nil
}

func (m *mockNotificationRepo) DeleteExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var kept []models.Notification
	purged := 0
	for _, n := range m.stored {
		if n.ExpiresAt.Before(now) {
			purged++
			continue
		}
		kept = append(kept, n)
	}
	m.stored = kept
	return purged, nil
}

func newNotificationFixture(cfg NotificationConfig) (*NotificationService, *mockNotificationRepo) {
	repo := &mockNotificationRepo{}
	return NewNotificationService(repo, zap.NewNop(), cfg), repo
}

func TestDispatchCreatesOneDocumentPerRecipient(t *testing.T) {
	svc, repo := newNotificationFixture(NotificationConfig{})

	sender := "prof-1"
	count, err := svc.Dispatch(context.Background(), DispatchRequest{
		Recipients: []string{"user-1", "user-2", "user-3"},
		SenderID:   &sender,
		Title:      "Exam moved",
		Message:    "The exam now starts at 10:00.",
		Type:       models.NotificationTypeAnnouncement,
		Related:    &models.RelatedRef{Model: "announcement", ID: "ann-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.Len(t, repo.stored, 3)

	recipients := make(map[string]bool)
	for _, n := range repo.stored {
		recipients[n.RecipientID] = true
		assert.Equal(t, "Exam moved", n.Title)
		assert.Equal(t, models.NotificationTypeAnnouncement, n.Type)
		assert.False(t, n.Read)
		require.NotNil(t, n.RelatedID)
		assert.Equal(t, "ann-1", *n.RelatedID)
		assert.True(t, n.ExpiresAt.After(n.CreatedAt))
	}
	assert.Len(t, recipients, 3, "each recipient gets their own document")
}

func TestDispatchEmptyRecipients(t *testing.T) {
	svc, repo := newNotificationFixture(NotificationConfig{})

	count, err := svc.Dispatch(context.Background(), DispatchRequest{Title: "nobody"})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, repo.stored)
}

func TestDispatchRetentionWindow(t *testing.T) {
	svc, repo := newNotificationFixture(NotificationConfig{Retention: 48 * time.Hour})

	_, err := svc.Dispatch(context.Background(), DispatchRequest{
		Recipients: []string{"user-1"},
		Title:      "short lived",
		Type:       models.NotificationTypeGeneral,
	})
	require.NoError(t, err)
	require.Len(t, repo.stored, 1)

	expiry := repo.stored[0].ExpiresAt.Sub(repo.stored[0].CreatedAt)
	assert.Equal(t, 48*time.Hour, expiry)
}

func TestDispatchAsyncProcessedByWorkers(t *testing.T) {
	svc, repo := newNotificationFixture(NotificationConfig{WorkerConcurrency: 2})
	svc.Start(context.Background())
	defer svc.Stop()

	svc.DispatchAsync(DispatchRequest{
		Recipients: []string{"user-1", "user-2"},
		Title:      "queued",
		Type:       models.NotificationTypeGrade,
	})

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.stored) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListWithUnreadCount(t *testing.T) {
	svc, _ := newNotificationFixture(NotificationConfig{})
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, DispatchRequest{
		Recipients: []string{"user-1", "user-1", "user-2"},
		Title:      "hello",
		Type:       models.NotificationTypeGeneral,
	})
	require.NoError(t, err)

	list, err := svc.List(ctx, "user-1", false, 1, 20)
	require.NoError(t, err)
	assert.Len(t, list.Notifications, 2)
	assert.Equal(t, 2, list.UnreadCount)

	other, err := svc.List(ctx, "user-3", false, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, other.Notifications)
	assert.Zero(t, other.UnreadCount)
}

func TestMarkReadScopedToRecipient(t *testing.T) {
	svc, repo := newNotificationFixture(NotificationConfig{})
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, DispatchRequest{
		Recipients: []string{"user-1"},
		Title:      "private",
		Type:       models.NotificationTypeGeneral,
	})
	require.NoError(t, err)
	id := repo.stored[0].ID

	err = svc.MarkRead(ctx, id, "user-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.MarkRead(ctx, id, "user-1"))

	err = svc.MarkRead(ctx, id, "user-1")
	require.Error(t, err, "already read")
}

func TestMarkAllRead(t *testing.T) {
	svc, _ := newNotificationFixture(NotificationConfig{})
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, DispatchRequest{
		Recipients: []string{"user-1", "user-1", "user-2"},
		Title:      "bulk",
		Type:       models.NotificationTypeGeneral,
	})
	require.NoError(t, err)

	count, err := svc.MarkAllRead(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	list, err := svc.List(ctx, "user-1", true, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, list.Notifications)
}
