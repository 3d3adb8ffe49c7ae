package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/univlab/campus-api/internal/models"
	appErrors "github.com/univlab/campus-api/pkg/errors"
)

type mockAnnouncementRepo struct {
	stored []models.Announcement
	err    error
}

func (m *mockAnnouncementRepo) Create(ctx context.Context, announcement *models.Announcement) error {
	if m.err != nil {
		return m.err
	}
	m.stored = append(m.stored, *announcement)
	return nil
}

func (m *mockAnnouncementRepo) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	var result []models.Announcement
	for _, a := range m.stored {
		if filter.ModuleID != "" && a.ModuleID != filter.ModuleID {
			continue
		}
		result = append(result, a)
	}
	return result, len(result), nil
}

type mockEnrollmentFanout struct {
	byModule map[string][]string
}

func (m *mockEnrollmentFanout) ListStudentIDsByModule(ctx context.Context, moduleID string) ([]string, error) {
	return m.byModule[moduleID], nil
}

func newAnnouncementFixture() (*AnnouncementService, *mockAnnouncementRepo, *mockNotificationRepo) {
	announcements := &mockAnnouncementRepo{}
	modules := &mockModuleReader{modules: map[string]*models.Module{
		"mod-1": {ID: "mod-1", Code: "MATH101", Name: "Mathematics", Coefficient: 3, ProfessorID: "prof-1"},
	}}
	enrollments := &mockEnrollmentFanout{byModule: map[string][]string{
		"mod-1": {"user-stu-1", "user-stu-2", "user-stu-3"},
	}}
	notifRepo := &mockNotificationRepo{}
	dispatcher := NewNotificationService(notifRepo, zap.NewNop(), NotificationConfig{})
	svc := NewAnnouncementService(announcements, modules, enrollments, dispatcher, nil, zap.NewNop())
	return svc, announcements, notifRepo
}

func TestAnnouncementCreateNotifiesEnrolledStudents(t *testing.T) {
	svc, announcements, notifRepo := newAnnouncementFixture()

	result, err := svc.Create(context.Background(), professorClaims("prof-1"), CreateAnnouncementRequest{
		ModuleID: "mod-1",
		Title:    "Midterm moved",
		Message:  "The exam now takes place on Friday.",
	})
	require.NoError(t, err)
	require.Len(t, announcements.stored, 1)
	assert.Equal(t, "Midterm moved", announcements.stored[0].Title)
	assert.Equal(t, "prof-1", announcements.stored[0].CreatedBy)
	assert.Equal(t, 3, result.Notified)
	assert.Equal(t, "Announcement sent to 3 students", result.Message)

	recipients := map[string]bool{}
	for _, n := range notifRepo.stored {
		recipients[n.RecipientID] = true
		assert.Equal(t, models.NotificationTypeAnnouncement, n.Type)
		require.NotNil(t, n.RelatedID)
		assert.Equal(t, result.Announcement.ID, *n.RelatedID)
	}
	assert.Len(t, recipients, 3)
}

func TestAnnouncementCreateRejectsOtherProfessor(t *testing.T) {
	svc, announcements, notifRepo := newAnnouncementFixture()

	_, err := svc.Create(context.Background(), professorClaims("prof-2"), CreateAnnouncementRequest{
		ModuleID: "mod-1",
		Title:    "Not my module",
		Message:  "should fail",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, announcements.stored)
	assert.Empty(t, notifRepo.stored)
}

func TestAnnouncementCreateUnknownModule(t *testing.T) {
	svc, _, _ := newAnnouncementFixture()

	_, err := svc.Create(context.Background(), professorClaims("prof-1"), CreateAnnouncementRequest{
		ModuleID: "mod-missing",
		Title:    "t",
		Message:  "m",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAnnouncementCreateAdminBypassesOwnership(t *testing.T) {
	svc, announcements, _ := newAnnouncementFixture()

	result, err := svc.Create(context.Background(), &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}, CreateAnnouncementRequest{
		ModuleID: "mod-1",
		Title:    "Campus closed",
		Message:  "Snow day.",
	})
	require.NoError(t, err)
	require.Len(t, announcements.stored, 1)
	assert.Equal(t, 3, result.Notified)
}

func TestAnnouncementList(t *testing.T) {
	svc, announcements, _ := newAnnouncementFixture()
	announcements.stored = []models.Announcement{
		{ID: "ann-1", ModuleID: "mod-1", Title: "a"},
		{ID: "ann-2", ModuleID: "mod-2", Title: "b"},
	}

	list, total, err := svc.List(context.Background(), models.AnnouncementFilter{ModuleID: "mod-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "ann-1", list[0].ID)
}
