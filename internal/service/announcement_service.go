package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/univlab/campus-api/internal/models"
	appErrors "github.com/univlab/campus-api/pkg/errors"
)

type announcementRepo interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	Create(ctx context.Context, announcement *models.Announcement) error
}

type enrollmentFanout interface {
	ListStudentIDsByModule(ctx context.Context, moduleID string) ([]string, error)
}

// CreateAnnouncementRequest is the professor-facing announcement payload.
type CreateAnnouncementRequest struct {
	ModuleID string `json:"module_id" validate:"required"`
	Title    string `json:"title" validate:"required,max=200"`
	Message  string `json:"message" validate:"required"`
}

// AnnouncementResult reports the stored announcement, a client-facing
// confirmation and how many enrolled students were notified.
type AnnouncementResult struct {
	Announcement *models.Announcement `json:"announcement"`
	Message      string               `json:"message"`
	Notified     int                  `json:"notified"`
}

func announcementResult(announcement *models.Announcement, notified int) *AnnouncementResult {
	return &AnnouncementResult{
		Announcement: announcement,
		Message:      fmt.Sprintf("Announcement sent to %d students", notified),
		Notified:     notified,
	}
}

// AnnouncementService manages module announcements and their fan-out.
type AnnouncementService struct {
	announcements announcementRepo
	modules       moduleReader
	enrollments   enrollmentFanout
	dispatcher    *NotificationService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewAnnouncementService constructs AnnouncementService.
func NewAnnouncementService(announcements announcementRepo, modules moduleReader, enrollments enrollmentFanout, dispatcher *NotificationService, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{
		announcements: announcements,
		modules:       modules,
		enrollments:   enrollments,
		dispatcher:    dispatcher,
		validator:     validate,
		logger:        logger,
	}
}

// Create stores an announcement and dispatches one notification per
// actively enrolled student of the module. Returns the notified count.
func (s *AnnouncementService) Create(ctx context.Context, actor *models.JWTClaims, req CreateAnnouncementRequest) (*AnnouncementResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	module, err := s.modules.FindByID(ctx, req.ModuleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	if actor.Role == models.RoleProfessor && module.ProfessorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "module belongs to another professor")
	}

	announcement := &models.Announcement{
		ID:        uuid.NewString(),
		ModuleID:  module.ID,
		Title:     req.Title,
		Message:   req.Message,
		CreatedBy: actor.UserID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.announcements.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store announcement")
	}

	recipients, err := s.enrollments.ListStudentIDsByModule(ctx, module.ID)
	if err != nil {
		s.logger.Warn("announcement fan-out skipped: recipient lookup failed", zap.Error(err), zap.String("module_id", module.ID))
		return announcementResult(announcement, 0), nil
	}

	notified, err := s.dispatcher.Dispatch(ctx, DispatchRequest{
		Recipients: recipients,
		SenderID:   &actor.UserID,
		Title:      req.Title,
		Message:    req.Message,
		Type:       models.NotificationTypeAnnouncement,
		Related:    &models.RelatedRef{Model: "announcement", ID: announcement.ID},
	})
	if err != nil {
		s.logger.Warn("announcement fan-out failed", zap.Error(err), zap.String("announcement_id", announcement.ID))
		notified = 0
	}

	return announcementResult(announcement, notified), nil
}

// List returns announcements matching the filter.
func (s *AnnouncementService) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	announcements, total, err := s.announcements.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	return announcements, total, nil
}
