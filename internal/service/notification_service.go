package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/univlab/campus-api/internal/models"
	appErrors "github.com/univlab/campus-api/pkg/errors"
	"github.com/univlab/campus-api/pkg/jobs"
)

type notificationRepo interface {
	BulkCreate(ctx context.Context, notifications []models.Notification) (int, error)
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, id, recipientID string) (bool, error)
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
	DeleteExpired(ctx context.Context) (int, error)
}

// DispatchRequest describes one fan-out event: identical content delivered
// to every recipient as a separate notification document.
type DispatchRequest struct {
	Recipients []string
	SenderID   *string
	Title      string
	Message    string
	Type       models.NotificationType
	Related    *models.RelatedRef
}

// NotificationConfig tunes fan-out workers and the retention purge.
type NotificationConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	Retention         time.Duration
	PurgeInterval     time.Duration
}

// NotificationService creates and serves notifications. Delivery is
// best-effort: a failed dispatch never fails the operation that caused it.
type NotificationService struct {
	repo      notificationRepo
	logger    *zap.Logger
	retention time.Duration
	purgeTick time.Duration
	queue     *jobs.Queue
	cancel    context.CancelFunc
}

// NewNotificationService constructs the service and its dispatch queue.
func NewNotificationService(repo notificationRepo, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	if cfg.PurgeInterval <= 0 {
		cfg.PurgeInterval = time.Hour
	}
	svc := &NotificationService{
		repo:      repo,
		logger:    logger,
		retention: cfg.Retention,
		purgeTick: cfg.PurgeInterval,
	}
	svc.queue = jobs.NewQueue("notifications", svc.handleDispatchJob, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return svc
}

// Start launches the dispatch workers and the retention purge loop.
func (s *NotificationService) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.queue.Start(ctx)
	go s.purgeLoop(ctx)
}

// Stop shuts down workers and the purge loop.
func (s *NotificationService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.queue.Stop()
}

// Dispatch synchronously creates one notification per recipient through a
// single bulk insert and returns the created count.
func (s *NotificationService) Dispatch(ctx context.Context, req DispatchRequest) (int, error) {
	if len(req.Recipients) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	notifications := make([]models.Notification, 0, len(req.Recipients))
	for _, recipient := range req.Recipients {
		n := models.Notification{
			ID:          uuid.NewString(),
			RecipientID: recipient,
			SenderID:    req.SenderID,
			Title:       req.Title,
			Message:     req.Message,
			Type:        req.Type,
			ExpiresAt:   now.Add(s.retention),
			CreatedAt:   now,
		}
		if req.Related != nil {
			n.RelatedModel = &req.Related.Model
			n.RelatedID = &req.Related.ID
		}
		notifications = append(notifications, n)
	}
	count, err := s.repo.BulkCreate(ctx, notifications)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notifications")
	}
	s.logger.Info("notifications dispatched",
		zap.Int("count", count),
		zap.String("type", string(req.Type)),
	)
	return count, nil
}

// DispatchAsync queues the fan-out off the request path. Errors are logged
// and swallowed: the triggering state change has already been committed.
func (s *NotificationService) DispatchAsync(req DispatchRequest) {
	if len(req.Recipients) == 0 {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: string(req.Type), Payload: req}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("notification dispatch dropped", zap.Error(err), zap.String("type", string(req.Type)))
	}
}

// List returns a recipient's notifications along with the unread counter.
func (s *NotificationService) List(ctx context.Context, recipientID string, unreadOnly bool, page, pageSize int) (*models.NotificationList, error) {
	notifications, err := s.repo.List(ctx, models.NotificationFilter{
		RecipientID: recipientID,
		UnreadOnly:  unreadOnly,
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return &models.NotificationList{Notifications: notifications, UnreadCount: unread}, nil
}

// MarkRead marks one notification as read for its recipient.
func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID string) error {
	ok, err := s.repo.MarkRead(ctx, id, recipientID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found or already read")
	}
	return nil
}

// MarkAllRead marks every unread notification for the recipient.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	count, err := s.repo.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return count, nil
}

func (s *NotificationService) handleDispatchJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(DispatchRequest)
	if !ok {
		s.logger.Error("invalid dispatch payload", zap.String("job_id", job.ID))
		return nil
	}
	_, err := s.Dispatch(ctx, req)
	return err
}

func (s *NotificationService) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(s.purgeTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := s.repo.DeleteExpired(ctx)
			if err != nil {
				s.logger.Warn("notification purge failed", zap.Error(err))
				continue
			}
			if purged > 0 {
				s.logger.Info("expired notifications purged", zap.Int("count", purged))
			}
		}
	}
}
