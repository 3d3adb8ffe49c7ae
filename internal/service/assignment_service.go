package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/univlab/campus-api/internal/models"
	appErrors "github.com/univlab/campus-api/pkg/errors"
	"github.com/univlab/campus-api/pkg/storage"
)

type assignmentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	ListByModule(ctx context.Context, moduleID string) ([]models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	UpsertSubmission(ctx context.Context, submission *models.Submission) error
	ListSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error)
}

// CreateAssignmentRequest is the professor-facing assignment payload.
type CreateAssignmentRequest struct {
	ModuleID    string    `json:"module_id" validate:"required"`
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date" validate:"required"`
}

// SubmitAssignmentRequest carries a student's uploaded answer.
type SubmitAssignmentRequest struct {
	AssignmentID string
	FileName     string
	MIMEType     string
	SizeBytes    int64
	Content      io.Reader
}

// AssignmentService manages homework and submissions.
type AssignmentService struct {
	assignments assignmentRepo
	modules     moduleReader
	students    studentReader
	enrollments enrollmentChecker
	fanout      enrollmentFanout
	dispatcher  *NotificationService
	store       *storage.LocalStorage
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(assignments assignmentRepo, modules moduleReader, students studentReader, enrollments enrollmentChecker, fanout enrollmentFanout, dispatcher *NotificationService, store *storage.LocalStorage, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		assignments: assignments,
		modules:     modules,
		students:    students,
		enrollments: enrollments,
		fanout:      fanout,
		dispatcher:  dispatcher,
		store:       store,
		validator:   validate,
		logger:      logger,
	}
}

// Create publishes an assignment and notifies enrolled students.
func (s *AssignmentService) Create(ctx context.Context, actor *models.JWTClaims, req CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if !req.DueDate.After(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due date must be in the future")
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

	now := time.Now().UTC()
	assignment := &models.Assignment{
		ID:          uuid.NewString(),
		ModuleID:    module.ID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate.UTC(),
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store assignment")
	}

	if recipients, err := s.fanout.ListStudentIDsByModule(ctx, module.ID); err != nil {
		s.logger.Warn("assignment fan-out skipped: recipient lookup failed", zap.Error(err), zap.String("module_id", module.ID))
	} else {
		s.dispatcher.DispatchAsync(DispatchRequest{
			Recipients: recipients,
			SenderID:   &actor.UserID,
			Title:      "New assignment",
			Message:    fmt.Sprintf("%q for %s is due %s.", req.Title, module.Name, assignment.DueDate.Format("2006-01-02 15:04")),
			Type:       models.NotificationTypeAssignment,
			Related:    &models.RelatedRef{Model: "assignment", ID: assignment.ID},
		})
	}

	return assignment, nil
}

// ListByModule returns a module's assignments.
func (s *AssignmentService) ListByModule(ctx context.Context, moduleID string) ([]models.Assignment, error) {
	assignments, err := s.assignments.ListByModule(ctx, moduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// Submit stores a student's answer. Re-submitting before the deadline
// replaces the previous upload. The module professor is notified.
func (s *AssignmentService) Submit(ctx context.Context, actor *models.JWTClaims, req SubmitAssignmentRequest) (*models.Submission, error) {
	if req.AssignmentID == "" || req.FileName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignment_id and file are required")
	}

	assignment, err := s.assignments.FindByID(ctx, req.AssignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if time.Now().UTC().After(assignment.DueDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignment deadline has passed")
	}

	student, err := s.students.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	enrolled, err := s.enrollments.IsEnrolled(ctx, student.ID, assignment.ModuleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrNotEnrolled, "not enrolled in the assignment's module")
	}

	relPath := filepath.Join("submissions", assignment.ID, student.ID+filepath.Ext(req.FileName))
	if _, err := s.store.SaveStream(relPath, req.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	submission := &models.Submission{
		ID:           uuid.NewString(),
		AssignmentID: assignment.ID,
		StudentID:    student.ID,
		FileName:     req.FileName,
		FilePath:     relPath,
		MIMEType:     req.MIMEType,
		SizeBytes:    req.SizeBytes,
		SubmittedAt:  time.Now().UTC(),
	}
	if err := s.assignments.UpsertSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission")
	}

	if module, err := s.modules.FindByID(ctx, assignment.ModuleID); err != nil {
		s.logger.Warn("submission notification skipped: module lookup failed", zap.Error(err), zap.String("assignment_id", assignment.ID))
	} else {
		s.dispatcher.DispatchAsync(DispatchRequest{
			Recipients: []string{module.ProfessorID},
			SenderID:   &actor.UserID,
			Title:      "New submission",
			Message:    fmt.Sprintf("%s submitted an answer for %q.", actor.FullName, assignment.Title),
			Type:       models.NotificationTypeSubmission,
			Related:    &models.RelatedRef{Model: "submission", ID: submission.ID},
		})
	}

	return submission, nil
}

// ListSubmissions returns all submissions of an assignment for its
// professor.
func (s *AssignmentService) ListSubmissions(ctx context.Context, actor *models.JWTClaims, assignmentID string) ([]models.Submission, error) {
	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	module, err := s.modules.FindByID(ctx, assignment.ModuleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	if actor.Role == models.RoleProfessor && module.ProfessorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another professor")
	}
	submissions, err := s.assignments.ListSubmissions(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}
