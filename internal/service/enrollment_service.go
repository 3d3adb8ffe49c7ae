package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/univlab/campus-api/internal/models"
	appErrors "github.com/univlab/campus-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	IsEnrolled(ctx context.Context, studentID, moduleID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Withdraw(ctx context.Context, id string) error
}

// EnrollRequest registers a student to a module.
type EnrollRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	ModuleID     string `json:"module_id" validate:"required"`
	AcademicYear string `json:"academic_year" validate:"required"`
}

// EnrollmentService manages student-module registrations.
type EnrollmentService struct {
	enrollments enrollmentRepository
	students    studentReader
	modules     moduleReader
	audits      accountCreator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(enrollments enrollmentRepository, students studentReader, modules moduleReader, audits accountCreator, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		students:    students,
		modules:     modules,
		audits:      audits,
		validator:   validate,
		logger:      logger,
	}
}

// Enroll registers a student to a module for an academic year.
func (s *EnrollmentService) Enroll(ctx context.Context, actorID string, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	module, err := s.modules.FindByID(ctx, req.ModuleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}

	enrolled, err := s.enrollments.IsEnrolled(ctx, student.ID, module.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if enrolled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in module")
	}

	enrollment := &models.Enrollment{
		ID:           uuid.NewString(),
		StudentID:    student.ID,
		ModuleID:     module.ID,
		AcademicYear: req.AcademicYear,
		Status:       models.EnrollmentStatusActive,
		EnrolledAt:   time.Now().UTC(),
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "enrollment already exists")
	}

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionEnrollmentEdit,
		Resource:   "enrollment",
		ResourceID: &enrollment.ID,
	}); err != nil {
		s.logger.Warn("failed to record enrollment audit log", zap.Error(err))
	}

	return enrollment, nil
}

// List returns enrollments matching the filter.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, total, nil
}

// Withdraw marks an enrollment as withdrawn. Existing grade records are
// kept for the academic history.
func (s *EnrollmentService) Withdraw(ctx context.Context, actorID, enrollmentID string) error {
	if err := s.enrollments.Withdraw(ctx, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
	}

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionEnrollmentEdit,
		Resource:   "enrollment",
		ResourceID: &enrollmentID,
		NewValues:  []byte(`{"status":"WITHDRAWN"}`),
	}); err != nil {
		s.logger.Warn("failed to record withdrawal audit log", zap.Error(err))
	}

	return nil
}
