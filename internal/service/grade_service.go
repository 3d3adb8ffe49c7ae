package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/univlab/campus-api/internal/models"
	"github.com/univlab/campus-api/internal/repository"
	appErrors "github.com/univlab/campus-api/pkg/errors"
)

type gradeRepo interface {
	FindByID(ctx context.Context, id string) (*models.GradeRecord, error)
	FindByKey(ctx context.Context, key models.GradeKey) (*models.GradeRecord, error)
	Upsert(ctx context.Context, grade *models.GradeRecord) error
	Validate(ctx context.Context, gradeID, adminID string, at time.Time) (bool, error)
	ListDetailsByStudent(ctx context.Context, studentID string) ([]models.GradeDetail, error)
	ListByModule(ctx context.Context, moduleID string, semester int, academicYear string) ([]models.GradeDetail, error)
}

type moduleReader interface {
	FindByID(ctx context.Context, id string) (*models.Module, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
}

type enrollmentChecker interface {
	IsEnrolled(ctx context.Context, studentID, moduleID string) (bool, error)
}

type gradeDispatcher interface {
	DispatchAsync(req DispatchRequest)
}

type gradeCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// SubmitGradeRequest is the professor-facing grade submission payload.
type SubmitGradeRequest struct {
	StudentID    string           `json:"student_id" validate:"required"`
	ModuleID     string           `json:"module_id" validate:"required"`
	Value        float64          `json:"value"`
	Semester     int              `json:"semester" validate:"required,oneof=1 2"`
	AcademicYear string           `json:"academic_year" validate:"required"`
	GradeType    models.GradeType `json:"grade_type" validate:"required,oneof=exam continuous final"`
	Comments     string           `json:"comments"`
}

// GradeService orchestrates grade submission, validation and aggregation.
type GradeService struct {
	grades      gradeRepo
	modules     moduleReader
	students    studentReader
	enrollments enrollmentChecker
	dispatcher  gradeDispatcher
	cache       gradeCache
	validator   *validator.Validate
	logger      *zap.Logger
	cacheTTL    time.Duration
}

// NewGradeService constructs GradeService.
func NewGradeService(grades gradeRepo, modules moduleReader, students studentReader, enrollments enrollmentChecker, dispatcher gradeDispatcher, cache gradeCache, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &GradeService{
		grades:      grades,
		modules:     modules,
		students:    students,
		enrollments: enrollments,
		dispatcher:  dispatcher,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		cacheTTL:    cacheTTL,
	}
}

// Submit creates or overwrites the grade record for its natural key.
// A re-submission resets the validation state; validated grades are
// immutable to professors and may only be overwritten by an admin.
func (s *GradeService) Submit(ctx context.Context, actor *models.JWTClaims, req SubmitGradeRequest) (*models.GradeRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if req.Value < models.GradeValueMin || req.Value > models.GradeValueMax {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade value must be between 0 and 20")
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

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleProfessor:
		if module.ProfessorID != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the module professor may submit grades")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role may not submit grades")
	}

	enrolled, err := s.enrollments.IsEnrolled(ctx, student.ID, module.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrNotEnrolled, "student not enrolled in module")
	}

	key := models.GradeKey{
		StudentID:    student.ID,
		ModuleID:     module.ID,
		Semester:     req.Semester,
		AcademicYear: req.AcademicYear,
		GradeType:    req.GradeType,
	}
	existing, err := s.grades.FindByKey(ctx, key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up grade")
	}
	if existing != nil && existing.Validated && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrGradeValidated, "grade already validated and may not be overwritten")
	}

	grade := &models.GradeRecord{
		StudentID:    student.ID,
		ModuleID:     module.ID,
		Value:        req.Value,
		Semester:     req.Semester,
		AcademicYear: req.AcademicYear,
		GradeType:    req.GradeType,
		Comments:     req.Comments,
	}
	if existing != nil {
		grade.ID = existing.ID
		grade.CreatedAt = existing.CreatedAt
	}
	if err := s.grades.Upsert(ctx, grade); err != nil {
		if errors.Is(err, repository.ErrNaturalKeyConflict) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "concurrent grade submission detected")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store grade")
	}

	s.invalidateStudent(ctx, student.ID, student.UserID)

	stored, err := s.grades.FindByKey(ctx, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload grade")
	}
	return stored, nil
}

// Validate publishes a grade. The transition is one-way and triggers a
// best-effort notification to the student.
func (s *GradeService) Validate(ctx context.Context, adminID, gradeID string) (*models.GradeRecord, error) {
	grade, err := s.grades.FindByID(ctx, gradeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}

	ok, err := s.grades.Validate(ctx, gradeID, adminID, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate grade")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrGradeValidated, "grade already validated")
	}

	updated, err := s.grades.FindByID(ctx, gradeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload grade")
	}

	s.notifyGradePublished(ctx, updated, adminID)
	userID := ""
	if student, err := s.students.FindByID(ctx, grade.StudentID); err == nil {
		userID = student.UserID
	}
	s.invalidateStudent(ctx, grade.StudentID, userID)

	return updated, nil
}

// StudentGrades returns the validated, published grades visible to a
// student together with semester and yearly averages.
func (s *GradeService) StudentGrades(ctx context.Context, userID string, semester int, academicYear string) (*models.StudentGradesReport, error) {
	student, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if semester == 0 {
		semester = student.Semester
	}
	if academicYear == "" {
		academicYear = student.AcademicYear
	}

	cacheKey := fmt.Sprintf("grades:student:%s:%d:%s", student.ID, semester, academicYear)
	if s.cache != nil {
		var cached models.StudentGradesReport
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	all, err := s.grades.ListDetailsByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}

	visible := make([]models.GradeDetail, 0, len(all))
	for _, g := range all {
		if g.Validated && g.IsPublished {
			visible = append(visible, g)
		}
	}

	semesterAvg, yearlyAvg := ComputeSemesterAndYearlyAverages(all, semester, academicYear)
	report := &models.StudentGradesReport{
		Grades:          visible,
		SemesterAverage: semesterAvg,
		YearlyAverage:   yearlyAvg,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, report, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache grade report", zap.Error(err))
		}
	}
	return report, nil
}

// ModuleGrades returns all grade records in a module for a semester/year.
// Professor-facing: includes unvalidated records.
func (s *GradeService) ModuleGrades(ctx context.Context, actor *models.JWTClaims, moduleID string, semester int, academicYear string) ([]models.GradeDetail, error) {
	module, err := s.modules.FindByID(ctx, moduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	if actor.Role == models.RoleProfessor && module.ProfessorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "module belongs to another professor")
	}
	grades, err := s.grades.ListByModule(ctx, moduleID, semester, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list module grades")
	}
	return grades, nil
}

func (s *GradeService) notifyGradePublished(ctx context.Context, grade *models.GradeRecord, adminID string) {
	student, err := s.students.FindByID(ctx, grade.StudentID)
	if err != nil {
		s.logger.Warn("grade notification skipped: student lookup failed", zap.Error(err), zap.String("grade_id", grade.ID))
		return
	}
	module, err := s.modules.FindByID(ctx, grade.ModuleID)
	if err != nil {
		s.logger.Warn("grade notification skipped: module lookup failed", zap.Error(err), zap.String("grade_id", grade.ID))
		return
	}
	s.dispatcher.DispatchAsync(DispatchRequest{
		Recipients: []string{student.UserID},
		SenderID:   &adminID,
		Title:      "Grade published",
		Message:    fmt.Sprintf("Your %s grade for %s has been published.", grade.GradeType, module.Name),
		Type:       models.NotificationTypeGrade,
		Related:    &models.RelatedRef{Model: "grade", ID: grade.ID},
	})
}

func (s *GradeService) invalidateStudent(ctx context.Context, studentID, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("grades:student:%s:*", studentID)); err != nil {
		s.logger.Warn("grade cache invalidation failed", zap.Error(err), zap.String("student_id", studentID))
	}
	if userID != "" {
		if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("dashboard:student:%s", userID)); err != nil {
			s.logger.Warn("dashboard cache invalidation failed", zap.Error(err), zap.String("user_id", userID))
		}
	}
}
