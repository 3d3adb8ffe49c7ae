package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/univlab/campus-api/internal/models"
	appErrors "github.com/univlab/campus-api/pkg/errors"
)

type dashboardGradeReader interface {
	ListDetailsByStudent(ctx context.Context, studentID string) ([]models.GradeDetail, error)
	CountPendingValidation(ctx context.Context) (int, error)
}

type dashboardAssignmentReader interface {
	ListUpcomingByModules(ctx context.Context, moduleIDs []string, limit int) ([]models.Assignment, error)
	CountPendingByProfessor(ctx context.Context, professorID string) (int, error)
}

type dashboardEnrollmentReader interface {
	ListModuleIDsByStudent(ctx context.Context, studentID string) ([]string, error)
}

type dashboardModuleReader interface {
	List(ctx context.Context, filter models.ModuleFilter) ([]models.Module, int, error)
}

type dashboardStudentReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

type unreadCounter interface {
	CountUnread(ctx context.Context, recipientID string) (int, error)
}

// DashboardConfig tunes dashboard caching and limits.
type DashboardConfig struct {
	CacheTTL            time.Duration
	UpcomingAssignments int
}

// DashboardParams groups constructor dependencies.
type DashboardParams struct {
	Grades        dashboardGradeReader
	Assignments   dashboardAssignmentReader
	Enrollments   dashboardEnrollmentReader
	Modules       dashboardModuleReader
	Students      dashboardStudentReader
	Notifications unreadCounter
	Cache         gradeCache
	Logger        *zap.Logger
	Config        DashboardConfig
}

// DashboardService composes role-specific overview payloads.
type DashboardService struct {
	grades        dashboardGradeReader
	assignments   dashboardAssignmentReader
	enrollments   dashboardEnrollmentReader
	modules       dashboardModuleReader
	students      dashboardStudentReader
	notifications unreadCounter
	cache         gradeCache
	logger        *zap.Logger
	cfg           DashboardConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.UpcomingAssignments <= 0 {
		cfg.UpcomingAssignments = 5
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		grades:        params.Grades,
		assignments:   params.Assignments,
		enrollments:   params.Enrollments,
		modules:       params.Modules,
		students:      params.Students,
		notifications: params.Notifications,
		cache:         params.Cache,
		logger:        logger,
		cfg:           cfg,
	}
}

// Student assembles the student overview. Published grades, averages,
// upcoming deadlines and the unread notification count.
func (s *DashboardService) Student(ctx context.Context, userID string) (*models.StudentDashboard, error) {
	cacheKey := fmt.Sprintf("dashboard:student:%s", userID)
	if s.cache != nil {
		var cached models.StudentDashboard
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	student, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	all, err := s.grades.ListDetailsByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	published := make([]models.GradeDetail, 0, len(all))
	for _, g := range all {
		if g.Validated && g.IsPublished {
			published = append(published, g)
		}
	}
	semesterAvg, yearlyAvg := ComputeSemesterAndYearlyAverages(all, student.Semester, student.AcademicYear)

	dashboard := &models.StudentDashboard{
		SemesterAverage: semesterAvg,
		YearlyAverage:   yearlyAvg,
		PublishedGrades: published,
	}

	if moduleIDs, err := s.enrollments.ListModuleIDsByStudent(ctx, student.ID); err != nil {
		s.logger.Warn("dashboard assignments skipped: enrollment lookup failed", zap.Error(err))
	} else if upcoming, err := s.assignments.ListUpcomingByModules(ctx, moduleIDs, s.cfg.UpcomingAssignments); err != nil {
		s.logger.Warn("dashboard assignments skipped", zap.Error(err))
	} else {
		dashboard.UpcomingAssignments = upcoming
	}

	if unread, err := s.notifications.CountUnread(ctx, userID); err != nil {
		s.logger.Warn("dashboard unread count skipped", zap.Error(err))
	} else {
		dashboard.UnreadNotifications = unread
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, dashboard, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache student dashboard", zap.Error(err))
		}
	}
	return dashboard, nil
}

// Professor assembles the professor overview.
func (s *DashboardService) Professor(ctx context.Context, userID string) (*models.ProfessorDashboard, error) {
	modules, _, err := s.modules.List(ctx, models.ModuleFilter{ProfessorID: userID, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list modules")
	}

	dashboard := &models.ProfessorDashboard{Modules: modules}

	if recent, err := s.assignments.CountPendingByProfessor(ctx, userID); err != nil {
		s.logger.Warn("dashboard submission count skipped", zap.Error(err))
	} else {
		dashboard.RecentSubmissions = recent
	}
	if unread, err := s.notifications.CountUnread(ctx, userID); err != nil {
		s.logger.Warn("dashboard unread count skipped", zap.Error(err))
	} else {
		dashboard.UnreadNotifications = unread
	}
	return dashboard, nil
}

// Admin assembles platform-wide counters.
func (s *DashboardService) Admin(ctx context.Context) (*models.AdminDashboard, error) {
	_, totalStudents, err := s.students.List(ctx, models.StudentFilter{Page: 1, PageSize: 1})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	_, totalModules, err := s.modules.List(ctx, models.ModuleFilter{Page: 1, PageSize: 1})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count modules")
	}
	pending, err := s.grades.CountPendingValidation(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending grades")
	}
	return &models.AdminDashboard{
		TotalStudents:      totalStudents,
		TotalModules:       totalModules,
		PendingValidations: pending,
	}, nil
}
