package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/univlab/campus-api/internal/models"
	"github.com/univlab/campus-api/internal/repository"
	appErrors "github.com/univlab/campus-api/pkg/errors"
)

type mockGradeRepo struct {
	byKey     map[models.GradeKey]*models.GradeRecord
	details   []models.GradeDetail
	upsertErr error
}

func newMockGradeRepo() *mockGradeRepo {
	return &mockGradeRepo{byKey: make(map[models.GradeKey]*models.GradeRecord)}
}

func keyOf(g *models.GradeRecord) models.GradeKey {
	return models.GradeKey{
		StudentID:    g.StudentID,
		ModuleID:     g.ModuleID,
		Semester:     g.Semester,
		AcademicYear: g.AcademicYear,
		GradeType:    g.GradeType,
	}
}

func (m *mockGradeRepo) FindByID(ctx context.Context, id string) (*models.GradeRecord, error) {
	for _, g := range m.byKey {
		if g.ID == id {
			copied := *g
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockGradeRepo) FindByKey(ctx context.Context, key models.GradeKey) (*models.GradeRecord, error) {
	if g, ok := m.byKey[key]; ok {
		copied := *g
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGradeRepo) Upsert(ctx context.Context, grade *models.GradeRecord) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	key := keyOf(grade)
	if existing, ok := m.byKey[key]; ok {
		grade.ID = existing.ID
	} else if grade.ID == "" {
		grade.ID = "grade-" + grade.StudentID + "-" + grade.ModuleID + "-" + string(grade.GradeType)
	}
	stored := *grade
	stored.Validated = false
	stored.ValidatedBy = nil
	stored.ValidatedAt = nil
	stored.IsPublished = false
	stored.PublishedAt = nil
	m.byKey[key] = &stored
	return nil
}

func (m *mockGradeRepo) Validate(ctx context.Context, gradeID, adminID string, at time.Time) (bool, error) {
	for _, g := range m.byKey {
		if g.ID != gradeID {
			continue
		}
		if g.Validated {
			return false, nil
		}
		g.Validated = true
		g.ValidatedBy = &adminID
		g.ValidatedAt = &at
		g.IsPublished = true
		g.PublishedAt = &at
		return true, nil
	}
	return false, nil
}

func (m *mockGradeRepo) ListDetailsByStudent(ctx context.Context, studentID string) ([]models.GradeDetail, error) {
	if m.details != nil {
		return m.details, nil
	}
	var result []models.GradeDetail
	for _, g := range m.byKey {
		if g.StudentID != studentID {
			continue
		}
		result = append(result, models.GradeDetail{GradeRecord: *g, ModuleCoefficient: 1})
	}
	return result, nil
}

func (m *mockGradeRepo) ListByModule(ctx context.Context, moduleID string, semester int, academicYear string) ([]models.GradeDetail, error) {
	var result []models.GradeDetail
	for _, g := range m.byKey {
		if g.ModuleID == moduleID && g.Semester == semester && g.AcademicYear == academicYear {
			result = append(result, models.GradeDetail{GradeRecord: *g, ModuleCoefficient: 1})
		}
	}
	return result, nil
}

type mockModuleReader struct {
	modules map[string]*models.Module
}

func (m *mockModuleReader) FindByID(ctx context.Context, id string) (*models.Module, error) {
	if mod, ok := m.modules[id]; ok {
		return mod, nil
	}
	return nil, sql.ErrNoRows
}

type mockStudentReader struct {
	students map[string]*models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentReader) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	for _, s := range m.students {
		if s.UserID == userID {
			return s, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockEnrollmentChecker struct {
	enrolled map[string]bool
}

func (m *mockEnrollmentChecker) IsEnrolled(ctx context.Context, studentID, moduleID string) (bool, error) {
	return m.enrolled[studentID+":"+moduleID], nil
}

type mockDispatcher struct {
	requests []DispatchRequest
}

func (m *mockDispatcher) DispatchAsync(req DispatchRequest) {
	m.requests = append(m.requests, req)
}

func newGradeFixture() (*GradeService, *mockGradeRepo, *mockDispatcher) {
	grades := newMockGradeRepo()
	modules := &mockModuleReader{modules: map[string]*models.Module{
		"mod-1": {ID: "mod-1", Code: "MATH101", Name: "Mathematics", Coefficient: 3, ProfessorID: "prof-1"},
		"mod-2": {ID: "mod-2", Code: "PHYS101", Name: "Physics", Coefficient: 2, ProfessorID: "prof-2"},
	}}
	students := &mockStudentReader{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", UserID: "user-stu-1", FullName: "Student One", Semester: 1, AcademicYear: "2025-2026"},
	}}
	enrollments := &mockEnrollmentChecker{enrolled: map[string]bool{
		"stu-1:mod-1": true,
	}}
	dispatcher := &mockDispatcher{}
	svc := NewGradeService(grades, modules, students, enrollments, dispatcher, nil, validator.New(), zap.NewNop(), time.Minute)
	return svc, grades, dispatcher
}

func professorClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleProfessor}
}

func adminClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleAdmin}
}

func validSubmit() SubmitGradeRequest {
	return SubmitGradeRequest{
		StudentID:    "stu-1",
		ModuleID:     "mod-1",
		Value:        15,
		Semester:     1,
		AcademicYear: "2025-2026",
		GradeType:    models.GradeTypeExam,
	}
}

func TestSubmitRejectsOutOfRangeValues(t *testing.T) {
	svc, _, _ := newGradeFixture()

	for _, value := range []float64{-1, -0.01, 20.01, 100} {
		req := validSubmit()
		req.Value = value
		_, err := svc.Submit(context.Background(), professorClaims("prof-1"), req)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestSubmitAcceptsBoundaryValues(t *testing.T) {
	svc, _, _ := newGradeFixture()

	for _, value := range []float64{0, 20} {
		req := validSubmit()
		req.Value = value
		grade, err := svc.Submit(context.Background(), professorClaims("prof-1"), req)
		require.NoError(t, err)
		assert.Equal(t, value, grade.Value)
	}
}

func TestSubmitForbiddenForOtherProfessor(t *testing.T) {
	svc, _, _ := newGradeFixture()

	_, err := svc.Submit(context.Background(), professorClaims("prof-2"), validSubmit())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmitRequiresEnrollment(t *testing.T) {
	svc, _, _ := newGradeFixture()

	req := validSubmit()
	req.ModuleID = "mod-2"
	_, err := svc.Submit(context.Background(), adminClaims("admin-1"), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
}

func TestSubmitNaturalKeyConflictReturnsConflict(t *testing.T) {
	svc, grades, _ := newGradeFixture()

	grades.upsertErr = fmt.Errorf("%w: duplicate key value", repository.ErrNaturalKeyConflict)
	_, err := svc.Submit(context.Background(), professorClaims("prof-1"), validSubmit())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.Status)
}

func TestSubmitPersistenceFailureReturnsInternal(t *testing.T) {
	svc, grades, _ := newGradeFixture()

	grades.upsertErr = errors.New("pq: connection refused")
	_, err := svc.Submit(context.Background(), professorClaims("prof-1"), validSubmit())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
}

func TestSubmitOverwritesAndResetsValidation(t *testing.T) {
	svc, grades, _ := newGradeFixture()
	ctx := context.Background()

	first, err := svc.Submit(ctx, professorClaims("prof-1"), validSubmit())
	require.NoError(t, err)

	req := validSubmit()
	req.Value = 18
	second, err := svc.Submit(ctx, professorClaims("prof-1"), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "resubmission must reuse the natural-key row")
	assert.Equal(t, 18.0, second.Value)
	assert.False(t, second.Validated)
	assert.Len(t, grades.byKey, 1)
}

func TestSubmitValidatedGradeRejectedForProfessor(t *testing.T) {
	svc, _, _ := newGradeFixture()
	ctx := context.Background()

	grade, err := svc.Submit(ctx, professorClaims("prof-1"), validSubmit())
	require.NoError(t, err)
	_, err = svc.Validate(ctx, "admin-1", grade.ID)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, professorClaims("prof-1"), validSubmit())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrGradeValidated.Code, appErrors.FromError(err).Code)
}

func TestSubmitValidatedGradeAllowedForAdminAndResetsValidation(t *testing.T) {
	svc, _, _ := newGradeFixture()
	ctx := context.Background()

	grade, err := svc.Submit(ctx, professorClaims("prof-1"), validSubmit())
	require.NoError(t, err)
	_, err = svc.Validate(ctx, "admin-1", grade.ID)
	require.NoError(t, err)

	req := validSubmit()
	req.Value = 12
	updated, err := svc.Submit(ctx, adminClaims("admin-1"), req)
	require.NoError(t, err)
	assert.Equal(t, 12.0, updated.Value)
	assert.False(t, updated.Validated)
	assert.False(t, updated.IsPublished)
}

func TestValidateIsOneWay(t *testing.T) {
	svc, _, _ := newGradeFixture()
	ctx := context.Background()

	grade, err := svc.Submit(ctx, professorClaims("prof-1"), validSubmit())
	require.NoError(t, err)

	validated, err := svc.Validate(ctx, "admin-1", grade.ID)
	require.NoError(t, err)
	assert.True(t, validated.Validated)
	assert.True(t, validated.IsPublished)
	require.NotNil(t, validated.ValidatedBy)
	assert.Equal(t, "admin-1", *validated.ValidatedBy)

	_, err = svc.Validate(ctx, "admin-2", grade.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrGradeValidated.Code, appErrors.FromError(err).Code)
}

func TestValidateUnknownGrade(t *testing.T) {
	svc, _, _ := newGradeFixture()

	_, err := svc.Validate(context.Background(), "admin-1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestValidateNotifiesStudentUser(t *testing.T) {
	svc, _, dispatcher := newGradeFixture()
	ctx := context.Background()

	grade, err := svc.Submit(ctx, professorClaims("prof-1"), validSubmit())
	require.NoError(t, err)
	_, err = svc.Validate(ctx, "admin-1", grade.ID)
	require.NoError(t, err)

	require.Len(t, dispatcher.requests, 1)
	req := dispatcher.requests[0]
	assert.Equal(t, []string{"user-stu-1"}, req.Recipients)
	assert.Equal(t, models.NotificationTypeGrade, req.Type)
	require.NotNil(t, req.Related)
	assert.Equal(t, grade.ID, req.Related.ID)
}

func TestStudentGradesOnlyPublishedVisible(t *testing.T) {
	svc, grades, _ := newGradeFixture()
	ctx := context.Background()

	exam, err := svc.Submit(ctx, professorClaims("prof-1"), validSubmit())
	require.NoError(t, err)

	continuous := validSubmit()
	continuous.GradeType = models.GradeTypeContinuous
	continuous.Value = 11
	_, err = svc.Submit(ctx, professorClaims("prof-1"), continuous)
	require.NoError(t, err)

	_, err = svc.Validate(ctx, "admin-1", exam.ID)
	require.NoError(t, err)

	report, err := svc.StudentGrades(ctx, "user-stu-1", 1, "2025-2026")
	require.NoError(t, err)
	require.Len(t, report.Grades, 1)
	assert.Equal(t, exam.ID, report.Grades[0].ID)
	assert.Len(t, grades.byKey, 2)
}

func TestStudentGradesAverages(t *testing.T) {
	svc, grades, _ := newGradeFixture()

	now := time.Now().UTC()
	grades.details = []models.GradeDetail{
		{
			GradeRecord:       models.GradeRecord{ID: "g1", StudentID: "stu-1", Value: 15, Semester: 1, AcademicYear: "2025-2026", GradeType: models.GradeTypeExam, Validated: true, IsPublished: true, CreatedAt: now},
			ModuleCode:        "MATH101",
			ModuleCoefficient: 3,
		},
		{
			GradeRecord:       models.GradeRecord{ID: "g2", StudentID: "stu-1", Value: 12, Semester: 1, AcademicYear: "2025-2026", GradeType: models.GradeTypeExam, Validated: true, IsPublished: true, CreatedAt: now},
			ModuleCode:        "PHYS101",
			ModuleCoefficient: 1,
		},
		{
			// Unvalidated records never count toward averages.
			GradeRecord:       models.GradeRecord{ID: "g3", StudentID: "stu-1", Value: 2, Semester: 1, AcademicYear: "2025-2026", GradeType: models.GradeTypeContinuous, Validated: false, CreatedAt: now},
			ModuleCode:        "CHEM101",
			ModuleCoefficient: 5,
		},
	}

	report, err := svc.StudentGrades(context.Background(), "user-stu-1", 1, "2025-2026")
	require.NoError(t, err)
	// (15*3 + 12*1) / 4 = 14.25
	assert.Equal(t, "14.25", report.SemesterAverage)
	assert.Equal(t, "14.25", report.YearlyAverage)
	assert.Len(t, report.Grades, 2)
}

func TestModuleGradesOwnership(t *testing.T) {
	svc, _, _ := newGradeFixture()
	ctx := context.Background()

	_, err := svc.Submit(ctx, professorClaims("prof-1"), validSubmit())
	require.NoError(t, err)

	_, err = svc.ModuleGrades(ctx, professorClaims("prof-2"), "mod-1", 1, "2025-2026")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	list, err := svc.ModuleGrades(ctx, professorClaims("prof-1"), "mod-1", 1, "2025-2026")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
