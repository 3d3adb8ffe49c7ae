package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/univlab/campus-api/internal/models"
)

func newGradeRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func gradeRows(grade *models.GradeRecord) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "module_id", "value", "semester", "academic_year", "grade_type", "validated", "validated_by", "validated_at", "is_published", "published_at", "comments", "created_at", "updated_at"}).
		AddRow(grade.ID, grade.StudentID, grade.ModuleID, grade.Value, grade.Semester, grade.AcademicYear, grade.GradeType, grade.Validated, grade.ValidatedBy, grade.ValidatedAt, grade.IsPublished, grade.PublishedAt, grade.Comments, grade.CreatedAt, grade.UpdatedAt)
}

func TestGradeRepositoryUpsertAssignsIDAndTimestamps(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()

	repo := NewGradeRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grades")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	grade := &models.GradeRecord{
		StudentID:    "stu-1",
		ModuleID:     "mod-1",
		Value:        14.5,
		Semester:     1,
		AcademicYear: "2025-2026",
		GradeType:    models.GradeTypeExam,
	}
	require.NoError(t, repo.Upsert(context.Background(), grade))
	require.NotEmpty(t, grade.ID)
	require.False(t, grade.CreatedAt.IsZero())
	require.False(t, grade.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryUpsertResetsValidationOnConflict(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()

	repo := NewGradeRepository(db)
	// The conflict branch must clear every validation and publication column,
	// so the statement itself carries the reset.
	mock.ExpectExec(`ON CONFLICT \(student_id, module_id, semester, academic_year, grade_type\)[\s\S]*validated = FALSE, validated_by = NULL, validated_at = NULL, is_published = FALSE, published_at = NULL`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	grade := &models.GradeRecord{
		ID:           "grade-1",
		StudentID:    "stu-1",
		ModuleID:     "mod-1",
		Value:        9.0,
		Semester:     2,
		AcademicYear: "2025-2026",
		GradeType:    models.GradeTypeContinuous,
	}
	require.NoError(t, repo.Upsert(context.Background(), grade))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryUpsertDistinguishesUniqueViolation(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()

	repo := NewGradeRepository(db)
	grade := &models.GradeRecord{
		StudentID:    "stu-1",
		ModuleID:     "mod-1",
		Value:        12,
		Semester:     1,
		AcademicYear: "2025-2026",
		GradeType:    models.GradeTypeExam,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grades")).
		WillReturnError(&pq.Error{Code: uniqueViolation})
	err := repo.Upsert(context.Background(), grade)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNaturalKeyConflict)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grades")).
		WillReturnError(errors.New("pq: connection refused"))
	err = repo.Upsert(context.Background(), grade)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNaturalKeyConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryValidateOneWay(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()

	repo := NewGradeRepository(db)
	at := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE grades SET validated = TRUE")).
		WithArgs("grade-1", "admin-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.Validate(context.Background(), "grade-1", "admin-1", at)
	require.NoError(t, err)
	require.True(t, ok)

	// An already validated row falls outside the WHERE clause and reports
	// zero affected rows.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE grades SET validated = TRUE")).
		WithArgs("grade-1", "admin-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.Validate(context.Background(), "grade-1", "admin-1", at)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryFindByKey(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()

	repo := NewGradeRepository(db)
	stored := &models.GradeRecord{
		ID:           "grade-1",
		StudentID:    "stu-1",
		ModuleID:     "mod-1",
		Value:        16,
		Semester:     1,
		AcademicYear: "2025-2026",
		GradeType:    models.GradeTypeExam,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM grades WHERE student_id = $1 AND module_id = $2")).
		WithArgs("stu-1", "mod-1", 1, "2025-2026", models.GradeTypeExam).
		WillReturnRows(gradeRows(stored))

	found, err := repo.FindByKey(context.Background(), models.GradeKey{
		StudentID:    "stu-1",
		ModuleID:     "mod-1",
		Semester:     1,
		AcademicYear: "2025-2026",
		GradeType:    models.GradeTypeExam,
	})
	require.NoError(t, err)
	require.Equal(t, "grade-1", found.ID)
	require.Equal(t, 16.0, found.Value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryCountPendingValidation(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()

	repo := NewGradeRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM grades WHERE validated = FALSE")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountPendingValidation(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
