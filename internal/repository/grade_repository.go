package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/univlab/campus-api/internal/models"
)

// uniqueViolation is the Postgres error code raised when the natural-key
// index rejects a concurrent insert.
const uniqueViolation = "23505"

// ErrNaturalKeyConflict marks an upsert rejected by the natural-key index.
// Callers match it with errors.Is to tell a concurrent submission apart
// from a plain persistence failure.
var ErrNaturalKeyConflict = errors.New("grade natural key conflict")

// GradeRepository handles grade record persistence.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// FindByID returns a grade record by identifier.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.GradeRecord, error) {
	const query = `SELECT id, student_id, module_id, value, semester, academic_year, grade_type, validated, validated_by, validated_at, is_published, published_at, comments, created_at, updated_at
FROM grades WHERE id = $1`
	var grade models.GradeRecord
	if err := r.db.GetContext(ctx, &grade, query, id); err != nil {
		return nil, err
	}
	return &grade, nil
}

// FindByKey returns the grade record matching the natural key, if any.
func (r *GradeRepository) FindByKey(ctx context.Context, key models.GradeKey) (*models.GradeRecord, error) {
	const query = `SELECT id, student_id, module_id, value, semester, academic_year, grade_type, validated, validated_by, validated_at, is_published, published_at, comments, created_at, updated_at
FROM grades WHERE student_id = $1 AND module_id = $2 AND semester = $3 AND academic_year = $4 AND grade_type = $5`
	var grade models.GradeRecord
	if err := r.db.GetContext(ctx, &grade, query, key.StudentID, key.ModuleID, key.Semester, key.AcademicYear, key.GradeType); err != nil {
		return nil, err
	}
	return &grade, nil
}

// Upsert inserts or overwrites the grade record for its natural key.
// A re-submission replaces value and comments and resets the validation
// state: the unique index on the natural key makes concurrent submissions
// collapse into a single row.
func (r *GradeRepository) Upsert(ctx context.Context, grade *models.GradeRecord) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now
	const query = `INSERT INTO grades (id, student_id, module_id, value, semester, academic_year, grade_type, validated, validated_by, validated_at, is_published, published_at, comments, created_at, updated_at)
VALUES (:id, :student_id, :module_id, :value, :semester, :academic_year, :grade_type, FALSE, NULL, NULL, FALSE, NULL, :comments, :created_at, :updated_at)
ON CONFLICT (student_id, module_id, semester, academic_year, grade_type)
DO UPDATE SET value = EXCLUDED.value, comments = EXCLUDED.comments, updated_at = EXCLUDED.updated_at,
validated = FALSE, validated_by = NULL, validated_at = NULL, is_published = FALSE, published_at = NULL`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("%w: %v", ErrNaturalKeyConflict, err)
		}
		return fmt.Errorf("upsert grade: %w", err)
	}
	return nil
}

// Validate flips the grade into the validated+published state. The
// transition is one-way: the WHERE clause only matches unvalidated rows,
// so a second validation affects zero rows.
func (r *GradeRepository) Validate(ctx context.Context, gradeID, adminID string, at time.Time) (bool, error) {
	const query = `UPDATE grades SET validated = TRUE, validated_by = $2, validated_at = $3, is_published = TRUE, published_at = $3, updated_at = $3
WHERE id = $1 AND validated = FALSE`
	result, err := r.db.ExecContext(ctx, query, gradeID, adminID, at)
	if err != nil {
		return false, fmt.Errorf("validate grade: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("validate grade result: %w", err)
	}
	return affected > 0, nil
}

// ListDetailsByStudent returns all of a student's grades joined with module
// code, name and coefficient.
func (r *GradeRepository) ListDetailsByStudent(ctx context.Context, studentID string) ([]models.GradeDetail, error) {
	const query = `SELECT g.id, g.student_id, g.module_id, g.value, g.semester, g.academic_year, g.grade_type, g.validated, g.validated_by, g.validated_at, g.is_published, g.published_at, g.comments, g.created_at, g.updated_at,
        m.code AS module_code, m.name AS module_name, m.coefficient AS module_coefficient
        FROM grades g
        JOIN modules m ON m.id = g.module_id
        WHERE g.student_id = $1
        ORDER BY g.academic_year DESC, g.semester ASC, m.code ASC`
	var grades []models.GradeDetail
	if err := r.db.SelectContext(ctx, &grades, query, studentID); err != nil {
		return nil, fmt.Errorf("list student grades: %w", err)
	}
	return grades, nil
}

// CountPendingValidation returns how many grade records are awaiting
// admin validation.
func (r *GradeRepository) CountPendingValidation(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM grades WHERE validated = FALSE`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count pending grades: %w", err)
	}
	return count, nil
}

// ListByModule returns grade records for a module scoped to a semester and year.
func (r *GradeRepository) ListByModule(ctx context.Context, moduleID string, semester int, academicYear string) ([]models.GradeDetail, error) {
	const query = `SELECT g.id, g.student_id, g.module_id, g.value, g.semester, g.academic_year, g.grade_type, g.validated, g.validated_by, g.validated_at, g.is_published, g.published_at, g.comments, g.created_at, g.updated_at,
        m.code AS module_code, m.name AS module_name, m.coefficient AS module_coefficient
        FROM grades g
        JOIN modules m ON m.id = g.module_id
        WHERE g.module_id = $1 AND g.semester = $2 AND g.academic_year = $3
        ORDER BY g.student_id ASC, g.grade_type ASC`
	var grades []models.GradeDetail
	if err := r.db.SelectContext(ctx, &grades, query, moduleID, semester, academicYear); err != nil {
		return nil, fmt.Errorf("list module grades: %w", err)
	}
	return grades, nil
}
