package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/univlab/campus-api/internal/models"
)

// EnrollmentRepository handles persistence of student-module enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN modules m ON m.id = e.module_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ModuleID != "" {
		conditions = append(conditions, fmt.Sprintf("e.module_id = $%d", len(args)+1))
		args = append(args, filter.ModuleID)
	}
	if filter.AcademicYear != "" {
		conditions = append(conditions, fmt.Sprintf("e.academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.module_id, e.academic_year, e.status, e.enrolled_at, e.withdrawn_at,
        s.full_name AS student_name, s.student_number AS student_number, m.code AS module_code, m.name AS module_name
        %s ORDER BY e.enrolled_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// IsEnrolled reports whether the student holds an active enrollment in the module.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, studentID, moduleID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE student_id = $1 AND module_id = $2 AND status = 'ACTIVE'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, moduleID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return count > 0, nil
}

// ListStudentIDsByModule returns the user IDs of students actively enrolled
// in a module. This feeds the notification fan-out.
func (r *EnrollmentRepository) ListStudentIDsByModule(ctx context.Context, moduleID string) ([]string, error) {
	const query = `SELECT s.user_id FROM enrollments e
JOIN students s ON s.id = e.student_id
WHERE e.module_id = $1 AND e.status = 'ACTIVE'`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, moduleID); err != nil {
		return nil, fmt.Errorf("list enrolled students: %w", err)
	}
	return ids, nil
}

// ListModuleIDsByStudent returns the module IDs a student is actively enrolled in.
func (r *EnrollmentRepository) ListModuleIDsByStudent(ctx context.Context, studentID string) ([]string, error) {
	const query = `SELECT module_id FROM enrollments WHERE student_id = $1 AND status = 'ACTIVE'`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, studentID); err != nil {
		return nil, fmt.Errorf("list student modules: %w", err)
	}
	return ids, nil
}

// Create inserts a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO enrollments (id, student_id, module_id, academic_year, status, enrolled_at, withdrawn_at)
VALUES (:id, :student_id, :module_id, :academic_year, :status, :enrolled_at, :withdrawn_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Withdraw marks an enrollment as withdrawn.
func (r *EnrollmentRepository) Withdraw(ctx context.Context, id string) error {
	const query = `UPDATE enrollments SET status = 'WITHDRAWN', withdrawn_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("withdraw enrollment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
