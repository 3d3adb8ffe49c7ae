package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/univlab/campus-api/internal/models"
)

// AssignmentRepository provides persistence for assignments and submissions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FindByID returns an assignment by identifier.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	const query = `SELECT id, module_id, title, description, due_date, created_by, created_at, updated_at FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListByModule returns assignments for a module ordered by due date.
func (r *AssignmentRepository) ListByModule(ctx context.Context, moduleID string) ([]models.Assignment, error) {
	const query = `SELECT id, module_id, title, description, due_date, created_by, created_at, updated_at
FROM assignments WHERE module_id = $1 ORDER BY due_date ASC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, moduleID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// ListUpcomingByModules returns future assignments across the given
// modules ordered by due date. Feeds the student dashboard.
func (r *AssignmentRepository) ListUpcomingByModules(ctx context.Context, moduleIDs []string, limit int) ([]models.Assignment, error) {
	if len(moduleIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, module_id, title, description, due_date, created_by, created_at, updated_at
FROM assignments WHERE module_id IN (?) AND due_date > NOW() ORDER BY due_date ASC LIMIT ?`, moduleIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("build upcoming assignments query: %w", err)
	}
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list upcoming assignments: %w", err)
	}
	return assignments, nil
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now
	const query = `INSERT INTO assignments (id, module_id, title, description, due_date, created_by, created_at, updated_at)
VALUES (:id, :module_id, :title, :description, :due_date, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// UpsertSubmission stores a student's submission, replacing a prior upload.
func (r *AssignmentRepository) UpsertSubmission(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions (id, assignment_id, student_id, file_name, file_path, mime_type, size_bytes, submitted_at)
VALUES (:id, :assignment_id, :student_id, :file_name, :file_path, :mime_type, :size_bytes, :submitted_at)
ON CONFLICT (assignment_id, student_id)
DO UPDATE SET file_name = EXCLUDED.file_name, file_path = EXCLUDED.file_path, mime_type = EXCLUDED.mime_type, size_bytes = EXCLUDED.size_bytes, submitted_at = EXCLUDED.submitted_at`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}
	return nil
}

// ListSubmissions returns the submissions received for an assignment.
func (r *AssignmentRepository) ListSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	const query = `SELECT id, assignment_id, student_id, file_name, file_path, mime_type, size_bytes, submitted_at
FROM submissions WHERE assignment_id = $1 ORDER BY submitted_at DESC`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// CountPendingByProfessor counts submissions in the professor's modules
// received in the last seven days. Feeds the professor dashboard.
func (r *AssignmentRepository) CountPendingByProfessor(ctx context.Context, professorID string) (int, error) {
	const query = `SELECT COUNT(*) FROM submissions sub
JOIN assignments a ON a.id = sub.assignment_id
JOIN modules m ON m.id = a.module_id
WHERE m.professor_id = $1 AND sub.submitted_at > NOW() - INTERVAL '7 days'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, professorID); err != nil {
		return 0, fmt.Errorf("count recent submissions: %w", err)
	}
	return count, nil
}
