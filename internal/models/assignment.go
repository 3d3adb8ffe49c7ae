package models

import "time"

// Assignment is homework published by a professor for a module.
type Assignment struct {
	ID          string    `db:"id" json:"id"`
	ModuleID    string    `db:"module_id" json:"module_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	DueDate     time.Time `db:"due_date" json:"due_date"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Submission is a student's uploaded answer to an assignment.
// One submission per (assignment, student); re-upload replaces the file.
type Submission struct {
	ID           string    `db:"id" json:"id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	FileName     string    `db:"file_name" json:"file_name"`
	FilePath     string    `db:"file_path" json:"-"`
	MIMEType     string    `db:"mime_type" json:"mime_type"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submitted_at"`
}

// AssignmentFilter lists assignments per module.
type AssignmentFilter struct {
	ModuleID  string
	CreatedBy string
	Page      int
	PageSize  int
}
